// Package backend is the client for the banking and shopping REST API the
// voice assistant drives. It keeps the signed-in token and the shopping cart
// for the one user the dialog serves.
package backend

import (
	"errors"
	"fmt"
	"time"
)

// Transaction types as reported by the API.
const (
	TxTransferOut = "TRANSFER_OUT"
	TxTransferIn  = "TRANSFER_IN"
	TxCheckout    = "CHECKOUT"
	TxTopUp       = "TOPUP"
)

// Account is the signed-in user.
type Account struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Balance is the user's bank balance.
type Balance struct {
	Amount   float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// TransactionMeta carries the counterpart of a transaction.
type TransactionMeta struct {
	ToName    string `json:"toName,omitempty"`
	FromName  string `json:"fromName,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	ItemCount int    `json:"itemCount,omitempty"`
}

// Transaction is one entry of the bank history. Amount is negative for
// money leaving the account.
type Transaction struct {
	ID        string          `json:"_id"`
	Type      string          `json:"type"`
	Amount    float64         `json:"amount"`
	Meta      TransactionMeta `json:"meta"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Product is a catalog entry.
type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category,omitempty"`
}

// CartLine is a product and how many of it are in the cart.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Cart is the local shopping cart.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Total returns the cart value.
func (c Cart) Total() float64 {
	var t float64
	for _, l := range c.Lines {
		t += l.Product.Price * float64(l.Quantity)
	}
	return t
}

// Count returns the number of items in the cart.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool { return len(c.Lines) == 0 }

// Order is the result of a checkout.
type Order struct {
	ID         string  `json:"orderId"`
	NewBalance float64 `json:"newBalance"`
	Message    string  `json:"message,omitempty"`
}

// Error is a failed API call. Message is meant to be spoken to the user.
type Error struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: HTTP %d %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
}

var (
	// ErrCircuitOpen is returned without calling the API while the breaker
	// is open.
	ErrCircuitOpen = errors.New("backend unavailable: circuit open")
	// ErrNotAuthenticated is returned for account operations before login.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Message returns the human-readable text carried by err, or "" when err
// has none.
func Message(err error) string {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrCircuitOpen):
		return "الخدمة موش متوفرة توّة. عاود بعد شوية."
	case errors.Is(err, ErrNotAuthenticated):
		return "لازمك تدخل لحسابك قبل."
	}
	return ""
}
