// Package nlu classifies utterances the menu could not resolve into coarse
// intents. It is a fallback: the dialog engine never depends on it for
// correctness.
package nlu

import (
	"context"
	"errors"
)

// Intent is a coarse user goal.
type Intent string

const (
	IntentUnknown      Intent = "UNKNOWN"
	IntentHome         Intent = "HOME"
	IntentLogin        Intent = "LOGIN"
	IntentRegister     Intent = "REGISTER"
	IntentBank         Intent = "BANK"
	IntentProducts     Intent = "PRODUCTS"
	IntentBankTransfer Intent = "BANK_TRANSFER"
	IntentGetBalance   Intent = "GET_BALANCE"
	IntentHistory      Intent = "BANK_HISTORY"
	IntentAddItem      Intent = "ADD_ITEM"
	IntentCheckPrice   Intent = "CHECK_PRICE"
	IntentCart         Intent = "CART"
	IntentHelp         Intent = "HELP"
	IntentRepeat       Intent = "REPEAT"
	IntentBack         Intent = "BACK"
)

// Intents lists every intent a classifier may return besides UNKNOWN.
var Intents = []Intent{
	IntentHome, IntentLogin, IntentRegister, IntentBank, IntentProducts,
	IntentBankTransfer, IntentGetBalance, IntentHistory, IntentAddItem,
	IntentCheckPrice, IntentCart, IntentHelp, IntentRepeat, IntentBack,
}

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	if i == IntentUnknown {
		return true
	}
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// Slots are the entities found alongside an intent.
type Slots struct {
	ToName   string  `json:"toName,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	ItemName string  `json:"itemName,omitempty"`
	Qty      int     `json:"qty,omitempty"`
}

// Result is a classification.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Slots      Slots   `json:"slots"`
	Source     string  `json:"source"`
}

// Known reports whether the result names an intent.
func (r Result) Known() bool { return r.Intent != "" && r.Intent != IntentUnknown }

// Classifier maps an utterance to an intent.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// ErrRateLimited is returned when a remote classifier refuses to spend
// another request.
var ErrRateLimited = errors.New("classifier rate limited")

// Unknown is the result for text no classifier understood.
func Unknown(source string) Result {
	return Result{Intent: IntentUnknown, Source: source}
}
