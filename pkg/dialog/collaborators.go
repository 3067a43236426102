package dialog

import (
	"context"

	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/transcript"
)

// Recognizer controls speech recognition. Start and Stop must return
// promptly; transcripts arrive later through Supervisor.PushTranscript.
type Recognizer interface {
	Start(ctx context.Context, locale string) error
	Stop(ctx context.Context) error
}

// Speaker synthesizes text. Speak blocks until playback ends or ctx is done.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Navigator changes the visible location. External changes are reported
// through Supervisor.NotifyLocation.
type Navigator interface {
	GoTo(ctx context.Context, location string) error
	// GoBack returns the location navigated to.
	GoBack(ctx context.Context) (string, error)
	Current() string
}

// Focuser drives page elements for users who type instead of speaking.
type Focuser interface {
	Focus(ctx context.Context, field string) error
	Submit(ctx context.Context, form string) error
	Open(ctx context.Context, panel string) error
}

// Backend is the banking and shopping API. *backend.Client implements it.
type Backend interface {
	GetBalance(ctx context.Context) (backend.Balance, error)
	Transfer(ctx context.Context, toName string, amount float64) (backend.Balance, error)
	RecentTransactions(ctx context.Context, limit int) ([]backend.Transaction, error)
	FindProduct(ctx context.Context, query string) ([]backend.Match, error)
	ListProducts(ctx context.Context, limit int) ([]backend.Product, error)
	AddToCart(ctx context.Context, p backend.Product, qty int) (backend.Cart, error)
	Cart(ctx context.Context) (backend.Cart, error)
	Checkout(ctx context.Context) (backend.Order, error)
	EmptyCart(ctx context.Context) error
	Register(ctx context.Context, name, pin string) (backend.Account, error)
	Login(ctx context.Context, name, pin string) (backend.Account, error)
	Logout(ctx context.Context) error
}

// Journal records conversation turns.
type Journal interface {
	Append(ctx context.Context, turn transcript.Turn) error
}

// MenuSource yields the current menu registry. *menu.Loader implements it.
type MenuSource interface {
	Registry() *menu.Registry
}

type staticMenus struct{ r *menu.Registry }

func (s staticMenus) Registry() *menu.Registry { return s.r }

// StaticMenus serves a fixed registry.
func StaticMenus(r *menu.Registry) MenuSource { return staticMenus{r: r} }

// Runner executes a task off the event loop.
type Runner func(task func())

// Inline runs tasks on the calling goroutine.
func Inline(task func()) { task() }

// Go runs each task on a new goroutine.
func Go(task func()) { go task() }
