// Package wizard implements the multi-turn data collection flows (sign-in,
// transfer, shopping). A wizard is a small state machine fed with one
// utterance at a time. It never calls collaborators itself: replies carry a
// declarative Effect that the dialog supervisor performs, and the result is
// fed back through Resume.
package wizard

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/utterance"
)

// State is the name of a wizard state.
type State string

// Input is one utterance handed to the active wizard.
type Input struct {
	Text    string
	Numbers []int
}

// NewInput builds an Input with the numbers extracted from text.
func NewInput(text string) Input {
	return Input{Text: text, Numbers: utterance.ExtractNumbers(text)}
}

// Op names a backend operation a wizard asks for.
type Op string

// Backend operations.
const (
	OpGetBalance         Op = "get_balance"
	OpTransfer           Op = "transfer"
	OpRecentTransactions Op = "recent_transactions"
	OpFindProduct        Op = "find_product"
	OpAddToCart          Op = "add_to_cart"
	OpCart               Op = "cart"
	OpCheckout           Op = "checkout"
	OpEmptyCart          Op = "empty_cart"
	OpRegister           Op = "register"
	OpLogin              Op = "login"
)

// Call is a backend operation with its captured arguments.
type Call struct {
	Op       Op
	Name     string
	PIN      string
	Amount   float64
	Query    string
	Product  backend.Product
	Quantity int
	Limit    int
}

// Redacted returns the call with secrets removed, for logs and journals.
func (c Call) Redacted() Call {
	if c.PIN != "" {
		c.PIN = "******"
	}
	return c
}

// EffectKind tells the supervisor what to do after speaking a reply.
type EffectKind int

// Effect kinds.
const (
	EffectNone EffectKind = iota
	EffectCall
	EffectNavigate
)

// Effect is a side effect requested by a wizard.
type Effect struct {
	Kind     EffectKind
	Call     Call
	Location string
}

// Reply is a wizard's answer to one input.
//
// With an EffectCall the supervisor runs the call and passes the Outcome to
// Resume. With EffectNavigate it changes location, which discards the wizard.
// Done means the wizard has finished and the location menu takes over.
type Reply struct {
	Prompt string
	Effect Effect
	Listen bool
	Done   bool
}

// Outcome is the result of a Call.
type Outcome struct {
	Op           Op
	Err          error
	Account      backend.Account
	Balance      backend.Balance
	Transactions []backend.Transaction
	Matches      []backend.Match
	Cart         backend.Cart
	Order        backend.Order
}

// Wizard is a multi-turn flow.
type Wizard interface {
	// Entry returns the entry name the wizard was created with.
	Entry() string
	// State returns the current state.
	State() State
	// Start returns the opening reply.
	Start() Reply
	// Handle consumes one utterance.
	Handle(in Input) Reply
	// Resume consumes the result of the call requested by the last reply.
	Resume(out Outcome) Reply
	// Sensitive reports whether the wizard is collecting or confirming a
	// secret, during which global shortcuts are not honoured.
	Sensitive() bool
}

// Config tunes wizard behaviour.
type Config struct {
	// NameAttempts bounds how many too-short names are accepted before the
	// wizard gives up.
	NameAttempts int
	// HistoryLimit is how many transactions are read aloud.
	HistoryLimit int
	// Candidates is how many products are offered when a lookup is ambiguous.
	Candidates int
}

func (c Config) withDefaults() Config {
	if c.NameAttempts <= 0 {
		c.NameAttempts = 3
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 3
	}
	if c.Candidates <= 0 {
		c.Candidates = 5
	}
	return c
}

// Seed carries values already understood before the wizard starts, such
// as the entities a classifier found in "hawel 20 l sara". Zero fields are
// asked for as usual.
type Seed struct {
	Name     string  `json:"name,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Query    string  `json:"query,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
}

// IsZero reports whether the seed carries nothing.
func (s Seed) IsZero() bool { return s == Seed{} }

type factory func(entry string, cfg Config, seed Seed) Wizard

var entries = map[string]factory{
	"auth.login":        newAuth,
	"auth.register":     newAuth,
	"bank.balance":      newBank,
	"bank.transfer":     newBank,
	"bank.history":      newBank,
	"commerce.search":   newCommerce,
	"commerce.add":      newCommerce,
	"commerce.cart":     newCommerce,
	"commerce.checkout": newCommerce,
	"commerce.empty":    newCommerce,
}

// Entries returns every known entry name, sorted.
func Entries() []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Known reports whether entry names a wizard.
func Known(entry string) bool {
	_, ok := entries[entry]
	return ok
}

// New creates the wizard for entry.
func New(entry string, cfg Config) (Wizard, error) {
	return NewSeeded(entry, cfg, Seed{})
}

// NewSeeded creates the wizard for entry. Its first Start skips the
// questions seed already answers.
func NewSeeded(entry string, cfg Config, seed Seed) (Wizard, error) {
	f, ok := entries[entry]
	if !ok {
		return nil, fmt.Errorf("unknown wizard entry %q", entry)
	}
	return f(entry, cfg.withDefaults(), seed), nil
}

func ask(prompt string) Reply {
	return Reply{Prompt: prompt, Listen: true}
}

func call(prompt string, c Call) Reply {
	return Reply{Prompt: prompt, Effect: Effect{Kind: EffectCall, Call: c}}
}

func done(prompt string) Reply {
	return Reply{Prompt: prompt, Listen: true, Done: true}
}

// answer classifies a yes/no reply. An utterance holding both is ambiguous.
type answer int

const (
	answerOther answer = iota
	answerYes
	answerNo
)

func yesNo(text string) answer {
	yes, no := utterance.IsYes(text), utterance.IsNo(text)
	switch {
	case yes && !no:
		return answerYes
	case no && !yes:
		return answerNo
	}
	return answerOther
}

// cleanName keeps the letters and digits of a spoken name.
func cleanName(text string) string {
	return strings.Join(strings.FieldsFunc(text, func(r rune) bool {
		return !isNameRune(r)
	}), " ")
}

func failure(err error, fallback string) string {
	if msg := backend.Message(err); msg != "" {
		return msg
	}
	return fallback
}

const (
	promptCancelled = "باهي، بطلنا."
	promptYesNo     = "اختار نعم أو لا."
)
