// Package menu holds the numbered voice menus bound to each navigation
// location, and resolves a spoken choice to the option it names.
package menu

import (
	"fmt"
	"strings"
)

// ActionKind is the closed set of things a menu option can do.
type ActionKind string

const (
	ActionNavigate    ActionKind = "NAVIGATE"
	ActionGoBack      ActionKind = "GO_BACK"
	ActionFocus       ActionKind = "FOCUS"
	ActionSubmit      ActionKind = "SUBMIT"
	ActionReadList    ActionKind = "READ_LIST"
	ActionOpenAux     ActionKind = "OPEN_AUX"
	ActionLogout      ActionKind = "LOGOUT"
	ActionStartWizard ActionKind = "START_WIZARD"
	ActionRepeat      ActionKind = "REPEAT"
	ActionHelp        ActionKind = "HELP"
	ActionNoOp        ActionKind = "NO_OP"
)

// ActionKinds lists every valid ActionKind.
var ActionKinds = []ActionKind{
	ActionNavigate, ActionGoBack, ActionFocus, ActionSubmit, ActionReadList,
	ActionOpenAux, ActionLogout, ActionStartWizard, ActionRepeat, ActionHelp, ActionNoOp,
}

// NeedsPayload reports whether the kind is meaningless without a payload.
func (k ActionKind) NeedsPayload() bool {
	switch k {
	case ActionNavigate, ActionFocus, ActionSubmit, ActionReadList, ActionOpenAux, ActionStartWizard:
		return true
	}
	return false
}

// Action is a resolved action with its payload (location, field, list name,
// wizard entry...).
type Action struct {
	Kind    ActionKind `json:"kind"`
	Payload string     `json:"payload,omitempty"`
}

func (a Action) String() string {
	if a.Payload == "" {
		return string(a.Kind)
	}
	return string(a.Kind) + ":" + a.Payload
}

// MenuOption is one numbered entry of a menu.
type MenuOption struct {
	ID      int        `yaml:"id"                json:"id"                validate:"min=0,max=9"`
	Label   string     `yaml:"label"             json:"label"             validate:"required"`
	Action  ActionKind `yaml:"action"            json:"action"            validate:"required,action_kind"`
	Payload string     `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Target returns the action the option fires.
func (o MenuOption) Target() Action {
	return Action{Kind: o.Action, Payload: o.Payload}
}

// MenuDefinition is the menu spoken at one location.
type MenuDefinition struct {
	Location    string       `yaml:"location"     json:"location"     validate:"required,startswith=/"`
	Title       string       `yaml:"title"        json:"title"        validate:"required"`
	WelcomeText string       `yaml:"welcome_text" json:"welcome_text" validate:"required"`
	Options     []MenuOption `yaml:"options"      json:"options"      validate:"required,min=1,dive"`
}

// Option returns the option with the given id.
func (d MenuDefinition) Option(id int) (MenuOption, bool) {
	for _, o := range d.Options {
		if o.ID == id {
			return o, true
		}
	}
	return MenuOption{}, false
}

// Prompt is the spoken form of the menu: the welcome text followed by every
// option in declaration order.
func (d MenuDefinition) Prompt() string {
	var b strings.Builder
	b.WriteString(d.WelcomeText)
	for _, o := range d.Options {
		fmt.Fprintf(&b, " %d، %s.", o.ID, o.Label)
	}
	return b.String()
}

// CanonicalLocation strips query, fragment and trailing slashes so that
// "/bank/", "/bank?x=1" and "/bank" share one menu.
func CanonicalLocation(loc string) string {
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	loc = strings.TrimRight(strings.TrimSpace(loc), "/")
	if loc == "" {
		return "/"
	}
	if !strings.HasPrefix(loc, "/") {
		loc = "/" + loc
	}
	return loc
}
