package menu

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidMenu is wrapped by every definition validation failure.
var ErrInvalidMenu = errors.New("invalid menu definition")

// Definitions is the on-disk shape of a menu file.
type Definitions struct {
	Menus []MenuDefinition `yaml:"menus" validate:"dive"`
	// Flows binds a location to a wizard entry started on arrival.
	Flows map[string]string `yaml:"flows"`
}

// Registry is an immutable lookup from location to menu and flow binding.
type Registry struct {
	menus map[string]MenuDefinition
	flows map[string]string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("action_kind", func(fl validator.FieldLevel) bool {
		return slices.Contains(ActionKinds, ActionKind(fl.Field().String()))
	})
	return v
}

// NewRegistry validates the definitions and builds a registry from them.
func NewRegistry(defs Definitions) (*Registry, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}

	r := &Registry{
		menus: make(map[string]MenuDefinition, len(defs.Menus)),
		flows: make(map[string]string, len(defs.Flows)),
	}
	for _, d := range defs.Menus {
		d.Location = CanonicalLocation(d.Location)
		d.Options = slices.Clone(d.Options)
		r.menus[d.Location] = d
	}
	for loc, entry := range defs.Flows {
		r.flows[CanonicalLocation(loc)] = entry
	}
	return r, nil
}

// Validate checks field constraints, id uniqueness, payload presence and
// location uniqueness.
func Validate(defs Definitions) error {
	if err := validate.Struct(defs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMenu, err)
	}

	seen := make(map[string]bool, len(defs.Menus))
	for _, d := range defs.Menus {
		loc := CanonicalLocation(d.Location)
		if seen[loc] {
			return fmt.Errorf("%w: duplicate location %q", ErrInvalidMenu, loc)
		}
		seen[loc] = true

		ids := make(map[int]bool, len(d.Options))
		for _, o := range d.Options {
			if ids[o.ID] {
				return fmt.Errorf("%w: %s: duplicate option id %d", ErrInvalidMenu, loc, o.ID)
			}
			ids[o.ID] = true
			if o.Action.NeedsPayload() && o.Payload == "" {
				return fmt.Errorf("%w: %s: option %d (%s) needs a payload", ErrInvalidMenu, loc, o.ID, o.Action)
			}
		}
	}

	for loc, entry := range defs.Flows {
		if entry == "" {
			return fmt.Errorf("%w: empty flow binding for %q", ErrInvalidMenu, loc)
		}
	}
	return nil
}

// Resolve returns the option numbered n at location. It reports false when
// the location has no menu or the menu has no such option.
func (r *Registry) Resolve(location string, n int) (MenuOption, bool) {
	d, ok := r.menus[CanonicalLocation(location)]
	if !ok {
		return MenuOption{}, false
	}
	return d.Option(n)
}

// Menu returns the menu registered for location.
func (r *Registry) Menu(location string) (MenuDefinition, bool) {
	d, ok := r.menus[CanonicalLocation(location)]
	return d, ok
}

// Flow returns the wizard entry bound to location.
func (r *Registry) Flow(location string) (string, bool) {
	e, ok := r.flows[CanonicalLocation(location)]
	return e, ok
}

// Locations returns every location with a menu, sorted.
func (r *Registry) Locations() []string {
	locs := make([]string, 0, len(r.menus))
	for loc := range r.menus {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}

// Actions returns every action reachable from any menu.
func (r *Registry) Actions() []Action {
	var out []Action
	for _, loc := range r.Locations() {
		for _, o := range r.menus[loc].Options {
			out = append(out, o.Target())
		}
	}
	return out
}

// FlowEntries returns every bound wizard entry.
func (r *Registry) FlowEntries() []string {
	out := make([]string, 0, len(r.flows))
	for _, e := range r.flows {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
