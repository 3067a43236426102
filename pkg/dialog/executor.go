package dialog

import (
	"context"
	"fmt"

	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/nlu"
	"github.com/ibsar/voicedialog/pkg/wizard"
)

// Lists READ_LIST can speak.
const (
	ListProducts     = "products"
	ListCart         = "cart"
	ListTransactions = "transactions"
)

// execute performs a confirmed action. Failures are spoken and leave the
// session resting on its menu.
func (s *Supervisor) execute(act menu.Action) {
	s.executeSeeded(act, wizard.Seed{})
}

// executeSeeded is execute for an action carrying classifier slots.
func (s *Supervisor) executeSeeded(act menu.Action, seed wizard.Seed) {
	loc := s.session().Location
	err := s.dispatch(act, seed)

	data := &events.ActionExecutedData{ActionType: string(act.Kind), Payload: act.Payload, Location: loc}
	if err != nil {
		data.Error = err.Error()
	}
	s.emit(events.ActionExecuted, data)
	if err != nil {
		s.fail(err)
	}
}

func (s *Supervisor) dispatch(act menu.Action, seed wizard.Seed) error {
	switch act.Kind {
	case menu.ActionNavigate:
		return s.navigate(act.Payload)

	case menu.ActionGoBack:
		return s.goBack()

	case menu.ActionFocus:
		if s.focus == nil {
			return errNoFocuser
		}
		if err := s.focus.Focus(s.flowCtx, act.Payload); err != nil {
			return fmt.Errorf("focus %s: %w", act.Payload, err)
		}
		s.suppressResume = true
		s.say(promptTypeNow, false)

	case menu.ActionSubmit:
		if s.focus == nil {
			return errNoFocuser
		}
		if err := s.focus.Submit(s.flowCtx, act.Payload); err != nil {
			return fmt.Errorf("submit %s: %w", act.Payload, err)
		}
		s.say(promptSubmitted, true)

	case menu.ActionOpenAux:
		if s.focus == nil {
			return errNoFocuser
		}
		if err := s.focus.Open(s.flowCtx, act.Payload); err != nil {
			return fmt.Errorf("open %s: %w", act.Payload, err)
		}
		s.say(promptOpened, true)

	case menu.ActionReadList:
		return s.readList(act.Payload)

	case menu.ActionLogout:
		s.logout()

	case menu.ActionStartWizard:
		return s.startWizard(act.Payload, seed)

	case menu.ActionRepeat:
		s.replayMenu()

	case menu.ActionHelp:
		s.say(promptHelp, false)
		s.replayMenu()

	case menu.ActionNoOp:
		s.say(promptNotAvailable, true)

	default:
		return fmt.Errorf("unsupported action %q", act.Kind)
	}
	return nil
}

func (s *Supervisor) readList(list string) error {
	be, limit := s.be, s.cfg.ListLimit

	var fetch func(ctx context.Context) (string, error)
	switch list {
	case ListProducts:
		fetch = func(ctx context.Context) (string, error) {
			products, err := be.ListProducts(ctx, limit)
			if err != nil {
				return "", err
			}
			return wizard.DescribeProducts(products, limit), nil
		}
	case ListCart:
		fetch = func(ctx context.Context) (string, error) {
			cart, err := be.Cart(ctx)
			if err != nil {
				return "", err
			}
			return wizard.DescribeCart(cart, limit), nil
		}
	case ListTransactions:
		fetch = func(ctx context.Context) (string, error) {
			txs, err := be.RecentTransactions(ctx, limit)
			if err != nil {
				return "", err
			}
			return wizard.DescribeTransactions(txs, limit), nil
		}
	default:
		return fmt.Errorf("unknown list %q", list)
	}

	s.busy = true
	s.async(func(ctx context.Context) func() {
		text, err := fetch(ctx)
		return func() {
			s.busy = false
			if err != nil {
				s.fail(fmt.Errorf("read %s: %w", list, err))
				return
			}
			if text == "" {
				text = promptEmptyList
			}
			s.say(text, true)
		}
	})
	return nil
}

func (s *Supervisor) logout() {
	s.busy = true
	be := s.be
	s.async(func(ctx context.Context) func() {
		err := be.Logout(ctx)
		return func() {
			s.busy = false
			if err == nil {
				err = s.navigate(LocationLogin)
			}
			if err != nil {
				s.fail(fmt.Errorf("logout: %w", err))
			}
		}
	})
}

// intentAction maps a classified intent to the menu action it stands for.
// intentSeed keeps the slots the wizard for i consumes.
func intentSeed(i nlu.Intent, slots nlu.Slots) wizard.Seed {
	switch i {
	case nlu.IntentBankTransfer:
		return wizard.Seed{Name: slots.ToName, Amount: slots.Amount}
	case nlu.IntentAddItem:
		return wizard.Seed{Query: slots.ItemName, Quantity: slots.Qty}
	case nlu.IntentCheckPrice:
		return wizard.Seed{Query: slots.ItemName}
	}
	return wizard.Seed{}
}

// intentLabel is spoken when confirming i. Seeded details are read back.
func intentLabel(i nlu.Intent, seed wizard.Seed) string {
	switch {
	case i == nlu.IntentBankTransfer && seed.Name != "" && seed.Amount > 0:
		return fmt.Sprintf(labelTransferTo, wizard.Amount(seed.Amount), seed.Name)
	case i == nlu.IntentAddItem && seed.Query != "":
		return fmt.Sprintf(labelAddItem, seed.Query)
	case i == nlu.IntentCheckPrice && seed.Query != "":
		return fmt.Sprintf(labelSearchItem, seed.Query)
	}
	return intentLabels[string(i)]
}

func intentAction(i nlu.Intent) (menu.Action, bool) {
	switch i {
	case nlu.IntentHome:
		return menu.Action{Kind: menu.ActionNavigate, Payload: LocationHome}, true
	case nlu.IntentLogin:
		return menu.Action{Kind: menu.ActionNavigate, Payload: LocationLogin}, true
	case nlu.IntentRegister:
		return menu.Action{Kind: menu.ActionNavigate, Payload: "/register"}, true
	case nlu.IntentBank:
		return menu.Action{Kind: menu.ActionNavigate, Payload: LocationBank}, true
	case nlu.IntentProducts:
		return menu.Action{Kind: menu.ActionNavigate, Payload: LocationCommerce}, true
	case nlu.IntentBankTransfer:
		return menu.Action{Kind: menu.ActionStartWizard, Payload: "bank.transfer"}, true
	case nlu.IntentGetBalance:
		return menu.Action{Kind: menu.ActionStartWizard, Payload: "bank.balance"}, true
	case nlu.IntentHistory:
		return menu.Action{Kind: menu.ActionStartWizard, Payload: "bank.history"}, true
	case nlu.IntentAddItem:
		return menu.Action{Kind: menu.ActionStartWizard, Payload: "commerce.add"}, true
	case nlu.IntentCheckPrice:
		return menu.Action{Kind: menu.ActionStartWizard, Payload: "commerce.search"}, true
	case nlu.IntentCart:
		return menu.Action{Kind: menu.ActionStartWizard, Payload: "commerce.cart"}, true
	case nlu.IntentHelp:
		return menu.Action{Kind: menu.ActionHelp}, true
	case nlu.IntentRepeat:
		return menu.Action{Kind: menu.ActionRepeat}, true
	case nlu.IntentBack:
		return menu.Action{Kind: menu.ActionGoBack}, true
	}
	return menu.Action{}, false
}
