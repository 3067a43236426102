package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/transcript"
	"github.com/ibsar/voicedialog/pkg/utterance"
	"github.com/ibsar/voicedialog/pkg/wizard"
)

const redacted = "******"

// onUtterance dispatches one utterance: shortcut, pending confirmation,
// active wizard, then menu choice.
func (s *Supervisor) onUtterance(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.cutSpeech() {
		return
	}
	s.disarmSilence()
	s.suppressResume = false

	sess := s.session()
	sensitive := s.wiz != nil && s.wiz.Sensitive()
	logged := text
	if sensitive {
		logged = redacted
	}
	s.emit(events.SpeechFinal, &events.SpeechData{Transcript: logged, Location: sess.Location})
	s.record(transcript.RoleUser, logged)

	numbers := utterance.ExtractNumbers(text)
	if !sensitive {
		if sc, ok := DetectDoubleShortcut(numbers); ok {
			s.shortcut(sc, repeatedDigit(numbers))
			return
		}
	}

	switch {
	case sess.PendingConfirmation() != nil:
		s.confirm(text)
	case s.wiz != nil:
		sess.SetRetries(0)
		s.applyReply(s.wiz.Handle(wizard.Input{Text: text, Numbers: numbers}))
	case s.busy:
		s.say(promptWait, false)
	default:
		s.choose(text, numbers)
	}
}

func repeatedDigit(numbers []int) int {
	for i := 1; i < len(numbers); i++ {
		if numbers[i] == numbers[i-1] {
			return numbers[i]
		}
	}
	return 0
}

func (s *Supervisor) shortcut(sc Shortcut, digit int) {
	s.emit(events.ShortcutFired, &events.ShortcutData{Digit: digit, Shortcut: sc.String()})

	var err error
	switch sc {
	case ShortcutHome:
		err = s.navigate(LocationHome)
	case ShortcutBack:
		err = s.goBack()
	case ShortcutBank:
		err = s.navigate(LocationBank)
	case ShortcutCommerce:
		err = s.navigate(LocationCommerce)
	case ShortcutRepeat:
		s.repeat()
	case ShortcutHelp:
		s.help()
	}
	if err != nil {
		s.fail(err)
	}
}

func (s *Supervisor) onKey(name string) {
	k := utterance.ParseKey(name)
	s.emit(events.KeyPressed, &events.KeyData{Key: name, Command: k.Command.String()})

	switch k.Command {
	case utterance.KeyDigit:
		s.onUtterance(strconv.Itoa(k.Digit))
	case utterance.KeyHome:
		s.shortcut(ShortcutHome, 0)
	case utterance.KeyBack:
		s.shortcut(ShortcutBack, 0)
	case utterance.KeyProducts:
		s.shortcut(ShortcutCommerce, 0)
	case utterance.KeyRepeat:
		s.shortcut(ShortcutRepeat, 0)
	case utterance.KeyHelp:
		s.shortcut(ShortcutHelp, 0)
	case utterance.KeyStopSpeech:
		s.interrupt()
		s.drained()
	case utterance.KeyToggleListening:
		if s.listening {
			s.stopListening()
			s.disarmSilence()
			return
		}
		s.suppressResume = false
		s.micDenied = false
		s.interrupt()
		s.startListening()
		s.armSilence()
	case utterance.KeySubmit:
		loc := s.session().Location
		s.execute(menu.Action{Kind: menu.ActionSubmit, Payload: strings.TrimPrefix(loc, "/")})
	}
}

// confirm answers a pending confirmation. Anything but a clear yes or no
// re-asks without counting as a retry.
func (s *Supervisor) confirm(text string) {
	sess := s.session()
	pending := sess.PendingConfirmation()

	yes, no := utterance.IsYes(text), utterance.IsNo(text)
	switch {
	case yes && !no:
		sess.SetPending(nil)
		sess.SetRetries(0)
		s.transition(s.restState(), "confirm")
		s.executeSeeded(pending.Action, pending.Seed)
	case no && !yes:
		sess.SetPending(nil)
		sess.SetRetries(0)
		s.transition(s.restState(), "reject")
		s.replayMenu()
	default:
		s.say(promptAskYesNo, true)
	}
}

// choose resolves a menu choice, falling back to the classifier.
func (s *Supervisor) choose(text string, numbers []int) {
	sess := s.session()
	if len(numbers) > 0 {
		if opt, ok := s.menus.Registry().Resolve(sess.Location, numbers[0]); ok {
			s.propose(opt.Target(), opt.Label)
			return
		}
	}
	s.fallback(text)
}

func (s *Supervisor) propose(act menu.Action, label string) {
	s.proposeSeeded(act, label, wizard.Seed{})
}

func (s *Supervisor) proposeSeeded(act menu.Action, label string, seed wizard.Seed) {
	sess := s.session()
	sess.SetPending(&Confirmation{Action: act, Label: label, Seed: seed})
	sess.SetRetries(0)
	s.transition(MenuAwaitConfirm, "choice")
	s.say(fmt.Sprintf(promptConfirm, label), true)
}

func (s *Supervisor) fallback(text string) {
	if s.classifier == nil {
		s.notUnderstood()
		return
	}
	s.busy = true
	classifier, minConf := s.classifier, s.cfg.MinIntentConfidence
	s.async(func(ctx context.Context) func() {
		res, err := classifier.Classify(ctx, text)
		return func() {
			s.busy = false
			if err != nil {
				slog.WarnContext(s.ctx, "intent classification failed", slog.String("error", err.Error()))
				s.notUnderstood()
				return
			}
			s.emit(events.IntentResolved, &events.IntentData{
				Text:       text,
				Intent:     string(res.Intent),
				Confidence: res.Confidence,
				Classifier: res.Source,
			})
			act, ok := intentAction(res.Intent)
			if !ok || res.Confidence < minConf {
				s.notUnderstood()
				return
			}
			seed := intentSeed(res.Intent, res.Slots)
			s.proposeSeeded(act, intentLabel(res.Intent, seed), seed)
		}
	})
}

func (s *Supervisor) notUnderstood() {
	sess := s.session()
	sess.SetRetries(sess.Retries() + 1)
	s.say(promptNotUnderstood, true)
}

// restState is where a location without an active wizard rests.
func (s *Supervisor) restState() FlowState {
	if _, ok := s.menus.Registry().Menu(s.session().Location); ok {
		return MenuAwaitChoice
	}
	return NoFlow
}

func (s *Supervisor) menuPrompt() string {
	if def, ok := s.menus.Registry().Menu(s.session().Location); ok {
		return def.Prompt()
	}
	return ""
}

func (s *Supervisor) replayMenu() {
	if p := s.menuPrompt(); p != "" {
		s.say(p, true)
		return
	}
	s.say(promptNoMenu, true)
}

// repeat replays the last listening prompt.
func (s *Supervisor) repeat() {
	if p := s.session().Prompt(); p != "" {
		s.say(p, true)
		return
	}
	s.replayMenu()
}

func (s *Supervisor) help() {
	s.say(promptHelp, false)
	s.repeat()
}

func (s *Supervisor) startWizard(entry string, seed wizard.Seed) error {
	w, err := wizard.NewSeeded(entry, s.cfg.Wizard, seed)
	if err != nil {
		return err
	}
	sess := s.session()
	s.wiz = w
	sess.SetPending(nil)
	sess.SetWizard(entry, string(w.State()))
	s.transition(WizardActive, entry)
	s.applyReply(w.Start())
	return nil
}

// applyReply speaks a wizard reply and performs its effect.
func (s *Supervisor) applyReply(r wizard.Reply) {
	if w := s.wiz; w != nil {
		s.session().SetWizard(w.Entry(), string(w.State()))
	}

	switch r.Effect.Kind {
	case wizard.EffectCall:
		s.say(r.Prompt, false)
		s.perform(r.Effect.Call)
		return
	case wizard.EffectNavigate:
		s.say(r.Prompt, false)
		loc := r.Effect.Location
		s.whenQuiet(func() {
			if err := s.navigate(loc); err != nil {
				s.fail(err)
			}
		})
		return
	}

	if r.Done {
		s.endWizard()
	}
	if r.Prompt == "" {
		if r.Listen && !s.speaking {
			s.lastListen = true
			s.resume()
		}
		return
	}
	s.say(r.Prompt, r.Listen)
}

func (s *Supervisor) perform(c wizard.Call) {
	s.busy = true
	be := s.be
	s.async(func(ctx context.Context) func() {
		out, took := invoke(ctx, be, c)
		return func() {
			s.busy = false
			s.reportCall(c, out, took)
			if s.wiz == nil {
				return
			}
			s.applyReply(s.wiz.Resume(out))
		}
	})
}

func (s *Supervisor) endWizard() {
	s.wiz = nil
	s.session().SetWizard("", "")
	s.transition(s.restState(), "wizard_done")
}

func (s *Supervisor) onLocation(loc string) {
	if sess := s.session(); sess != nil && menu.CanonicalLocation(loc) == sess.Location {
		return
	}
	s.changeLocation(loc, "external")
}

// changeLocation drops everything bound to the previous page and enters the
// flow of the new one.
func (s *Supervisor) changeLocation(loc, trigger string) {
	loc = menu.CanonicalLocation(loc)

	s.interrupt()
	s.afterSpeech = nil
	s.disarmSilence()
	s.stopDebounce()
	s.interim, s.debounced = "", ""
	s.stopListening()
	if s.flowCancel != nil {
		s.flowCancel()
	}
	s.flowCtx, s.flowCancel = context.WithCancel(s.ctx)
	s.gen++
	s.busy = false
	s.suppressResume = false
	s.wiz = nil

	s.current.Store(NewSession(loc))
	flow, _ := s.menus.Registry().Flow(loc)
	s.emit(events.SessionStarted, &events.SessionStartedData{Location: loc, Flow: flow})
	slog.DebugContext(s.ctx, "location entered", slog.String("location", loc), slog.String("trigger", trigger))
	s.enterFlow(trigger)
}

// enterFlow starts the bound wizard, else the menu, else NO_FLOW.
func (s *Supervisor) enterFlow(trigger string) {
	reg := s.menus.Registry()
	loc := s.session().Location

	if entry, ok := reg.Flow(loc); ok && wizard.Known(entry) {
		if err := s.startWizard(entry, wizard.Seed{}); err == nil {
			return
		}
	}
	if def, ok := reg.Menu(loc); ok {
		s.transition(MenuAwaitChoice, trigger)
		s.say(def.Prompt(), true)
		return
	}
	s.transition(NoFlow, trigger)
	s.say(promptNoMenu, true)
}

func (s *Supervisor) restartFlow(trigger string) {
	sess := s.session()
	s.wiz = nil
	sess.SetWizard("", "")
	sess.SetPending(nil)
	s.enterFlow(trigger)
}

func (s *Supervisor) navigate(loc string) error {
	if err := s.nav.GoTo(s.flowCtx, loc); err != nil {
		return fmt.Errorf("navigate to %s: %w", loc, err)
	}
	s.changeLocation(loc, "navigate")
	return nil
}

func (s *Supervisor) goBack() error {
	if s.session().Location == LocationHome {
		s.say(promptAtHome, true)
		return nil
	}
	loc, err := s.nav.GoBack(s.flowCtx)
	if err != nil {
		return fmt.Errorf("go back: %w", err)
	}
	s.changeLocation(loc, "back")
	return nil
}

// fail speaks err and returns the session to its resting state.
func (s *Supervisor) fail(err error) {
	msg := backend.Message(err)
	if msg == "" {
		msg = promptExecFailed
	}
	sess := s.session()
	slog.WarnContext(s.ctx, "dialog action failed",
		slog.String("location", sess.Location), slog.String("error", err.Error()))
	s.emit(events.SystemError, &events.ErrorData{Where: "executor", Error: err.Error()})

	s.wiz = nil
	sess.SetWizard("", "")
	sess.SetPending(nil)
	if rest := s.restState(); sess.CurrentState() != rest {
		s.transition(rest, "error")
	}
	s.say(msg, true)
}
