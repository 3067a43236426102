package wizard

import (
	"fmt"

	"github.com/ibsar/voicedialog/pkg/utterance"
)

// Auth wizard states.
const (
	AuthAskName       State = "ASK_NAME"
	AuthAskPIN        State = "ASK_PIN"
	AuthConfirmSubmit State = "CONFIRM_SUBMIT"
	AuthDone          State = "DONE"
)

// PINLength is the number of digits of a voice PIN.
const PINLength = 6

// AuthHome is where a successful sign-in leads.
const AuthHome = "/bank"

type auth struct {
	entry    string
	register bool
	cfg      Config

	state      State
	name       string
	pin        string
	attempts   int
	submitting bool
}

func newAuth(entry string, cfg Config, _ Seed) Wizard {
	return &auth{entry: entry, register: entry == "auth.register", cfg: cfg, state: AuthAskName}
}

func (a *auth) Entry() string { return a.entry }
func (a *auth) State() State  { return a.state }

// Sensitive covers PIN entry and its confirmation. A PIN like 114477 holds
// repeated digits that would otherwise read as a double shortcut.
func (a *auth) Sensitive() bool {
	return a.state == AuthAskPIN || a.state == AuthConfirmSubmit
}

func (a *auth) Start() Reply {
	a.reset()
	if a.register {
		return ask("مرحبا بيك في التسجيل. أول حاجة قول اسمك.")
	}
	return ask("مرحبا بيك. باش تدخل لحسابك، أول حاجة قول اسمك.")
}

func (a *auth) reset() {
	a.state = AuthAskName
	a.name = ""
	a.pin = ""
	a.attempts = 0
	a.submitting = false
}

func (a *auth) Handle(in Input) Reply {
	if a.submitting {
		return Reply{Prompt: "لحظة، مازلت نثبت."}
	}
	if a.state == AuthAskName && utterance.IsCancel(in.Text) {
		a.state = AuthDone
		return done(promptCancelled)
	}

	switch a.state {
	case AuthAskName:
		name := cleanName(in.Text)
		if runeLen(name) < 2 {
			a.attempts++
			if a.attempts >= a.cfg.NameAttempts {
				a.state = AuthDone
				return done("ما نجمتش نفهم الاسم. تنجم تكتبو بيدك، اختار 2 باش تكتب الاسم.")
			}
			return ask("الاسم قصير برشا. عاود قول اسمك.")
		}
		a.name = name
		a.attempts = 0
		a.state = AuthAskPIN
		return ask("تمام. سجلت الاسم. توا قول الرمز السري: ستة أرقام.")

	case AuthAskPIN:
		digits := utterance.ExtractDigits(in.Text)
		if len(digits) != PINLength {
			return ask("الرمز لازم يكون ستة أرقام. عاود قول الرمز.")
		}
		a.pin = digits
		a.state = AuthConfirmSubmit
		return ask("تمام. سجلت الرمز. تحب نأكدو؟ اختار نعم أو لا.")

	case AuthConfirmSubmit:
		switch yesNo(in.Text) {
		case answerYes:
			a.submitting = true
			op := OpLogin
			if a.register {
				op = OpRegister
			}
			return call("لحظة.", Call{Op: op, Name: a.name, PIN: a.pin})
		case answerNo:
			a.reset()
			return ask("باهي. مالا نعاودو من الأول. قول اسمك.")
		}
		return ask(promptYesNo)
	}
	return done("")
}

func (a *auth) Resume(out Outcome) Reply {
	if !a.submitting || (out.Op != OpLogin && out.Op != OpRegister) {
		return Reply{}
	}
	a.submitting = false

	if out.Err != nil {
		msg := failure(out.Err, "صار مشكل. عاود جرّب.")
		a.reset()
		return ask(msg + " قول اسمك من جديد.")
	}

	name := out.Account.Name
	if name == "" {
		name = a.name
	}
	a.state = AuthDone
	a.pin = ""
	prompt := fmt.Sprintf("مرحبا بيك يا %s. دخلت لحسابك.", name)
	if a.register {
		prompt = fmt.Sprintf("تم التسجيل بنجاح. مرحبا بيك يا %s.", name)
	}
	return Reply{Prompt: prompt, Effect: Effect{Kind: EffectNavigate, Location: AuthHome}, Done: true}
}
