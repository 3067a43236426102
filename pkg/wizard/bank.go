package wizard

import (
	"fmt"

	"github.com/ibsar/voicedialog/pkg/utterance"
)

// Bank wizard states.
const (
	BankIdle                State = "IDLE"
	BankWaitTransferName    State = "WAIT_TRANSFER_NAME"
	BankWaitTransferAmount  State = "WAIT_TRANSFER_AMOUNT"
	BankWaitConfirmTransfer State = "WAIT_CONFIRM_TRANSFER"
)

type bank struct {
	entry string
	cfg   Config

	state     State
	recipient string
	amount    float64
	attempts  int
	waiting   Op
	seed      Seed
}

func newBank(entry string, cfg Config, seed Seed) Wizard {
	return &bank{entry: entry, cfg: cfg, state: BankIdle, seed: seed}
}

func (b *bank) Entry() string   { return b.entry }
func (b *bank) State() State    { return b.state }
func (b *bank) Sensitive() bool { return false }

func (b *bank) Start() Reply {
	b.state = BankIdle
	b.recipient, b.amount, b.attempts = "", 0, 0

	switch b.entry {
	case "bank.balance":
		b.waiting = OpGetBalance
		return call("", Call{Op: OpGetBalance})
	case "bank.history":
		b.waiting = OpRecentTransactions
		return call("", Call{Op: OpRecentTransactions, Limit: b.cfg.HistoryLimit})
	}
	seed := b.seed
	b.seed = Seed{}
	if name := cleanName(seed.Name); runeLen(name) >= 2 {
		b.recipient = name
	}
	if seed.Amount > 0 {
		b.amount = seed.Amount
	}
	return b.nextTransferStep()
}

// nextTransferStep asks for the first transfer detail still missing, then
// for confirmation.
func (b *bank) nextTransferStep() Reply {
	switch {
	case b.recipient == "":
		b.state = BankWaitTransferName
		return ask("لمن تحب تبعث الفلوس؟ قول الاسم.")
	case b.amount <= 0:
		b.state = BankWaitTransferAmount
		return ask(fmt.Sprintf("باهي، قداش تحب تبعث لـ %s؟", b.recipient))
	}
	b.state = BankWaitConfirmTransfer
	return ask(fmt.Sprintf("باش تحول %s دينار لـ %s. صحيح؟ نعم أو لا.", Amount(b.amount), b.recipient))
}

func (b *bank) Handle(in Input) Reply {
	if b.waiting != "" {
		return Reply{Prompt: "لحظة."}
	}
	if utterance.IsCancel(in.Text) {
		b.state = BankIdle
		return done("بطلنا التحويل.")
	}

	switch b.state {
	case BankWaitTransferName:
		name := cleanName(in.Text)
		if runeLen(name) < 2 {
			b.attempts++
			if b.attempts >= b.cfg.NameAttempts {
				b.state = BankIdle
				return done("ما فهمتش الاسم. بطلنا التحويل.")
			}
			return ask("ما فهمتش الاسم. عاود قول اسم اللي تحب تبعثلو.")
		}
		b.recipient = name
		b.attempts = 0
		return b.nextTransferStep()

	case BankWaitTransferAmount:
		if len(in.Numbers) == 0 || in.Numbers[0] <= 0 {
			return ask("قول المبلغ بالأرقام، لازم يكون أكثر من صفر.")
		}
		b.amount = float64(in.Numbers[0])
		return b.nextTransferStep()

	case BankWaitConfirmTransfer:
		switch yesNo(in.Text) {
		case answerYes:
			b.waiting = OpTransfer
			return call("لحظة.", Call{Op: OpTransfer, Name: b.recipient, Amount: b.amount})
		case answerNo:
			b.state = BankIdle
			return done("بطلنا التحويل.")
		}
		return ask(promptYesNo)
	}
	return done("")
}

func (b *bank) Resume(out Outcome) Reply {
	if b.waiting == "" || out.Op != b.waiting {
		return Reply{}
	}
	b.waiting = ""
	b.state = BankIdle

	switch out.Op {
	case OpGetBalance:
		if out.Err != nil {
			return done(failure(out.Err, "ما نجمتش نجيب الرصيد."))
		}
		return done(DescribeBalance(out.Balance))

	case OpRecentTransactions:
		if out.Err != nil {
			return done(failure(out.Err, "ما نجمتش نجيب العمليات."))
		}
		return done(DescribeTransactions(out.Transactions, b.cfg.HistoryLimit))

	case OpTransfer:
		if out.Err != nil {
			return done("ما نجمناش نحولو. " + failure(out.Err, "صار مشكل في التحويل."))
		}
		return done(fmt.Sprintf("تم التحويل بنجاح. رصيدك توا %s دينار.", Amount(out.Balance.Amount)))
	}
	return done("")
}
