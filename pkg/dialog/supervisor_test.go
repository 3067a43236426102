package dialog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/nlu"
	"github.com/ibsar/voicedialog/pkg/transcript"
	"github.com/ibsar/voicedialog/pkg/wizard"
)

type fakeRecognizer struct {
	active bool
	starts int
}

func (f *fakeRecognizer) Start(context.Context, string) error {
	f.active = true
	f.starts++
	return nil
}

func (f *fakeRecognizer) Stop(context.Context) error {
	f.active = false
	return nil
}

type fakeSpeaker struct {
	spoken []string
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	f.spoken = append(f.spoken, text)
	return nil
}

type fakeNavigator struct {
	current string
	stack   []string
	gotos   []string
}

func (f *fakeNavigator) GoTo(_ context.Context, loc string) error {
	f.stack = append(f.stack, f.current)
	f.current = loc
	f.gotos = append(f.gotos, loc)
	return nil
}

func (f *fakeNavigator) GoBack(context.Context) (string, error) {
	if len(f.stack) == 0 {
		return "", errors.New("no history")
	}
	f.current = f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return f.current, nil
}

func (f *fakeNavigator) Current() string { return f.current }

type fakeFocuser struct {
	focused   []string
	submitted []string
	opened    []string
}

func (f *fakeFocuser) Focus(_ context.Context, field string) error {
	f.focused = append(f.focused, field)
	return nil
}

func (f *fakeFocuser) Submit(_ context.Context, form string) error {
	f.submitted = append(f.submitted, form)
	return nil
}

func (f *fakeFocuser) Open(_ context.Context, panel string) error {
	f.opened = append(f.opened, panel)
	return nil
}

type fakeBackend struct {
	calls    map[string]int
	balance  float64
	products []backend.Product
	err      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:   make(map[string]int),
		balance: 120,
		products: []backend.Product{
			{ID: "p1", Name: "حليب", Price: 1.5},
			{ID: "p2", Name: "خبز", Price: 0.2},
		},
	}
}

func (f *fakeBackend) GetBalance(context.Context) (backend.Balance, error) {
	f.calls["GetBalance"]++
	return backend.Balance{Amount: f.balance}, f.err
}

func (f *fakeBackend) Transfer(_ context.Context, _ string, amount float64) (backend.Balance, error) {
	f.calls["Transfer"]++
	f.balance -= amount
	return backend.Balance{Amount: f.balance}, f.err
}

func (f *fakeBackend) RecentTransactions(context.Context, int) ([]backend.Transaction, error) {
	f.calls["RecentTransactions"]++
	return nil, f.err
}

func (f *fakeBackend) FindProduct(_ context.Context, query string) ([]backend.Match, error) {
	f.calls["FindProduct"]++
	return backend.MatchProducts(query, f.products), f.err
}

func (f *fakeBackend) ListProducts(_ context.Context, limit int) ([]backend.Product, error) {
	f.calls["ListProducts"]++
	if f.err != nil {
		return nil, f.err
	}
	return f.products[:min(limit, len(f.products))], nil
}

func (f *fakeBackend) AddToCart(_ context.Context, p backend.Product, qty int) (backend.Cart, error) {
	f.calls["AddToCart"]++
	return backend.Cart{Lines: []backend.CartLine{{Product: p, Quantity: qty}}}, f.err
}

func (f *fakeBackend) Cart(context.Context) (backend.Cart, error) {
	f.calls["Cart"]++
	return backend.Cart{}, f.err
}

func (f *fakeBackend) Checkout(context.Context) (backend.Order, error) {
	f.calls["Checkout"]++
	return backend.Order{}, f.err
}

func (f *fakeBackend) EmptyCart(context.Context) error {
	f.calls["EmptyCart"]++
	return f.err
}

func (f *fakeBackend) Register(_ context.Context, name, _ string) (backend.Account, error) {
	f.calls["Register"]++
	return backend.Account{Name: name}, f.err
}

func (f *fakeBackend) Login(_ context.Context, name, _ string) (backend.Account, error) {
	f.calls["Login"]++
	return backend.Account{Name: name}, f.err
}

func (f *fakeBackend) Logout(context.Context) error {
	f.calls["Logout"]++
	return f.err
}

type stubClassifier struct {
	res nlu.Result
	err error
}

func (c *stubClassifier) Classify(context.Context, string) (nlu.Result, error) {
	return c.res, c.err
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

// harness drives a supervisor on the test goroutine: runner tasks are queued
// and timers only fire on request.
type harness struct {
	t       *testing.T
	s       *Supervisor
	rec     *fakeRecognizer
	spk     *fakeSpeaker
	nav     *fakeNavigator
	focus   *fakeFocuser
	be      *fakeBackend
	journal *transcript.MemoryStore
	pub     *events.Publisher
	bus     <-chan events.Envelope

	mu     sync.Mutex
	tasks  []func()
	timers []*fakeTimer
}

func newHarness(t *testing.T, start string, classifier nlu.Classifier) *harness {
	t.Helper()
	reg, err := menu.Default()
	if err != nil {
		t.Fatalf("menu.Default: %v", err)
	}
	h := &harness{
		t:       t,
		rec:     &fakeRecognizer{},
		spk:     &fakeSpeaker{},
		nav:     &fakeNavigator{current: start},
		focus:   &fakeFocuser{},
		be:      newFakeBackend(),
		journal: transcript.NewMemoryStore(0),
		pub:     events.NewPublisher(nil, "test", ""),
	}
	h.bus = h.pub.Subscribe("test", 1024)

	s, err := New(Config{}, Deps{
		Recognizer: h.rec,
		Speaker:    h.spk,
		Navigator:  h.nav,
		Focuser:    h.focus,
		Backend:    h.be,
		Menus:      StaticMenus(reg),
		Classifier: classifier,
		Journal:    h.journal,
		Publisher:  h.pub,
		Runner:     h.runner,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.after = h.after
	h.s = s
	s.begin(t.Context())
	h.settle()
	return h
}

func (h *harness) runner(task func()) {
	h.mu.Lock()
	h.tasks = append(h.tasks, task)
	h.mu.Unlock()
}

func (h *harness) after(d time.Duration, f func()) func() bool {
	t := &fakeTimer{d: d, f: f}
	h.timers = append(h.timers, t)
	return func() bool {
		was := !t.stopped
		t.stopped = true
		return was
	}
}

// pump handles queued events without running runner tasks.
func (h *harness) pump() int {
	n := 0
	for {
		select {
		case ev := <-h.s.events:
			h.s.handle(ev)
			n++
		default:
			return n
		}
	}
}

// settle runs tasks and events until nothing is left.
func (h *harness) settle() {
	h.t.Helper()
	for range 1000 {
		h.mu.Lock()
		tasks := h.tasks
		h.tasks = nil
		h.mu.Unlock()
		for _, task := range tasks {
			task()
		}
		if n := h.pump(); n == 0 && len(tasks) == 0 {
			return
		}
	}
	h.t.Fatal("dialog did not settle")
}

// fire runs the live timer of duration d.
func (h *harness) fire(d time.Duration) {
	h.t.Helper()
	for _, t := range h.timers {
		if !t.stopped && t.d == d {
			t.stopped = true
			t.f()
			h.settle()
			return
		}
	}
	h.t.Fatalf("no live %v timer", d)
}

func (h *harness) live(d time.Duration) bool {
	for _, t := range h.timers {
		if !t.stopped && t.d == d {
			return true
		}
	}
	return false
}

func (h *harness) say(text string) {
	h.t.Helper()
	h.s.PushTranscript(text, true)
	h.settle()
}

func (h *harness) key(k string) {
	h.t.Helper()
	h.s.PushKey(k)
	h.settle()
}

func (h *harness) last() string {
	if len(h.spk.spoken) == 0 {
		return ""
	}
	return h.spk.spoken[len(h.spk.spoken)-1]
}

func (h *harness) events() []events.EventType {
	var out []events.EventType
	for {
		select {
		case env := <-h.bus:
			out = append(out, env.Type)
		default:
			return out
		}
	}
}

func menuPrompt(t *testing.T, loc string) string {
	t.Helper()
	reg, _ := menu.Default()
	def, ok := reg.Menu(loc)
	if !ok {
		t.Fatalf("no default menu at %s", loc)
	}
	return def.Prompt()
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}, Deps{}); !errors.Is(err, ErrMissingCollaborator) {
		t.Errorf("error = %v, want ErrMissingCollaborator", err)
	}
}

func TestStartSpeaksMenuThenListens(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	if got, want := h.last(), menuPrompt(t, "/bank"); got != want {
		t.Errorf("spoken = %q, want %q", got, want)
	}
	snap := h.s.Snapshot()
	if snap.State != MenuAwaitChoice || snap.Location != "/bank" {
		t.Errorf("snapshot = %s at %s", snap.State, snap.Location)
	}
	if !h.rec.active {
		t.Error("recognizer not listening after the menu prompt")
	}
	if !h.live(10 * time.Second) {
		t.Error("menu silence timer not armed")
	}
}

func TestMenuChoiceConfirmedExecutesOnce(t *testing.T) {
	h := newHarness(t, "/", nil)

	h.say("2")
	if len(h.nav.gotos) != 0 {
		t.Fatalf("navigated before confirmation: %v", h.nav.gotos)
	}
	snap := h.s.Snapshot()
	if snap.State != MenuAwaitConfirm || snap.Pending == nil || snap.Pending.Label != "تسجيل جديد" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if want := "اخترت تسجيل جديد. صحيح؟ قول نعم ولا لا."; h.last() != want {
		t.Errorf("spoken = %q, want %q", h.last(), want)
	}

	h.say("نعم")
	if len(h.nav.gotos) != 1 || h.nav.gotos[0] != "/register" {
		t.Fatalf("gotos = %v, want [/register]", h.nav.gotos)
	}
	snap = h.s.Snapshot()
	if snap.Location != "/register" || snap.State != WizardActive || snap.Wizard != "auth.register" {
		t.Errorf("snapshot = %s %s %s", snap.Location, snap.State, snap.Wizard)
	}
	if snap.Pending != nil {
		t.Error("pending confirmation survived execution")
	}
}

func TestMenuChoiceRejected(t *testing.T) {
	h := newHarness(t, "/", nil)

	h.say("2")
	h.say("لا")
	if len(h.nav.gotos) != 0 {
		t.Errorf("gotos = %v, want none", h.nav.gotos)
	}
	if got := h.s.Snapshot(); got.State != MenuAwaitChoice || got.Pending != nil {
		t.Errorf("state = %s pending = %v", got.State, got.Pending)
	}
	if want := menuPrompt(t, "/"); h.last() != want {
		t.Errorf("spoken = %q, want the menu", h.last())
	}
}

func TestConfirmationReasksWithoutRetry(t *testing.T) {
	h := newHarness(t, "/", nil)

	h.say("2")
	h.say("بنان")
	if h.last() != promptAskYesNo {
		t.Errorf("spoken = %q, want %q", h.last(), promptAskYesNo)
	}
	snap := h.s.Snapshot()
	if snap.State != MenuAwaitConfirm || snap.RetryCount != 0 {
		t.Errorf("state = %s retries = %d", snap.State, snap.RetryCount)
	}

	h.say("نعم لا")
	if h.last() != promptAskYesNo {
		t.Errorf("yes and no together = %q, want re-ask", h.last())
	}
}

func TestUnknownChoiceCountsRetries(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	h.say("7")
	h.say("شنوة")
	if h.last() != promptNotUnderstood {
		t.Errorf("spoken = %q", h.last())
	}
	if got := h.s.Snapshot().RetryCount; got != 2 {
		t.Errorf("retries = %d, want 2", got)
	}
	h.say("1")
	if got := h.s.Snapshot().RetryCount; got != 0 {
		t.Errorf("retries after a parsed choice = %d, want 0", got)
	}
}

func TestSilenceReplaysThenEscalates(t *testing.T) {
	h := newHarness(t, "/bank", nil)
	prompt := menuPrompt(t, "/bank")

	h.fire(10 * time.Second)
	if h.last() != prompt {
		t.Errorf("first timeout spoke %q, want the last prompt", h.last())
	}
	if got := h.s.Snapshot().RetryCount; got != 1 {
		t.Errorf("retries = %d, want 1", got)
	}

	mark := len(h.spk.spoken)
	h.fire(10 * time.Second)
	spoken := h.spk.spoken[mark:]
	if len(spoken) != 2 || spoken[0] != promptHelp || spoken[1] != prompt {
		t.Errorf("second timeout spoke %q, want help then the menu", spoken)
	}
	snap := h.s.Snapshot()
	if snap.RetryCount != 0 || snap.State != MenuAwaitChoice {
		t.Errorf("after escalation: retries = %d state = %s", snap.RetryCount, snap.State)
	}
}

func TestWizardUsesWizardTimeout(t *testing.T) {
	h := newHarness(t, "/login", nil)

	if !h.live(8 * time.Second) {
		t.Fatal("wizard silence timer not armed")
	}
	h.fire(8 * time.Second)
	h.fire(8 * time.Second)
	snap := h.s.Snapshot()
	if snap.Wizard != "auth.login" || snap.WizardState != "ASK_NAME" {
		t.Errorf("after escalation wizard = %s/%s, want a fresh auth.login", snap.Wizard, snap.WizardState)
	}
}

func TestBankBalanceEndToEnd(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	h.say("1")
	h.say("نعم")

	if h.be.calls["GetBalance"] != 1 {
		t.Fatalf("GetBalance calls = %d, want 1", h.be.calls["GetBalance"])
	}
	if want := "رصيدك هو 120 دينار."; h.last() != want {
		t.Errorf("spoken = %q, want %q", h.last(), want)
	}
	snap := h.s.Snapshot()
	if snap.State != MenuAwaitChoice || snap.Wizard != "" {
		t.Errorf("state = %s wizard = %q, want back on the menu", snap.State, snap.Wizard)
	}
	if !h.rec.active {
		t.Error("not listening after the balance")
	}

	got := h.events()
	for _, want := range []events.EventType{events.SessionStarted, events.StateTransition, events.ActionExecuted, events.BackendCalled, events.PromptSpoken} {
		found := false
		for _, e := range got {
			if e == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("event %s not published", want)
		}
	}
}

func TestBankTransfer(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	for _, text := range []string{"2", "نعم", "سارة", "20", "نعم"} {
		h.say(text)
	}
	if h.be.calls["Transfer"] != 1 {
		t.Fatalf("Transfer calls = %d", h.be.calls["Transfer"])
	}
	if !strings.Contains(h.last(), "100") {
		t.Errorf("spoken = %q, want the new balance", h.last())
	}
}

func TestShortcutBypassesMenuConfirmation(t *testing.T) {
	h := newHarness(t, "/", nil)

	h.say("1")
	h.say("3 3")
	if len(h.nav.gotos) != 1 || h.nav.gotos[0] != LocationBank {
		t.Fatalf("gotos = %v, want [/bank]", h.nav.gotos)
	}
	snap := h.s.Snapshot()
	if snap.Location != LocationBank || snap.Pending != nil {
		t.Errorf("location = %s pending = %v", snap.Location, snap.Pending)
	}
}

func TestShortcutIgnoredDuringPIN(t *testing.T) {
	h := newHarness(t, "/login", nil)
	loginSession := h.s.Snapshot().SessionID

	h.say("سامي")
	h.say("1 1 4 4 7 7")
	if len(h.nav.gotos) != 0 {
		t.Fatalf("PIN digits fired a shortcut: %v", h.nav.gotos)
	}
	if got := h.s.Snapshot().WizardState; got != "CONFIRM_SUBMIT" {
		t.Fatalf("wizard state = %s, want CONFIRM_SUBMIT", got)
	}

	h.say("3 3")
	if len(h.nav.gotos) != 0 {
		t.Fatalf("3 3 navigated during PIN confirmation: %v", h.nav.gotos)
	}
	if got := h.s.Snapshot().WizardState; got != "CONFIRM_SUBMIT" {
		t.Errorf("wizard state = %s, want CONFIRM_SUBMIT", got)
	}

	h.say("نعم")
	if h.be.calls["Login"] != 1 {
		t.Fatalf("Login calls = %d", h.be.calls["Login"])
	}
	if len(h.nav.gotos) != 1 || h.nav.gotos[0] != "/bank" {
		t.Errorf("gotos = %v, want [/bank] after sign-in", h.nav.gotos)
	}

	turns, err := h.journal.List(t.Context(), loginSession, 0)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	for _, turn := range turns {
		if strings.Contains(turn.Text, "4 4 7 7") {
			t.Errorf("PIN journaled in clear: %q", turn.Text)
		}
	}
}

func TestLocationChangeDiscardsState(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	h.say("2")
	h.say("نعم")
	h.say("سارة")
	if got := h.s.Snapshot().WizardState; got != "WAIT_TRANSFER_AMOUNT" {
		t.Fatalf("wizard state = %s", got)
	}
	before := h.s.Snapshot().SessionID

	h.s.NotifyLocation("/products")
	h.settle()
	snap := h.s.Snapshot()
	if snap.Location != "/products" || snap.Wizard != "" || snap.State != MenuAwaitChoice || snap.RetryCount != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.SessionID == before {
		t.Error("session not replaced")
	}

	h.s.NotifyLocation("/products/")
	h.settle()
	if h.s.Snapshot().SessionID != snap.SessionID {
		t.Error("same location restarted the session")
	}
}

func TestStaleCompletionDropped(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	h.say("1")
	h.s.PushTranscript("نعم", true)
	h.pump()
	h.s.NotifyLocation("/products")
	h.pump()
	h.settle()

	if h.be.calls["GetBalance"] != 1 {
		t.Fatalf("GetBalance calls = %d", h.be.calls["GetBalance"])
	}
	for _, text := range h.spk.spoken {
		if strings.HasPrefix(text, "رصيدك") {
			t.Errorf("stale balance spoken after navigation: %q", text)
		}
	}
	if h.s.Snapshot().Location != "/products" {
		t.Errorf("location = %s", h.s.Snapshot().Location)
	}
}

func TestClassifierFallback(t *testing.T) {
	c := &stubClassifier{res: nlu.Result{Intent: nlu.IntentBank, Confidence: 0.9, Source: "stub"}}
	h := newHarness(t, "/", c)

	h.say("هزني للبنك")
	snap := h.s.Snapshot()
	if snap.Pending == nil || snap.Pending.Action.Payload != LocationBank {
		t.Fatalf("pending = %+v", snap.Pending)
	}
	if want := "اخترت البنك. صحيح؟ قول نعم ولا لا."; h.last() != want {
		t.Errorf("spoken = %q", h.last())
	}
	h.say("نعم")
	if h.s.Snapshot().Location != LocationBank {
		t.Errorf("location = %s", h.s.Snapshot().Location)
	}

	c.res.Confidence = 0.2
	h.say("هزني للبنك")
	if h.last() != promptNotUnderstood {
		t.Errorf("low confidence spoke %q", h.last())
	}

	c.err = errors.New("down")
	h.say("هزني للبنك")
	if got := h.s.Snapshot().RetryCount; got != 2 {
		t.Errorf("retries = %d, want 2", got)
	}
}

func TestClassifierSlotsSeedWizard(t *testing.T) {
	c := &stubClassifier{res: nlu.Result{
		Intent:     nlu.IntentBankTransfer,
		Confidence: 0.9,
		Slots:      nlu.Slots{ToName: "sara", Amount: 20},
		Source:     "stub",
	}}
	h := newHarness(t, "/bank", c)

	h.say("ابعث فلوس لسارة")
	snap := h.s.Snapshot()
	if snap.Pending == nil || snap.Pending.Seed.Name != "sara" || snap.Pending.Seed.Amount != 20 {
		t.Fatalf("pending = %+v", snap.Pending)
	}
	if want := "اخترت نحوّل 20 دينار لـ sara. صحيح؟ قول نعم ولا لا."; h.last() != want {
		t.Errorf("spoken = %q, want %q", h.last(), want)
	}

	h.say("نعم")
	snap = h.s.Snapshot()
	if snap.Wizard != "bank.transfer" || snap.WizardState != string(wizard.BankWaitConfirmTransfer) {
		t.Fatalf("wizard = %s/%s, want bank.transfer/%s", snap.Wizard, snap.WizardState, wizard.BankWaitConfirmTransfer)
	}
	h.say("نعم")
	if h.be.calls["Transfer"] != 1 {
		t.Errorf("Transfer calls = %d", h.be.calls["Transfer"])
	}

	c.res = nlu.Result{
		Intent:     nlu.IntentAddItem,
		Confidence: 0.9,
		Slots:      nlu.Slots{ItemName: "حليب"},
		Source:     "stub",
	}
	h.s.NotifyLocation("/products")
	h.pump()
	h.settle()
	h.say("زيدلي حليب")
	h.say("نعم")
	if h.be.calls["FindProduct"] != 1 {
		t.Fatalf("FindProduct calls = %d", h.be.calls["FindProduct"])
	}
	if got := h.s.Snapshot().WizardState; got != string(wizard.CommerceWaitAddQty) {
		t.Errorf("wizard state = %s, want %s", got, wizard.CommerceWaitAddQty)
	}
}

func TestGoBackRefusedAtHome(t *testing.T) {
	h := newHarness(t, "/", nil)
	h.s.execute(menu.Action{Kind: menu.ActionGoBack})
	h.settle()
	if h.last() != promptAtHome {
		t.Errorf("spoken = %q", h.last())
	}
	if len(h.nav.gotos) != 0 {
		t.Errorf("gotos = %v", h.nav.gotos)
	}
}

func TestGoBackShortcut(t *testing.T) {
	h := newHarness(t, "/", nil)
	h.say("4 4")
	h.say("2 2")
	if h.nav.current != "/" || h.s.Snapshot().Location != "/" {
		t.Errorf("location = %s / %s, want home", h.nav.current, h.s.Snapshot().Location)
	}
}

func TestFocusSuppressesListening(t *testing.T) {
	h := newHarness(t, "/login", nil)
	h.s.execute(menu.Action{Kind: menu.ActionFocus, Payload: "name"})
	h.settle()

	if len(h.focus.focused) != 1 || h.focus.focused[0] != "name" {
		t.Errorf("focused = %v", h.focus.focused)
	}
	if h.last() != promptTypeNow {
		t.Errorf("spoken = %q", h.last())
	}
	if h.rec.active {
		t.Error("recognizer resumed after FOCUS")
	}
}

func TestReadListAndFailures(t *testing.T) {
	h := newHarness(t, "/products", nil)

	h.say("1")
	h.say("نعم")
	if want := "عندنا: حليب بـ 1.5 دينار، خبز بـ 0.2 دينار."; h.last() != want {
		t.Errorf("spoken = %q, want %q", h.last(), want)
	}

	h.be.err = &backend.Error{Op: "products", Status: 500, Message: "صار مشكل في السيرفر."}
	h.say("1")
	h.say("نعم")
	if h.last() != "صار مشكل في السيرفر." {
		t.Errorf("spoken = %q, want the server message", h.last())
	}
	if got := h.s.Snapshot().State; got != MenuAwaitChoice {
		t.Errorf("state = %s after failure", got)
	}
}

func TestLogoutAndNoOp(t *testing.T) {
	h := newHarness(t, "/profile", nil)

	h.say("2")
	h.say("نعم")
	if h.last() != promptNotAvailable {
		t.Errorf("NO_OP spoke %q", h.last())
	}

	h.say("1")
	h.say("نعم")
	if h.be.calls["Logout"] != 1 {
		t.Errorf("Logout calls = %d", h.be.calls["Logout"])
	}
	if h.s.Snapshot().Location != LocationLogin {
		t.Errorf("location = %s, want /login", h.s.Snapshot().Location)
	}
}

func TestKeys(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	h.key("1")
	if p := h.s.Snapshot().Pending; p == nil || p.Label != "نسمّعك رصيدك" {
		t.Errorf("digit key pending = %+v", p)
	}

	h.key(" ")
	if h.rec.active {
		t.Error("space did not stop listening")
	}
	h.key(" ")
	if !h.rec.active {
		t.Error("space did not resume listening")
	}

	h.key("Enter")
	if len(h.focus.submitted) != 1 || h.focus.submitted[0] != "bank" {
		t.Errorf("submitted = %v", h.focus.submitted)
	}

	h.key("h")
	if h.s.Snapshot().Location != LocationHome {
		t.Errorf("location = %s, want home", h.s.Snapshot().Location)
	}
}

func TestInterimDebounced(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	h.s.PushTranscript("3", false)
	h.settle()
	if h.s.Snapshot().Pending != nil {
		t.Fatal("interim transcript handled before the debounce")
	}
	h.fire(1800 * time.Millisecond)
	if p := h.s.Snapshot().Pending; p == nil || p.Action.Payload != "bank.history" {
		t.Fatalf("pending = %+v", p)
	}

	mark := len(h.spk.spoken)
	h.say("3")
	if len(h.spk.spoken) != mark {
		t.Errorf("final repeat of the debounced text was handled: %q", h.spk.spoken[mark:])
	}
}

func TestRecognitionErrors(t *testing.T) {
	h := newHarness(t, "/bank", nil)
	starts := h.rec.starts

	h.s.PushRecognitionError("no-speech")
	h.settle()
	if h.rec.starts != starts {
		t.Error("no-speech restarted recognition")
	}

	h.s.PushRecognitionError("network")
	h.settle()
	if h.rec.starts != starts+1 {
		t.Errorf("starts = %d, want a restart", h.rec.starts)
	}

	h.s.PushRecognitionError("not-allowed")
	h.settle()
	if h.last() != promptMicDenied {
		t.Errorf("spoken = %q", h.last())
	}
}

func TestMicDeniedStaysOffUntilToggled(t *testing.T) {
	h := newHarness(t, "/bank", nil)

	h.s.PushRecognitionError("not-allowed")
	h.settle()
	starts := h.rec.starts

	h.say("شنوة")
	if h.last() != promptNotUnderstood {
		t.Fatalf("spoken = %q", h.last())
	}
	h.s.PushRecognitionError("network")
	h.settle()
	if h.rec.starts != starts || h.rec.active {
		t.Fatalf("recognizer restarted after a permission error: starts = %d, want %d", h.rec.starts, starts)
	}
	if h.live(10 * time.Second) {
		t.Error("silence timer armed without a microphone")
	}

	h.key(" ")
	if h.rec.starts != starts+1 || !h.rec.active {
		t.Fatalf("space did not resume listening: starts = %d", h.rec.starts)
	}
	h.say("شنوة")
	if !h.rec.active {
		t.Error("listening prompt did not resume after the toggle")
	}
}

func TestNoFlowLocation(t *testing.T) {
	h := newHarness(t, "/about", nil)
	if got := h.s.Snapshot().State; got != NoFlow {
		t.Errorf("state = %s, want NO_FLOW", got)
	}
	if h.live(10*time.Second) || h.live(8*time.Second) {
		t.Error("silence timer armed in NO_FLOW")
	}
	h.say("1 1")
	if h.s.Snapshot().Location != LocationHome {
		t.Errorf("shortcut ignored in NO_FLOW")
	}
}
