// Package dialog runs the voice dialog for one user: it turns transcripts and
// key presses into menu choices, wizard turns and actions, and drives speech,
// recognition and navigation through collaborator interfaces.
//
// All state is owned by a single event loop (Run). Blocking collaborator
// calls run on a Runner and post their result back to the loop tagged with
// the generation that started them; a location change bumps the generation
// so late results from the previous page are dropped.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/nlu"
	"github.com/ibsar/voicedialog/pkg/transcript"
	"github.com/ibsar/voicedialog/pkg/wizard"
)

// ErrMissingCollaborator is returned by New when a required dependency is nil.
var ErrMissingCollaborator = errors.New("missing collaborator")

var errNoFocuser = errors.New("no focuser attached")

const eventBuffer = 256

// Deps are the collaborators of a Supervisor. Classifier, Journal, Focuser
// and Publisher are optional. Navigator and Focuser calls are made from the
// event loop and must not block.
type Deps struct {
	Recognizer Recognizer
	Speaker    Speaker
	Navigator  Navigator
	Focuser    Focuser
	Backend    Backend
	Menus      MenuSource
	Classifier nlu.Classifier
	Journal    Journal
	Publisher  *events.Publisher
	// Runner executes blocking work. Defaults to Go.
	Runner Runner
}

type eventKind int

const (
	evTranscript eventKind = iota
	evKey
	evRecognitionError
	evLocation
	evSpeechDone
	evCompletion
	evSilence
	evDebounce
)

type event struct {
	kind  eventKind
	text  string
	final bool
	seq   uint64
	gen   uint64
	err   error
	fn    func()
}

// afterFunc schedules f after d and returns a function that cancels it.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func timerAfter(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type speechItem struct {
	text   string
	listen bool
}

// Supervisor is the dialog state machine of one user.
type Supervisor struct {
	cfg        Config
	rec        Recognizer
	speaker    Speaker
	nav        Navigator
	focus      Focuser
	be         Backend
	menus      MenuSource
	classifier nlu.Classifier
	journal    Journal
	pub        *events.Publisher
	run        Runner
	after      afterFunc
	now        func() time.Time

	events  chan event
	stopped chan struct{}
	current atomic.Pointer[Session]

	// Owned by the loop.
	ctx            context.Context
	flowCtx        context.Context
	flowCancel     context.CancelFunc
	gen            uint64
	wiz            wizard.Wizard
	busy           bool
	suppressResume bool
	listening      bool
	// micDenied keeps recognition off after a permission error until the
	// user toggles listening.
	micDenied      bool

	queue       []speechItem
	speaking    bool
	speakSeq    uint64
	speakCancel context.CancelFunc
	lastListen  bool
	afterSpeech func()

	silenceSeq   uint64
	silenceStop  func() bool
	debounceSeq  uint64
	debounceStop func() bool
	interim      string
	debounced    string
}

// New creates a supervisor. It does nothing until Run is called.
func New(cfg Config, deps Deps) (*Supervisor, error) {
	switch {
	case deps.Recognizer == nil:
		return nil, fmt.Errorf("%w: recognizer", ErrMissingCollaborator)
	case deps.Speaker == nil:
		return nil, fmt.Errorf("%w: speaker", ErrMissingCollaborator)
	case deps.Navigator == nil:
		return nil, fmt.Errorf("%w: navigator", ErrMissingCollaborator)
	case deps.Backend == nil:
		return nil, fmt.Errorf("%w: backend", ErrMissingCollaborator)
	case deps.Menus == nil:
		return nil, fmt.Errorf("%w: menus", ErrMissingCollaborator)
	}
	run := deps.Runner
	if run == nil {
		run = Go
	}
	return &Supervisor{
		cfg:        cfg.withDefaults(),
		rec:        deps.Recognizer,
		speaker:    deps.Speaker,
		nav:        deps.Navigator,
		focus:      deps.Focuser,
		be:         deps.Backend,
		menus:      deps.Menus,
		classifier: deps.Classifier,
		journal:    deps.Journal,
		pub:        deps.Publisher,
		run:        run,
		after:      timerAfter,
		now:        time.Now,
		events:     make(chan event, eventBuffer),
		stopped:    make(chan struct{}),
		ctx:        context.Background(),
	}, nil
}

// Run enters the navigator's current location and processes events until
// ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	s.begin(ctx)
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Supervisor) begin(ctx context.Context) {
	s.ctx = ctx
	s.changeLocation(s.nav.Current(), "start")
}

func (s *Supervisor) shutdown() {
	close(s.stopped)
	s.interrupt()
	s.disarmSilence()
	s.stopDebounce()
	s.stopListening()
	if s.flowCancel != nil {
		s.flowCancel()
	}
}

// PushTranscript delivers recognized speech. Interim transcripts are
// debounced; a final one is handled at once.
func (s *Supervisor) PushTranscript(text string, final bool) {
	s.post(event{kind: evTranscript, text: text, final: final})
}

// PushKey delivers a browser key name such as "5", "h" or "Escape".
func (s *Supervisor) PushKey(key string) {
	s.post(event{kind: evKey, text: key})
}

// PushRecognitionError delivers a recognizer error kind ("no-speech",
// "not-allowed", ...).
func (s *Supervisor) PushRecognitionError(kind string) {
	s.post(event{kind: evRecognitionError, text: kind})
}

// NotifyLocation reports a location change made outside the dialog.
func (s *Supervisor) NotifyLocation(location string) {
	s.post(event{kind: evLocation, text: location})
}

// Snapshot returns a copy of the current session. Safe for concurrent use.
func (s *Supervisor) Snapshot() Snapshot {
	if sess := s.current.Load(); sess != nil {
		return sess.Snapshot()
	}
	return Snapshot{State: NoFlow}
}

func (s *Supervisor) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.stopped:
	}
}

func (s *Supervisor) handle(ev event) {
	switch ev.kind {
	case evTranscript:
		if ev.final {
			s.onFinal(ev.text)
		} else {
			s.onInterim(ev.text)
		}
	case evKey:
		s.onKey(ev.text)
	case evRecognitionError:
		s.onRecognitionError(ev.text)
	case evLocation:
		s.onLocation(ev.text)
	case evSpeechDone:
		s.onSpeechDone(ev.seq, ev.err)
	case evCompletion:
		if ev.gen == s.gen && ev.fn != nil {
			ev.fn()
		}
	case evSilence:
		s.onSilence(ev.seq)
	case evDebounce:
		s.onDebounce(ev.seq)
	}
}

func (s *Supervisor) session() *Session { return s.current.Load() }

// async runs task on the runner. The continuation it returns runs on the
// loop, unless the location changed in the meantime.
func (s *Supervisor) async(task func(ctx context.Context) func()) {
	gen, ctx := s.gen, s.flowCtx
	s.run(func() {
		next := task(ctx)
		s.post(event{kind: evCompletion, gen: gen, fn: next})
	})
}

func (s *Supervisor) transition(to FlowState, trigger string) {
	sess := s.session()
	from := sess.RecordTransition(to, trigger)
	s.emit(events.StateTransition, &events.StateTransitionData{
		FromState:    string(from),
		ToState:      string(to),
		TriggerEvent: trigger,
		Location:     sess.Location,
		Wizard:       sess.Wizard,
		WizardState:  sess.WizardState,
	})
}

func (s *Supervisor) emit(t events.EventType, data any) {
	if s.pub == nil {
		return
	}
	var sessionID string
	if sess := s.session(); sess != nil {
		sessionID = sess.ID
	}
	pub, ctx := s.pub, context.WithoutCancel(s.ctx)
	s.run(func() {
		if err := pub.Emit(ctx, t, sessionID, data); err != nil {
			slog.DebugContext(ctx, "event publish failed",
				slog.String("event_type", string(t)), slog.String("error", err.Error()))
		}
	})
}

func (s *Supervisor) record(role transcript.Role, text string) {
	if s.journal == nil {
		return
	}
	sess := s.session()
	turn := transcript.Turn{
		SessionID: sess.ID,
		Location:  sess.Location,
		Role:      role,
		Text:      text,
		State:     string(sess.State),
		At:        s.now(),
	}
	j, ctx := s.journal, context.WithoutCancel(s.ctx)
	s.run(func() {
		if err := j.Append(ctx, turn); err != nil {
			slog.WarnContext(ctx, "journal append failed",
				slog.String("session_id", turn.SessionID), slog.String("error", err.Error()))
		}
	})
}
