package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/ibsar/voicedialog/pkg/menu"
)

// ErrClosed is returned by collaborator calls after the connection closed.
var ErrClosed = errors.New("connection closed")

const maxHistory = 50

// peer is one browser tab. It implements the dialog's Recognizer, Speaker,
// Navigator and Focuser by exchanging messages with the page.
type peer struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	history []string
	pending map[string]chan error
	closed  chan struct{}
	once    sync.Once
}

func newPeer(ws *websocket.Conn, location string, writeTimeout time.Duration) *peer {
	return &peer{
		id:           xid.New().String(),
		ws:           ws,
		writeTimeout: writeTimeout,
		history:      []string{menu.CanonicalLocation(location)},
		pending:      make(map[string]chan error),
		closed:       make(chan struct{}),
	}
}

func (p *peer) send(msg Outbound) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	b, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.ws.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return err
	}
	return p.ws.WriteMessage(websocket.TextMessage, b)
}

func (p *peer) ping() error {
	return p.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(p.writeTimeout))
}

// close fails every pending Speak.
func (p *peer) close() {
	p.once.Do(func() {
		close(p.closed)
		p.mu.Lock()
		for id, ch := range p.pending {
			ch <- ErrClosed
			delete(p.pending, id)
		}
		p.mu.Unlock()
	})
}

func (p *peer) Start(_ context.Context, locale string) error {
	return p.send(Outbound{Type: MsgListen, Locale: locale})
}

func (p *peer) Stop(context.Context) error {
	return p.send(Outbound{Type: MsgStopListening})
}

// Speak blocks until the page acknowledges the utterance.
func (p *peer) Speak(ctx context.Context, text string) error {
	id := xid.New().String()
	done := make(chan error, 1)
	p.mu.Lock()
	p.pending[id] = done
	p.mu.Unlock()

	if err := p.send(Outbound{Type: MsgSpeak, ID: id, Text: text}); err != nil {
		p.forget(id)
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		p.forget(id)
		_ = p.send(Outbound{Type: MsgCancelSpeech, ID: id})
		return ctx.Err()
	}
}

func (p *peer) forget(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// spoken resolves a pending Speak. A non-empty errText fails it.
func (p *peer) spoken(id, errText string) {
	p.mu.Lock()
	ch, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()
	if !ok {
		return
	}
	if errText != "" {
		ch <- fmt.Errorf("speech synthesis: %s", errText)
		return
	}
	ch <- nil
}

func (p *peer) GoTo(_ context.Context, location string) error {
	if err := p.send(Outbound{Type: MsgNavigate, Location: menu.CanonicalLocation(location)}); err != nil {
		return err
	}
	p.visit(location)
	return nil
}

func (p *peer) GoBack(context.Context) (string, error) {
	p.mu.Lock()
	prev := "/"
	if n := len(p.history); n > 1 {
		prev = p.history[n-2]
		p.history = p.history[:n-1]
	} else {
		p.history = []string{prev}
	}
	p.mu.Unlock()
	if err := p.send(Outbound{Type: MsgNavigate, Location: prev}); err != nil {
		return "", err
	}
	return prev, nil
}

func (p *peer) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history[len(p.history)-1]
}

// visit records a location the page moved to.
func (p *peer) visit(location string) {
	location = menu.CanonicalLocation(location)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.history[len(p.history)-1] == location {
		return
	}
	p.history = append(p.history, location)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
}

func (p *peer) Focus(_ context.Context, field string) error {
	return p.send(Outbound{Type: MsgFocus, Target: field})
}

func (p *peer) Submit(_ context.Context, form string) error {
	return p.send(Outbound{Type: MsgSubmit, Target: form})
}

func (p *peer) Open(_ context.Context, panel string) error {
	return p.send(Outbound{Type: MsgOpen, Target: panel})
}
