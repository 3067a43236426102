package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

const defaultSubscriberBuffer = 64

type subscription struct {
	ch    chan Envelope
	types []EventType
}

func (s subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Publisher emits dialog events to frame's queue and to local
// subscribers. A nil queue manager keeps events local.
type Publisher struct {
	queueMgr queue.Manager
	source   string
	queueRef string
	dropped  atomic.Uint64

	mu     sync.RWMutex
	subs   map[string]subscription
	closed bool
}

// NewPublisher creates a publisher tagged with source that forwards to
// queueRef.
func NewPublisher(queueMgr queue.Manager, source string, queueRef string) *Publisher {
	return &Publisher{
		queueMgr: queueMgr,
		source:   source,
		queueRef: queueRef,
		subs:     make(map[string]subscription),
	}
}

// Emit wraps data in an envelope for sessionID. Local delivery never
// blocks: a full subscriber loses the event.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, sessionID string, data any) error {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	p.mu.RLock()
	for id, sub := range p.subs {
		if !sub.wants(eventType) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			p.dropped.Add(1)
			slog.DebugContext(ctx, "event dropped for slow subscriber",
				slog.String("subscriber", id), slog.String("event_type", string(eventType)))
		}
	}
	p.mu.RUnlock()

	if p.queueMgr == nil {
		return nil
	}
	if err := p.queueMgr.Publish(ctx, p.queueRef, env); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// Subscribe registers a local subscriber for the given types, or every type
// when none is given. Subscribing again under id closes the previous
// channel. After Close the returned channel is already closed.
func (p *Publisher) Subscribe(id string, bufSize int, types ...EventType) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = defaultSubscriberBuffer
	}
	ch := make(chan Envelope, bufSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch
	}
	if old, ok := p.subs[id]; ok {
		close(old.ch)
	}
	p.subs[id] = subscription{ch: ch, types: slices.Clone(types)}
	return ch
}

// Unsubscribe closes and removes the subscription id.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sub, ok := p.subs[id]; ok {
		close(sub.ch)
		delete(p.subs, id)
	}
}

// Dropped is the number of local deliveries lost to full buffers.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Close ends every local subscription. Queue publishing keeps working.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, sub := range p.subs {
		close(sub.ch)
		delete(p.subs, id)
	}
	p.closed = true
}
