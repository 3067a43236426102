package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/urlvalidation"
)

const (
	maxBreakers     = 1024
	maxResponseBody = 4 << 10
)

// Config tunes delivery.
type Config struct {
	MaxAttempts     int
	Timeout         time.Duration
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	BreakerFailures int
	BreakerReset    time.Duration
	// URLOptions relax the outbound address check; tests allow loopback.
	URLOptions []urlvalidation.Option
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Minute
	}
	return c
}

// Deliverer posts envelopes to endpoints.
type Deliverer struct {
	store    Store
	client   *http.Client
	cfg      Config
	run      func(task func())
	after    func(d time.Duration, f func())
	breakers *lru.Cache[string, *backend.Breaker]
}

// NewDeliverer creates a deliverer. run executes retries; nil means a new
// goroutine per retry.
func NewDeliverer(store Store, cfg Config, run func(task func())) *Deliverer {
	cfg = cfg.withDefaults()
	if run == nil {
		run = func(task func()) { go task() }
	}
	breakers, _ := lru.New[string, *backend.Breaker](maxBreakers)
	return &Deliverer{
		store: store,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:      cfg,
		run:      run,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		breakers: breakers,
	}
}

func (d *Deliverer) breaker(endpointID string) *backend.Breaker {
	if b, ok := d.breakers.Get(endpointID); ok {
		return b
	}
	b := backend.NewBreaker(backend.BreakerConfig{
		FailureThreshold: d.cfg.BreakerFailures,
		ResetTimeout:     d.cfg.BreakerReset,
	})
	d.breakers.Add(endpointID, b)
	return b
}

// Deliver sends env to e, scheduling retries on failure. It returns after
// the first attempt.
func (d *Deliverer) Deliver(ctx context.Context, e Endpoint, env events.Envelope) {
	d.attempt(ctx, e, env, 1)
}

func (d *Deliverer) attempt(ctx context.Context, e Endpoint, env events.Envelope, n int) {
	rec := &Delivery{EndpointID: e.ID, EventID: env.ID, EventType: string(env.Type), Attempt: n}
	start := time.Now()
	code, err := d.post(ctx, e, env)
	rec.DurationMs = time.Since(start).Milliseconds()
	rec.StatusCode = code
	rec.At = time.Now()

	ok := err == nil
	switch {
	case ok:
		rec.Status = StatusDelivered
	case n >= d.cfg.MaxAttempts:
		rec.Status = StatusDead
	default:
		rec.Status = StatusFailed
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if err := d.store.RecordDelivery(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "record delivery failed", slog.String("endpoint_id", e.ID), slog.String("error", err.Error()))
	}
	if err := d.store.RecordResult(ctx, e.ID, ok); err != nil {
		slog.WarnContext(ctx, "record endpoint result failed", slog.String("endpoint_id", e.ID), slog.String("error", err.Error()))
	}
	if rec.Status != StatusFailed {
		return
	}

	wait := d.backoff(n)
	slog.DebugContext(ctx, "delivery failed, retrying",
		slog.String("endpoint_id", e.ID), slog.Int("attempt", n), slog.Duration("backoff", wait), slog.String("error", rec.Error))
	d.after(wait, func() {
		if ctx.Err() != nil {
			return
		}
		d.run(func() { d.attempt(ctx, e, env, n+1) })
	})
}

func (d *Deliverer) backoff(attempt int) time.Duration {
	wait := d.cfg.BackoffInitial << (attempt - 1)
	if wait <= 0 || wait > d.cfg.BackoffMax {
		wait = d.cfg.BackoffMax
	}
	return wait
}

func (d *Deliverer) post(ctx context.Context, e Endpoint, env events.Envelope) (int, error) {
	if err := urlvalidation.Check(ctx, e.URL, d.cfg.URLOptions...); err != nil {
		return 0, err
	}
	cb := d.breaker(e.ID)
	if !cb.Allow() {
		return 0, backend.ErrCircuitOpen
	}

	body, err := sonic.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("marshal envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(e.Secret, body))
	req.Header.Set(EventHeader, string(env.Type))
	req.Header.Set(DeliveryHeader, env.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		cb.Failure()
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cb.Failure()
		return resp.StatusCode, fmt.Errorf("endpoint answered HTTP %d", resp.StatusCode)
	}
	cb.Success()
	return resp.StatusCode, nil
}
