package notify

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/pitabwire/util"

	"github.com/ibsar/voicedialog/pkg/events"
)

// Dispatcher routes queued events to the endpoints subscribed to them.
// It is registered as a frame queue subscriber.
type Dispatcher struct {
	Store     Store
	Deliverer *Deliverer
	// Run executes one delivery; nil means a new goroutine.
	Run func(task func())
}

// Handle is called by frame's pub/sub for each event message.
func (d *Dispatcher) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env events.Envelope
	if err := sonic.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("notify dispatcher: unmarshal envelope")
		return err
	}
	return d.Route(ctx, env)
}

// Route starts a delivery of env to every subscribed endpoint.
func (d *Dispatcher) Route(ctx context.Context, env events.Envelope) error {
	targets, err := d.Store.Subscribed(ctx, env.Type)
	if err != nil {
		util.Log(ctx).WithError(err).Error("notify dispatcher: list endpoints")
		return err
	}
	run := d.Run
	if run == nil {
		run = func(task func()) { go task() }
	}
	ctx = context.WithoutCancel(ctx)
	for _, e := range targets {
		run(func() { d.Deliverer.Deliver(ctx, e, env) })
	}
	return nil
}
