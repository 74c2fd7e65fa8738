package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oscward/oscward/pkg/events"
	"github.com/oscward/oscward/pkg/osc"
	"github.com/oscward/oscward/pkg/oscjson"
	"github.com/oscward/oscward/pkg/queue"
)

// ErrExit is returned by Router.Run when an Exit event was handled.
var ErrExit = errors.New("engine: exit requested")

// DefaultPollTimeout bounds how long the router waits for an inbound message
// before checking application events again.
const DefaultPollTimeout = 10 * time.Millisecond

// Sender delivers outbound messages. *osc.Transport implements it.
type Sender interface {
	Send(ctx context.Context, m osc.Message) error
}

// Router is the single coordinating loop between the application queue, the
// transport and the script host. It is the only consumer of App.
type Router struct {
	App     *queue.Queue[events.Application]
	Host    *queue.Queue[events.Host]
	Inbound <-chan osc.Message
	Out     Sender

	Bus         *EventBus // Optional.
	PollTimeout time.Duration
	Log         *slog.Logger
}

// Run loops until ctx is cancelled or an Exit event is handled. Each pass
// first drains every pending application event, then waits up to
// PollTimeout for one inbound message. A closed inbound channel is logged
// once and the loop keeps serving application events.
func (r *Router) Run(ctx context.Context) error {
	log := r.logger()
	inbound := r.Inbound

	timer := time.NewTimer(r.pollTimeout())
	defer timer.Stop()

	for {
		if err := r.drain(ctx); err != nil {
			return err
		}

		timer.Reset(r.pollTimeout())

		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-inbound:
			if !ok {
				log.Warn("inbound channel is closed")
				inbound = nil
				continue
			}
			r.forwardInbound(m)
		case <-r.App.Wait():
		case <-timer.C:
		}
	}
}

func (r *Router) drain(ctx context.Context) error {
	for {
		ev, ok := r.App.TryPop()
		if !ok {
			return nil
		}

		switch ev := ev.(type) {
		case events.Exit:
			r.logger().Info("exit requested")
			return ErrExit
		case events.SendOutbound:
			r.sendOutbound(ctx, ev)
		case events.ReloadScript:
			r.logger().Info("reloading script")
			r.Host.Push(events.Reload{})
			r.publish(Event{Kind: EventReload})
		}
	}
}

func (r *Router) sendOutbound(ctx context.Context, ev events.SendOutbound) {
	m := osc.Message{Address: ev.Address, Args: oscjson.ArgsFromJSON(ev.Args)}

	if err := r.Out.Send(ctx, m); err != nil {
		r.logger().Warn("failed to send OSC message", "address", ev.Address, "error", err)
		r.publish(Event{Kind: EventError, Address: ev.Address, Data: err.Error()})
		return
	}

	r.logger().Debug("osc sent", "message", m.String())
	r.publish(Event{Kind: EventOutbound, Address: ev.Address})
}

func (r *Router) forwardInbound(m osc.Message) {
	r.logger().Debug("osc received", "message", m.String())

	r.Host.Push(events.InboundReceived{
		Address: m.Address,
		Args:    oscjson.ArgsToJSON(m.Args),
	})
	r.publish(Event{Kind: EventInbound, Address: m.Address})
}

func (r *Router) publish(e Event) {
	if r.Bus != nil {
		r.Bus.Publish(e)
	}
}

func (r *Router) pollTimeout() time.Duration {
	if r.PollTimeout <= 0 {
		return DefaultPollTimeout
	}
	return r.PollTimeout
}

func (r *Router) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}
