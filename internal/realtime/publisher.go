package realtime

import (
	"context"
	"log"
	"time"
)

const sinkTimeout = 3 * time.Second

// Publisher delivers events fire-and-forget. Implementations log failures
// and never report them to the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Sink is one delivery backend.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// Fanout publishes every event to each of its sinks in turn.
type Fanout struct {
	sinks []Sink
}

var _ Publisher = (*Fanout)(nil)

// NewFanout creates a Fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Publish sends event to every sink. The caller's cancellation is ignored
// so that a finished HTTP request does not abort delivery.
func (f *Fanout) Publish(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	for _, sink := range f.sinks {
		if err := sink.Send(ctx, event); err != nil {
			log.Printf("[REALTIME] %s: failed to publish %s (ride=%s driver=%s): %v",
				sink.Name(), event.Type, event.RideID, event.DriverID, err)
		}
	}
}
