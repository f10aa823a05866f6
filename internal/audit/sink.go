// Package audit delivers security events to the configured sinks off the request path.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"login-service/internal/models"
)

// Sink persists or forwards a batch of events. Implementations must be safe to call from
// the dispatcher goroutine while other sinks run concurrently.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []models.SecurityEvent) error
}

type NoOpSink struct{}

func (NoOpSink) Name() string                                        { return "noop" }
func (NoOpSink) Write(context.Context, []models.SecurityEvent) error { return nil }

// MultiSink writes every batch to all sinks in parallel. A failing sink does not stop
// the others; all failures are joined.
type MultiSink []Sink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Write(ctx context.Context, events []models.SecurityEvent) error {
	errs := make([]error, len(m))

	var g errgroup.Group
	for i, sink := range m {
		g.Go(func() error {
			if err := sink.Write(ctx, events); err != nil {
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Write(_ context.Context, events []models.SecurityEvent) error {
	r.mu.Lock()
	r.events = append(r.events, events...)
	r.mu.Unlock()
	return nil
}

// Emit records synchronously, so a Recorder can stand in for a Dispatcher.
func (r *Recorder) Emit(ctx context.Context, event models.SecurityEvent) {
	_ = r.Write(ctx, []models.SecurityEvent{event})
}

func (r *Recorder) Events() []models.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SecurityEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}
