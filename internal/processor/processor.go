// Package processor runs the consume-dispatch loop that drains alert events
// from Kafka into the dispatcher.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/elite-business/case-tools-new-sub004/internal/dispatcher"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
)

// EventSource yields alert events. ReadEvent blocks until an event arrives
// or ctx is cancelled.
type EventSource interface {
	ReadEvent(ctx context.Context) (*events.AlertEvent, error)
}

// EventDispatcher routes one alert event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *events.AlertEvent) (*dispatcher.Report, error)
}

// Processor runs a pool of workers draining the event source.
type Processor struct {
	source     EventSource
	dispatcher EventDispatcher
	workers    int
}

// NewProcessor creates a processor with the given worker count.
func NewProcessor(source EventSource, d EventDispatcher, workers int) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{source: source, dispatcher: d, workers: workers}
}

// Run blocks until ctx is cancelled, then waits for in-flight dispatches to
// finish. Per-event failures are logged and do not stop the loop; only
// context cancellation ends it.
func (p *Processor) Run(ctx context.Context) {
	slog.Info("Starting event processor", "workers", p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.workLoop(ctx, worker)
		}(i)
	}
	wg.Wait()

	slog.Info("Event processor stopped")
}

func (p *Processor) workLoop(ctx context.Context, worker int) {
	for {
		event, err := p.source.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("Failed to read alert event", "worker", worker, "error", err)
			continue
		}

		if _, err := p.dispatcher.Dispatch(ctx, event); err != nil {
			slog.Error("Failed to dispatch alert event",
				"worker", worker,
				"rule_id", event.RuleID,
				"external_event_id", event.ExternalEventID,
				"error", err,
			)
		}
	}
}
