package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
	"github.com/99minutos/identity-core/internal/metrics"
)

// NamedSink labels a sink for metrics and errors.
type NamedSink struct {
	Name string
	Sink ports.EventSink
}

var _ ports.EventSink = (*Fanout)(nil)

// Fanout delivers every event to each sink in order. A failing sink does not
// stop delivery to the others; all failures are returned together.
type Fanout struct {
	sinks []NamedSink
}

func NewFanout(sinks ...NamedSink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(ctx context.Context, e events.Event) error {
	if err := events.Check(e); err != nil {
		return err
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Sink.Publish(ctx, e); err != nil {
			metrics.EventsFailedTotal.WithLabelValues(string(e.EventType()), s.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		metrics.EventsPublishedTotal.WithLabelValues(string(e.EventType()), s.Name).Inc()
	}
	return errors.Join(errs...)
}
