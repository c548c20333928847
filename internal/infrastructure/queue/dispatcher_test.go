package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/events"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []events.Event
	err  error
	hold chan struct{}
}

func (s *recordingSink) Publish(_ context.Context, e events.Event) error {
	if s.hold != nil {
		<-s.hold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, e)
	return nil
}

func (s *recordingSink) snapshot() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.got))
	copy(out, s.got)
	return out
}

func TestDispatcher_PreservesPerAggregateOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(4, sink, zerolog.Nop())
	d.Start(context.Background())

	var published []events.Event
	for i := 0; i < 50; i++ {
		e := events.NewUserUpdated(42, []string{"first_name"}, "self", int64(i+2))
		published = append(published, e)
		if err := d.Publish(context.Background(), e); err != nil {
			t.Fatalf("publish: %v", err)
		}
		other := events.NewDocumentPublished("doc-1", int64(i), "alice")
		if err := d.Publish(context.Background(), other); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	d.Stop()

	var userEvents []events.Event
	for _, e := range sink.snapshot() {
		if e.AggregateType() == events.AggregateUser {
			userEvents = append(userEvents, e)
		}
	}
	if len(userEvents) != len(published) {
		t.Fatalf("expected %d user events, got %d", len(published), len(userEvents))
	}
	for i := range published {
		if userEvents[i].EventID() != published[i].EventID() {
			t.Fatalf("order broken at %d", i)
		}
	}
}

func TestDispatcher_SameAggregateSameShard(t *testing.T) {
	d := NewDispatcher(8, &recordingSink{}, zerolog.Nop())
	a := d.shardIndex(events.AggregateUser, "17")
	for i := 0; i < 10; i++ {
		if d.shardIndex(events.AggregateUser, "17") != a {
			t.Fatal("shard index is not stable")
		}
	}
}

func TestDispatcher_PublishAfterStop(t *testing.T) {
	d := NewDispatcher(1, &recordingSink{}, zerolog.Nop())
	d.Start(context.Background())
	d.Stop()

	err := d.Publish(context.Background(), events.NewUserDeactivated(1, "", "admin"))
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestDispatcher_RejectsZeroValueEvents(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(1, sink, zerolog.Nop())
	d.Start(context.Background())

	if err := d.Publish(context.Background(), events.UserCreated{}); !errors.Is(err, events.ErrNotConstructed) {
		t.Fatalf("expected ErrNotConstructed, got %v", err)
	}
	if err := NewFanout(NamedSink{Name: "rec", Sink: sink}).Publish(context.Background(), events.UserDeactivated{}); !errors.Is(err, events.ErrNotConstructed) {
		t.Fatalf("expected ErrNotConstructed from fanout, got %v", err)
	}
	d.Stop()
	if len(sink.snapshot()) != 0 {
		t.Fatal("zero-value event reached a sink")
	}
}

func TestDispatcher_PublishHonoursContextWhenFull(t *testing.T) {
	sink := &recordingSink{hold: make(chan struct{})}
	d := NewDispatcher(1, sink, zerolog.Nop())
	d.Start(context.Background())
	defer func() {
		close(sink.hold)
		d.Stop()
	}()

	// One event is held by the worker; fill the buffer behind it.
	for i := 0; i < channelBuffer+1; i++ {
		if err := d.Publish(context.Background(), events.NewUserDeactivated(1, "", "admin")); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Publish(ctx, events.NewUserDeactivated(1, "", "admin")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	good := &recordingSink{}
	bad := &recordingSink{err: errors.New("mongo down")}
	f := NewFanout(NamedSink{Name: "mongo", Sink: bad}, NamedSink{Name: "redis_stream", Sink: good})

	err := f.Publish(context.Background(), events.NewUserDeactivated(1, "", "admin"))
	if err == nil {
		t.Fatal("expected the failing sink's error")
	}
	if len(good.snapshot()) != 1 {
		t.Fatal("healthy sink skipped after a failure")
	}
}
