package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
	"github.com/99minutos/identity-core/internal/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
	sinkDispatcher = "dispatcher"
)

// ErrStopped is returned by Publish after Stop.
var ErrStopped = errors.New("dispatcher stopped")

var _ ports.EventSink = (*Dispatcher)(nil)

// Dispatcher routes domain events to a fixed set of workers using consistent
// hashing on the aggregate id, guaranteeing per-aggregate delivery order.
// Each worker hands its events to the downstream sink.
type Dispatcher struct {
	workers []chan events.Event
	sink    ports.EventSink
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink ports.EventSink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan events.Event, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan events.Event, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or after Stop has drained their channels.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Publish enqueues e on the worker responsible for its aggregate. It blocks
// only while that worker's buffer is full, and gives up when ctx ends.
func (d *Dispatcher) Publish(ctx context.Context, e events.Event) error {
	if err := events.Check(e); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	idx := d.shardIndex(e.AggregateType(), e.AggregateID())
	select {
	case d.workers[idx] <- e:
		metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	case <-ctx.Done():
		metrics.EventsFailedTotal.WithLabelValues(string(e.EventType()), sinkDispatcher).Inc()
		return ctx.Err()
	}
}

// Stop refuses new events, lets workers drain what is queued and waits for
// them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps an aggregate deterministically to a worker index.
func (d *Dispatcher) shardIndex(aggType events.AggregateType, aggID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(aggType))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(aggID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan events.Event) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			metrics.EventsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			if err := d.sink.Publish(ctx, e); err != nil {
				d.log.Error().Err(err).
					Str("event_id", e.EventID().String()).
					Str("event_type", string(e.EventType())).
					Str("aggregate_id", e.AggregateID()).
					Int("worker_id", id).
					Msg("event delivery failed")
			}
		}
	}
}
