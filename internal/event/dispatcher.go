package event

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"room-occupancy-backend/internal/metrics"
)

// Sink consumes events. Errors are logged by the dispatcher and never
// reach the operation that produced the event.
type Sink interface {
	Handle(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type namedSink struct {
	name string
	sink Sink
}

// Dispatcher queues events and delivers them to every registered sink on its
// own goroutine. Publish never blocks; when the queue is full the event is
// dropped.
type Dispatcher struct {
	queue          chan Event
	deliverTimeout time.Duration

	mu    sync.RWMutex
	sinks []namedSink

	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		queue:          make(chan Event, queueSize),
		deliverTimeout: 5 * time.Second,
	}
}

// Register adds a sink. Sinks receive events in registration order.
func (d *Dispatcher) Register(name string, s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, namedSink{name: name, sink: s})
}

// Publish enqueues events without blocking.
func (d *Dispatcher) Publish(events ...Event) {
	for _, ev := range events {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
			metrics.TrackNotifierFailure("queue")
			log.Printf("Event queue full, dropping %s event", ev.Type)
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Println("Event dispatcher started")
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			log.Println("Event dispatcher shutting down")
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	d.mu.RLock()
	sinks := make([]namedSink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, s := range sinks {
		if err := d.handle(ctx, s, ev); err != nil {
			metrics.TrackNotifierFailure(s.name)
			log.Printf("Notifier sink %s failed on %s event: %v", s.name, ev.Type, err)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, s namedSink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, d.deliverTimeout)
	defer cancel()
	return s.sink.Handle(ctx, ev)
}
