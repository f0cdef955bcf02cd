package mqtt

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/sweeney/lock-feedback/internal/logic"
)

// SinkQueueSize is how many lock events may wait for the publisher.
const SinkQueueSize = 256

// Sink publishes the events of every loop report from a background worker.
type Sink struct {
	pub     Publisher
	events  chan logic.Event
	dropped atomic.Int64
}

// NewSink creates a Sink publishing through pub. Nothing is published until
// Run or Flush is called.
func NewSink(pub Publisher) *Sink {
	return &Sink{
		pub:    pub,
		events: make(chan logic.Event, SinkQueueSize),
	}
}

// Record queues r.Events in order. It never blocks; events that do not fit
// are dropped and counted.
func (s *Sink) Record(r logic.Report) {
	for _, e := range r.Events {
		select {
		case s.events <- e:
		default:
			if s.dropped.Add(1) == 1 {
				log.Printf("mqtt: event queue full, dropping %s", e.Type)
			}
		}
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Run publishes queued events until ctx is done, then publishes whatever is
// still queued and returns.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case e := <-s.events:
			s.publish(e)
		}
	}
}

// Flush publishes every queued event on the calling goroutine.
func (s *Sink) Flush() {
	for {
		select {
		case e := <-s.events:
			s.publish(e)
		default:
			return
		}
	}
}

// Failures are logged, never returned.
func (s *Sink) publish(e logic.Event) {
	if err := s.pub.Publish(e); err != nil {
		log.Printf("mqtt: publish %s: %v", e.Type, err)
	}
}
