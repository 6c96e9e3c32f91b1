package channel

import (
	"sync"

	"github.com/google/uuid"
)

// StreamSubscriber buffers events for a single streaming connection.
// The events channel is never closed; Done signals the end of the stream.
type StreamSubscriber struct {
	id        string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewStreamSubscriber allocates a subscriber with room for bufferSize pending events.
func NewStreamSubscriber(bufferSize int) *StreamSubscriber {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &StreamSubscriber{
		id:     uuid.NewString(),
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *StreamSubscriber) ID() string {
	return s.id
}

// Deliver queues the event without blocking.
func (s *StreamSubscriber) Deliver(event Event) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.events <- event:
		return nil
	default:
		return ErrSubscriberBacklogged
	}
}

func (s *StreamSubscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Events yields queued events in delivery order.
func (s *StreamSubscriber) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscriber has been closed.
func (s *StreamSubscriber) Done() <-chan struct{} {
	return s.done
}
