package channel

import "errors"

var (
	// ErrSubscriberClosed is returned by Deliver once the connection has gone away.
	ErrSubscriberClosed = errors.New("subscriber closed")
	// ErrSubscriberBacklogged is returned when a subscriber cannot keep up with its events.
	ErrSubscriberBacklogged = errors.New("subscriber backlogged")
)
