package sink

import (
	"chat-match/contract"
	"chat-match/domain"
	"chat-match/errors"
	"context"
	"sync"
	"time"
)

var _ contract.EventSink = (*ConnectionSink)(nil)

// ConnectionSink is the outbound queue of one connection.
// Events leave in the order they were consumed. The writer of the connection
// drains Events until Done is closed.
type ConnectionSink struct {
	connectionID string
	events       chan domain.Event
	timeout      time.Duration

	done         chan struct{}
	overflow     chan struct{}
	closeOnce    sync.Once
	overflowOnce sync.Once
}

func NewConnectionSink(connectionID string, bufferSize int, timeout time.Duration) *ConnectionSink {
	return &ConnectionSink{
		connectionID: connectionID,
		events:       make(chan domain.Event, bufferSize),
		timeout:      timeout,
		done:         make(chan struct{}),
		overflow:     make(chan struct{}),
	}
}

// Consume enqueues e, waiting at most the delivery timeout for room in the buffer.
// A timeout marks the sink as overflowed: the consumer is too slow to keep.
func (s *ConnectionSink) Consume(ctx context.Context, e domain.Event) error {
	select {
	case <-s.done:
		return errors.ErrConnectionNotFound
	default:
	}

	select {
	case s.events <- e:
		return nil
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrConnectionNotFound
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		s.overflowOnce.Do(func() { close(s.overflow) })
		return errors.ErrDeliveryTimeout
	}
}

func (s *ConnectionSink) ConnectionID() string {
	return s.connectionID
}

func (s *ConnectionSink) Events() <-chan domain.Event {
	return s.events
}

// Overflow is closed the first time a delivery timed out.
func (s *ConnectionSink) Overflow() <-chan struct{} {
	return s.overflow
}

func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close stops accepting events. Queued events are dropped.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
