package sink

import (
	"chat-match/domain"
	"chat-match/errors"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Consume_Keeps_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink("a", 8, time.Second)

	req.NoError(s.Consume(ctx, domain.WaitingEvent()))
	req.NoError(s.Consume(ctx, domain.MatchedEvent("b")))
	req.NoError(s.Consume(ctx, domain.PartnerDisconnectedEvent()))

	req.Equal(domain.WaitingEvent(), <-s.Events())
	req.Equal(domain.MatchedEvent("b"), <-s.Events())
	req.Equal(domain.PartnerDisconnectedEvent(), <-s.Events())
}

func TestConnectionSink_Consume_Times_Out_When_Full(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink("a", 1, 20*time.Millisecond)

	// Given a full buffer nobody drains
	req.NoError(s.Consume(ctx, domain.WaitingEvent()))

	// When another event arrives
	err := s.Consume(ctx, domain.MatchedEvent("b"))

	// Then delivery times out and the sink reports the overflow
	req.ErrorIs(err, errors.ErrDeliveryTimeout)
	select {
	case <-s.Overflow():
	default:
		req.Fail("overflow should be signaled")
	}

	// And a second timeout does not panic on the closed channel
	req.ErrorIs(s.Consume(ctx, domain.MatchedEvent("b")), errors.ErrDeliveryTimeout)
}

func TestConnectionSink_Consume_Waits_For_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink("a", 1, time.Second)
	req.NoError(s.Consume(ctx, domain.WaitingEvent()))

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-s.Events()
	}()

	req.NoError(s.Consume(ctx, domain.MatchedEvent("b")))
	req.Equal(domain.MatchedEvent("b"), <-s.Events())
}

func TestConnectionSink_Consume_After_Close(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("a", 1, time.Second)

	s.Close()
	s.Close()

	req.ErrorIs(s.Consume(context.Background(), domain.WaitingEvent()), errors.ErrConnectionNotFound)
	_, open := <-s.Done()
	req.False(open)
}

func TestConnectionSink_Consume_Canceled_Context(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("a", 1, time.Second)
	req.NoError(s.Consume(context.Background(), domain.WaitingEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.ErrorIs(s.Consume(ctx, domain.MatchedEvent("b")), context.Canceled)
}
