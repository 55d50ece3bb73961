package runtime

import (
	"chat-match/domain"
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e domain.Event) error {
	return nil
}

func TestRegistry_Register_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	sink := Sink{name: "first"}

	// Given no connection is registered
	req.Zero(registry.Count())
	_, ok := registry.Get(connectionID)
	req.False(ok)

	// When a connection registers
	registry.Register(connectionID, sink)

	// Then its sink can be resolved
	req.Equal(1, registry.Count())
	got, ok := registry.Get(connectionID)
	req.True(ok)
	req.Equal(sink, got)
	req.Equal([]string{connectionID}, registry.ConnectionIDs())
}

func TestRegistry_Register_Replaces_Sink(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("a", Sink{name: "old"})
	registry.Register("a", Sink{name: "new"})

	got, ok := registry.Get("a")
	req.True(ok)
	req.Equal(Sink{name: "new"}, got)
	req.Equal(1, registry.Count())
}

func TestRegistry_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given two connections
	registry.Register("b", Sink{})
	registry.Register("a", Sink{})

	// When one leaves, twice
	registry.Unregister("a")
	registry.Unregister("a")

	// Then only the other one is left
	req.Equal([]string{"b"}, registry.ConnectionIDs())
	_, ok := registry.Get("a")
	req.False(ok)
}

func TestRegistry_Concurrent_Access(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.NewString()
			registry.Register(id, Sink{})
			_, _ = registry.Get(id)
			_ = registry.ConnectionIDs()
			registry.Unregister(id)
		}()
	}
	wg.Wait()

	req.Zero(registry.Count())
}
