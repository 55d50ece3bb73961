package runtime

import (
	"chat-match/contract"
	"sort"
	"sync"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps every live connection to the sink that writes to it.
// It is transport state only: matching state lives in the session store.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]contract.EventSink // map connection -> Sink
}

func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]contract.EventSink),
	}
}

// Register binds a connection to its sink, replacing any previous one.
func (r *Registry) Register(connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connectionID] = sink
}

func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, connectionID)
}

func (r *Registry) Get(connectionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[connectionID]
	return sink, ok
}

// ConnectionIDs returns a sorted snapshot of the registered connections.
func (r *Registry) ConnectionIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sinks))
	for id := range r.sinks {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}
