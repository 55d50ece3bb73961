package services

import (
	"chat-match/domain"
	"chat-match/repositories"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// newStore opens an in-memory session store whose clock advances one millisecond per write.
func newStore(t *testing.T) *repositories.SessionRepository {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var mu sync.Mutex
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		at = at.Add(time.Millisecond)
		return at
	}
	return repositories.NewSessionRepository(db, testLogger(), time.Hour, repositories.WithClock(clock))
}

// recordingNotifier keeps every delivered event per connection, in delivery order.
type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]domain.Event
	fail   map[string]error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		events: make(map[string][]domain.Event),
		fail:   make(map[string]error),
	}
}

func (n *recordingNotifier) Deliver(_ context.Context, connectionID string, evt domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.fail[connectionID]; ok {
		return err
	}
	n.events[connectionID] = append(n.events[connectionID], evt)
	return nil
}

func (n *recordingNotifier) failFor(connectionID string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail[connectionID] = err
}

func (n *recordingNotifier) For(connectionID string) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Event(nil), n.events[connectionID]...)
}

func (n *recordingNotifier) Names(connectionID string) []domain.EventName {
	var names []domain.EventName
	for _, e := range n.For(connectionID) {
		names = append(names, e.Name)
	}
	return names
}

// hookedStore runs a callback once, right after an operation on the given connection
// returns, so a test can slot a concurrent transition into a precise point.
type hookedStore struct {
	*repositories.SessionRepository
	afterGet     map[string]func()
	afterEnqueue map[string]func()
	afterPair    map[string]func()
}

func newHookedStore(t *testing.T) *hookedStore {
	return &hookedStore{
		SessionRepository: newStore(t),
		afterGet:          make(map[string]func()),
		afterEnqueue:      make(map[string]func()),
		afterPair:         make(map[string]func()),
	}
}

func runOnce(hooks map[string]func(), connectionID string) {
	if hook, ok := hooks[connectionID]; ok {
		delete(hooks, connectionID)
		hook()
	}
}

func (s *hookedStore) Get(ctx context.Context, connectionID string) (domain.Session, error) {
	session, err := s.SessionRepository.Get(ctx, connectionID)
	runOnce(s.afterGet, connectionID)
	return session, err
}

func (s *hookedStore) Enqueue(ctx context.Context, connectionID string) (domain.Session, error) {
	session, err := s.SessionRepository.Enqueue(ctx, connectionID)
	runOnce(s.afterEnqueue, connectionID)
	return session, err
}

func (s *hookedStore) Pair(ctx context.Context, requesterID, partnerID string) (domain.Session, domain.Session, error) {
	requester, partner, err := s.SessionRepository.Pair(ctx, requesterID, partnerID)
	runOnce(s.afterPair, requesterID)
	return requester, partner, err
}
