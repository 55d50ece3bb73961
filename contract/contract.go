//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-match/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
type EventSink interface {
	Consume(ctx context.Context, e domain.Event) error
}

type IRegistry interface {
	Register(connectionID string, sink EventSink)
	Unregister(connectionID string)
	Get(connectionID string) (EventSink, bool)
	ConnectionIDs() []string
	Count() int
}

// INotifier delivers one event to one connection.
// The core never reaches into the transport past this interface.
type INotifier interface {
	Deliver(ctx context.Context, connectionID string, evt domain.Event) error
}

// ISessionRepository owns every session record.
// Enqueue, Pair and Release are single atomic transitions.
type ISessionRepository interface {
	Upsert(ctx context.Context, connectionID string, status domain.Status, partnerID string) (domain.Session, error)
	Get(ctx context.Context, connectionID string) (domain.Session, error)
	FindOldestWaiting(ctx context.Context, excluding string) (domain.Session, error)
	Delete(ctx context.Context, connectionID string) error
	Enqueue(ctx context.Context, connectionID string) (domain.Session, error)
	Pair(ctx context.Context, requesterID, partnerID string) (domain.Session, domain.Session, error)
	Release(ctx context.Context, connectionID string) (domain.Release, error)
	Touch(ctx context.Context, connectionID string) error
	Stats(ctx context.Context) (domain.SessionStats, error)
}

// IBodyFilter rewrites a message body before it is relayed.
type IBodyFilter interface {
	Filter(senderID, body string) string
}

type IMatchmaker interface {
	RequestMatch(ctx context.Context, connectionID string) (domain.MatchResult, error)
}

type ILifecycleCoordinator interface {
	OnStartRequest(ctx context.Context, connectionID string) error
	OnDisconnectRequest(ctx context.Context, connectionID string) error
	OnConnectionClosed(ctx context.Context, connectionID string) error
}

type IRelay interface {
	Relay(ctx context.Context, senderID, declaredPartnerID, body string) (domain.Envelope, error)
}

// IChatService is the transport's entry point into the core.
type IChatService interface {
	Handle(ctx context.Context, connectionID string, cmd domain.Command)
	Close(ctx context.Context, connectionID string)
	Fail(ctx context.Context, connectionID string, err error)
}

// IGarbageCollector reclaims space in the underlying store.
type IGarbageCollector interface {
	CollectGarbage(discardRatio float64) error
}
