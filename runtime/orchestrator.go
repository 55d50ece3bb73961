// Package runtime owns the live connections and the background workers.
// It wires the transport to the core without containing matching rules.
package runtime

import (
	"chat-match/contract"
	"chat-match/domain"
	"chat-match/errors"
	"chat-match/moderation"
	"chat-match/observability"
	"chat-match/runtime/workers"
	"chat-match/sink"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var _ contract.INotifier = (*Orchestrator)(nil)

// store is what the background workers need from the session repository.
type store interface {
	contract.ISessionRepository
	contract.IGarbageCollector
}

type Config struct {
	BufferSize        int
	DeliveryTimeout   time.Duration
	KeepaliveInterval time.Duration
	MetricInterval    time.Duration
	GCInterval        time.Duration
	CharReplacement   rune
}

type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	repository store
	monitoring *observability.MonitoringManager
	config     Config
	started    bool
}

func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor, registry *Registry,
	repository store, monitoring *observability.MonitoringManager, config Config) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		repository: repository,
		monitoring: monitoring,
		config:     config,
	}
}

// Connect creates and registers the outbound sink of a new connection.
func (o *Orchestrator) Connect(connectionID string) *sink.ConnectionSink {
	s := sink.NewConnectionSink(connectionID, o.config.BufferSize, o.config.DeliveryTimeout)
	o.registry.Register(connectionID, s)
	o.log.Debug("Connection registered", "connection_id", connectionID, "connections", o.registry.Count())
	return s
}

// Disconnect unregisters a connection and closes its sink.
func (o *Orchestrator) Disconnect(connectionID string) {
	if s, ok := o.registry.Get(connectionID); ok {
		if cs, ok := s.(*sink.ConnectionSink); ok {
			cs.Close()
		}
	}
	o.registry.Unregister(connectionID)
	o.log.Debug("Connection unregistered", "connection_id", connectionID)
}

// Deliver hands evt to the sink of connectionID.
func (o *Orchestrator) Deliver(ctx context.Context, connectionID string, evt domain.Event) error {
	s, ok := o.registry.Get(connectionID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrConnectionNotFound, connectionID)
	}
	if err := s.Consume(ctx, evt); err != nil {
		return fmt.Errorf("deliver %s to %s: %w", evt.Name, connectionID, err)
	}
	return nil
}

func (o *Orchestrator) ConnectionCount() int {
	return o.registry.Count()
}

// PrepareModeration loads the embedded censored words and builds the moderator.
func (o *Orchestrator) PrepareModeration() (*moderation.Moderator, error) {
	data, err := NewEmbeddedCensoredLoader().LoadAll("censored")
	if err != nil {
		return nil, err
	}
	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	return moderation.NewModerator(data.Words, o.config.CharReplacement, o.log)
}

// Start registers the background workers and blocks until the supervisor stops.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	o.supervisor.Add(
		workers.NewKeepaliveWorker(o.log, o.registry, o.repository, o.config.KeepaliveInterval),
		workers.NewTelemetryWorker(o.log, o.config.MetricInterval, o.registry, o.repository, o.monitoring),
		workers.NewStoreGCWorker(o.log, o.repository, o.config.GCInterval),
	)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
