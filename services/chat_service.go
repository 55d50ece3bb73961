package services

import (
	"chat-match/contract"
	"chat-match/domain"
	"chat-match/errors"
	"chat-match/observability"
	"context"
	"fmt"
	"log/slog"
)

var _ contract.IChatService = (*ChatService)(nil)

// ChatService is the single entry point of the transport into the core.
// Failures never escape: they become one error event for the triggering connection.
type ChatService struct {
	log        *slog.Logger
	lifecycle  contract.ILifecycleCoordinator
	relay      contract.IRelay
	notifier   contract.INotifier
	monitoring *observability.MonitoringManager
}

func NewChatService(log *slog.Logger, lifecycle contract.ILifecycleCoordinator, relay contract.IRelay,
	notifier contract.INotifier, monitoring *observability.MonitoringManager) *ChatService {
	return &ChatService{
		log:        log,
		lifecycle:  lifecycle,
		relay:      relay,
		notifier:   notifier,
		monitoring: monitoring,
	}
}

func (s *ChatService) Handle(ctx context.Context, connectionID string, cmd domain.Command) {
	var err error
	switch c := cmd.(type) {
	case domain.StartChatCommand:
		err = s.lifecycle.OnStartRequest(ctx, connectionID)
	case domain.SendMessageCommand:
		_, err = s.relay.Relay(ctx, connectionID, c.PartnerID, c.Body)
	case domain.DisconnectChatCommand:
		err = s.lifecycle.OnDisconnectRequest(ctx, connectionID)
	default:
		err = fmt.Errorf("%w: %T", errors.ErrUnknownEvent, cmd)
	}
	if err != nil {
		s.Fail(ctx, connectionID, err)
	}
}

// Close runs the teardown of a connection that went away.
func (s *ChatService) Close(ctx context.Context, connectionID string) {
	if err := s.lifecycle.OnConnectionClosed(ctx, connectionID); err != nil {
		s.log.Error("Connection teardown failed", "connection_id", connectionID, "error", err)
	}
}

// Fail reports err to the connection that triggered it.
func (s *ChatService) Fail(ctx context.Context, connectionID string, err error) {
	kind := errors.KindOf(err)
	if kind == errors.KindRaceLost {
		s.log.Debug("Race lost, nothing reported", "connection_id", connectionID, "error", err)
		return
	}
	s.monitoring.IncrErrors()
	s.log.Warn("Request failed", "connection_id", connectionID, "kind", kind, "error", err)
	if deliverErr := s.notifier.Deliver(ctx, connectionID, domain.ErrorEvent(errors.Reason(err))); deliverErr != nil {
		s.log.Debug("Unable to report error", "connection_id", connectionID, "error", deliverErr)
	}
}
