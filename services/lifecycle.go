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

var _ contract.ILifecycleCoordinator = (*LifecycleCoordinator)(nil)

// LifecycleCoordinator drives a connection through waiting, chatting and teardown,
// and emits the events each transition implies.
type LifecycleCoordinator struct {
	log        *slog.Logger
	repository contract.ISessionRepository
	matchmaker contract.IMatchmaker
	notifier   contract.INotifier
	monitoring *observability.MonitoringManager
	// locks orders the events of each connection: a transition is re-read and
	// announced while the locks of every connection it touches are held.
	locks *connectionLocks
}

func NewLifecycleCoordinator(log *slog.Logger, repository contract.ISessionRepository, matchmaker contract.IMatchmaker,
	notifier contract.INotifier, monitoring *observability.MonitoringManager) *LifecycleCoordinator {
	return &LifecycleCoordinator{
		log:        log,
		repository: repository,
		matchmaker: matchmaker,
		notifier:   notifier,
		monitoring: monitoring,
		locks:      newConnectionLocks(),
	}
}

func (c *LifecycleCoordinator) OnStartRequest(ctx context.Context, connectionID string) error {
	result, err := c.matchmaker.RequestMatch(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("start chat for %s: %w", connectionID, err)
	}

	switch result.Outcome {
	case domain.MatchWaiting:
		c.announceWaiting(ctx, connectionID)
	case domain.MatchMatched:
		c.announceMatch(ctx, connectionID, result.PartnerID)
	case domain.MatchClaimed:
		c.log.Debug("Already claimed by a concurrent request", "connection_id", connectionID,
			"partner_id", result.PartnerID)
	}
	return nil
}

// OnDisconnectRequest acknowledges with disconnected whenever the connection had a session, waiting or chatting.
func (c *LifecycleCoordinator) OnDisconnectRequest(ctx context.Context, connectionID string) error {
	if err := c.release(ctx, connectionID, true); err != nil {
		return fmt.Errorf("disconnect %s: %w", connectionID, err)
	}
	return nil
}

// OnConnectionClosed tears the session down without acknowledging anything to the
// closed connection.
func (c *LifecycleCoordinator) OnConnectionClosed(ctx context.Context, connectionID string) error {
	if err := c.release(ctx, connectionID, false); err != nil {
		c.log.Warn("Release failed on close, deleting session", "connection_id", connectionID, "error", err)
		if delErr := c.repository.Delete(ctx, connectionID); delErr != nil {
			c.log.Error("Unable to delete session of closed connection",
				"connection_id", connectionID, "error", delErr)
		}
		return fmt.Errorf("close %s: %w", connectionID, err)
	}
	return nil
}

// announceWaiting stays silent when a concurrent request paired the connection after
// the matchmaker gave up: that request delivers matched instead.
func (c *LifecycleCoordinator) announceWaiting(ctx context.Context, connectionID string) {
	unlock := c.locks.lock(connectionID)
	defer unlock()

	s, err := c.repository.Get(ctx, connectionID)
	switch {
	case errors.Is(err, errors.ErrSessionNotFound):
		return
	case err != nil:
		c.log.Warn("Unable to re-read queued session", "connection_id", connectionID, "error", err)
	case s.IsChatting():
		c.log.Debug("Paired before waiting was announced", "connection_id", connectionID,
			"partner_id", s.PartnerID)
		return
	}
	c.deliver(ctx, connectionID, domain.WaitingEvent())
}

// announceMatch delivers both matched events only if the pair still holds. A release
// that committed first has already told the survivor it is waiting again.
func (c *LifecycleCoordinator) announceMatch(ctx context.Context, requesterID, partnerID string) {
	unlock := c.locks.lock(requesterID, partnerID)
	defer unlock()

	s, err := c.repository.Get(ctx, requesterID)
	switch {
	case errors.Is(err, errors.ErrSessionNotFound), err == nil && !s.PairedWith(partnerID):
		c.log.Info("Pair undone before it was announced", "connection_id", requesterID, "partner_id", partnerID)
		return
	case err != nil:
		c.log.Warn("Unable to re-read matched session", "connection_id", requesterID, "error", err)
	}

	// Requester first: its partner may relay as soon as it sees its own matched event.
	c.deliver(ctx, requesterID, domain.MatchedEvent(partnerID))
	c.deliver(ctx, partnerID, domain.MatchedEvent(requesterID))
	c.log.Info("Connections matched", "connection_id", requesterID, "partner_id", partnerID)
}

// release removes the session and tells the freed partner, and the requester when ack
// is set, while holding the locks of both.
func (c *LifecycleCoordinator) release(ctx context.Context, connectionID string, ack bool) error {
	lockedPartner := ""
	if s, err := c.repository.Get(ctx, connectionID); err == nil && s.IsChatting() {
		lockedPartner = s.PartnerID
	}
	unlock := c.locks.lock(connectionID, lockedPartner)

	release, err := c.repository.Release(ctx, connectionID)
	if err != nil {
		unlock()
		return err
	}
	if release.Existed {
		c.monitoring.IncrDisconnects()
	}

	// A pair committed after the read above frees a partner whose lock is not held.
	stray := ""
	if release.FreedPartner() {
		if release.PartnerID == lockedPartner {
			c.notifyFreedPartner(ctx, connectionID, release.PartnerID)
		} else {
			stray = release.PartnerID
		}
	}
	if ack && release.Existed {
		c.deliver(ctx, connectionID, domain.DisconnectedEvent())
	}
	unlock()

	if stray != "" {
		c.notifyStrayPartner(ctx, connectionID, stray)
	}
	return nil
}

func (c *LifecycleCoordinator) notifyStrayPartner(ctx context.Context, connectionID, partnerID string) {
	unlock := c.locks.lock(partnerID)
	defer unlock()

	if s, err := c.repository.Get(ctx, partnerID); err == nil && !s.IsChatting() {
		c.notifyFreedPartner(ctx, connectionID, partnerID)
		return
	}
	// Gone, or matched again: its newer event supersedes partner-disconnected.
	c.monitoring.IncrPartnersFreed()
}

func (c *LifecycleCoordinator) notifyFreedPartner(ctx context.Context, connectionID, partnerID string) {
	c.monitoring.IncrPartnersFreed()
	c.log.Info("Partner returned to waiting", "connection_id", connectionID, "partner_id", partnerID)
	c.deliver(ctx, partnerID, domain.PartnerDisconnectedEvent())
}

// deliver never fails the transition that produced the event: the state change is
// already committed and a dead recipient is cleaned up by its own close.
func (c *LifecycleCoordinator) deliver(ctx context.Context, connectionID string, evt domain.Event) {
	if err := c.notifier.Deliver(ctx, connectionID, evt); err != nil {
		c.monitoring.IncrDeliveryFailures()
		c.log.Warn("Unable to deliver event", "connection_id", connectionID, "event", evt.Name, "error", err)
	}
}
