package services

import (
	"chat-match/contract"
	"chat-match/domain"
	"chat-match/errors"
	"chat-match/observability"
	"context"
	"log/slog"
)

const defaultMatchAttempts = 3

var _ contract.IMatchmaker = (*Matchmaker)(nil)

// Matchmaker pairs a requester with the oldest waiting connection.
// It holds no state of its own: every decision is taken inside a store transaction.
type Matchmaker struct {
	log        *slog.Logger
	repository contract.ISessionRepository
	monitoring *observability.MonitoringManager
	attempts   int
}

func NewMatchmaker(log *slog.Logger, repository contract.ISessionRepository,
	monitoring *observability.MonitoringManager, attempts int) *Matchmaker {
	if attempts <= 0 {
		attempts = defaultMatchAttempts
	}
	return &Matchmaker{
		log:        log,
		repository: repository,
		monitoring: monitoring,
		attempts:   attempts,
	}
}

func (m *Matchmaker) RequestMatch(ctx context.Context, connectionID string) (domain.MatchResult, error) {
	if _, err := m.repository.Enqueue(ctx, connectionID); err != nil {
		return domain.MatchResult{}, err
	}

	for attempt := 1; attempt <= m.attempts; attempt++ {
		candidate, err := m.repository.FindOldestWaiting(ctx, connectionID)
		if errors.Is(err, errors.ErrSessionNotFound) {
			return m.stayQueued(ctx, connectionID)
		}
		if err != nil {
			m.log.Warn("Waiting pool lookup failed, staying in queue",
				"connection_id", connectionID, "error", err)
			return m.stayQueued(ctx, connectionID)
		}

		_, _, err = m.repository.Pair(ctx, connectionID, candidate.ConnectionID)
		switch {
		case err == nil:
			m.monitoring.IncrMatches()
			m.log.Debug("Pair committed", "connection_id", connectionID, "partner_id", candidate.ConnectionID)
			return domain.Matched(candidate.ConnectionID), nil
		case errors.Is(err, errors.ErrRaceLost):
			m.monitoring.IncrRaceRetries()
			m.log.Debug("Candidate taken by a concurrent request",
				"connection_id", connectionID, "partner_id", candidate.ConnectionID, "attempt", attempt)
		case errors.Is(err, errors.ErrRequesterNotWaiting):
			return m.resolveClaimed(ctx, connectionID)
		default:
			return domain.MatchResult{}, err
		}
	}

	m.log.Debug("Match attempts exhausted, staying in queue", "connection_id", connectionID)
	return m.stayQueued(ctx, connectionID)
}

// stayQueued re-reads the requester before reporting it as waiting: a concurrent request
// may have paired it since Enqueue, in which case that request owns the pairing.
func (m *Matchmaker) stayQueued(ctx context.Context, connectionID string) (domain.MatchResult, error) {
	result, err := m.resolveClaimed(ctx, connectionID)
	if err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
		m.log.Warn("Unable to re-read queued requester", "connection_id", connectionID, "error", err)
		result, err = domain.Waiting(), nil
	}
	if err == nil && result.Outcome == domain.MatchWaiting {
		m.monitoring.IncrQueued()
	}
	return result, err
}

// resolveClaimed explains why the requester stopped waiting between Enqueue and Pair.
func (m *Matchmaker) resolveClaimed(ctx context.Context, connectionID string) (domain.MatchResult, error) {
	s, err := m.repository.Get(ctx, connectionID)
	if err != nil {
		return domain.MatchResult{}, err
	}
	if s.IsChatting() {
		return domain.Claimed(s.PartnerID), nil
	}
	// Re-queued by a release in between: it is waiting again and stays so.
	return domain.Waiting(), nil
}
