package services

import (
	"chat-match/contract"
	"chat-match/domain"
	"chat-match/errors"
	"chat-match/observability"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const defaultMaxContentLength = 2000

var _ contract.IRelay = (*Relay)(nil)

// Relay forwards a message to the sender's current partner only.
type Relay struct {
	log              *slog.Logger
	repository       contract.ISessionRepository
	notifier         contract.INotifier
	filter           contract.IBodyFilter
	monitoring       *observability.MonitoringManager
	maxContentLength int
	now              func() time.Time
}

type RelayOption func(*Relay)

// WithBodyFilter rewrites every accepted body before delivery.
func WithBodyFilter(filter contract.IBodyFilter) RelayOption {
	return func(r *Relay) {
		r.filter = filter
	}
}

func WithRelayClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		r.now = now
	}
}

func NewRelay(log *slog.Logger, repository contract.ISessionRepository, notifier contract.INotifier,
	monitoring *observability.MonitoringManager, maxContentLength int, opts ...RelayOption) *Relay {
	if maxContentLength <= 0 {
		maxContentLength = defaultMaxContentLength
	}
	r := &Relay{
		log:              log,
		repository:       repository,
		notifier:         notifier,
		monitoring:       monitoring,
		maxContentLength: maxContentLength,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Relay(ctx context.Context, senderID, declaredPartnerID, body string) (domain.Envelope, error) {
	if err := r.validateBody(body); err != nil {
		r.monitoring.IncrRejected()
		return domain.Envelope{}, err
	}

	sender, err := r.repository.Get(ctx, senderID)
	if errors.Is(err, errors.ErrSessionNotFound) {
		r.monitoring.IncrRejected()
		return domain.Envelope{}, errors.ErrNotChatting
	}
	if err != nil {
		return domain.Envelope{}, err
	}
	if !sender.IsChatting() {
		r.monitoring.IncrRejected()
		return domain.Envelope{}, errors.ErrNotChatting
	}
	if sender.PartnerID != declaredPartnerID {
		r.monitoring.IncrRejected()
		return domain.Envelope{}, fmt.Errorf("%w: declared %q", errors.ErrStalePartner, declaredPartnerID)
	}

	if r.filter != nil {
		body = r.filter.Filter(senderID, body)
	}
	env := domain.Envelope{
		SenderID:    senderID,
		RecipientID: sender.PartnerID,
		Body:        body,
		SentAt:      r.now(),
	}

	if err := r.notifier.Deliver(ctx, env.RecipientID, domain.ReceiveMessageEvent(env)); err != nil {
		r.monitoring.IncrDeliveryFailures()
		return domain.Envelope{}, fmt.Errorf("relay to %s: %w", env.RecipientID, err)
	}
	if err := r.notifier.Deliver(ctx, senderID, domain.MessageSentEvent(env)); err != nil {
		r.monitoring.IncrDeliveryFailures()
		r.log.Warn("Unable to acknowledge relayed message", "connection_id", senderID, "error", err)
	}
	r.monitoring.IncrRelayed()
	return env, nil
}

func (r *Relay) validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > r.maxContentLength {
		return errors.ErrMessageTooLong
	}
	return nil
}
