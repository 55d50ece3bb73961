package repositories

import (
	"chat-match/contract"
	"chat-match/domain"
	"chat-match/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnAttempts bounds retries of transactions aborted by badger.ErrConflict.
// Pair is never retried here: a conflict there is a lost race.
const maxTxnAttempts = 5

var _ contract.ISessionRepository = (*SessionRepository)(nil)

type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
	ttl time.Duration
	now func() time.Time
}

type Option func(*SessionRepository)

// WithClock replaces the wall clock used to stamp transitions.
func WithClock(now func() time.Time) Option {
	return func(r *SessionRepository) {
		r.now = now
	}
}

func NewSessionRepository(db *badger.DB, log *slog.Logger, ttl time.Duration, opts ...Option) *SessionRepository {
	r := &SessionRepository{
		db:  db,
		log: log,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert creates or replaces the session of a connection and restarts its expiry clock.
func (r *SessionRepository) Upsert(ctx context.Context, connectionID string, status domain.Status, partnerID string) (domain.Session, error) {
	if status != domain.StatusWaiting && status != domain.StatusChatting {
		return domain.Session{}, fmt.Errorf("%w: unknown status %d", errors.ErrInvalidRequest, status)
	}
	if status == domain.StatusChatting && partnerID == "" {
		return domain.Session{}, fmt.Errorf("%w: chatting session %s without partner", errors.ErrInvalidRequest, connectionID)
	}
	var saved domain.Session
	err := r.update(ctx, func(txn *badger.Txn) error {
		previous, err := readOptional(txn, connectionID)
		if err != nil {
			return err
		}
		now := r.now()
		saved = domain.Session{
			ConnectionID:     connectionID,
			Status:           status,
			PartnerID:        partnerID,
			CreatedAt:        now,
			LastTransitionAt: now,
		}
		if status == domain.StatusWaiting {
			saved.PartnerID = ""
		}
		return r.write(txn, previous, saved)
	})
	if err != nil {
		return domain.Session{}, err
	}
	return saved, nil
}

func (r *SessionRepository) Get(ctx context.Context, connectionID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, wrapStoreErr(err)
	}
	var s domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = readSession(txn, connectionID)
		return err
	})
	if err != nil {
		return domain.Session{}, wrapStoreErr(err)
	}
	return s, nil
}

// FindOldestWaiting scans the FIFO index and returns the first live waiting session
// other than excluding. Index entries whose session moved on are skipped.
func (r *SessionRepository) FindOldestWaiting(ctx context.Context, excluding string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, wrapStoreErr(err)
	}
	var found domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(WaitingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			id, ok := ConnectionIDFromWaitingKey(key)
			if !ok || id == excluding {
				continue
			}
			s, err := readSession(txn, id)
			if errors.Is(err, errors.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !s.IsWaiting() || string(WaitingKey(s)) != string(key) {
				r.log.Debug("Skipping stale waiting index entry", "key", string(key))
				continue
			}
			found = s
			return nil
		}
		return errors.ErrSessionNotFound
	})
	if err != nil {
		return domain.Session{}, wrapStoreErr(err)
	}
	return found, nil
}

// Delete removes a session and its index entry. Deleting an absent session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, connectionID string) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		previous, err := readOptional(txn, connectionID)
		if err != nil || previous == nil {
			return err
		}
		return r.remove(txn, *previous)
	})
}

// Enqueue moves a connection into the waiting pool unless it is chatting.
func (r *SessionRepository) Enqueue(ctx context.Context, connectionID string) (domain.Session, error) {
	var saved domain.Session
	err := r.update(ctx, func(txn *badger.Txn) error {
		previous, err := readOptional(txn, connectionID)
		if err != nil {
			return err
		}
		if previous != nil && previous.IsChatting() {
			return errors.ErrAlreadyChatting
		}
		now := r.now()
		saved = domain.Session{
			ConnectionID:     connectionID,
			Status:           domain.StatusWaiting,
			CreatedAt:        now,
			LastTransitionAt: now,
		}
		return r.write(txn, previous, saved)
	})
	if err != nil {
		return domain.Session{}, err
	}
	return saved, nil
}

// Pair links two waiting sessions in a single transaction.
// Both records are read inside the transaction, so any concurrent commit touching
// either of them aborts this one with badger.ErrConflict.
func (r *SessionRepository) Pair(ctx context.Context, requesterID, partnerID string) (domain.Session, domain.Session, error) {
	if requesterID == partnerID {
		return domain.Session{}, domain.Session{}, fmt.Errorf("%w: cannot pair a connection with itself", errors.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return domain.Session{}, domain.Session{}, wrapStoreErr(err)
	}
	var requester, partner domain.Session
	err := r.db.Update(func(txn *badger.Txn) error {
		previousRequester, err := readOptional(txn, requesterID)
		if err != nil {
			return err
		}
		if previousRequester == nil || !previousRequester.IsWaiting() {
			return errors.ErrRequesterNotWaiting
		}
		previousPartner, err := readOptional(txn, partnerID)
		if err != nil {
			return err
		}
		if previousPartner == nil || !previousPartner.IsWaiting() {
			return errors.ErrRaceLost
		}

		now := r.now()
		requester = domain.Session{
			ConnectionID:     requesterID,
			Status:           domain.StatusChatting,
			PartnerID:        partnerID,
			CreatedAt:        now,
			LastTransitionAt: now,
		}
		partner = domain.Session{
			ConnectionID:     partnerID,
			Status:           domain.StatusChatting,
			PartnerID:        requesterID,
			CreatedAt:        now,
			LastTransitionAt: now,
		}
		if err := r.write(txn, previousRequester, requester); err != nil {
			return err
		}
		return r.write(txn, previousPartner, partner)
	})
	if errors.Is(err, badger.ErrConflict) {
		return domain.Session{}, domain.Session{}, errors.ErrRaceLost
	}
	if err != nil {
		return domain.Session{}, domain.Session{}, wrapStoreErr(err)
	}
	return requester, partner, nil
}

// Release deletes a connection's session. A partner still pointing back is
// returned to the waiting pool with a fresh position.
func (r *SessionRepository) Release(ctx context.Context, connectionID string) (domain.Release, error) {
	var result domain.Release
	err := r.update(ctx, func(txn *badger.Txn) error {
		result = domain.Release{}
		s, err := readOptional(txn, connectionID)
		if err != nil || s == nil {
			return err
		}
		result.Existed = true

		if s.IsChatting() {
			partner, err := readOptional(txn, s.PartnerID)
			if err != nil {
				return err
			}
			if partner != nil && partner.PairedWith(connectionID) {
				now := r.now()
				freed := domain.Session{
					ConnectionID:     partner.ConnectionID,
					Status:           domain.StatusWaiting,
					CreatedAt:        now,
					LastTransitionAt: now,
				}
				if err := r.write(txn, partner, freed); err != nil {
					return err
				}
				result.PartnerID = partner.ConnectionID
			}
		}
		return r.remove(txn, *s)
	})
	if err != nil {
		return domain.Release{}, err
	}
	return result, nil
}

// Touch rewrites a session unchanged to push its expiry back.
func (r *SessionRepository) Touch(ctx context.Context, connectionID string) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		s, err := readSession(txn, connectionID)
		if err != nil {
			return err
		}
		return r.write(txn, &s, s)
	})
}

func (r *SessionRepository) Stats(ctx context.Context) (domain.SessionStats, error) {
	var stats domain.SessionStats
	err := r.scan(ctx, func(s domain.Session) {
		switch s.Status {
		case domain.StatusWaiting:
			stats.Waiting++
		case domain.StatusChatting:
			stats.Chatting++
		}
	})
	return stats, err
}

// List returns every live session, ordered by connection id.
func (r *SessionRepository) List(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.scan(ctx, func(s domain.Session) {
		sessions = append(sessions, s)
	})
	return sessions, err
}

// CollectGarbage runs one value log GC cycle. It is a no-op for in-memory databases.
func (r *SessionRepository) CollectGarbage(discardRatio float64) error {
	if r.db.Opts().InMemory {
		return nil
	}
	err := r.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

func (r *SessionRepository) scan(ctx context.Context, fn func(domain.Session)) error {
	if err := ctx.Err(); err != nil {
		return wrapStoreErr(err)
	}
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(SessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				s, err := DecodeSession(value)
				if err != nil {
					return err
				}
				fn(s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return wrapStoreErr(err)
}

// update runs fn in a read-write transaction, retrying when badger reports a conflict.
func (r *SessionRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return wrapStoreErr(ctxErr)
		}
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return wrapStoreErr(err)
		}
		r.log.Debug("Session transaction conflict, retrying", "attempt", attempt+1)
	}
	return wrapStoreErr(err)
}

// write stores s with a fresh TTL and keeps the waiting index in sync with previous.
func (r *SessionRepository) write(txn *badger.Txn, previous *domain.Session, s domain.Session) error {
	if previous != nil && previous.IsWaiting() {
		if err := txn.Delete(WaitingKey(*previous)); err != nil {
			return err
		}
	}
	if err := txn.SetEntry(r.entry(SessionKey(s.ConnectionID), EncodeSession(s))); err != nil {
		return err
	}
	if s.IsWaiting() {
		return txn.SetEntry(r.entry(WaitingKey(s), []byte(s.ConnectionID)))
	}
	return nil
}

func (r *SessionRepository) remove(txn *badger.Txn, s domain.Session) error {
	if s.IsWaiting() {
		if err := txn.Delete(WaitingKey(s)); err != nil {
			return err
		}
	}
	return txn.Delete(SessionKey(s.ConnectionID))
}

func (r *SessionRepository) entry(key, value []byte) *badger.Entry {
	e := badger.NewEntry(key, value)
	if r.ttl > 0 {
		e = e.WithTTL(r.ttl)
	}
	return e
}

func readSession(txn *badger.Txn, connectionID string) (domain.Session, error) {
	item, err := txn.Get(SessionKey(connectionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Session{}, errors.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Session{}, err
	}
	return DecodeSession(value)
}

func readOptional(txn *badger.Txn, connectionID string) (*domain.Session, error) {
	s, err := readSession(txn, connectionID)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// wrapStoreErr keeps domain errors as they are and marks everything else as a
// transient storage failure.
func wrapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrInvalidRequest),
		errors.Is(err, errors.ErrRaceLost),
		errors.Is(err, errors.ErrRequesterNotWaiting),
		errors.Is(err, errors.ErrSessionNotFound),
		errors.Is(err, errors.ErrTransportUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrTransportUnavailable, err)
	}
}
