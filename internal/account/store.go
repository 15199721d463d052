package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/makercost/makercost/internal/shared"
	"github.com/makercost/makercost/internal/store"
)

const (
	snapshotName    = "account"
	snapshotVersion = 1

	defaultRemoteTimeout = 5 * time.Second
)

// ErrQuoteLimit indicates the tier's quote cap was reached.
var ErrQuoteLimit = fmt.Errorf("%w: quote limit reached for current plan", shared.ErrForbidden)

// Repository is the remote database adapter for the account document.
type Repository interface {
	SaveAccount(ctx context.Context, a Account) error
	LoadAccount(ctx context.Context) (Account, error)
}

// StoreConfig collects the injected ports for an account store.
type StoreConfig struct {
	Snapshots     store.Snapshots
	Repo          Repository
	Logger        *slog.Logger
	Clock         shared.Clock
	RemoteTimeout time.Duration
}

// Store holds the local-first subscription and usage state. It doubles as
// the quote creation gate: the free tier caps how many quotes exist.
type Store struct {
	mu         sync.Mutex
	account    Account
	snapshots  store.Snapshots
	repo       Repository
	logger     *slog.Logger
	clock      shared.Clock
	timeout    time.Duration
	lastSynced string
}

// NewStore builds an account store, restoring the last persisted snapshot.
// A fresh store starts on the free tier.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		account:   Account{Subscription: Subscription{Tier: TierFree}},
		snapshots: cfg.Snapshots,
		repo:      cfg.Repo,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		timeout:   cfg.RemoteTimeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = shared.SystemClock{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultRemoteTimeout
	}
	s.restore()
	return s
}

func (s *Store) restore() {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var saved Account
	err := s.snapshots.Load(ctx, snapshotName, snapshotVersion, &saved)
	switch {
	case err == nil:
		if saved.Subscription.Tier.Valid() {
			s.account = saved
		}
	case errors.Is(err, store.ErrSnapshotMissing):
	case errors.Is(err, store.ErrSnapshotVersion):
		s.logger.Warn("account snapshot discarded", slog.String("reason", "schema version mismatch"))
	default:
		s.logger.Warn("account snapshot restore", slog.Any("error", err))
	}
}

func (s *Store) persistLocked() {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, snapshotName, snapshotVersion, s.account); err != nil {
		s.logger.Warn("account snapshot save", slog.Any("error", err))
	}
}

// Current returns a copy of the account document.
func (s *Store) Current() Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// SetTier changes the subscription tier locally.
func (s *Store) SetTier(ctx context.Context, tier Tier) (Account, error) {
	if !tier.Valid() {
		return Account{}, fmt.Errorf("%w: unknown tier %q", shared.ErrValidation, tier)
	}
	s.mu.Lock()
	s.account.Subscription.Tier = tier
	s.account.Subscription.UpdatedAt = s.clock.Now()
	a := s.account
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx)
	return a, nil
}

// AllowQuoteCreate implements the quote creation gate. currentCount is the
// number of quotes that already exist locally.
func (s *Store) AllowQuoteCreate(currentCount int) error {
	s.mu.Lock()
	limit := s.account.Subscription.Tier.QuoteLimit()
	s.mu.Unlock()
	if limit > 0 && currentCount >= limit {
		return fmt.Errorf("%w: %d of %d", ErrQuoteLimit, currentCount, limit)
	}
	return nil
}

// RecordQuoteCreated bumps the usage counter.
func (s *Store) RecordQuoteCreated(ctx context.Context) {
	s.mu.Lock()
	s.account.Usage.QuotesCreated++
	s.account.Usage.LastQuoteAt = s.clock.Now()
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx)
}

// SaveToDatabase mirrors the account document remotely. Running without a
// session is an expected state, never an error.
func (s *Store) SaveToDatabase(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.mu.Lock()
	a := s.account
	s.mu.Unlock()
	err := s.repo.SaveAccount(ctx, a)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("account save skipped, no session")
		return nil
	}
	if err != nil {
		s.logger.Warn("saving account failed", slog.Any("error", err))
		return err
	}
	return nil
}

// LoadFromDatabase replaces local state with the remote copy.
func (s *Store) LoadFromDatabase(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	remote, err := s.repo.LoadAccount(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("account load skipped, no session")
		return nil
	}
	if err != nil {
		s.logger.Warn("loading account failed", slog.Any("error", err))
		return err
	}
	s.adopt(remote)
	return nil
}

// Name identifies the store to the sync orchestrator.
func (s *Store) Name() string { return snapshotName }

// Sync pulls the remote account. The subscription is owned by the billing
// side, so the remote copy wins except when only local usage moved forward;
// divergent usage counters are merged by taking the maximum, never reported
// as a conflict.
func (s *Store) Sync(ctx context.Context) (conflict bool, err error) {
	if s.repo == nil {
		return false, nil
	}
	remote, err := s.repo.LoadAccount(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if !remote.Subscription.Tier.Valid() {
		remote.Subscription = s.account.Subscription
	}
	if s.account.Usage.QuotesCreated > remote.Usage.QuotesCreated {
		remote.Usage = s.account.Usage
	}
	s.account = remote
	s.lastSynced = store.Fingerprint(remote)
	s.persistLocked()
	s.mu.Unlock()
	return false, nil
}

// AdoptRemote resolves in favor of the cloud copy.
func (s *Store) AdoptRemote(ctx context.Context) error {
	return s.LoadFromDatabase(ctx)
}

// PushLocal resolves in favor of the local copy.
func (s *Store) PushLocal(ctx context.Context) error {
	return s.SaveToDatabase(ctx)
}

func (s *Store) adopt(remote Account) {
	s.mu.Lock()
	if !remote.Subscription.Tier.Valid() {
		remote.Subscription = Subscription{Tier: TierFree}
	}
	s.account = remote
	s.lastSynced = store.Fingerprint(remote)
	s.persistLocked()
	s.mu.Unlock()
}

func (s *Store) mirrorSave(ctx context.Context) {
	go func() {
		ctx, cancel := s.detachedContext(ctx)
		defer cancel()
		if err := s.SaveToDatabase(ctx); err != nil {
			s.logger.Warn("remote account save", slog.Any("error", err))
		}
	}()
}

func (s *Store) detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.Background()
	if id, ok := shared.IdentityFromContext(ctx); ok {
		detached = shared.ContextWithIdentity(detached, id)
	}
	return context.WithTimeout(detached, s.timeout)
}
