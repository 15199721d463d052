package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/makercost/makercost/internal/money"
	"github.com/makercost/makercost/internal/pricing"
	"github.com/makercost/makercost/internal/shared"
	"github.com/makercost/makercost/internal/store"
)

const (
	snapshotName    = "quotes"
	snapshotVersion = 1

	defaultRemoteTimeout = 5 * time.Second
)

// Repository is the remote database adapter for quotes, scoped to the
// authenticated user carried in the context. A missing identity surfaces
// shared.ErrNotAuthenticated, distinguishable from real failures.
type Repository interface {
	SaveQuote(ctx context.Context, q Quote) error
	LoadQuotes(ctx context.Context) ([]Quote, error)
	DeleteQuote(ctx context.Context, id uuid.UUID) error
	// ReplaceQuotes atomically makes the remote set equal to the given one.
	ReplaceQuotes(ctx context.Context, quotes []Quote) error
}

// CreateGate lets the subscription layer cap quote creation per tier.
type CreateGate interface {
	AllowQuoteCreate(currentCount int) error
}

// StoreConfig collects the injected ports for a quote store.
type StoreConfig struct {
	Snapshots     store.Snapshots
	Repo          Repository
	Notifier      shared.Notifier
	Logger        *slog.Logger
	Clock         shared.Clock
	IDs           shared.IDGenerator
	Rates         pricing.Rates
	Gate          CreateGate
	RemoteTimeout time.Duration
	// Currency is the default for quotes created without one. Empty means
	// money.DefaultCurrency.
	Currency string
	// OnCreate, when set, observes every successfully created quote. The
	// subscription layer hangs its usage counter here.
	OnCreate func(ctx context.Context)
}

// Store is the local-first quote container. Mutations apply synchronously to
// local state and are mirrored to the remote adapter asynchronously; a
// remote failure never rolls back a local mutation.
type Store struct {
	mu         sync.Mutex
	quotes     map[uuid.UUID]Quote
	snapshots  store.Snapshots
	repo       Repository
	notifier   shared.Notifier
	logger     *slog.Logger
	clock      shared.Clock
	ids        shared.IDGenerator
	rates      pricing.Rates
	gate       CreateGate
	currency   string
	onCreate   func(ctx context.Context)
	timeout    time.Duration
	lastSynced string
	lastError  string
}

// NewStore builds a quote store, restoring the last persisted snapshot
// synchronously so local state is immediately available.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		quotes:    make(map[uuid.UUID]Quote),
		snapshots: cfg.Snapshots,
		repo:      cfg.Repo,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		ids:       cfg.IDs,
		rates:     cfg.Rates,
		gate:      cfg.Gate,
		currency:  cfg.Currency,
		onCreate:  cfg.OnCreate,
		timeout:   cfg.RemoteTimeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = shared.SystemClock{}
	}
	if s.ids == nil {
		s.ids = shared.UUIDGenerator{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultRemoteTimeout
	}
	if s.currency == "" {
		s.currency = money.DefaultCurrency
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
	var saved []Quote
	err := s.snapshots.Load(ctx, snapshotName, snapshotVersion, &saved)
	switch {
	case err == nil:
		for _, q := range saved {
			s.quotes[q.ID] = q
		}
	case errors.Is(err, store.ErrSnapshotMissing):
	case errors.Is(err, store.ErrSnapshotVersion):
		s.logger.Warn("quote snapshot discarded", slog.String("reason", "schema version mismatch"))
	default:
		s.logger.Warn("quote snapshot restore", slog.Any("error", err))
	}
}

// Reload re-reads the persisted snapshot, picking up writes from another
// process sharing the snapshot store, such as the API server feeding the
// worker.
func (s *Store) Reload() {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var saved []Quote
	err := s.snapshots.Load(ctx, snapshotName, snapshotVersion, &saved)
	if err != nil {
		if !errors.Is(err, store.ErrSnapshotMissing) {
			s.logger.Warn("quote snapshot reload", slog.Any("error", err))
		}
		return
	}
	s.mu.Lock()
	for _, q := range saved {
		s.quotes[q.ID] = q
	}
	s.mu.Unlock()
}

func (s *Store) persistLocked() {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, snapshotName, snapshotVersion, s.snapshotLocked()); err != nil {
		s.logger.Warn("quote snapshot save", slog.Any("error", err))
	}
}

func (s *Store) snapshotLocked() []Quote {
	out := make([]Quote, 0, len(s.quotes))
	for _, q := range s.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// List returns all quotes ordered by most recently updated.
func (s *Store) List() []Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Quote, 0, len(s.quotes))
	for _, q := range s.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// GetByID returns a copy of the quote.
func (s *Store) GetByID(id uuid.UUID) (Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	return q, ok
}

// Create adds a new draft quote locally and mirrors it to the remote store.
func (s *Store) Create(ctx context.Context, projectName, clientName, currency string) (Quote, error) {
	if currency == "" {
		currency = s.currency
	}
	if !money.ValidCurrency(currency) {
		return Quote{}, fmt.Errorf("%w: unknown currency %q", shared.ErrValidation, currency)
	}

	s.mu.Lock()
	if s.gate != nil {
		if err := s.gate.AllowQuoteCreate(len(s.quotes)); err != nil {
			s.mu.Unlock()
			return Quote{}, err
		}
	}
	now := s.clock.Now()
	q := Quote{
		ID:          s.ids.NewID(),
		Number:      NewNumber(s.clock, s.ids),
		ProjectName: projectName,
		ClientName:  clientName,
		Currency:    currency,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.quotes[q.ID] = q
	s.persistLocked()
	s.mu.Unlock()

	if s.onCreate != nil {
		s.onCreate(ctx)
	}
	s.mirrorSave(ctx, q)
	return q, nil
}

// Update replaces a quote's content, validates its products and recomputes
// the cached total. The local write is synchronous; the remote mirror is not.
func (s *Store) Update(ctx context.Context, q Quote) (Quote, error) {
	for i := range q.Products {
		s.normalizeProduct(&q.Products[i])
		if err := pricing.Validate(q.Products[i].ProductInput); err != nil {
			return Quote{}, err
		}
	}
	if q.Status != "" && !q.Status.Valid() {
		return Quote{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, q.Status)
	}

	s.mu.Lock()
	existing, ok := s.quotes[q.ID]
	if !ok {
		s.mu.Unlock()
		return Quote{}, fmt.Errorf("quote %s: %w", q.ID, shared.ErrNotFound)
	}
	q.Number = existing.Number
	q.CreatedAt = existing.CreatedAt
	if q.Status == "" {
		q.Status = existing.Status
	}
	q.Recompute(s.rates)
	q.UpdatedAt = s.clock.Now()
	s.quotes[q.ID] = q
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx, q)
	return q, nil
}

// SetStatus moves the quote between draft, saved and completed. All
// transitions are permitted; the total is recomputed regardless.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status Status) (Quote, error) {
	if !status.Valid() {
		return Quote{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	s.mu.Lock()
	q, ok := s.quotes[id]
	if !ok {
		s.mu.Unlock()
		return Quote{}, fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
	}
	q.Status = status
	q.Recompute(s.rates)
	q.UpdatedAt = s.clock.Now()
	s.quotes[id] = q
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx, q)
	return q, nil
}

// Remove deletes the quote locally right away and issues a best-effort
// remote delete. A remote failure is logged, never surfaced as blocking.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	_, ok := s.quotes[id]
	delete(s.quotes, id)
	if ok {
		s.persistLocked()
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	go func(ctx context.Context) {
		ctx, cancel := s.detachedContext(ctx)
		defer cancel()
		if err := s.DeleteFromDatabase(ctx, id); err != nil {
			s.logger.Warn("remote quote delete", slog.String("quote", id.String()), slog.Any("error", err))
		}
	}(ctx)
}

// FindOrCreateDraft returns the most recently updated draft quote matching
// the currency, creating one only when none exists. Repeated calls with
// unchanged inputs return the same quote.
func (s *Store) FindOrCreateDraft(ctx context.Context, projectName, clientName, currency string) (Quote, error) {
	if currency == "" {
		currency = s.currency
	}
	s.mu.Lock()
	var found *Quote
	for _, q := range s.quotes {
		if q.Status != StatusDraft || q.Currency != currency {
			continue
		}
		if found == nil || q.UpdatedAt.After(found.UpdatedAt) {
			copied := q
			found = &copied
		}
	}
	s.mu.Unlock()
	if found != nil {
		return *found, nil
	}
	return s.Create(ctx, projectName, clientName, currency)
}

// UpdateFromProject replaces the current product of the addressed quote
// with the project snapshot and recomputes the total. A quote deleted
// concurrently is logged and skipped rather than failed: this runs from the
// background autosave path.
func (s *Store) UpdateFromProject(quoteID uuid.UUID, snap ProjectSnapshot) {
	product := snap.Product
	s.mu.Lock()
	q, ok := s.quotes[quoteID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("autosave target quote missing", slog.String("quote", quoteID.String()))
		return
	}
	if len(q.Products) == 0 {
		q.Products = []Product{{ID: s.ids.NewID()}}
	}
	q.Products[0].ProductInput = product
	s.normalizeProduct(&q.Products[0])
	if snap.ProjectName != "" {
		q.ProjectName = snap.ProjectName
	}
	if snap.ClientName != "" {
		q.ClientName = snap.ClientName
	}
	q.Recompute(s.rates)
	q.UpdatedAt = s.clock.Now()
	s.quotes[quoteID] = q
	s.persistLocked()
	s.mu.Unlock()
}

// SaveToDatabase mirrors one quote to the remote store. Running without a
// session is an expected state: the call is a logged no-op, never an error.
func (s *Store) SaveToDatabase(ctx context.Context, q Quote) error {
	if s.repo == nil {
		return nil
	}
	err := s.repo.SaveQuote(ctx, q)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("quote save skipped, no session", slog.String("quote", q.ID.String()))
		return nil
	}
	if err != nil {
		s.recordError(ctx, fmt.Sprintf("saving quote %s failed", q.Number), err)
		return err
	}
	return nil
}

// LoadFromDatabase replaces local state with the remote copy.
func (s *Store) LoadFromDatabase(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	remote, err := s.repo.LoadQuotes(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("quote load skipped, no session")
		return nil
	}
	if err != nil {
		s.recordError(ctx, "loading quotes failed", err)
		return err
	}
	s.adopt(remote)
	return nil
}

// DeleteFromDatabase removes the quote remotely.
func (s *Store) DeleteFromDatabase(ctx context.Context, id uuid.UUID) error {
	if s.repo == nil {
		return nil
	}
	err := s.repo.DeleteQuote(ctx, id)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("quote delete skipped, no session", slog.String("quote", id.String()))
		return nil
	}
	if err != nil {
		s.recordError(ctx, "deleting quote remotely failed", err)
		return err
	}
	return nil
}

// LastError returns the most recent remote failure message.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Name identifies the store to the sync orchestrator.
func (s *Store) Name() string { return snapshotName }

// Sync pulls the remote copy and adopts it unless local state has diverged
// from both the last synced fingerprint and the remote copy, in which case
// it reports a conflict for explicit resolution.
func (s *Store) Sync(ctx context.Context) (conflict bool, err error) {
	if s.repo == nil {
		return false, nil
	}
	remote, err := s.repo.LoadQuotes(ctx)
	if err != nil {
		return false, err
	}
	sortQuotes(remote)
	remoteFP := store.Fingerprint(remote)

	s.mu.Lock()
	localFP := store.Fingerprint(s.snapshotLocked())
	lastSynced := s.lastSynced
	localEmpty := len(s.quotes) == 0
	s.mu.Unlock()

	if localFP == remoteFP {
		s.markSynced(remoteFP)
		return false, nil
	}
	if localFP == lastSynced && lastSynced != "" {
		s.adopt(remote)
		return false, nil
	}
	if lastSynced == "" && localEmpty {
		// Fresh device with no data of its own, nothing to lose.
		s.adopt(remote)
		return false, nil
	}
	// No baseline but local holds quotes, typically work created before
	// the first login. Adopting would destroy it, so surface the
	// divergence for an explicit choice.
	return true, nil
}

// AdoptRemote resolves a conflict in favor of the cloud copy.
func (s *Store) AdoptRemote(ctx context.Context) error {
	return s.LoadFromDatabase(ctx)
}

// PushLocal resolves a conflict in favor of the local copy: the remote set
// becomes exactly the local one, dropping remote-only quotes.
func (s *Store) PushLocal(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.mu.Lock()
	local := s.snapshotLocked()
	fp := store.Fingerprint(local)
	s.mu.Unlock()

	err := s.repo.ReplaceQuotes(ctx, local)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("quote push skipped, no session")
		return nil
	}
	if err != nil {
		s.recordError(ctx, "pushing quotes failed", err)
		return err
	}
	s.markSynced(fp)
	return nil
}

func (s *Store) adopt(remote []Quote) {
	sortQuotes(remote)
	fp := store.Fingerprint(remote)
	s.mu.Lock()
	s.quotes = make(map[uuid.UUID]Quote, len(remote))
	for _, q := range remote {
		s.quotes[q.ID] = q
	}
	s.lastSynced = fp
	s.persistLocked()
	s.mu.Unlock()
}

func (s *Store) markSynced(fp string) {
	s.mu.Lock()
	s.lastSynced = fp
	s.mu.Unlock()
}

func (s *Store) recordError(ctx context.Context, msg string, err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
	s.logger.Warn(msg, slog.Any("error", err))
	if s.notifier != nil {
		s.notifier.Notify(ctx, shared.SeverityWarning, msg)
	}
}

// mirrorSave fires the remote save without blocking the caller. The
// detached context keeps the request's identity but outlives the request.
func (s *Store) mirrorSave(ctx context.Context, q Quote) {
	go func() {
		ctx, cancel := s.detachedContext(ctx)
		defer cancel()
		if err := s.SaveToDatabase(ctx, q); err != nil {
			s.logger.Warn("remote quote save", slog.String("quote", q.ID.String()), slog.Any("error", err))
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

func (s *Store) normalizeProduct(p *Product) {
	if p.ID == uuid.Nil {
		p.ID = s.ids.NewID()
	}
	if p.SalePrice.UnitsCount < 1 {
		p.SalePrice.UnitsCount = 1
	}
}

func sortQuotes(qs []Quote) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID.String() < qs[j].ID.String() })
}
