package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/makercost/makercost/internal/shared"
	"github.com/makercost/makercost/internal/store"
)

const (
	snapshotName    = "catalog"
	snapshotVersion = 1

	defaultRemoteTimeout = 5 * time.Second
)

// Repository is the remote database adapter for the catalog, scoped to the
// authenticated user carried in the context.
type Repository interface {
	SaveCatalog(ctx context.Context, c Catalog) error
	LoadCatalog(ctx context.Context) (Catalog, error)
}

// StoreConfig collects the injected ports for a catalog store.
type StoreConfig struct {
	Snapshots     store.Snapshots
	Repo          Repository
	Notifier      shared.Notifier
	Logger        *slog.Logger
	Clock         shared.Clock
	IDs           shared.IDGenerator
	RemoteTimeout time.Duration
}

// Store is the local-first material and machine catalog. Mutations apply
// synchronously to local state; the remote mirror is asynchronous and never
// rolls back a local write.
type Store struct {
	mu         sync.Mutex
	materials  map[uuid.UUID]Material
	machines   map[uuid.UUID]Machine
	snapshots  store.Snapshots
	repo       Repository
	notifier   shared.Notifier
	logger     *slog.Logger
	clock      shared.Clock
	ids        shared.IDGenerator
	timeout    time.Duration
	validate   *validator.Validate
	lastSynced string
	lastError  string
}

// NewStore builds a catalog store, restoring the last persisted snapshot
// synchronously so local state is immediately available.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		materials: make(map[uuid.UUID]Material),
		machines:  make(map[uuid.UUID]Machine),
		snapshots: cfg.Snapshots,
		repo:      cfg.Repo,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		ids:       cfg.IDs,
		timeout:   cfg.RemoteTimeout,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
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
	s.restore()
	return s
}

func (s *Store) restore() {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var saved Catalog
	err := s.snapshots.Load(ctx, snapshotName, snapshotVersion, &saved)
	switch {
	case err == nil:
		for _, m := range saved.Materials {
			s.materials[m.ID] = m
		}
		for _, m := range saved.Machines {
			s.machines[m.ID] = m
		}
	case errors.Is(err, store.ErrSnapshotMissing):
	case errors.Is(err, store.ErrSnapshotVersion):
		s.logger.Warn("catalog snapshot discarded", slog.String("reason", "schema version mismatch"))
	default:
		s.logger.Warn("catalog snapshot restore", slog.Any("error", err))
	}
}

func (s *Store) persistLocked() {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, snapshotName, snapshotVersion, s.snapshotLocked()); err != nil {
		s.logger.Warn("catalog snapshot save", slog.Any("error", err))
	}
}

func (s *Store) snapshotLocked() Catalog {
	c := Catalog{
		Materials: make([]Material, 0, len(s.materials)),
		Machines:  make([]Machine, 0, len(s.machines)),
	}
	for _, m := range s.materials {
		c.Materials = append(c.Materials, m)
	}
	for _, m := range s.machines {
		c.Machines = append(c.Machines, m)
	}
	sort.Slice(c.Materials, func(i, j int) bool { return c.Materials[i].ID.String() < c.Materials[j].ID.String() })
	sort.Slice(c.Machines, func(i, j int) bool { return c.Machines[i].ID.String() < c.Machines[j].ID.String() })
	return c
}

// Materials returns all catalog materials sorted by name.
func (s *Store) Materials() []Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Material, 0, len(s.materials))
	for _, m := range s.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Machines returns all catalog machines sorted by name.
func (s *Store) Machines() []Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Machine, 0, len(s.machines))
	for _, m := range s.machines {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MaterialByID returns a copy of the material.
func (s *Store) MaterialByID(id uuid.UUID) (Material, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	return m, ok
}

// MachineByID returns a copy of the machine.
func (s *Store) MachineByID(id uuid.UUID) (Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[id]
	return m, ok
}

// UpsertMaterial validates and writes a material locally, then mirrors the
// whole catalog to the remote store.
func (s *Store) UpsertMaterial(ctx context.Context, m Material) (Material, error) {
	if !m.Unit.Valid() {
		return Material{}, fmt.Errorf("%w: unknown unit %q", shared.ErrValidation, m.Unit)
	}
	if err := s.validate.Struct(m); err != nil {
		return Material{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}

	s.mu.Lock()
	now := s.clock.Now()
	if m.ID == uuid.Nil {
		m.ID = s.ids.NewID()
		m.CreatedAt = now
	} else if existing, ok := s.materials[m.ID]; ok {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.materials[m.ID] = m
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx)
	return m, nil
}

// UpsertMachine validates and writes a machine locally, then mirrors the
// whole catalog to the remote store.
func (s *Store) UpsertMachine(ctx context.Context, m Machine) (Machine, error) {
	if err := s.validate.Struct(m); err != nil {
		return Machine{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	if m.HoursPerYear <= 0 && (m.PurchasePrice > 0 || m.MaintenanceCostPerYear > 0) {
		return Machine{}, fmt.Errorf("%w: machine %q has amortization inputs but no hours per year", shared.ErrValidation, m.Name)
	}

	s.mu.Lock()
	now := s.clock.Now()
	if m.ID == uuid.Nil {
		m.ID = s.ids.NewID()
		m.CreatedAt = now
	} else if existing, ok := s.machines[m.ID]; ok {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.machines[m.ID] = m
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx)
	return m, nil
}

// RemoveMaterial deletes the material locally right away; the remote mirror
// follows asynchronously.
func (s *Store) RemoveMaterial(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.materials[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("material %s: %w", id, shared.ErrNotFound)
	}
	delete(s.materials, id)
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx)
	return nil
}

// RemoveMachine deletes the machine locally right away; the remote mirror
// follows asynchronously.
func (s *Store) RemoveMachine(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.machines[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("machine %s: %w", id, shared.ErrNotFound)
	}
	delete(s.machines, id)
	s.persistLocked()
	s.mu.Unlock()

	s.mirrorSave(ctx)
	return nil
}

// SaveToDatabase mirrors the whole catalog to the remote store. Running
// without a session is an expected state, never an error.
func (s *Store) SaveToDatabase(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.mu.Lock()
	c := s.snapshotLocked()
	s.mu.Unlock()
	err := s.repo.SaveCatalog(ctx, c)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("catalog save skipped, no session")
		return nil
	}
	if err != nil {
		s.recordError(ctx, "saving catalog failed", err)
		return err
	}
	return nil
}

// LoadFromDatabase replaces local state with the remote copy.
func (s *Store) LoadFromDatabase(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	remote, err := s.repo.LoadCatalog(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.logger.Debug("catalog load skipped, no session")
		return nil
	}
	if err != nil {
		s.recordError(ctx, "loading catalog failed", err)
		return err
	}
	s.adopt(remote)
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

// Sync pulls the remote catalog and adopts it unless local state has
// diverged from both the last synced fingerprint and the remote copy.
func (s *Store) Sync(ctx context.Context) (conflict bool, err error) {
	if s.repo == nil {
		return false, nil
	}
	remote, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return false, err
	}
	sortCatalog(&remote)
	remoteFP := store.Fingerprint(remote)

	s.mu.Lock()
	localFP := store.Fingerprint(s.snapshotLocked())
	lastSynced := s.lastSynced
	localEmpty := len(s.materials) == 0 && len(s.machines) == 0
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
	// No baseline but local entries exist, typically added before the
	// first login. Adopting would destroy them, so surface the
	// divergence for an explicit choice.
	return true, nil
}

// AdoptRemote resolves a conflict in favor of the cloud copy.
func (s *Store) AdoptRemote(ctx context.Context) error {
	return s.LoadFromDatabase(ctx)
}

// PushLocal resolves a conflict in favor of the local copy.
func (s *Store) PushLocal(ctx context.Context) error {
	if err := s.SaveToDatabase(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	fp := store.Fingerprint(s.snapshotLocked())
	s.mu.Unlock()
	s.markSynced(fp)
	return nil
}

func (s *Store) adopt(remote Catalog) {
	sortCatalog(&remote)
	fp := store.Fingerprint(remote)
	s.mu.Lock()
	s.materials = make(map[uuid.UUID]Material, len(remote.Materials))
	for _, m := range remote.Materials {
		s.materials[m.ID] = m
	}
	s.machines = make(map[uuid.UUID]Machine, len(remote.Machines))
	for _, m := range remote.Machines {
		s.machines[m.ID] = m
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

func (s *Store) mirrorSave(ctx context.Context) {
	go func() {
		ctx, cancel := s.detachedContext(ctx)
		defer cancel()
		if err := s.SaveToDatabase(ctx); err != nil {
			s.logger.Warn("remote catalog save", slog.Any("error", err))
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

func sortCatalog(c *Catalog) {
	if c.Materials == nil {
		c.Materials = []Material{}
	}
	if c.Machines == nil {
		c.Machines = []Machine{}
	}
	sort.Slice(c.Materials, func(i, j int) bool { return c.Materials[i].ID.String() < c.Materials[j].ID.String() })
	sort.Slice(c.Machines, func(i, j int) bool { return c.Machines[i].ID.String() < c.Machines[j].ID.String() })
}
