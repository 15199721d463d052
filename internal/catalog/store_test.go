package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercost/makercost/internal/money"
	"github.com/makercost/makercost/internal/shared"
	"github.com/makercost/makercost/internal/store"
)

type mockRepository struct {
	mu      sync.Mutex
	catalog Catalog
	saves   int

	saveErr error
	authErr bool

	// saveDone, when set, receives one signal per completed save so tests
	// can wait out the asynchronous mirror.
	saveDone chan struct{}
}

func (m *mockRepository) SaveCatalog(ctx context.Context, c Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr {
		return shared.ErrNotAuthenticated
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.catalog = c
	if m.saveDone != nil {
		m.saveDone <- struct{}{}
	}
	return nil
}

func (m *mockRepository) LoadCatalog(ctx context.Context) (Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr {
		return Catalog{}, shared.ErrNotAuthenticated
	}
	return m.catalog, nil
}

func (m *mockRepository) setCatalog(c Catalog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = c
}

func newTestStore(t *testing.T) (*Store, *mockRepository) {
	t.Helper()
	repo := &mockRepository{}
	return NewStore(StoreConfig{
		Snapshots: store.NewMemorySnapshots(),
		Repo:      repo,
	}), repo
}

func TestUpsertMaterialLocalFirst(t *testing.T) {
	s, repo := newTestStore(t)
	repo.saveErr = errors.New("network down")

	m, err := s.UpsertMaterial(context.Background(), Material{
		Name:        "Plywood 18mm",
		Unit:        money.UnitSheets,
		CostPerUnit: 42,
	})
	require.NoError(t, err, "remote failure must not block the local write")

	got, ok := s.MaterialByID(m.ID)
	require.True(t, ok)
	assert.Equal(t, "Plywood 18mm", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertMaterialValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMaterial(ctx, Material{Name: "", Unit: money.UnitPieces})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = s.UpsertMaterial(ctx, Material{Name: "Felt", Unit: money.Unit("bucket")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = s.UpsertMaterial(ctx, Material{Name: "Felt", Unit: money.UnitMeters, WastePercent: 130})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpsertMaterialPreservesCreatedAt(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m, err := s.UpsertMaterial(ctx, Material{Name: "Cork", Unit: money.UnitPieces, CostPerUnit: 1})
	require.NoError(t, err)

	m.CostPerUnit = 2
	updated, err := s.UpsertMaterial(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, m.CreatedAt, updated.CreatedAt)
	assert.InDelta(t, 2.0, updated.CostPerUnit, 1e-9)
	assert.Len(t, s.Materials(), 1)
}

func TestUpsertMachineRequiresHoursForAmortization(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMachine(ctx, Machine{Name: "Laser", PurchasePrice: 5000})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = s.UpsertMachine(ctx, Machine{Name: "Laser", PurchasePrice: 5000, DepreciationPercent: 20, HoursPerYear: 1000})
	require.NoError(t, err)
}

func TestRemoveMaterial(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m, err := s.UpsertMaterial(ctx, Material{Name: "Cork", Unit: money.UnitPieces})
	require.NoError(t, err)

	require.NoError(t, s.RemoveMaterial(ctx, m.ID))
	_, ok := s.MaterialByID(m.ID)
	assert.False(t, ok)

	require.ErrorIs(t, s.RemoveMaterial(ctx, uuid.New()), shared.ErrNotFound)
}

func TestSnapshotRestore(t *testing.T) {
	snaps := store.NewMemorySnapshots()
	repo := &mockRepository{}
	s := NewStore(StoreConfig{Snapshots: snaps, Repo: repo})

	m, err := s.UpsertMaterial(context.Background(), Material{Name: "Cork", Unit: money.UnitPieces})
	require.NoError(t, err)
	mach, err := s.UpsertMachine(context.Background(), Machine{Name: "CNC", HoursPerYear: 800, PurchasePrice: 9000, DepreciationPercent: 25})
	require.NoError(t, err)

	restored := NewStore(StoreConfig{Snapshots: snaps, Repo: repo})
	_, ok := restored.MaterialByID(m.ID)
	assert.True(t, ok)
	_, ok = restored.MachineByID(mach.ID)
	assert.True(t, ok)
}

func TestSyncAdoptsRemoteWhenLocalUnchanged(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	remote := Material{ID: uuid.New(), Name: "Acrylic 3mm", Unit: money.UnitSheets, CostPerUnit: 12}
	repo.setCatalog(Catalog{Materials: []Material{remote}})

	conflict, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, ok := s.MaterialByID(remote.ID)
	assert.True(t, ok)
}

func TestSyncDetectsConflictAndResolves(t *testing.T) {
	s, repo := newTestStore(t)
	repo.saveDone = make(chan struct{}, 8)
	ctx := context.Background()

	conflict, err := s.Sync(ctx)
	require.NoError(t, err)
	require.False(t, conflict)

	_, err = s.UpsertMaterial(ctx, Material{Name: "Local felt", Unit: money.UnitMeters})
	require.NoError(t, err)
	<-repo.saveDone // let the asynchronous mirror land first
	repo.setCatalog(Catalog{Materials: []Material{{ID: uuid.New(), Name: "Remote felt", Unit: money.UnitMeters}}})

	conflict, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, conflict)

	// Keeping the local copy pushes it and clears the divergence.
	require.NoError(t, s.PushLocal(ctx))
	conflict, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestFirstSyncKeepsOfflineCatalog(t *testing.T) {
	s, repo := newTestStore(t)
	repo.saveErr = errors.New("network down")
	ctx := context.Background()

	// Entries added before the first login, remote account still empty.
	m, err := s.UpsertMaterial(ctx, Material{Name: "Offline oak", Unit: money.UnitSheets, CostPerUnit: 30})
	require.NoError(t, err)

	conflict, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, conflict, "a baseline-less pass must not adopt over local entries")

	_, ok := s.MaterialByID(m.ID)
	require.True(t, ok, "offline entries survive the first sync pass")

	// Keeping the local copy pushes it and settles the next pass.
	repo.mu.Lock()
	repo.saveErr = nil
	repo.mu.Unlock()
	require.NoError(t, s.PushLocal(ctx))
	conflict, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestRemoteOpsWithoutSessionAreNoOps(t *testing.T) {
	s, repo := newTestStore(t)
	repo.authErr = true
	ctx := context.Background()

	require.NoError(t, s.SaveToDatabase(ctx))
	require.NoError(t, s.LoadFromDatabase(ctx))
	assert.Empty(t, s.LastError())
}
