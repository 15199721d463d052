package quote

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercost/makercost/internal/money"
	"github.com/makercost/makercost/internal/pricing"
	"github.com/makercost/makercost/internal/shared"
	"github.com/makercost/makercost/internal/store"
)

type mockRepository struct {
	mu      sync.Mutex
	quotes  map[uuid.UUID]Quote
	saves   int
	deletes int
	loads   int

	saveErr error
	loadErr error
	authErr bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{quotes: make(map[uuid.UUID]Quote)}
}

func (m *mockRepository) SaveQuote(ctx context.Context, q Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr {
		return shared.ErrNotAuthenticated
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.quotes[q.ID] = q
	return nil
}

func (m *mockRepository) LoadQuotes(ctx context.Context) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr {
		return nil, shared.ErrNotAuthenticated
	}
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.loads++
	out := make([]Quote, 0, len(m.quotes))
	for _, q := range m.quotes {
		out = append(out, q)
	}
	return out, nil
}

func (m *mockRepository) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr {
		return shared.ErrNotAuthenticated
	}
	m.deletes++
	delete(m.quotes, id)
	return nil
}

func (m *mockRepository) ReplaceQuotes(ctx context.Context, quotes []Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr {
		return shared.ErrNotAuthenticated
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.quotes = make(map[uuid.UUID]Quote, len(quotes))
	for _, q := range quotes {
		m.quotes[q.ID] = q
	}
	return nil
}

func newTestStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	return NewStore(StoreConfig{
		Snapshots: store.NewMemorySnapshots(),
		Repo:      repo,
	})
}

func TestCreateAppliesLocallyEvenWhenRemoteFails(t *testing.T) {
	repo := newMockRepository()
	repo.saveErr = errors.New("network down")
	s := newTestStore(t, repo)

	q, err := s.Create(context.Background(), "Cutting boards", "Acme", "USD")
	require.NoError(t, err)

	got, ok := s.GetByID(q.ID)
	require.True(t, ok, "local state must hold the quote regardless of remote outcome")
	assert.Equal(t, StatusDraft, got.Status)
	assert.NotEmpty(t, got.Number)
}

func TestCreateRejectsUnknownCurrency(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	_, err := s.Create(context.Background(), "p", "c", "XXZ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFindOrCreateDraftDedup(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	ctx := context.Background()

	first, err := s.FindOrCreateDraft(ctx, "Lamp", "Acme", "USD")
	require.NoError(t, err)
	second, err := s.FindOrCreateDraft(ctx, "Lamp", "Acme", "USD")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeated calls must reuse the draft")
	assert.Len(t, s.List(), 1)
}

func TestFindOrCreateDraftCurrencyScoped(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	ctx := context.Background()

	usd, err := s.FindOrCreateDraft(ctx, "Lamp", "Acme", "USD")
	require.NoError(t, err)
	eur, err := s.FindOrCreateDraft(ctx, "Lamp", "Acme", "EUR")
	require.NoError(t, err)

	assert.NotEqual(t, usd.ID, eur.ID)
}

func TestUpdateRecomputesTotal(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	ctx := context.Background()

	q, err := s.Create(ctx, "Boards", "Acme", "USD")
	require.NoError(t, err)

	q.Products = []Product{productWithRevenue(100), productWithRevenue(100)}
	q.Discount = &Discount{Type: DiscountPercentage, Amount: 10}
	q.Shipping = &Shipping{Charge: 15}

	updated, err := s.Update(ctx, q)
	require.NoError(t, err)
	assert.InDelta(t, 195.0, updated.TotalAmount, 1e-9)
	assert.False(t, updated.TotalClamped)
}

func TestUpdateRejectsInvalidProduct(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	ctx := context.Background()

	q, err := s.Create(ctx, "Boards", "Acme", "USD")
	require.NoError(t, err)

	p := productWithRevenue(100)
	p.VAT.Rate = 150
	q.Products = []Product{p}

	_, err = s.Update(ctx, q)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateMissingQuote(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	_, err := s.Update(context.Background(), Quote{ID: uuid.New()})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStatusTransitionsFree(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	ctx := context.Background()

	q, err := s.Create(ctx, "Boards", "Acme", "USD")
	require.NoError(t, err)

	for _, status := range []Status{StatusSaved, StatusCompleted, StatusDraft} {
		q, err = s.SetStatus(ctx, q.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, q.Status)
	}

	_, err = s.SetStatus(ctx, q.ID, Status("archived"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRemoveIsLocalFirst(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	ctx := context.Background()

	q, err := s.Create(ctx, "Boards", "Acme", "USD")
	require.NoError(t, err)

	s.Remove(ctx, q.ID)
	_, ok := s.GetByID(q.ID)
	assert.False(t, ok, "local delete must be immediate")
}

func TestUpdateFromProjectReplacesCurrentProduct(t *testing.T) {
	s := newTestStore(t, newMockRepository())
	ctx := context.Background()

	q, err := s.Create(ctx, "", "", "USD")
	require.NoError(t, err)

	snap := ProjectSnapshot{
		ProjectName: "Coasters",
		ClientName:  "Acme",
		Product: pricing.ProductInput{
			Materials: []pricing.Material{{Name: "Cork", Unit: money.UnitPieces, QuantityUsed: 4, CostPerUnit: 1}},
			SalePrice: pricing.SalePrice{Amount: 40, UnitsCount: 1, IsPerUnit: true},
		},
	}
	s.UpdateFromProject(q.ID, snap)

	got, ok := s.GetByID(q.ID)
	require.True(t, ok)
	assert.Equal(t, "Coasters", got.ProjectName)
	require.Len(t, got.Products, 1)
	assert.InDelta(t, 40.0, got.TotalAmount, 1e-9)

	// A concurrently deleted quote is logged, not failed.
	s.UpdateFromProject(uuid.New(), snap)
}

func TestSaveToDatabaseNotAuthenticatedIsRecoverable(t *testing.T) {
	repo := newMockRepository()
	repo.authErr = true
	s := newTestStore(t, repo)

	q, err := s.Create(context.Background(), "Boards", "Acme", "USD")
	require.NoError(t, err)

	require.NoError(t, s.SaveToDatabase(context.Background(), q))
	require.NoError(t, s.LoadFromDatabase(context.Background()))
	require.NoError(t, s.DeleteFromDatabase(context.Background(), q.ID))
}

func TestSnapshotRestore(t *testing.T) {
	snaps := store.NewMemorySnapshots()
	repo := newMockRepository()
	s := NewStore(StoreConfig{Snapshots: snaps, Repo: repo})

	q, err := s.Create(context.Background(), "Boards", "Acme", "USD")
	require.NoError(t, err)

	// A fresh store over the same snapshot port restores synchronously.
	restored := NewStore(StoreConfig{Snapshots: snaps, Repo: repo})
	got, ok := restored.GetByID(q.ID)
	require.True(t, ok)
	assert.Equal(t, q.Number, got.Number)
}

func TestSyncAdoptsRemoteWhenLocalUnchanged(t *testing.T) {
	repo := newMockRepository()
	s := newTestStore(t, repo)
	ctx := context.Background()

	remote := Quote{ID: uuid.New(), Number: "Q-2608-AAAAAA", Currency: "USD", Status: StatusSaved}
	repo.quotes[remote.ID] = remote

	conflict, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, ok := s.GetByID(remote.ID)
	assert.True(t, ok)
}

func TestSyncDetectsConflict(t *testing.T) {
	repo := newMockRepository()
	s := newTestStore(t, repo)
	ctx := context.Background()

	// Establish a synced baseline.
	conflict, err := s.Sync(ctx)
	require.NoError(t, err)
	require.False(t, conflict)

	// Local and remote now diverge independently.
	_, err = s.Create(ctx, "Local edit", "Acme", "USD")
	require.NoError(t, err)
	remote := Quote{ID: uuid.New(), Number: "Q-2608-BBBBBB", Currency: "USD"}
	repo.mu.Lock()
	repo.quotes[remote.ID] = remote
	repo.mu.Unlock()

	conflict, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, conflict, "divergent structural snapshots must surface a conflict")

	// Resolving for the cloud adopts the remote copy.
	require.NoError(t, s.AdoptRemote(ctx))
	_, ok := s.GetByID(remote.ID)
	assert.True(t, ok)
}

func TestFirstSyncKeepsOfflineDrafts(t *testing.T) {
	repo := newMockRepository()
	repo.saveErr = errors.New("network down")
	s := newTestStore(t, repo)
	ctx := context.Background()

	// Work created before the first login, remote account still empty.
	q, err := s.Create(ctx, "Offline work", "Acme", "USD")
	require.NoError(t, err)

	conflict, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, conflict, "a baseline-less pass must not adopt over local work")

	got, ok := s.GetByID(q.ID)
	require.True(t, ok, "offline drafts survive the first sync pass")
	assert.Equal(t, q.Number, got.Number)
	assert.NotEmpty(t, s.List())

	// Keeping the local copy pushes it and settles the next pass.
	repo.mu.Lock()
	repo.saveErr = nil
	repo.mu.Unlock()
	require.NoError(t, s.PushLocal(ctx))
	conflict, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, conflict)
}

type fixedIDs struct{ id uuid.UUID }

func (f fixedIDs) NewID() uuid.UUID { return f.id }

func TestUpdateAssignsProductIDsFromGenerator(t *testing.T) {
	ids := fixedIDs{id: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")}
	s := NewStore(StoreConfig{
		Snapshots: store.NewMemorySnapshots(),
		Repo:      newMockRepository(),
		IDs:       ids,
	})
	ctx := context.Background()

	q, err := s.Create(ctx, "Boards", "Acme", "USD")
	require.NoError(t, err)

	q.Products = []Product{{ProductInput: pricing.ProductInput{
		SalePrice: pricing.SalePrice{Amount: 50, UnitsCount: 1, IsPerUnit: true},
	}}}
	updated, err := s.Update(ctx, q)
	require.NoError(t, err)
	require.Len(t, updated.Products, 1)
	assert.Equal(t, ids.id, updated.Products[0].ID, "product ids come from the injected generator")
}

func TestPushLocalReplacesRemoteSet(t *testing.T) {
	repo := newMockRepository()
	s := newTestStore(t, repo)
	ctx := context.Background()

	// A quote that exists only remotely is dropped when local wins.
	stale := Quote{ID: uuid.New(), Number: "Q-2607-STALE0", Currency: "USD"}
	repo.mu.Lock()
	repo.quotes[stale.ID] = stale
	repo.mu.Unlock()

	one, err := s.Create(ctx, "One", "Acme", "USD")
	require.NoError(t, err)
	two, err := s.Create(ctx, "Two", "Acme", "USD")
	require.NoError(t, err)

	require.NoError(t, s.PushLocal(ctx))

	repo.mu.Lock()
	_, hasStale := repo.quotes[stale.ID]
	_, hasOne := repo.quotes[one.ID]
	_, hasTwo := repo.quotes[two.ID]
	repo.mu.Unlock()
	assert.False(t, hasStale)
	assert.True(t, hasOne)
	assert.True(t, hasTwo)
}

type denyGate struct{ limit int }

func (g denyGate) AllowQuoteCreate(current int) error {
	if current >= g.limit {
		return errors.New("quote limit reached for free tier")
	}
	return nil
}

func TestCreateGate(t *testing.T) {
	s := NewStore(StoreConfig{
		Snapshots: store.NewMemorySnapshots(),
		Repo:      newMockRepository(),
		Gate:      denyGate{limit: 1},
	})
	ctx := context.Background()

	_, err := s.Create(ctx, "One", "Acme", "USD")
	require.NoError(t, err)
	_, err = s.Create(ctx, "Two", "Acme", "USD")
	require.Error(t, err)
}
