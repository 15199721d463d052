package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/makercost/makercost/internal/quote"
	"github.com/makercost/makercost/internal/shared"
	"github.com/makercost/makercost/internal/store"
)

const defaultInterval = 30 * time.Second

// Drafts is the slice of the quote store the controller needs: a stable
// draft to write into, and the project-to-quote projection.
type Drafts interface {
	FindOrCreateDraft(ctx context.Context, projectName, clientName, currency string) (quote.Quote, error)
	UpdateFromProject(quoteID uuid.UUID, snap quote.ProjectSnapshot)
}

// Pusher queues a best-effort remote push for a saved draft. Failures are
// logged and swallowed; the local save already happened.
type Pusher interface {
	EnqueueQuotePush(ctx context.Context, quoteID uuid.UUID) error
}

// Config collects the controller's ports.
type Config struct {
	Drafts   Drafts
	Pusher   Pusher
	Logger   *slog.Logger
	Interval time.Duration
	// OnSave, when set, observes every completed save.
	OnSave func()
}

// Controller debounces project edits into draft saves. Identical content is
// saved at most once, empty projects are never saved, and an explicit
// SaveNow bypasses the debounce window.
type Controller struct {
	drafts   Drafts
	pusher   Pusher
	logger   *slog.Logger
	interval time.Duration
	onSave   func()

	mu        sync.Mutex
	timer     *time.Timer
	pending   *quote.ProjectSnapshot
	identity  shared.Identity
	lastSaved string
	saves     int
}

func New(cfg Config) *Controller {
	c := &Controller{
		drafts:   cfg.Drafts,
		pusher:   cfg.Pusher,
		logger:   cfg.Logger,
		interval: cfg.Interval,
		onSave:   cfg.OnSave,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.interval <= 0 {
		c.interval = defaultInterval
	}
	return c
}

// Observe records the current project state and arms the debounce timer.
// Content identical to the last saved state is suppressed outright; changed
// content restarts the window so a burst of edits collapses into one save.
func (c *Controller) Observe(ctx context.Context, snap quote.ProjectSnapshot) {
	if !snap.HasMinimalContent() {
		return
	}
	fp := store.Fingerprint(snap)

	c.mu.Lock()
	defer c.mu.Unlock()
	if fp == c.lastSaved && c.pending == nil {
		return
	}
	if c.pending != nil && store.Fingerprint(*c.pending) == fp {
		// Same content already scheduled, let the running window finish.
		return
	}
	c.pending = &snap
	if id, ok := shared.IdentityFromContext(ctx); ok {
		c.identity = id
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.interval, c.flushTimer)
}

// SaveNow cancels any pending debounce window and saves the last observed
// state immediately. Explicit saves still skip empty or unchanged content.
func (c *Controller) SaveNow(ctx context.Context) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	snap := c.pending
	c.pending = nil
	if id, ok := shared.IdentityFromContext(ctx); ok {
		c.identity = id
	}
	identity := c.identity
	c.mu.Unlock()

	if snap == nil {
		return
	}
	c.save(identity, *snap)
}

// SaveCount reports how many saves the controller has performed.
func (c *Controller) SaveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

// Pending reports whether a debounce window is currently armed.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Controller) flushTimer() {
	c.mu.Lock()
	snap := c.pending
	c.pending = nil
	c.timer = nil
	identity := c.identity
	c.mu.Unlock()

	if snap == nil {
		return
	}
	c.save(identity, *snap)
}

func (c *Controller) save(identity shared.Identity, snap quote.ProjectSnapshot) {
	fp := store.Fingerprint(snap)
	c.mu.Lock()
	if fp == c.lastSaved {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx := shared.ContextWithIdentity(context.Background(), identity)
	q, err := c.drafts.FindOrCreateDraft(ctx, snap.ProjectName, snap.ClientName, snap.Currency)
	if err != nil {
		c.logger.Warn("autosave draft lookup", slog.Any("error", err))
		return
	}
	c.drafts.UpdateFromProject(q.ID, snap)

	c.mu.Lock()
	c.lastSaved = fp
	c.saves++
	c.mu.Unlock()

	if c.onSave != nil {
		c.onSave()
	}

	if c.pusher != nil {
		if err := c.pusher.EnqueueQuotePush(ctx, q.ID); err != nil {
			c.logger.Warn("autosave remote push enqueue", slog.String("quote", q.ID.String()), slog.Any("error", err))
		}
	}
}
