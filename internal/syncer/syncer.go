package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/makercost/makercost/internal/shared"
)

// State is the orchestrator's reported sync state.
type State string

const (
	StateIdle     State = "idle"
	StateSyncing  State = "syncing"
	StateSynced   State = "synced"
	StateError    State = "error"
	StateConflict State = "conflict"
)

const (
	defaultSettleDelay = 2 * time.Second
	defaultPassTimeout = 30 * time.Second
)

// Source is a local-first store the orchestrator can reconcile with its
// remote copy.
type Source interface {
	Name() string
	// Sync pulls the remote copy and reports whether local and remote
	// diverged in a way that needs explicit resolution.
	Sync(ctx context.Context) (conflict bool, err error)
	// AdoptRemote resolves a conflict in favor of the cloud copy.
	AdoptRemote(ctx context.Context) error
	// PushLocal resolves a conflict in favor of the local copy.
	PushLocal(ctx context.Context) error
}

// Config collects the orchestrator's ports.
type Config struct {
	Sources     []Source
	Logger      *slog.Logger
	Notifier    shared.Notifier
	Clock       shared.Clock
	SettleDelay time.Duration
	PassTimeout time.Duration
	// OnPass, when set, observes the outcome state of every finished pass.
	OnPass func(State)
}

// Status is a snapshot of the orchestrator state for the API.
type Status struct {
	State        State     `json:"state"`
	Conflicts    []string  `json:"conflicts,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at,omitzero"`
}

// Orchestrator coordinates sync passes across all registered stores. Only
// one pass runs at a time; a trigger arriving while a pass is in flight is
// dropped rather than queued, unless forced.
type Orchestrator struct {
	sources  []Source
	logger   *slog.Logger
	notifier shared.Notifier
	clock    shared.Clock
	settle   time.Duration
	timeout  time.Duration

	onPass func(State)

	runMu sync.Mutex // held for the duration of a pass

	mu           sync.Mutex
	state        State
	conflicts    map[string]bool
	lastError    string
	lastSyncedAt time.Time
	settleTimer  *time.Timer
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		sources:   cfg.Sources,
		logger:    cfg.Logger,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
		settle:    cfg.SettleDelay,
		timeout:   cfg.PassTimeout,
		onPass:    cfg.OnPass,
		state:     StateIdle,
		conflicts: make(map[string]bool),
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = shared.SystemClock{}
	}
	if o.settle <= 0 {
		o.settle = defaultSettleDelay
	}
	if o.timeout <= 0 {
		o.timeout = defaultPassTimeout
	}
	return o
}

// Status returns the current sync state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		State:        o.state,
		LastError:    o.lastError,
		LastSyncedAt: o.lastSyncedAt,
	}
	for name := range o.conflicts {
		st.Conflicts = append(st.Conflicts, name)
	}
	sort.Strings(st.Conflicts)
	return st
}

// OnLogin schedules the first sync pass after a settle delay, letting the
// session and any queued local writes land before reconciling. A login
// arriving while a delay is pending restarts it.
func (o *Orchestrator) OnLogin(ctx context.Context) {
	identity, _ := shared.IdentityFromContext(ctx)
	o.mu.Lock()
	if o.settleTimer != nil {
		o.settleTimer.Stop()
	}
	o.settleTimer = time.AfterFunc(o.settle, func() {
		detached := shared.ContextWithIdentity(context.Background(), identity)
		o.TriggerSync(detached, false)
	})
	o.mu.Unlock()
}

// OnLogout cancels any pending settle timer and resets the state to idle.
// Local stores keep their data; only the reconciliation state is dropped.
func (o *Orchestrator) OnLogout() {
	o.mu.Lock()
	if o.settleTimer != nil {
		o.settleTimer.Stop()
		o.settleTimer = nil
	}
	o.state = StateIdle
	o.conflicts = make(map[string]bool)
	o.lastError = ""
	o.mu.Unlock()
}

// TriggerSync runs one pass over all sources. When a pass is already in
// flight the trigger is dropped and the in-flight status is returned,
// unless force is set, in which case the call waits its turn.
func (o *Orchestrator) TriggerSync(ctx context.Context, force bool) Status {
	if force {
		o.runMu.Lock()
	} else if !o.runMu.TryLock() {
		o.logger.Debug("sync trigger dropped, pass in flight")
		return o.Status()
	}
	defer o.runMu.Unlock()

	o.runPass(ctx)
	return o.Status()
}

func (o *Orchestrator) runPass(ctx context.Context) {
	o.setState(StateSyncing)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var (
		mu        sync.Mutex
		conflicts []string
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range o.sources {
		g.Go(func() error {
			conflict, err := src.Sync(ctx)
			if err != nil {
				return fmt.Errorf("sync %s: %w", src.Name(), err)
			}
			if conflict {
				mu.Lock()
				conflicts = append(conflicts, src.Name())
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()

	o.mu.Lock()
	o.conflicts = make(map[string]bool)
	for _, name := range conflicts {
		o.conflicts[name] = true
	}
	switch {
	case err != nil:
		o.state = StateError
		o.lastError = err.Error()
	case len(conflicts) > 0:
		o.state = StateConflict
		o.lastError = ""
	default:
		o.state = StateSynced
		o.lastError = ""
		o.lastSyncedAt = o.clock.Now()
	}
	state := o.state
	o.mu.Unlock()

	if o.onPass != nil {
		o.onPass(state)
	}

	switch state {
	case StateError:
		o.logger.Warn("sync pass failed", slog.String("error", err.Error()))
		o.notify(ctx, shared.SeverityWarning, "cloud sync failed, will retry")
	case StateConflict:
		o.logger.Info("sync pass found conflicts", slog.Any("stores", conflicts))
		o.notify(ctx, shared.SeverityWarning, "cloud copy differs from this device, choose which to keep")
	default:
		o.logger.Debug("sync pass complete")
	}
}

// Resolution selects which side wins a conflict.
type Resolution string

const (
	ResolutionLocal Resolution = "local"
	ResolutionCloud Resolution = "cloud"
)

// ResolveConflict applies the chosen resolution to one conflicted store and
// clears its conflict mark. When the last conflict is cleared the state
// moves to synced.
func (o *Orchestrator) ResolveConflict(ctx context.Context, store string, choice Resolution) error {
	o.mu.Lock()
	if !o.conflicts[store] {
		o.mu.Unlock()
		return fmt.Errorf("store %q: %w", store, shared.ErrNotFound)
	}
	o.mu.Unlock()

	src := o.source(store)
	if src == nil {
		return fmt.Errorf("store %q: %w", store, shared.ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var err error
	switch choice {
	case ResolutionLocal:
		err = src.PushLocal(ctx)
	case ResolutionCloud:
		err = src.AdoptRemote(ctx)
	default:
		return fmt.Errorf("%w: unknown resolution %q", shared.ErrValidation, choice)
	}
	if err != nil {
		return fmt.Errorf("resolve %s: %w", store, err)
	}

	o.mu.Lock()
	delete(o.conflicts, store)
	if len(o.conflicts) == 0 && o.state == StateConflict {
		o.state = StateSynced
		o.lastSyncedAt = o.clock.Now()
	}
	o.mu.Unlock()

	o.notify(ctx, shared.SeveritySuccess, fmt.Sprintf("%s conflict resolved, kept %s copy", store, choice))
	return nil
}

func (o *Orchestrator) source(name string) Source {
	for _, src := range o.sources {
		if src.Name() == name {
			return src
		}
	}
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) notify(ctx context.Context, severity shared.Severity, msg string) {
	if o.notifier != nil {
		o.notifier.Notify(ctx, severity, msg)
	}
}
