package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/makercost/makercost/internal/catalog"
	"github.com/makercost/makercost/internal/quote"
	"github.com/makercost/makercost/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeQuotePush pushes one locally saved quote to the remote store.
	TaskTypeQuotePush = "quote:push"
	// TaskTypeCatalogRefresh re-pulls the catalog from the remote store.
	TaskTypeCatalogRefresh = "catalog:refresh"
	// TaskTypeCatalogRefreshAll fans the scheduled refresh out into one
	// TaskTypeCatalogRefresh per user with a remote catalog.
	TaskTypeCatalogRefreshAll = "catalog:refresh_all"
)

// QuotePushPayload identifies the quote to push and the user owning it. The
// user id travels in the payload because the worker has no request context.
type QuotePushPayload struct {
	UserID  uuid.UUID `json:"user_id"`
	QuoteID uuid.UUID `json:"quote_id"`
}

// NewQuotePushTask constructs an Asynq task.
func NewQuotePushTask(payload QuotePushPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeQuotePush, data), nil
}

// CatalogRefreshPayload identifies the user whose catalog to refresh.
type CatalogRefreshPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// NewCatalogRefreshTask constructs an Asynq task.
func NewCatalogRefreshTask(payload CatalogRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCatalogRefresh, data), nil
}

// NewQuotePushHandler processes TaskTypeQuotePush tasks against the quote
// store. A quote deleted since enqueueing is not an error.
func NewQuotePushHandler(logger *slog.Logger, store *quote.Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload QuotePushPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		q, ok := store.GetByID(payload.QuoteID)
		if !ok {
			// The quote may have been created after this process restored
			// its snapshot.
			store.Reload()
			q, ok = store.GetByID(payload.QuoteID)
		}
		if !ok {
			logger.Debug("quote push skipped, quote gone", slog.String("quote", payload.QuoteID.String()))
			return nil
		}
		ctx = shared.ContextWithIdentity(ctx, shared.Identity{UserID: payload.UserID})
		if err := store.SaveToDatabase(ctx, q); err != nil {
			return fmt.Errorf("push quote %s: %w", payload.QuoteID, err)
		}
		return nil
	}
}

// NewCatalogRefreshAllTask constructs the scheduled fan-out task. It has no
// payload; the handler enumerates users at run time.
func NewCatalogRefreshAllTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCatalogRefreshAll, nil)
}

// NewCatalogRefreshAllHandler expands a scheduled refresh into per-user
// refresh tasks. Catalog sync is identity-scoped, so the cron tick itself
// cannot sync anything directly.
func NewCatalogRefreshAllHandler(logger *slog.Logger, lister catalog.UserLister, client *Client) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		users, err := lister.Users(ctx)
		if err != nil {
			return fmt.Errorf("list catalog users: %w", err)
		}
		for _, userID := range users {
			if err := client.EnqueueCatalogRefresh(ctx, userID); err != nil {
				logger.Warn("enqueue catalog refresh",
					slog.String("user", userID.String()), slog.Any("error", err))
			}
		}
		return nil
	}
}

// NewCatalogRefreshHandler processes TaskTypeCatalogRefresh tasks.
func NewCatalogRefreshHandler(logger *slog.Logger, store *catalog.Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CatalogRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		ctx = shared.ContextWithIdentity(ctx, shared.Identity{UserID: payload.UserID})
		conflict, err := store.Sync(ctx)
		if err != nil {
			return fmt.Errorf("refresh catalog: %w", err)
		}
		if conflict {
			// Divergence needs an interactive choice, never resolved here.
			logger.Info("catalog refresh found divergence, leaving for interactive sync")
		}
		return nil
	}
}
