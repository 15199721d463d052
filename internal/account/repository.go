package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makercost/makercost/internal/shared"
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL-backed remote adapter. One jsonb
// document per user.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) SaveAccount(ctx context.Context, a Account) error {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("account: encode document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO accounts (user_id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = now()
	`, userID, doc)
	if err != nil {
		return fmt.Errorf("account: save: %w", err)
	}
	return nil
}

func (r *pgRepository) LoadAccount(ctx context.Context) (Account, error) {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return Account{}, err
	}
	var doc []byte
	err = r.pool.QueryRow(ctx, `SELECT doc FROM accounts WHERE user_id = $1`, userID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{Subscription: Subscription{Tier: TierFree}}, nil
	}
	if err != nil {
		return Account{}, fmt.Errorf("account: load: %w", err)
	}
	var a Account
	if err := json.Unmarshal(doc, &a); err != nil {
		return Account{}, fmt.Errorf("account: decode document: %w", err)
	}
	return a, nil
}
