package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makercost/makercost/internal/shared"
)

// UserLister enumerates users holding a remote catalog. The scheduled
// refresh fan-out uses it because a cron tick carries no identity.
type UserLister interface {
	Users(ctx context.Context) ([]uuid.UUID, error)
}

// NewUserLister builds the cross-user listing adapter over the same table.
func NewUserLister(pool *pgxpool.Pool) UserLister {
	return &pgRepository{pool: pool}
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL-backed remote adapter. The catalog is
// stored as one jsonb document per user.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) SaveCatalog(ctx context.Context, c Catalog) error {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("catalog: encode document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO catalogs (user_id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = now()
	`, userID, doc)
	if err != nil {
		return fmt.Errorf("catalog: save: %w", err)
	}
	return nil
}

func (r *pgRepository) LoadCatalog(ctx context.Context) (Catalog, error) {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return Catalog{}, err
	}
	var doc []byte
	err = r.pool.QueryRow(ctx, `SELECT doc FROM catalogs WHERE user_id = $1`, userID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		// A user with no remote catalog yet syncs against an empty one.
		return Catalog{Materials: []Material{}, Machines: []Machine{}}, nil
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: load: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(doc, &c); err != nil {
		return Catalog{}, fmt.Errorf("catalog: decode document: %w", err)
	}
	return c, nil
}

func (r *pgRepository) Users(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM catalogs ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list users: %w", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("catalog: scan user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
