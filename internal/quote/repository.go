package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makercost/makercost/internal/platform/db"
	"github.com/makercost/makercost/internal/shared"
)

// ErrDuplicateNumber indicates a quote number collision for this user.
var ErrDuplicateNumber = errors.New("quote number already exists")

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL-backed remote adapter. Every
// operation is scoped to the authenticated user carried in the context.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) SaveQuote(ctx context.Context, q Quote) error {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("quote: encode document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quotes (id, user_id, number, status, currency, total_amount, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    currency = EXCLUDED.currency,
		    total_amount = EXCLUDED.total_amount,
		    doc = EXCLUDED.doc,
		    updated_at = EXCLUDED.updated_at
		WHERE quotes.user_id = EXCLUDED.user_id
	`, q.ID, userID, q.Number, q.Status, q.Currency, q.TotalAmount, doc, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, q.Number)
		}
		return fmt.Errorf("quote: save %s: %w", q.ID, err)
	}
	return nil
}

func (r *pgRepository) LoadQuotes(ctx context.Context) ([]Quote, error) {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT doc FROM quotes WHERE user_id = $1 ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("quote: load: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("quote: scan: %w", err)
		}
		var q Quote
		if err := json.Unmarshal(doc, &q); err != nil {
			return nil, fmt.Errorf("quote: decode document: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (r *pgRepository) ReplaceQuotes(ctx context.Context, quotes []Quote) error {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return err
	}
	docs := make([][]byte, len(quotes))
	for i, q := range quotes {
		doc, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("quote: encode document: %w", err)
		}
		docs[i] = doc
	}
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quotes WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("quote: clear remote set: %w", err)
		}
		for i, q := range quotes {
			_, err := tx.Exec(ctx, `
				INSERT INTO quotes (id, user_id, number, status, currency, total_amount, doc, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, q.ID, userID, q.Number, q.Status, q.Currency, q.TotalAmount, docs[i], q.CreatedAt, q.UpdatedAt)
			if err != nil {
				return fmt.Errorf("quote: replace %s: %w", q.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("quote: replace set: %w", err)
	}
	return nil
}

func (r *pgRepository) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	userID, err := shared.UserFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM quotes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("quote: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
