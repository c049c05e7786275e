package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// CounterRepository hands out per-issuer sequences.
type CounterRepository interface {
	Next(ctx context.Context, issuerID string) (int64, error)
}

type counterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository instantiates the repository.
func NewCounterRepository(pool *pgxpool.Pool) CounterRepository {
	return &counterRepository{pool: pool}
}

// Next performs the increment-with-default as one server-side statement.
// Counters are created lazily on first allocation and never deleted; a
// separate read-then-write here would reintroduce the duplicate-number race.
func (r *counterRepository) Next(ctx context.Context, issuerID string) (int64, error) {
	const query = `
        INSERT INTO issuer_counters (issuer_id, last_sequence)
        VALUES ($1, 1)
        ON CONFLICT (issuer_id)
        DO UPDATE SET last_sequence = issuer_counters.last_sequence + 1
        RETURNING last_sequence`
	var seq int64
	if err := r.pool.QueryRow(ctx, query, issuerID).Scan(&seq); err != nil {
		return 0, classifyStorageError(err)
	}
	return seq, nil
}

// classifyStorageError separates connectivity failures (retryable) from
// server-reported errors.
func classifyStorageError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return apperrors.NewStorageUnavailable(err)
}
