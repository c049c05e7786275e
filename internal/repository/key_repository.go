package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
)

// KeyRepository persists public key records. Records are append-only once an
// identity references them; Delete exists solely to discard a record staged
// for a transition that never committed.
type KeyRepository interface {
	Create(ctx context.Context, record *domain.PublicKeyRecord) error
	GetByID(ctx context.Context, keyID string) (*domain.PublicKeyRecord, error)
	ListByIdentity(ctx context.Context, identityID string) ([]domain.PublicKeyRecord, error)
	Delete(ctx context.Context, keyID string) error
}

type keyRepository struct {
	pool *pgxpool.Pool
}

// NewKeyRepository instantiates the repository.
func NewKeyRepository(pool *pgxpool.Pool) KeyRepository {
	return &keyRepository{pool: pool}
}

func (r *keyRepository) Create(ctx context.Context, record *domain.PublicKeyRecord) error {
	const query = `
        INSERT INTO public_keys (id, identity_id, public_key, algorithm, expires_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		record.ID,
		record.IdentityID,
		record.PublicKey,
		record.Algorithm,
		record.ExpiresAt,
	).Scan(&record.CreatedAt)
	if err != nil {
		return classifyStorageError(err)
	}
	return nil
}

func (r *keyRepository) GetByID(ctx context.Context, keyID string) (*domain.PublicKeyRecord, error) {
	const query = `
        SELECT id, identity_id, public_key, algorithm, created_at, expires_at
        FROM public_keys WHERE id=$1`
	var record domain.PublicKeyRecord
	if err := r.pool.QueryRow(ctx, query, keyID).Scan(
		&record.ID,
		&record.IdentityID,
		&record.PublicKey,
		&record.Algorithm,
		&record.CreatedAt,
		&record.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *keyRepository) Delete(ctx context.Context, keyID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM public_keys WHERE id=$1`, keyID); err != nil {
		return classifyStorageError(err)
	}
	return nil
}

func (r *keyRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.PublicKeyRecord, error) {
	const query = `
        SELECT id, identity_id, public_key, algorithm, created_at, expires_at
        FROM public_keys WHERE identity_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, identityID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	defer rows.Close()
	return scanKeys(rows)
}

func scanKeys(rows pgx.Rows) ([]domain.PublicKeyRecord, error) {
	var result []domain.PublicKeyRecord
	for rows.Next() {
		var record domain.PublicKeyRecord
		if err := rows.Scan(
			&record.ID,
			&record.IdentityID,
			&record.PublicKey,
			&record.Algorithm,
			&record.CreatedAt,
			&record.ExpiresAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
