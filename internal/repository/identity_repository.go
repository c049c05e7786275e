package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

const identityColumns = `id, issuer_id, external_user_id, number, status, tier,
               provider_account_id, active_key_id, activation_token, activation_expires_at,
               metadata, created_at, updated_at, expires_at`

// IdentityRepository encapsulates identity persistence. Status mutations are
// conditional on the expected prior status so concurrent transitions cannot
// clobber each other.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByIssuerUser(ctx context.Context, issuerID, externalUserID string) (*domain.Identity, error)
	Activate(ctx context.Context, id string, activeKeyID *string) (bool, error)
	UpdateStatus(ctx context.Context, id string, expected, next domain.IdentityStatus) (bool, error)
	SetProviderAccount(ctx context.Context, id, accountID string) error
	SetActiveKey(ctx context.Context, id, keyID string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ExpireDue(ctx context.Context, now time.Time) ([]domain.Identity, error)
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository instantiates the repository.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

// Create inserts the identity. The partial unique index on
// (issuer_id, external_user_id) over non-DESTROYED rows is the dedup guard:
// the insert itself is the conditional write, there is no prior lookup.
func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (id, issuer_id, external_user_id, number, status, tier,
            activation_token, activation_expires_at, metadata, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.IssuerID,
		identity.ExternalUserID,
		identity.Number,
		identity.Status,
		identity.Tier,
		identity.ActivationToken,
		identity.ActivationExpiry,
		identity.Metadata,
		identity.ExpiresAt,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.NewDuplicateIdentity(identity.IssuerID, identity.ExternalUserID)
		}
		return classifyStorageError(err)
	}
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

// GetByIssuerUser returns the live (non-DESTROYED) identity for the pair.
func (r *identityRepository) GetByIssuerUser(ctx context.Context, issuerID, externalUserID string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + `
        FROM identities WHERE issuer_id=$1 AND external_user_id=$2 AND status <> 'DESTROYED'`
	var identity domain.Identity
	if err := r.scanRow(r.pool.QueryRow(ctx, query, issuerID, externalUserID), &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Activate commits PENDING -> ACTIVE, clearing the token fields and setting
// the active key in the same conditional statement.
func (r *identityRepository) Activate(ctx context.Context, id string, activeKeyID *string) (bool, error) {
	const query = `
        UPDATE identities
        SET status=$2, activation_token=NULL, activation_expires_at=NULL,
            active_key_id=$3, updated_at=NOW()
        WHERE id=$1 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query, id, domain.IdentityStatusActive, activeKeyID, domain.IdentityStatusPending)
	if err != nil {
		return false, classifyStorageError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

// UpdateStatus commits a transition keyed on the expected prior status.
// A false return means another request changed the status first.
func (r *identityRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.IdentityStatus) (bool, error) {
	const query = `UPDATE identities SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`
	cmd, err := r.pool.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, classifyStorageError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *identityRepository) SetProviderAccount(ctx context.Context, id, accountID string) error {
	const query = `UPDATE identities SET provider_account_id=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, accountID)
	if err != nil {
		return classifyStorageError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *identityRepository) SetActiveKey(ctx context.Context, id, keyID string) (bool, error) {
	const query = `UPDATE identities SET active_key_id=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, keyID)
	if err != nil {
		return false, classifyStorageError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

// Delete removes the identity; public key records cascade with the row.
func (r *identityRepository) Delete(ctx context.Context, id string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id=$1`, id)
	if err != nil {
		return false, classifyStorageError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

// ExpireDue flips every overdue, non-terminal identity to EXPIRED and returns
// the affected rows so the caller can publish per-identity events. Token
// fields are cleared in the same statement: an activation token may only
// exist on a PENDING identity.
func (r *identityRepository) ExpireDue(ctx context.Context, now time.Time) ([]domain.Identity, error) {
	query := `
        UPDATE identities
        SET status='EXPIRED', activation_token=NULL, activation_expires_at=NULL,
            updated_at=NOW()
        WHERE expires_at IS NOT NULL AND expires_at <= $1
          AND status NOT IN ('EXPIRED','DESTROYED')
        RETURNING ` + identityColumns
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	defer rows.Close()

	var result []domain.Identity
	for rows.Next() {
		var identity domain.Identity
		if err := r.scanRow(rows, &identity); err != nil {
			return nil, err
		}
		result = append(result, identity)
	}
	return result, rows.Err()
}

func (r *identityRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.scanRow(r.pool.QueryRow(ctx, query, arg), &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) scanRow(row pgx.Row, identity *domain.Identity) error {
	return row.Scan(
		&identity.ID,
		&identity.IssuerID,
		&identity.ExternalUserID,
		&identity.Number,
		&identity.Status,
		&identity.Tier,
		&identity.ProviderAccountID,
		&identity.ActiveKeyID,
		&identity.ActivationToken,
		&identity.ActivationExpiry,
		&identity.Metadata,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&identity.ExpiresAt,
	)
}
