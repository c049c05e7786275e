package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
)

// ClientRepository looks up API clients for authentication.
type ClientRepository interface {
	GetByID(ctx context.Context, clientID string) (*domain.APIClient, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository instantiates the repository.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

func (r *clientRepository) GetByID(ctx context.Context, clientID string) (*domain.APIClient, error) {
	const query = `
        SELECT id, secret_hash, role, issuer_id, active
        FROM api_clients WHERE id=$1`
	var client domain.APIClient
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&client.ID,
		&client.SecretHash,
		&client.Role,
		&client.IssuerID,
		&client.Active,
	); err != nil {
		return nil, err
	}
	return &client, nil
}
