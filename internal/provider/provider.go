package provider

import "context"

// IdentityProvider is the remote account-management collaborator. All calls
// are fallible and must be safe to repeat: the provider treats them as
// idempotent on its side.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, username string) (string, error)
	DisableAccount(ctx context.Context, accountID string) error
	EnableAccount(ctx context.Context, accountID string) error
	InvalidateSessions(ctx context.Context, accountID string) error
	DeleteAccount(ctx context.Context, accountID string) error
}

// Noop satisfies IdentityProvider for deployments without a provider
// endpoint configured. CreateAccount reports no account.
type Noop struct{}

func (Noop) CreateAccount(context.Context, string) (string, error) { return "", nil }
func (Noop) DisableAccount(context.Context, string) error          { return nil }
func (Noop) EnableAccount(context.Context, string) error           { return nil }
func (Noop) InvalidateSessions(context.Context, string) error      { return nil }
func (Noop) DeleteAccount(context.Context, string) error           { return nil }
