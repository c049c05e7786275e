package domain

// ClientRole scopes what an API client may do.
type ClientRole string

const (
	ClientRoleIssuer ClientRole = "ISSUER"
	ClientRoleAdmin  ClientRole = "ADMIN"
)

// APIClient is an authenticated caller of the service. Issuer-role clients
// are pinned to a single issuer; admin clients may act across issuers.
type APIClient struct {
	ID         string
	SecretHash string
	Role       ClientRole
	IssuerID   *string
	Active     bool
}
