package dto

import (
	"time"

	"github.com/spec-kit/identity-service/internal/domain"
)

// IssueIdentityRequest payload.
type IssueIdentityRequest struct {
	IssuerID       string            `json:"issuer_id"`
	ExternalUserID string            `json:"external_user_id"`
	Tier           string            `json:"tier"`
	Metadata       map[string]string `json:"metadata"`
	ExpiresAt      *time.Time        `json:"expires_at"`
}

// IdentityResponse is the public view of one identity. The activation token is
// included only in the issuance response, never on reads.
type IdentityResponse struct {
	ID                string                `json:"id"`
	IssuerID          string                `json:"issuer_id"`
	ExternalUserID    string                `json:"external_user_id"`
	Number            string                `json:"number"`
	Status            domain.IdentityStatus `json:"status"`
	Tier              string                `json:"tier"`
	ProviderAccountID *string               `json:"provider_account_id,omitempty"`
	ActiveKeyID       *string               `json:"active_key_id,omitempty"`
	ActivationToken   *string               `json:"activation_token,omitempty"`
	ActivationExpiry  *time.Time            `json:"activation_expiry,omitempty"`
	Metadata          map[string]string     `json:"metadata,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	ExpiresAt         *time.Time            `json:"expires_at,omitempty"`
}

// ActivateIdentityRequest payload.
type ActivateIdentityRequest struct {
	ActivationToken string      `json:"activation_token"`
	Key             *KeyRequest `json:"key,omitempty"`
}

// KeyRequest describes a public key being registered.
type KeyRequest struct {
	PublicKey string              `json:"public_key"`
	Algorithm domain.KeyAlgorithm `json:"algorithm"`
	ExpiresAt *time.Time          `json:"expires_at"`
}

// KeyResponse is one key record.
type KeyResponse struct {
	ID        string              `json:"id"`
	PublicKey string              `json:"public_key"`
	Algorithm domain.KeyAlgorithm `json:"algorithm"`
	Active    bool                `json:"active"`
	CreatedAt time.Time           `json:"created_at"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
}

// BatchIssueRequest payload.
type BatchIssueRequest struct {
	IssuerID string             `json:"issuer_id"`
	Items    []BatchItemRequest `json:"items"`
}

// BatchItemRequest is one issuance inside a batch.
type BatchItemRequest struct {
	ExternalUserID string            `json:"external_user_id"`
	Tier           string            `json:"tier"`
	Metadata       map[string]string `json:"metadata"`
	ExpiresAt      *time.Time        `json:"expires_at"`
}

// BatchAcceptedResponse acknowledges an accepted batch.
type BatchAcceptedResponse struct {
	BatchID  string `json:"batch_id"`
	Accepted bool   `json:"accepted"`
	Total    int    `json:"total"`
}

// BatchStatusResponse reports per-item outcomes recorded so far.
type BatchStatusResponse struct {
	BatchID   string                      `json:"batch_id"`
	IssuerID  string                      `json:"issuer_id"`
	Total     int                         `json:"total"`
	Completed int                         `json:"completed"`
	Items     map[string]BatchItemOutcome `json:"items"`
}

// BatchItemOutcome is the recorded result of one batch item.
type BatchItemOutcome struct {
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	Number     string `json:"number,omitempty"`
}
