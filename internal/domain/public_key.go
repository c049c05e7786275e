package domain

import "time"

// KeyAlgorithm enumerates the registrable key algorithms.
type KeyAlgorithm string

const (
	KeyAlgorithmES256   KeyAlgorithm = "ES256"
	KeyAlgorithmES384   KeyAlgorithm = "ES384"
	KeyAlgorithmA256GCM KeyAlgorithm = "A256GCM"
)

// SupportedAlgorithm reports whether the algorithm is on the allow-list.
func SupportedAlgorithm(alg KeyAlgorithm) bool {
	switch alg {
	case KeyAlgorithmES256, KeyAlgorithmES384, KeyAlgorithmA256GCM:
		return true
	}
	return false
}

// PublicKeyRecord is one registered key for an identity. Records are immutable
// once created; rotation appends a new record and repoints the identity's
// active key reference.
type PublicKeyRecord struct {
	ID         string
	IdentityID string
	PublicKey  string
	Algorithm  KeyAlgorithm
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}
