package domain

import "time"

// IdentityStatus enumerates lifecycle states for identities.
type IdentityStatus string

const (
	IdentityStatusPending     IdentityStatus = "PENDING"
	IdentityStatusActive      IdentityStatus = "ACTIVE"
	IdentityStatusUserLocked  IdentityStatus = "USER_LOCKED"
	IdentityStatusMoLocked    IdentityStatus = "MO_LOCKED"
	IdentityStatusAdminLocked IdentityStatus = "ADMIN_LOCKED"
	IdentityStatusExpired     IdentityStatus = "EXPIRED"
	IdentityStatusDestroyed   IdentityStatus = "DESTROYED"
)

// LockReason distinguishes who requested a lock.
type LockReason string

const (
	LockReasonUser  LockReason = "user"
	LockReasonMo    LockReason = "mo"
	LockReasonAdmin LockReason = "admin"
)

// Status returns the locked status corresponding to the reason.
func (r LockReason) Status() IdentityStatus {
	switch r {
	case LockReasonUser:
		return IdentityStatusUserLocked
	case LockReasonMo:
		return IdentityStatusMoLocked
	case LockReasonAdmin:
		return IdentityStatusAdminLocked
	}
	return ""
}

// Identity is the issued digital identifier record. Exactly one non-DESTROYED
// identity may exist per (IssuerID, ExternalUserID) pair.
type Identity struct {
	ID                string
	IssuerID          string
	ExternalUserID    string
	Number            string
	Status            IdentityStatus
	Tier              string
	ProviderAccountID *string
	ActiveKeyID       *string
	ActivationToken   *string
	ActivationExpiry  *time.Time
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         *time.Time
}

// allowedTransitions is the exhaustive lifecycle edge table. Any edge not
// listed here is rejected with an invalid-transition error.
var allowedTransitions = map[IdentityStatus][]IdentityStatus{
	IdentityStatusPending: {IdentityStatusActive, IdentityStatusExpired, IdentityStatusDestroyed},
	IdentityStatusActive: {
		IdentityStatusUserLocked, IdentityStatusMoLocked, IdentityStatusAdminLocked,
		IdentityStatusExpired, IdentityStatusDestroyed,
	},
	IdentityStatusUserLocked:  {IdentityStatusActive, IdentityStatusExpired, IdentityStatusDestroyed},
	IdentityStatusMoLocked:    {IdentityStatusActive, IdentityStatusExpired, IdentityStatusDestroyed},
	IdentityStatusAdminLocked: {IdentityStatusActive, IdentityStatusExpired, IdentityStatusDestroyed},
	IdentityStatusExpired:     {IdentityStatusDestroyed},
	IdentityStatusDestroyed:   {},
}

// CanTransition reports whether the lifecycle permits moving current -> next.
func CanTransition(current, next IdentityStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsLocked reports whether the status is one of the lock states.
func (s IdentityStatus) IsLocked() bool {
	return s == IdentityStatusUserLocked || s == IdentityStatusMoLocked || s == IdentityStatusAdminLocked
}

// IsTerminal reports whether no further transitions are possible.
func (s IdentityStatus) IsTerminal() bool {
	return s == IdentityStatusDestroyed
}
