package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		current IdentityStatus
		next    IdentityStatus
		want    bool
	}{
		{IdentityStatusPending, IdentityStatusActive, true},
		{IdentityStatusPending, IdentityStatusExpired, true},
		{IdentityStatusPending, IdentityStatusDestroyed, true},
		{IdentityStatusPending, IdentityStatusUserLocked, false},
		{IdentityStatusActive, IdentityStatusUserLocked, true},
		{IdentityStatusActive, IdentityStatusMoLocked, true},
		{IdentityStatusActive, IdentityStatusAdminLocked, true},
		{IdentityStatusActive, IdentityStatusExpired, true},
		{IdentityStatusActive, IdentityStatusDestroyed, true},
		{IdentityStatusActive, IdentityStatusPending, false},
		{IdentityStatusUserLocked, IdentityStatusActive, true},
		{IdentityStatusUserLocked, IdentityStatusMoLocked, false},
		{IdentityStatusMoLocked, IdentityStatusActive, true},
		{IdentityStatusAdminLocked, IdentityStatusActive, true},
		{IdentityStatusAdminLocked, IdentityStatusDestroyed, true},
		{IdentityStatusExpired, IdentityStatusDestroyed, true},
		{IdentityStatusExpired, IdentityStatusActive, false},
		{IdentityStatusDestroyed, IdentityStatusActive, false},
		{IdentityStatusDestroyed, IdentityStatusDestroyed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.current, tc.next); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.current, tc.next, got, tc.want)
		}
	}
}

func TestDestroyedIsTerminal(t *testing.T) {
	for status, nexts := range allowedTransitions {
		for _, next := range nexts {
			if next == IdentityStatusPending {
				t.Errorf("no state may return to PENDING, but %s does", status)
			}
		}
	}
	if len(allowedTransitions[IdentityStatusDestroyed]) != 0 {
		t.Fatalf("DESTROYED must have no outgoing transitions")
	}
	if !IdentityStatusDestroyed.IsTerminal() {
		t.Fatalf("DESTROYED must report terminal")
	}
}

func TestLockReasonStatus(t *testing.T) {
	cases := map[LockReason]IdentityStatus{
		LockReasonUser:  IdentityStatusUserLocked,
		LockReasonMo:    IdentityStatusMoLocked,
		LockReasonAdmin: IdentityStatusAdminLocked,
	}
	for reason, want := range cases {
		got := reason.Status()
		if got != want {
			t.Errorf("LockReason(%s).Status() = %s, want %s", reason, got, want)
		}
		if !got.IsLocked() {
			t.Errorf("%s must report locked", want)
		}
	}
	if got := LockReason("other").Status(); got != "" {
		t.Errorf("unknown reason must map to empty status, got %s", got)
	}
}
