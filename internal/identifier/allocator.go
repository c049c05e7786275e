package identifier

import (
	"context"
	"fmt"
	"regexp"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

const (
	// numberPrefix is the fixed leading digit of every issued number.
	numberPrefix = "4"
	// sequenceDigits is the zero-padded width of the per-issuer sequence.
	sequenceDigits = 9
	// maxSequence is the last sequence representable in the padded space.
	// Exhaustion is a configuration fault, not a business condition.
	maxSequence = int64(999999999)
)

var iinPattern = regexp.MustCompile(`^\d{5,8}$`)

// CounterStore yields the next sequence for an issuer via a single atomic
// server-side increment. Implementations must never read-then-write.
type CounterStore interface {
	Next(ctx context.Context, issuerID string) (int64, error)
}

// Allocator composes checksum-valid identity numbers from issuer IINs and
// atomically obtained sequences.
type Allocator struct {
	counters CounterStore
}

// NewAllocator constructs an allocator over the given counter store.
func NewAllocator(counters CounterStore) *Allocator {
	return &Allocator{counters: counters}
}

// Allocate obtains the next sequence for the issuer and composes the number.
func (a *Allocator) Allocate(ctx context.Context, issuerID, iin string) (string, int64, error) {
	seq, err := a.counters.Next(ctx, issuerID)
	if err != nil {
		return "", 0, err
	}
	number, err := Compose(iin, seq)
	if err != nil {
		return "", 0, err
	}
	return number, seq, nil
}

// Compose builds the full identity number: the fixed prefix, the issuer IIN,
// the zero-padded sequence, and a trailing Luhn check digit.
func Compose(iin string, sequence int64) (string, error) {
	if !iinPattern.MatchString(iin) {
		return "", apperrors.NewValidationError("issuer IIN must be 5-8 digits", map[string]any{"iin": iin})
	}
	if sequence <= 0 {
		return "", apperrors.NewValidationError("sequence must be positive", nil)
	}
	if sequence > maxSequence {
		return "", apperrors.NewInternalError(fmt.Errorf("issuer sequence space exhausted: %d", sequence))
	}
	base := fmt.Sprintf("%s%s%0*d", numberPrefix, iin, sequenceDigits, sequence)
	return base + string(rune('0'+checkDigit(base))), nil
}

// Valid reports whether number is a well-formed, Luhn-valid identity number.
func Valid(number string) bool {
	if len(number) < 16 || len(number) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// checkDigit computes the Luhn check digit over the base digits: moving left
// from the rightmost digit, every second digit is doubled (minus nine when
// above nine) before summing.
func checkDigit(base string) int {
	sum := 0
	double := true
	for i := len(base) - 1; i >= 0; i-- {
		d := int(base[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}
