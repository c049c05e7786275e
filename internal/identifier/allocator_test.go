package identifier

import (
	"context"
	"strings"
	"sync"
	"testing"
)

type memCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counters: make(map[string]int64)}
}

func (s *memCounterStore) Next(_ context.Context, issuerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[issuerID]++
	return s.counters[issuerID], nil
}

func TestComposeWorkedExample(t *testing.T) {
	number, err := Compose("400001", 1)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if !strings.HasPrefix(number, "4400001000000001") {
		t.Fatalf("unexpected base digits: %s", number)
	}
	if len(number) != len("4400001000000001")+1 {
		t.Fatalf("expected one appended check digit, got %s", number)
	}
	if !Valid(number) {
		t.Fatalf("composed number fails Luhn validation: %s", number)
	}
}

func TestComposeZeroPadsSequence(t *testing.T) {
	number, err := Compose("40001", 42)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if !strings.HasPrefix(number, "440001000000042") {
		t.Fatalf("sequence not zero-padded to nine digits: %s", number)
	}
	if len(number) != 16 {
		t.Fatalf("five-digit IIN should give a 16-digit number, got %d digits", len(number))
	}
}

func TestComposeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		iin  string
		seq  int64
	}{
		{"short iin", "1234", 1},
		{"long iin", "123456789", 1},
		{"non-digit iin", "40x01", 1},
		{"zero sequence", "40001", 0},
		{"exhausted sequence", "40001", 1000000000},
	}
	for _, tc := range cases {
		if _, err := Compose(tc.iin, tc.seq); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestValidDetectsCorruption(t *testing.T) {
	number, err := Compose("400001", 7)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if !Valid(number) {
		t.Fatalf("freshly composed number should validate")
	}
	// Flip one digit; Luhn must catch single-digit transcription errors.
	corrupted := []byte(number)
	if corrupted[5] == '9' {
		corrupted[5] = '0'
	} else {
		corrupted[5]++
	}
	if Valid(string(corrupted)) {
		t.Fatalf("corrupted number should fail validation: %s", corrupted)
	}
	if Valid("412345678901234") {
		t.Fatalf("15-digit input should be rejected")
	}
	if Valid("4400a01000000001x") {
		t.Fatalf("non-digit input should be rejected")
	}
}

func TestAllocateSequencesUniqueUnderConcurrency(t *testing.T) {
	store := newMemCounterStore()
	alloc := NewAllocator(store)
	ctx := context.Background()

	// Seed a prior counter value so the expected window is {k+1..k+N}.
	const k = 25
	for i := 0; i < k; i++ {
		if _, err := store.Next(ctx, "MO1"); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	const n = 200
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	numbers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, seq, err := alloc.Allocate(ctx, "MO1", "400001")
			if err != nil {
				t.Errorf("allocate failed: %v", err)
				return
			}
			seqs <- seq
			numbers <- number
		}()
	}
	wg.Wait()
	close(seqs)
	close(numbers)

	seen := make(map[int64]bool, n)
	for seq := range seqs {
		if seq <= k || seq > k+n {
			t.Fatalf("sequence %d outside expected window (%d,%d]", seq, k, k+n)
		}
		if seen[seq] {
			t.Fatalf("duplicate sequence %d", seq)
		}
		seen[seq] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct sequences, got %d", n, len(seen))
	}

	uniqueNumbers := make(map[string]bool, n)
	for number := range numbers {
		if !Valid(number) {
			t.Fatalf("allocated number fails validation: %s", number)
		}
		uniqueNumbers[number] = true
	}
	if len(uniqueNumbers) != n {
		t.Fatalf("expected %d distinct numbers, got %d", n, len(uniqueNumbers))
	}
}
