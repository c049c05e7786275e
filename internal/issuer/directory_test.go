package issuer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spec-kit/identity-service/internal/domain"
)

func TestLoadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuers.yaml")
	content := `issuers:
  - id: MO1
    name: First Membership Org
    iin: "400001"
  - id: MO2
    name: Second Membership Org
    iin: "40002"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	dir, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	iin, err := dir.LookupIIN("MO1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if iin != "400001" {
		t.Fatalf("expected IIN 400001, got %s", iin)
	}
	if _, err := dir.LookupIIN("MO9"); err == nil {
		t.Fatalf("unknown issuer should fail lookup")
	}
	if !dir.Known("MO2") || dir.Known("MO9") {
		t.Fatalf("Known gave wrong answers")
	}
}

func TestNewDirectoryValidation(t *testing.T) {
	cases := []struct {
		name    string
		issuers []domain.Issuer
	}{
		{"short iin", []domain.Issuer{{ID: "MO1", IIN: "4001"}}},
		{"long iin", []domain.Issuer{{ID: "MO1", IIN: "400000001"}}},
		{"non-digit iin", []domain.Issuer{{ID: "MO1", IIN: "40x01"}}},
		{"missing id", []domain.Issuer{{IIN: "40001"}}},
		{"duplicate id", []domain.Issuer{{ID: "MO1", IIN: "40001"}, {ID: "MO1", IIN: "40002"}}},
	}
	for _, tc := range cases {
		if _, err := NewDirectory(tc.issuers); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
