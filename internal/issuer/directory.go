package issuer

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/identity-service/internal/domain"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

var iinPattern = regexp.MustCompile(`^\d{5,8}$`)

// Directory resolves issuer ids to their IIN. Entries are loaded once at
// startup and served from memory; the upstream directory is low-latency and
// cacheable by contract.
type Directory struct {
	byID map[string]domain.Issuer
}

type directoryFile struct {
	Issuers []domain.Issuer `yaml:"issuers"`
}

// LoadDirectory reads the issuer directory YAML file.
func LoadDirectory(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issuer directory: %w", err)
	}
	var file directoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse issuer directory: %w", err)
	}
	return NewDirectory(file.Issuers)
}

// NewDirectory builds a directory from entries, validating each IIN.
func NewDirectory(issuers []domain.Issuer) (*Directory, error) {
	byID := make(map[string]domain.Issuer, len(issuers))
	for _, entry := range issuers {
		if entry.ID == "" {
			return nil, fmt.Errorf("issuer directory entry missing id")
		}
		if !iinPattern.MatchString(entry.IIN) {
			return nil, fmt.Errorf("issuer %s: IIN must be 5-8 digits, got %q", entry.ID, entry.IIN)
		}
		if _, exists := byID[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate issuer id %s", entry.ID)
		}
		byID[entry.ID] = entry
	}
	return &Directory{byID: byID}, nil
}

// LookupIIN returns the IIN for an issuer id.
func (d *Directory) LookupIIN(issuerID string) (string, error) {
	entry, ok := d.byID[issuerID]
	if !ok {
		return "", apperrors.NewValidationError("unknown issuer", map[string]any{"issuer_id": issuerID})
	}
	return entry.IIN, nil
}

// Known reports whether the issuer id exists in the directory.
func (d *Directory) Known(issuerID string) bool {
	_, ok := d.byID[issuerID]
	return ok
}
