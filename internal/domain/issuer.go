package domain

// IssuerCounter tracks the last issued sequence for one issuer. LastSequence
// is monotonically non-decreasing and mutated only via an atomic server-side
// increment.
type IssuerCounter struct {
	IssuerID     string
	LastSequence int64
}

// Issuer is one directory entry for an issuing organization.
type Issuer struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	IIN  string `yaml:"iin"`
}
