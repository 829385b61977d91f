package runner

import "github.com/google/uuid"

// RunTokenGenerator generates unique run tokens for report correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator
// (tests and golden fixtures).
type RunTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator produces time-ordered UUIDv7 run tokens.
type UUIDv7Generator struct{}

// Generate implements RunTokenGenerator.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator always returns the same token. Deterministic reports
// for golden-file comparison.
type FixedGenerator struct {
	Token string
}

// Generate implements RunTokenGenerator.
func (g FixedGenerator) Generate() string {
	return g.Token
}
