package ai

import (
	"fmt"
	"strings"

	"github.com/truescore/truescore/internal/domain"
)

// Stub is a deterministic offline client used in dev when no API key
// is configured, and by tests.
type Stub struct{}

// NewStub constructs a Stub client.
func NewStub() *Stub { return &Stub{} }

// IdentifyProduct returns a fixed identification regardless of input.
func (s *Stub) IdentifyProduct(_ domain.Context, _ []byte, _ string) (domain.ProductIdentification, error) {
	return domain.ProductIdentification{
		ProductName: "Sample Snack Crackers",
		Brand:       "Acme Foods",
		Category:    "food",
		Ingredients: []string{"Enriched Flour", "Palm Oil", "High Fructose Corn Syrup", "Salt", "Natural Flavors"},
		Confidence:  "low",
	}, nil
}

// DeepResearch returns a minimal well-formed seven-section report.
func (s *Stub) DeepResearch(_ domain.Context, r domain.ResearchRequest) (string, error) {
	sections := []string{
		"1. EXECUTIVE SUMMARY",
		"2. THE COMPANY BEHIND IT",
		"3. INGREDIENT DEEP DIVE",
		"4. SUPPLY CHAIN INVESTIGATION",
		"5. REGULATORY HISTORY",
		"6. BETTER ALTERNATIVES",
		"7. ACTION ITEMS FOR CONSUMER",
	}
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "## %s\nNo live research available for %s. Configure an API key for full reports.\n\n", s, r.ProductName)
	}
	return b.String(), nil
}
