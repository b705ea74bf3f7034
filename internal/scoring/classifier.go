// Package scoring implements the tiered classification engine and score
// aggregation. Everything here is pure and deterministic: the same
// tables and ingredient list always produce the same result.
package scoring

import (
	"strings"

	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/refdata"
)

const (
	unknownReason       = "Unknown - not in safety database. May have bypassed FDA review via GRAS loophole."
	unknownNarrativeKey = "gras_unknown"
)

// Classifier assigns each ingredient to a severity tier by substring
// match against the reference tables, checked worst-first so a
// higher-severity keyword always wins.
type Classifier struct {
	tables *refdata.Tables
}

func NewClassifier(tables *refdata.Tables) *Classifier {
	return &Classifier{tables: tables}
}

// Classify returns the tier classification for one ingredient name.
// It never fails: empty or unmatched names fall through to the
// conservative unverified default (tier C, score 60).
func (c *Classifier) Classify(name string) domain.IngredientClassification {
	lower := strings.ToLower(name)

	for _, e := range c.tables.TierF {
		if strings.Contains(lower, e.Key) {
			return domain.IngredientClassification{
				Name:         name,
				Tier:         domain.TierF,
				Score:        0,
				Reason:       e.Reason,
				NarrativeKey: e.Narrative,
			}
		}
	}
	for _, e := range c.tables.TierD {
		if strings.Contains(lower, e.Key) {
			return domain.IngredientClassification{
				Name:   name,
				Tier:   domain.TierD,
				Score:  35,
				Reason: e.Reason,
			}
		}
	}
	for _, e := range c.tables.TierC {
		if strings.Contains(lower, e.Key) {
			return domain.IngredientClassification{
				Name:         name,
				Tier:         domain.TierC,
				Score:        55,
				Reason:       e.Reason,
				NarrativeKey: e.Narrative,
			}
		}
	}
	for _, e := range c.tables.TierSafe {
		if strings.Contains(lower, e.Key) {
			tier := domain.TierB
			score := 80
			if e.Grade == "A" {
				tier = domain.TierA
				score = 95
			}
			return domain.IngredientClassification{
				Name:   name,
				Tier:   tier,
				Score:  score,
				Reason: e.Reason,
			}
		}
	}

	return domain.IngredientClassification{
		Name:         name,
		Tier:         domain.TierC,
		Score:        60,
		Reason:       unknownReason,
		NarrativeKey: unknownNarrativeKey,
		Unverified:   true,
	}
}

// ClassifyAll classifies a list, preserving input order.
func (c *Classifier) ClassifyAll(names []string) []domain.IngredientClassification {
	out := make([]domain.IngredientClassification, 0, len(names))
	for _, n := range names {
		out = append(out, c.Classify(n))
	}
	return out
}
