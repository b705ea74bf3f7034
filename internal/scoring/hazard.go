package scoring

import (
	"math"
	"strings"

	"github.com/truescore/truescore/internal/refdata"
)

// FlatScorer is the older hazard-average strategy kept for direct
// ingredient-score scans. It is a separate path from Engine.Score and
// the two must stay distinguishable.
type FlatScorer struct {
	tables *refdata.Tables
}

func NewFlatScorer(tables *refdata.Tables) *FlatScorer {
	return &FlatScorer{tables: tables}
}

const unknownHazard = 3.0

// Hazard returns the 0-10 hazard score for one ingredient. Safe
// ingredients score 0, table matches score their keyword value, and
// everything else gets the unknown default of 3.0.
func (f *FlatScorer) Hazard(name string) float64 {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return unknownHazard
	}
	for _, safe := range f.tables.SafeIngredients {
		if strings.Contains(lower, safe) {
			return 0
		}
	}
	best := -1.0
	for kw, score := range f.tables.HazardScores {
		if strings.Contains(lower, kw) && score > best {
			best = score
		}
	}
	if best >= 0 {
		return best
	}
	return unknownHazard
}

// FlatInput is one product for the flat strategy.
type FlatInput struct {
	Ingredients    []string
	Claims         []string
	Category       string
	ConditionScore int
}

const (
	claimBonus    = 3
	claimBonusCap = 15

	conditionWeightDefault  = 0.05
	conditionWeightCookware = 0.15
)

// FlatScore computes the two-knob adjusted score: hazard-average base,
// per-ingredient penalties, capped claim bonus, then a small
// category-weighted condition modifier.
func (f *FlatScorer) FlatScore(in FlatInput) int {
	if len(in.Ingredients) == 0 {
		return applyCondition(50, in.Category, in.ConditionScore)
	}

	var total float64
	penalty := 0.0
	for _, name := range in.Ingredients {
		h := f.Hazard(name)
		total += h
		switch {
		case h >= 7:
			penalty += 5
		case h >= 4:
			penalty += 2
		}
	}
	avg := total / float64(len(in.Ingredients))

	score := 100 - 10*avg - penalty
	if score < 0 {
		score = 0
	}

	bonus := float64(len(in.Claims) * claimBonus)
	if bonus > claimBonusCap {
		bonus = claimBonusCap
	}
	score = clamp(score+bonus, 0, 100)

	return applyCondition(score, in.Category, in.ConditionScore)
}

// ConditionWeight is 0.15 for cookware and 0.05 for every other category.
func ConditionWeight(category string) float64 {
	if strings.EqualFold(category, "cookware") {
		return conditionWeightCookware
	}
	return conditionWeightDefault
}

func applyCondition(score float64, category string, conditionScore int) int {
	score += float64(conditionScore) * ConditionWeight(category)
	return int(clamp(math.Round(score), 0, 100))
}
