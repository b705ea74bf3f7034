package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truescore/truescore/internal/domain"
)

func TestScoreCapTierF(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{
		ProductName: "Hot Dogs",
		Ingredients: []string{"Sodium Nitrite", "Water", "Salt", "Olive Oil"},
	})
	assert.LessOrEqual(t, res.OverallScore, 29)
	assert.Equal(t, "F", res.OverallGrade)
	assert.Contains(t, strings.Join(res.Alerts, "\n"), "SCORE CAPPED")
}

func TestScoreCapTierD(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{
		ProductName: "Diet Soda",
		Ingredients: []string{"Aspartame", "Water"},
	})
	assert.LessOrEqual(t, res.OverallScore, 49)
}

func TestScoreCapTierC(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{
		ProductName: "Crackers",
		Ingredients: []string{"Palm Oil", "Water", "Sea Salt"},
	})
	assert.LessOrEqual(t, res.OverallScore, 69)
}

func TestScoreCapOnlyMostSevere(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{
		Ingredients: []string{"Sodium Nitrite", "Aspartame", "Palm Oil"},
	})
	capAlerts := 0
	for _, a := range res.Alerts {
		if strings.Contains(a, "SCORE CAPPED") {
			capAlerts++
		}
	}
	assert.Equal(t, 1, capAlerts)
	assert.LessOrEqual(t, res.OverallScore, 29)
}

func TestScoreNoIngredients(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{ProductName: "Mystery"})
	assert.Equal(t, 50, res.Dimensions.IngredientSafety)
	assert.Empty(t, res.IngredientsGraded)
}

func TestProcessingLevelBuckets(t *testing.T) {
	e := NewEngine(loadTables(t))

	clean := e.Score(Input{Ingredients: []string{"Water", "Sea Salt", "Olive Oil"}})
	assert.Equal(t, 90, clean.Dimensions.ProcessingLevel)

	ultra := e.Score(Input{Ingredients: []string{
		"High Fructose Corn Syrup", "Maltodextrin", "Red 40", "TBHQ", "Artificial Flavor",
	}})
	assert.Equal(t, 20, ultra.Dimensions.ProcessingLevel)
	assert.Contains(t, strings.Join(ultra.Alerts, "\n"), "ULTRA-PROCESSED: 5 processing markers")
}

func TestProcessingMarkerCountedOncePerIngredient(t *testing.T) {
	e := NewEngine(loadTables(t))

	// One ingredient matching several markers still counts once.
	res := e.Score(Input{Ingredients: []string{"Enriched Bleached Refined Flour"}})
	assert.Equal(t, 60, res.Dimensions.ProcessingLevel)
}

func TestCorporateMatch(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{
		ProductName: "Cheese Snack",
		Brand:       "Doritos",
		Ingredients: []string{"Water"},
	})
	assert.Equal(t, "PepsiCo", res.ParentCompany)
	require.NotNil(t, res.Disclosure)
	assert.Equal(t, -12, res.Disclosure.PenaltyApplied)
	assert.Equal(t, 58, res.Dimensions.CorporateEthics)
	assert.Contains(t, strings.Join(res.Alerts, "\n"), "OWNED BY: PepsiCo")
}

func TestCorporateNoMatch(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{Brand: "Local Farm Co", Ingredients: []string{"Water"}})
	assert.Empty(t, res.ParentCompany)
	assert.Nil(t, res.Disclosure)
	assert.Equal(t, 70, res.Dimensions.CorporateEthics)
}

func TestSupplyChainCertifications(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{
		ProductName: "Granola",
		Claims:      []string{"USDA Organic", "Fair Trade Certified"},
		Ingredients: []string{"Whole Grain Oats"},
	})
	// "organic", "usda organic" and "fair trade" each add 10.
	assert.Equal(t, 80, res.Dimensions.SupplyChain)
}

func TestSupplyChainMonoculturePenalty(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{Ingredients: []string{
		"Corn Starch", "Soy Protein", "Palm Kernel Oil",
	}})
	assert.Equal(t, 35, res.Dimensions.SupplyChain)
	assert.Contains(t, strings.Join(res.Alerts, "\n"), "MONOCULTURE ALERT: 3 industrial ingredients")
}

func TestIngredientsSortedWorstFirst(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{Ingredients: []string{"Water", "Palm Oil", "Sodium Nitrite", "Aspartame"}})
	require.Len(t, res.IngredientsGraded, 4)
	assert.Equal(t, domain.TierF, res.IngredientsGraded[0].Tier)
	assert.Equal(t, domain.TierD, res.IngredientsGraded[1].Tier)
	assert.Equal(t, domain.TierC, res.IngredientsGraded[2].Tier)
	assert.Equal(t, domain.TierA, res.IngredientsGraded[3].Tier)
}

func TestNarrativesDeduplicated(t *testing.T) {
	e := NewEngine(loadTables(t))

	// Both names resolve to the BHA narrative; it appears once.
	res := e.Score(Input{Ingredients: []string{"BHA", "Butylated Hydroxyanisole"}})
	counts := map[string]int{}
	for _, n := range res.Narratives {
		counts[n]++
	}
	for text, n := range counts {
		assert.Equal(t, 1, n, "duplicate narrative: %.40s", text)
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := NewEngine(loadTables(t))

	in := Input{
		ProductName: "Snack Mix",
		Brand:       "Oreo",
		Category:    "food",
		Ingredients: []string{"Sugar", "Palm Oil", "Natural Flavors", "Corn Syrup"},
	}
	first := e.Score(in)
	second := e.Score(in)
	assert.Equal(t, first, second)
}

func TestGradeMapping(t *testing.T) {
	cases := []struct {
		score int
		grade string
	}{
		{100, "A+"}, {95, "A+"}, {94, "A"}, {85, "A"},
		{84, "B"}, {70, "B"}, {69, "C"}, {50, "C"},
		{49, "D"}, {30, "D"}, {29, "F"}, {0, "F"},
	}
	for _, c := range cases {
		assert.Equal(t, c.grade, gradeFor(c.score), "score %d", c.score)
	}
}

func TestAllSafeIngredientsScoreHigh(t *testing.T) {
	e := NewEngine(loadTables(t))

	res := e.Score(Input{Ingredients: []string{"Water", "Olive Oil", "Whole Grain Oats"}})
	assert.GreaterOrEqual(t, res.OverallScore, 70)
	assert.Empty(t, res.Narratives)
}
