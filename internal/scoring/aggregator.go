package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/refdata"
)

// Dimension weights of the overall score.
const (
	weightIngredientSafety = 0.40
	weightProcessingLevel  = 0.25
	weightCorporateEthics  = 0.20
	weightSupplyChain      = 0.15
)

// Input is one product to score.
type Input struct {
	ProductName string
	Brand       string
	Category    string
	Ingredients []string
	Claims      []string
}

// Engine computes the four-dimension weighted score with tier-based
// caps. It is pure: no I/O, no clock, no randomness.
type Engine struct {
	tables     *refdata.Tables
	classifier *Classifier
}

func NewEngine(tables *refdata.Tables) *Engine {
	return &Engine{tables: tables, classifier: NewClassifier(tables)}
}

func (e *Engine) Classifier() *Classifier { return e.classifier }

// Score runs the full pipeline: classify every ingredient, compute the
// four dimensions, apply the single most severe tier cap, and map the
// rounded score to a letter grade.
func (e *Engine) Score(in Input) domain.ScoreResult {
	graded := e.classifier.ClassifyAll(in.Ingredients)

	var (
		alerts     []string
		narratives []string
		seen       = map[string]bool{}
	)
	addNarrative := func(text string) {
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		narratives = append(narratives, text)
	}

	sum := 0
	for _, g := range graded {
		sum += g.Score
		switch g.Tier {
		case domain.TierF:
			alerts = append(alerts, fmt.Sprintf("🔴 AVOID: %s", g.Name))
		case domain.TierD:
			alerts = append(alerts, fmt.Sprintf("🟠 LIMIT: %s", g.Name))
		}
		if g.NarrativeKey != "" {
			addNarrative(e.tables.Narratives[g.NarrativeKey])
		}
	}

	ingredientSafety := 50.0
	if len(graded) > 0 {
		ingredientSafety = float64(sum) / float64(len(graded))
	}

	// Processing level: each ingredient counts once no matter how many
	// markers it contains.
	markers := 0
	for _, name := range in.Ingredients {
		lower := strings.ToLower(name)
		for _, m := range e.tables.ProcessingMarkers {
			if strings.Contains(lower, m) {
				markers++
				break
			}
		}
	}
	var processing float64
	switch {
	case markers >= 5:
		processing = 20
		addNarrative(fmt.Sprintf(e.tables.UltraProcessedNarrative, markers))
		alerts = append(alerts, fmt.Sprintf("🏭 ULTRA-PROCESSED: %d processing markers detected", markers))
	case markers >= 3:
		processing = 40
		alerts = append(alerts, fmt.Sprintf("⚠️ HIGHLY PROCESSED: %d processing markers", markers))
	case markers >= 1:
		processing = 60
	default:
		processing = 90
	}

	// Corporate ethics: first matching parent wins.
	corporate := 70.0
	var parentCompany string
	var disclosure *domain.CorporateDisclosure
	brandLower := strings.ToLower(in.Brand)
	if brandLower != "" {
		for _, comp := range e.tables.Corporate {
			if !brandMatches(brandLower, comp.Brands) {
				continue
			}
			corporate = 70 + float64(comp.Penalty)
			parentCompany = comp.Parent
			disclosure = &domain.CorporateDisclosure{
				ParentCompany:  comp.Parent,
				Issues:         comp.Issues,
				NotableBrands:  comp.NotableBrands,
				PenaltyApplied: comp.Penalty,
			}
			alerts = append(alerts, fmt.Sprintf("📍 OWNED BY: %s", comp.Parent))
			addNarrative(corporateNarrative(in.Brand, comp))
			break
		}
	}
	corporate = clamp(corporate, 0, 100)

	// Supply chain: certification bonus scans the whole serialized
	// record once, not per ingredient.
	supply := 50.0
	record := serializeRecord(in)
	for _, cert := range e.tables.CertificationKeywords {
		if strings.Contains(record, cert) {
			supply += 10
		}
	}
	mono := 0
	for _, name := range in.Ingredients {
		lower := strings.ToLower(name)
		for _, kw := range e.tables.MonocultureKeywords {
			if strings.Contains(lower, kw) {
				mono++
				break
			}
		}
	}
	if mono >= 3 {
		supply -= 15
		addNarrative(e.tables.MonocultureNarrative)
		alerts = append(alerts, fmt.Sprintf("🌾 MONOCULTURE ALERT: %d industrial ingredients", mono))
	}
	supply = clamp(supply, 0, 100)

	overall := ingredientSafety*weightIngredientSafety +
		processing*weightProcessingLevel +
		corporate*weightCorporateEthics +
		supply*weightSupplyChain

	// Single most severe cap only.
	worst := worstTier(graded)
	switch worst {
	case domain.TierF:
		if overall > 29 {
			overall = 29
		}
		alerts = append(alerts, "⚖️ SCORE CAPPED: Product cannot score above F due to F-grade ingredients")
	case domain.TierD:
		if overall > 49 {
			overall = 49
		}
		alerts = append(alerts, "⚖️ SCORE CAPPED: Product cannot score above D due to D-grade ingredients")
	case domain.TierC:
		if overall > 69 {
			overall = 69
		}
		alerts = append(alerts, "⚖️ SCORE CAPPED: Product cannot score above C due to C-grade ingredients")
	}

	score := int(clamp(math.Round(overall), 0, 100))

	sort.SliceStable(graded, func(i, j int) bool {
		return graded[i].Tier.Rank() < graded[j].Tier.Rank()
	})

	return domain.ScoreResult{
		OverallScore: score,
		OverallGrade: gradeFor(score),
		Dimensions: domain.DimensionScores{
			IngredientSafety: int(math.Round(ingredientSafety)),
			ProcessingLevel:  int(math.Round(processing)),
			CorporateEthics:  int(math.Round(corporate)),
			SupplyChain:      int(math.Round(supply)),
		},
		IngredientsGraded: graded,
		Alerts:            alerts,
		Narratives:        narratives,
		ParentCompany:     parentCompany,
		Disclosure:        disclosure,
	}
}

func brandMatches(brandLower string, brands []string) bool {
	for _, b := range brands {
		if strings.Contains(brandLower, strings.ToLower(b)) {
			return true
		}
	}
	return false
}

// worstTier returns the most severe cap-relevant tier, or "" when the
// list holds only safe or no ingredients.
func worstTier(graded []domain.IngredientClassification) domain.Tier {
	hasD, hasC := false, false
	for _, g := range graded {
		switch g.Tier {
		case domain.TierF:
			return domain.TierF
		case domain.TierD:
			hasD = true
		case domain.TierC:
			hasC = true
		}
	}
	if hasD {
		return domain.TierD
	}
	if hasC {
		return domain.TierC
	}
	return ""
}

func gradeFor(score int) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 70:
		return "B"
	case score >= 50:
		return "C"
	case score >= 30:
		return "D"
	default:
		return "F"
	}
}

func serializeRecord(in Input) string {
	parts := []string{in.ProductName, in.Brand, in.Category}
	parts = append(parts, in.Claims...)
	parts = append(parts, in.Ingredients...)
	return strings.ToLower(strings.Join(parts, " "))
}

func corporateNarrative(brand string, comp refdata.CorporateEntry) string {
	if brand == "" {
		brand = "This product"
	}
	var issues strings.Builder
	for _, issue := range comp.Issues {
		fmt.Fprintf(&issues, "• %s\n", issue)
	}
	notable := comp.NotableBrands
	if len(notable) > 4 {
		notable = notable[:4]
	}
	return fmt.Sprintf(`📍 CORPORATE OWNERSHIP ALERT

%s is owned by %s.

⚠️ PARENT COMPANY ISSUES:
%s
💡 DID YOU KNOW?
%s also makes: %s
The same company selling you this product also profits from ultra-processed foods.
This is the "healthy brand + junk food" business model.`,
		brand, comp.Parent, issues.String(), comp.Parent, strings.Join(notable, ", "))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
