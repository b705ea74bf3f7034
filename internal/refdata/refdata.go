// Package refdata loads the embedded reference tables driving
// classification and aggregation. Tables are parsed once at startup and
// treated as immutable afterwards; tests construct small literal Tables
// values instead of loading the full set.
package refdata

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// TierEntry is one keyword row of a tier table.
type TierEntry struct {
	Key       string `yaml:"key"`
	Grade     string `yaml:"grade"`
	Reason    string `yaml:"reason"`
	Narrative string `yaml:"narrative"`
}

// CorporateEntry is one parent company of the ownership table.
type CorporateEntry struct {
	Parent        string   `yaml:"parent"`
	Penalty       int      `yaml:"penalty"`
	Brands        []string `yaml:"brands"`
	NotableBrands []string `yaml:"notable_brands"`
	Issues        []string `yaml:"issues"`
}

// Tables is the full immutable reference set.
type Tables struct {
	TierF    []TierEntry
	TierD    []TierEntry
	TierC    []TierEntry
	TierSafe []TierEntry

	Corporate []CorporateEntry

	ProcessingMarkers     []string
	CertificationKeywords []string
	MonocultureKeywords   []string
	HazardScores          map[string]float64
	SafeIngredients       []string

	Narratives              map[string]string
	UltraProcessedNarrative string
	MonocultureNarrative    string
}

type tiersFile struct {
	TierF    []TierEntry `yaml:"tier_f"`
	TierD    []TierEntry `yaml:"tier_d"`
	TierC    []TierEntry `yaml:"tier_c"`
	TierSafe []TierEntry `yaml:"tier_safe"`
}

type corporateFile struct {
	Companies []CorporateEntry `yaml:"companies"`
}

type markersFile struct {
	ProcessingMarkers     []string           `yaml:"processing_markers"`
	CertificationKeywords []string           `yaml:"certification_keywords"`
	MonocultureKeywords   []string           `yaml:"monoculture_keywords"`
	HazardScores          map[string]float64 `yaml:"hazard_scores"`
	SafeIngredients       []string           `yaml:"safe_ingredients"`
}

type narrativesFile struct {
	Narratives     map[string]string `yaml:"narratives"`
	UltraProcessed string            `yaml:"ultra_processed"`
	Monoculture    string            `yaml:"monoculture"`
}

// Load parses every embedded table. It fails only on a build defect
// (malformed embedded YAML), so callers treat an error as fatal.
func Load() (*Tables, error) {
	var tiers tiersFile
	if err := decode("data/tiers.yaml", &tiers); err != nil {
		return nil, err
	}
	var corp corporateFile
	if err := decode("data/corporate.yaml", &corp); err != nil {
		return nil, err
	}
	var markers markersFile
	if err := decode("data/markers.yaml", &markers); err != nil {
		return nil, err
	}
	var narr narrativesFile
	if err := decode("data/narratives.yaml", &narr); err != nil {
		return nil, err
	}

	t := &Tables{
		TierF:                   tiers.TierF,
		TierD:                   tiers.TierD,
		TierC:                   tiers.TierC,
		TierSafe:                tiers.TierSafe,
		Corporate:               corp.Companies,
		ProcessingMarkers:       markers.ProcessingMarkers,
		CertificationKeywords:   markers.CertificationKeywords,
		MonocultureKeywords:     markers.MonocultureKeywords,
		HazardScores:            markers.HazardScores,
		SafeIngredients:         markers.SafeIngredients,
		Narratives:              narr.Narratives,
		UltraProcessedNarrative: narr.UltraProcessed,
		MonocultureNarrative:    narr.Monoculture,
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func decode(name string, out any) error {
	b, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("op=refdata.decode read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("op=refdata.decode parse %s: %w", name, err)
	}
	return nil
}

func (t *Tables) validate() error {
	if len(t.TierF) == 0 || len(t.TierD) == 0 || len(t.TierC) == 0 || len(t.TierSafe) == 0 {
		return fmt.Errorf("op=refdata.validate: empty tier table")
	}
	if len(t.ProcessingMarkers) == 0 {
		return fmt.Errorf("op=refdata.validate: empty processing marker vocabulary")
	}
	if len(t.Corporate) == 0 {
		return fmt.Errorf("op=refdata.validate: empty corporate table")
	}
	for _, e := range append(append([]TierEntry{}, t.TierF...), append(t.TierD, t.TierC...)...) {
		if e.Narrative != "" {
			if _, ok := t.Narratives[e.Narrative]; !ok {
				return fmt.Errorf("op=refdata.validate: tier entry %q references unknown narrative %q", e.Key, e.Narrative)
			}
		}
	}
	return nil
}

// Stats summarizes table sizes for the reference stats endpoint.
type Stats struct {
	TierF             int `json:"tier_f_entries"`
	TierD             int `json:"tier_d_entries"`
	TierC             int `json:"tier_c_entries"`
	TierSafe          int `json:"tier_safe_entries"`
	ProcessingMarkers int `json:"processing_markers"`
	Companies         int `json:"corporate_entries"`
	Narratives        int `json:"narratives"`
}

func (t *Tables) Stats() Stats {
	return Stats{
		TierF:             len(t.TierF),
		TierD:             len(t.TierD),
		TierC:             len(t.TierC),
		TierSafe:          len(t.TierSafe),
		ProcessingMarkers: len(t.ProcessingMarkers),
		Companies:         len(t.Corporate),
		Narratives:        len(t.Narratives),
	}
}
