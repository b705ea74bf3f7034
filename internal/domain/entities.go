// Package domain holds the core entities, error taxonomy, and ports of the
// product safety scoring service.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// Tier is one of five severity buckets assigned to an ingredient by
// substring match against the curated keyword tables. F is the worst.
type Tier string

const (
	TierF Tier = "F"
	TierD Tier = "D"
	TierC Tier = "C"
	TierB Tier = "B"
	TierA Tier = "A"
)

// Rank orders tiers worst-first for sorting graded ingredients.
// Unknown tiers rank with C, matching the unverified default.
func (t Tier) Rank() int {
	switch t {
	case TierF:
		return 0
	case TierD:
		return 1
	case TierC:
		return 2
	case TierB:
		return 3
	case TierA:
		return 4
	}
	return 2
}

// IngredientClassification is the per-ingredient output of the tiered
// classifier. Created once per scoring run and never mutated.
type IngredientClassification struct {
	Name         string `json:"name"`
	Tier         Tier   `json:"grade"`
	Score        int    `json:"hazard_score"`
	Reason       string `json:"reason"`
	NarrativeKey string `json:"-"`
	// Unverified marks ingredients that matched no tier table and fell
	// through to the conservative default; downstream it lowers the
	// report-completeness signal.
	Unverified bool `json:"unverified,omitempty"`
}

// DimensionScores carries the four weighted scoring dimensions, each 0-100.
type DimensionScores struct {
	IngredientSafety int `json:"ingredient_safety"`
	ProcessingLevel  int `json:"processing_level"`
	CorporateEthics  int `json:"corporate_ethics"`
	SupplyChain      int `json:"supply_chain"`
}

// CorporateDisclosure describes the matched parent company of a brand.
type CorporateDisclosure struct {
	ParentCompany  string   `json:"parent_company"`
	Issues         []string `json:"issues"`
	NotableBrands  []string `json:"notable_brands"`
	PenaltyApplied int      `json:"penalty_applied"`
}

// ScoreResult is the full scoring report. The caller owns the returned
// value; the cache holds an independent serialized copy.
type ScoreResult struct {
	OverallScore      int                        `json:"overall_score"`
	OverallGrade      string                     `json:"overall_grade"`
	Dimensions        DimensionScores            `json:"dimension_scores"`
	IngredientsGraded []IngredientClassification `json:"ingredients_graded"`
	Alerts            []string                   `json:"alerts"`
	Narratives        []string                   `json:"hidden_truths"`
	ParentCompany     string                     `json:"parent_company,omitempty"`
	Disclosure        *CorporateDisclosure       `json:"corporate_disclosure,omitempty"`
}

// ProductIdentification is what the vision collaborator extracts from a
// product image, and the input to the scoring pipeline.
type ProductIdentification struct {
	ProductName string   `json:"product_name"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	Ingredients []string `json:"ingredients"`
	Confidence  string   `json:"confidence,omitempty"`
}

// ResearchRequest is the input to a deep-research job.
type ResearchRequest struct {
	ProductName string   `json:"product_name"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	Ingredients []string `json:"ingredients"`
}

// ResearchReport is the multi-section narrative produced by a completed
// deep-research job.
type ResearchReport struct {
	ProductName string            `json:"product_name"`
	Brand       string            `json:"brand"`
	Category    string            `json:"category"`
	Sections    map[string]string `json:"report"`
	FullReport  string            `json:"full_report"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// JobStatus enumerates the deep-research job state machine.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether a status permits no further writes.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// Job tracks one deep-research run. Mutated only by the background worker
// that owns it; immutable once the status is terminal.
//
// Invariants: Progress is monotonically non-decreasing while processing;
// Result is set iff completed; Error is set iff failed.
type Job struct {
	ID          string          `json:"job_id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// CachedScore is a scoring-cache row. Superseded by upsert on recompute.
type CachedScore struct {
	Key         string
	ProductName string
	Brand       string
	Result      ScoreResult
	UpdatedAt   time.Time
}

// CachedResearch is a research-cache row; never expires. PDF bytes are an
// optional attachment keyed the same way.
type CachedResearch struct {
	Key         string
	ProductName string
	Brand       string
	Category    string
	Report      ResearchReport
	FullReport  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ports

// ScoreCache is the scoring-report namespace of the result cache.
// Implementations are best-effort: store failures surface as errors that
// callers treat as misses or dropped writes, never as request failures.
type ScoreCache interface {
	Get(ctx Context, key string) (CachedScore, error)
	Put(ctx Context, entry CachedScore) error
}

// ResearchCache is the deep-research namespace of the result cache.
type ResearchCache interface {
	Get(ctx Context, key string) (CachedResearch, error)
	Put(ctx Context, entry CachedResearch) error
	AttachPDF(ctx Context, key string, pdf []byte) error
	GetPDF(ctx Context, key string) ([]byte, error)
}

// JobStore persists jobs. A job created via one backend is only
// retrievable from that same backend; the manager owns the fallback chain.
type JobStore interface {
	Create(ctx Context, j Job) error
	Update(ctx Context, j Job) error
	Get(ctx Context, id string) (Job, error)
	Ping(ctx Context) error
}

// AIClient is the external vision/research collaborator.
type AIClient interface {
	// IdentifyProduct turns a product image into a ProductIdentification.
	IdentifyProduct(ctx Context, image []byte, mediaType string) (ProductIdentification, error)
	// DeepResearch generates the long-form multi-section report text.
	DeepResearch(ctx Context, req ResearchRequest) (string, error)
}

// Context is an alias so adapters and usecases pass context.Context
// through without the domain importing adapter packages.
type Context = context.Context
