// Package usecase wires the scoring engine, caches, job manager, and
// AI collaborator into the operations the HTTP layer exposes.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/truescore/truescore/internal/adapter/observability"
	"github.com/truescore/truescore/internal/cache"
	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/scoring"
)

// ScoreRequest is a scoring call with known product fields.
type ScoreRequest struct {
	ProductName string
	Brand       string
	Category    string
	Ingredients []string
	Claims      []string
}

// ScoreResponse carries the report and whether it came from cache.
type ScoreResponse struct {
	Result domain.ScoreResult
	Key    string
	Cached bool
}

// ScoreService computes scoring reports with a read/write-through
// cache and per-key single-flight so concurrent scans of the same
// product share one computation.
type ScoreService struct {
	Engine    *scoring.Engine
	Cache     domain.ScoreCache
	AI        domain.AIClient
	AITimeout time.Duration

	flight singleflight.Group
}

// NewScoreService constructs a ScoreService.
func NewScoreService(engine *scoring.Engine, scoreCache domain.ScoreCache, ai domain.AIClient, aiTimeout time.Duration) *ScoreService {
	return &ScoreService{Engine: engine, Cache: scoreCache, AI: ai, AITimeout: aiTimeout}
}

// Score returns the report for one product, from cache when fresh.
// Cache failures degrade to uncached operation and never fail the call.
func (s *ScoreService) Score(ctx domain.Context, req ScoreRequest) (ScoreResponse, error) {
	if req.ProductName == "" {
		return ScoreResponse{}, fmt.Errorf("op=score.validate product_name: %w", domain.ErrInvalidArgument)
	}
	key := cache.Normalize(req.Brand, req.ProductName)

	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.scoreUncoalesced(ctx, key, req), nil
	})
	if err != nil {
		return ScoreResponse{}, err
	}
	return v.(ScoreResponse), nil
}

func (s *ScoreService) scoreUncoalesced(ctx domain.Context, key string, req ScoreRequest) ScoreResponse {
	if s.Cache != nil {
		entry, err := s.Cache.Get(ctx, key)
		switch {
		case err == nil:
			observability.ObserveCache("scoring", "hit")
			return ScoreResponse{Result: entry.Result, Key: key, Cached: true}
		case errors.Is(err, domain.ErrNotFound):
			observability.ObserveCache("scoring", "miss")
		default:
			observability.ObserveCache("scoring", "error")
			slog.Warn("score cache read failed, proceeding uncached", slog.String("key", key), slog.Any("error", err))
		}
	}

	result := s.Engine.Score(scoring.Input{
		ProductName: req.ProductName,
		Brand:       req.Brand,
		Category:    req.Category,
		Ingredients: req.Ingredients,
		Claims:      req.Claims,
	})
	observability.ObserveScore(result.OverallGrade, result.OverallScore)

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, domain.CachedScore{
			Key:         key,
			ProductName: req.ProductName,
			Brand:       req.Brand,
			Result:      result,
		}); err != nil {
			slog.Warn("score cache write dropped", slog.String("key", key), slog.Any("error", err))
		}
	}
	return ScoreResponse{Result: result, Key: key}
}

// ScanResponse is the full image-scan result.
type ScanResponse struct {
	Identification domain.ProductIdentification
	Score          ScoreResponse
	Degraded       bool
}

// Scan identifies a product from an image and scores it. When the
// vision call fails transiently the scan still returns a best-effort
// report built from a neutral placeholder classification.
func (s *ScoreService) Scan(ctx domain.Context, image []byte, mediaType string) (ScanResponse, error) {
	if len(image) == 0 {
		return ScanResponse{}, fmt.Errorf("op=score.scan empty image: %w", domain.ErrInvalidArgument)
	}

	aiCtx, cancel := contextWithTimeout(ctx, s.AITimeout)
	defer cancel()

	start := time.Now()
	id, err := s.AI.IdentifyProduct(aiCtx, image, mediaType)
	observability.ObserveAIRequest("identify", time.Since(start))
	if err != nil {
		if errors.Is(err, domain.ErrSchemaInvalid) || errors.Is(err, domain.ErrInvalidArgument) {
			return ScanResponse{}, fmt.Errorf("op=score.scan: %w", err)
		}
		slog.Warn("vision identification failed, returning degraded report", slog.Any("error", err))
		neutral := neutralResult()
		return ScanResponse{
			Identification: domain.ProductIdentification{
				ProductName: "Unknown Product",
				Brand:       "Unknown Brand",
				Category:    "other",
				Confidence:  "low",
			},
			Score:    ScoreResponse{Result: neutral, Key: cache.Normalize("", "unknown product")},
			Degraded: true,
		}, nil
	}

	resp, err := s.Score(ctx, ScoreRequest{
		ProductName: id.ProductName,
		Brand:       id.Brand,
		Category:    id.Category,
		Ingredients: id.Ingredients,
	})
	if err != nil {
		return ScanResponse{}, err
	}
	return ScanResponse{Identification: id, Score: resp}, nil
}

// neutralResult is the fallback report when external analysis is
// unavailable: a single tier C placeholder at score 50.
func neutralResult() domain.ScoreResult {
	return domain.ScoreResult{
		OverallScore: 50,
		OverallGrade: "C",
		Dimensions: domain.DimensionScores{
			IngredientSafety: 50,
			ProcessingLevel:  50,
			CorporateEthics:  70,
			SupplyChain:      50,
		},
		IngredientsGraded: []domain.IngredientClassification{{
			Name:       "analysis unavailable",
			Tier:       domain.TierC,
			Score:      50,
			Reason:     "External analysis unavailable; neutral default applied.",
			Unverified: true,
		}},
		Alerts: []string{"⚠️ ANALYSIS UNAVAILABLE: results are a neutral default, retry later"},
	}
}
