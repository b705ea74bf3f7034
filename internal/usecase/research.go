package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/truescore/truescore/internal/adapter/observability"
	"github.com/truescore/truescore/internal/cache"
	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/jobs"
)

const jobTypeResearch = "deep_research"

// researchStep pairs a progress value with its user-facing description.
type researchStep struct {
	progress int
	step     string
}

var researchSteps = []researchStep{
	{10, "Preparing comprehensive analysis..."},
	{20, "Analyzing ingredients database..."},
	{30, "Researching corporate ownership..."},
	{50, "Investigating supply chain..."},
	{70, "Checking regulatory history..."},
}

// ResearchService runs deep-research jobs: fire-and-forget workers
// updating job state, with a permanent report cache in front.
type ResearchService struct {
	Cache     domain.ResearchCache
	Jobs      *jobs.Manager
	AI        domain.AIClient
	AITimeout time.Duration
}

// NewResearchService constructs a ResearchService.
func NewResearchService(researchCache domain.ResearchCache, manager *jobs.Manager, ai domain.AIClient, aiTimeout time.Duration) *ResearchService {
	return &ResearchService{Cache: researchCache, Jobs: manager, AI: ai, AITimeout: aiTimeout}
}

// StartResponse is the synchronous reply to a research request.
type StartResponse struct {
	Job    domain.Job
	Cached bool
}

// Start returns immediately with a job handle. A cached report yields
// a synthetic completed job so polling clients behave identically; a
// miss schedules a background worker and returns the pending job.
func (s *ResearchService) Start(ctx domain.Context, req domain.ResearchRequest) (StartResponse, error) {
	if req.ProductName == "" {
		return StartResponse{}, fmt.Errorf("op=research.validate product_name: %w", domain.ErrInvalidArgument)
	}
	key := cache.Normalize(req.Brand, req.ProductName)

	if s.Cache != nil {
		entry, err := s.Cache.Get(ctx, key)
		switch {
		case err == nil:
			observability.ObserveCache("research", "hit")
			result, err := json.Marshal(entry.Report)
			if err != nil {
				return StartResponse{}, fmt.Errorf("op=research.start encode cached: %w", err)
			}
			j, err := s.Jobs.CreateCompleted(ctx, result)
			if err != nil {
				return StartResponse{}, err
			}
			return StartResponse{Job: j, Cached: true}, nil
		case errors.Is(err, domain.ErrNotFound):
			observability.ObserveCache("research", "miss")
		default:
			observability.ObserveCache("research", "error")
			slog.Warn("research cache read failed, proceeding uncached", slog.String("key", key), slog.Any("error", err))
		}
	}

	j, err := s.Jobs.Create(ctx)
	if err != nil {
		return StartResponse{}, err
	}
	observability.EnqueueJob(jobTypeResearch)

	// The worker outlives the request; it gets its own deadline
	// instead of inheriting the handler context.
	go s.run(j.ID, key, req)

	return StartResponse{Job: j}, nil
}

// Job returns the current job record.
func (s *ResearchService) Job(ctx domain.Context, id string) (domain.Job, error) {
	if id == "" {
		return domain.Job{}, fmt.Errorf("op=research.job id: %w", domain.ErrInvalidArgument)
	}
	return s.Jobs.Get(ctx, id)
}

// Report returns the cached report for a product, if any.
func (s *ResearchService) Report(ctx domain.Context, brand, productName string) (domain.CachedResearch, error) {
	if s.Cache == nil {
		return domain.CachedResearch{}, fmt.Errorf("op=research.report: %w", domain.ErrNotFound)
	}
	return s.Cache.Get(ctx, cache.Normalize(brand, productName))
}

// AttachPDF stores rendered report bytes against an existing cached
// report. Rendering happens outside this service.
func (s *ResearchService) AttachPDF(ctx domain.Context, brand, productName string, pdf []byte) error {
	if len(pdf) == 0 {
		return fmt.Errorf("op=research.attachpdf empty body: %w", domain.ErrInvalidArgument)
	}
	if s.Cache == nil {
		return fmt.Errorf("op=research.attachpdf: %w", domain.ErrNotFound)
	}
	return s.Cache.AttachPDF(ctx, cache.Normalize(brand, productName), pdf)
}

// PDF returns the stored report bytes for a cached report.
func (s *ResearchService) PDF(ctx domain.Context, brand, productName string) ([]byte, error) {
	if s.Cache == nil {
		return nil, fmt.Errorf("op=research.pdf: %w", domain.ErrNotFound)
	}
	return s.Cache.GetPDF(ctx, cache.Normalize(brand, productName))
}

func (s *ResearchService) run(jobID, key string, req domain.ResearchRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.AITimeout)
	defer cancel()

	observability.StartProcessingJob(jobTypeResearch)

	for _, st := range researchSteps {
		if err := s.Jobs.UpdateProgress(ctx, jobID, st.progress, st.step); err != nil {
			slog.Warn("progress update failed", slog.String("job_id", jobID), slog.Any("error", err))
		}
		if st.progress == 70 {
			break
		}
	}

	start := time.Now()
	text, err := s.AI.DeepResearch(ctx, req)
	observability.ObserveAIRequest("research", time.Since(start))
	if err != nil {
		slog.Error("deep research failed", slog.String("job_id", jobID), slog.Any("error", err))
		if failErr := s.Jobs.Fail(context.WithoutCancel(ctx), jobID, err); failErr != nil {
			slog.Error("failed to mark job failed", slog.String("job_id", jobID), slog.Any("error", failErr))
		}
		observability.FailJob(jobTypeResearch)
		return
	}

	// Persistence writes after the AI call must not die with the AI
	// deadline.
	wctx := context.WithoutCancel(ctx)

	_ = s.Jobs.UpdateProgress(wctx, jobID, 85, "Finding better alternatives...")

	report := domain.ResearchReport{
		ProductName: req.ProductName,
		Brand:       req.Brand,
		Category:    req.Category,
		Sections:    parseSections(text),
		FullReport:  text,
		GeneratedAt: time.Now().UTC(),
	}

	_ = s.Jobs.UpdateProgress(wctx, jobID, 95, "Generating recommendations...")

	if s.Cache != nil {
		if err := s.Cache.Put(wctx, domain.CachedResearch{
			Key:         key,
			ProductName: req.ProductName,
			Brand:       req.Brand,
			Category:    req.Category,
			Report:      report,
			FullReport:  text,
		}); err != nil {
			slog.Warn("research cache write dropped", slog.String("key", key), slog.Any("error", err))
		}
	}

	result, err := json.Marshal(report)
	if err != nil {
		_ = s.Jobs.Fail(wctx, jobID, err)
		observability.FailJob(jobTypeResearch)
		return
	}
	if err := s.Jobs.Complete(wctx, jobID, result); err != nil {
		slog.Error("failed to complete job", slog.String("job_id", jobID), slog.Any("error", err))
		observability.FailJob(jobTypeResearch)
		return
	}
	observability.CompleteJob(jobTypeResearch)
}

// parseSections splits the report on "## " headings.
func parseSections(text string) map[string]string {
	sections := make(map[string]string)
	var current string
	var content []string
	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(content, "\n"))
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = strings.TrimSpace(line[3:])
			content = content[:0]
			continue
		}
		content = append(content, line)
	}
	flush()
	return sections
}

func contextWithTimeout(ctx domain.Context, d time.Duration) (domain.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
