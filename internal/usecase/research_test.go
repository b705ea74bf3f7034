package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truescore/truescore/internal/adapter/repo/memjobs"
	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/jobs"
)

type memResearchCache struct {
	mu      sync.Mutex
	entries map[string]domain.CachedResearch
	pdfs    map[string][]byte
}

func newMemResearchCache() *memResearchCache {
	return &memResearchCache{
		entries: make(map[string]domain.CachedResearch),
		pdfs:    make(map[string][]byte),
	}
}

func (c *memResearchCache) Get(_ domain.Context, key string) (domain.CachedResearch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return domain.CachedResearch{}, domain.ErrNotFound
	}
	return e, nil
}

func (c *memResearchCache) Put(_ domain.Context, e domain.CachedResearch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Key] = e
	return nil
}

func (c *memResearchCache) AttachPDF(_ domain.Context, key string, pdf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return domain.ErrNotFound
	}
	c.pdfs[key] = pdf
	return nil
}

func (c *memResearchCache) GetPDF(_ domain.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pdf, ok := c.pdfs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return pdf, nil
}

const sampleReport = `## 1. EXECUTIVE SUMMARY
Avoid this product.

## 2. THE COMPANY BEHIND IT
Owned by a conglomerate.

## 7. ACTION ITEMS FOR CONSUMER
Buy the store brand instead.`

func newResearchService(ai domain.AIClient, rc domain.ResearchCache) *ResearchService {
	return NewResearchService(rc, jobs.NewManager(nil, memjobs.New()), ai, 5*time.Second)
}

func waitTerminal(t *testing.T, svc *ResearchService, id string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		j, err := svc.Job(context.Background(), id)
		require.NoError(t, err)
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return domain.Job{}
}

func TestStartRunsToCompletion(t *testing.T) {
	ai := &fakeAI{research: sampleReport}
	rc := newMemResearchCache()
	svc := newResearchService(ai, rc)

	resp, err := svc.Start(context.Background(), domain.ResearchRequest{
		ProductName: "Wipes", Brand: "Clorox", Category: "cleaning",
		Ingredients: []string{"Water", "Bleach"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, domain.JobPending, resp.Job.Status)

	j := waitTerminal(t, svc, resp.Job.ID)
	assert.Equal(t, domain.JobCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)

	var report domain.ResearchReport
	require.NoError(t, json.Unmarshal(j.Result, &report))
	assert.Equal(t, "Avoid this product.", report.Sections["1. EXECUTIVE SUMMARY"])
	assert.Equal(t, sampleReport, report.FullReport)

	// The worker populated the permanent cache.
	cached, err := svc.Report(context.Background(), "Clorox", "Wipes")
	require.NoError(t, err)
	assert.Equal(t, "Wipes", cached.ProductName)
}

func TestStartCacheHitReturnsSyntheticCompletedJob(t *testing.T) {
	ai := &fakeAI{research: sampleReport}
	rc := newMemResearchCache()
	svc := newResearchService(ai, rc)
	ctx := context.Background()

	first, err := svc.Start(ctx, domain.ResearchRequest{ProductName: "Wipes", Brand: "Clorox"})
	require.NoError(t, err)
	waitTerminal(t, svc, first.Job.ID)

	second, err := svc.Start(ctx, domain.ResearchRequest{ProductName: "Wipes - 35 ct", Brand: "Clorox"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, domain.JobCompleted, second.Job.Status)
	assert.Equal(t, 100, second.Job.Progress)
	assert.NotEmpty(t, second.Job.Result)
	assert.NotEqual(t, first.Job.ID, second.Job.ID)
}

func TestStartFailureSurfacesThroughPolling(t *testing.T) {
	ai := &fakeAI{researchErr: errors.New("model overloaded")}
	svc := newResearchService(ai, newMemResearchCache())

	resp, err := svc.Start(context.Background(), domain.ResearchRequest{ProductName: "Wipes"})
	require.NoError(t, err, "creation never fails because the worker does")

	j := waitTerminal(t, svc, resp.Job.ID)
	assert.Equal(t, domain.JobFailed, j.Status)
	assert.Contains(t, j.Error, "model overloaded")
	assert.NotNil(t, j.CompletedAt)
}

func TestStartValidation(t *testing.T) {
	svc := newResearchService(&fakeAI{}, newMemResearchCache())

	_, err := svc.Start(context.Background(), domain.ResearchRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestJobUnknownID(t *testing.T) {
	svc := newResearchService(&fakeAI{}, newMemResearchCache())

	_, err := svc.Job(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseSections(t *testing.T) {
	sections := parseSections(sampleReport)
	assert.Len(t, sections, 3)
	assert.Equal(t, "Owned by a conglomerate.", sections["2. THE COMPANY BEHIND IT"])
	assert.Equal(t, "Buy the store brand instead.", sections["7. ACTION ITEMS FOR CONSUMER"])
}

func TestParseSectionsNoHeadings(t *testing.T) {
	assert.Empty(t, parseSections("just a flat paragraph"))
}
