package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/refdata"
	"github.com/truescore/truescore/internal/scoring"
)

// memScoreCache is a map-backed ScoreCache for tests.
type memScoreCache struct {
	mu      sync.Mutex
	entries map[string]domain.CachedScore
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemScoreCache() *memScoreCache {
	return &memScoreCache{entries: make(map[string]domain.CachedScore)}
}

func (c *memScoreCache) Get(_ domain.Context, key string) (domain.CachedScore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return domain.CachedScore{}, c.getErr
	}
	e, ok := c.entries[key]
	if !ok {
		return domain.CachedScore{}, domain.ErrNotFound
	}
	return e, nil
}

func (c *memScoreCache) Put(_ domain.Context, e domain.CachedScore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[e.Key] = e
	return nil
}

// fakeAI returns canned identifications.
type fakeAI struct {
	id    domain.ProductIdentification
	idErr error

	research    string
	researchErr error

	mu    sync.Mutex
	calls int
}

func (f *fakeAI) IdentifyProduct(domain.Context, []byte, string) (domain.ProductIdentification, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.id, f.idErr
}

func (f *fakeAI) DeepResearch(domain.Context, domain.ResearchRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.research, f.researchErr
}

func newEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	tables, err := refdata.Load()
	require.NoError(t, err)
	return scoring.NewEngine(tables)
}

func TestScoreComputesAndWritesThrough(t *testing.T) {
	cacheStore := newMemScoreCache()
	svc := NewScoreService(newEngine(t), cacheStore, &fakeAI{}, time.Second)

	resp, err := svc.Score(context.Background(), ScoreRequest{
		ProductName: "Disinfecting Wipes Lemon Fresh",
		Brand:       "Clorox",
		Ingredients: []string{"Water", "Fragrance"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, "clorox:disinfecting wipes", resp.Key)
	assert.Equal(t, 1, cacheStore.puts)
}

func TestScoreCacheHit(t *testing.T) {
	cacheStore := newMemScoreCache()
	svc := NewScoreService(newEngine(t), cacheStore, &fakeAI{}, time.Second)
	ctx := context.Background()

	req := ScoreRequest{ProductName: "Wipes", Brand: "Clorox", Ingredients: []string{"Water"}}
	first, err := svc.Score(ctx, req)
	require.NoError(t, err)

	// A size variant of the same product hits the same entry.
	second, err := svc.Score(ctx, ScoreRequest{ProductName: "Wipes - 12ct", Brand: "Clorox", Ingredients: []string{"Water"}})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)
}

func TestScoreCacheFailureDegrades(t *testing.T) {
	cacheStore := newMemScoreCache()
	cacheStore.getErr = errors.New("connection refused")
	cacheStore.putErr = errors.New("connection refused")
	svc := NewScoreService(newEngine(t), cacheStore, &fakeAI{}, time.Second)

	resp, err := svc.Score(context.Background(), ScoreRequest{
		ProductName: "Wipes",
		Ingredients: []string{"Water", "Sodium Nitrite"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.LessOrEqual(t, resp.Result.OverallScore, 29)
}

func TestScoreValidation(t *testing.T) {
	svc := NewScoreService(newEngine(t), newMemScoreCache(), &fakeAI{}, time.Second)

	_, err := svc.Score(context.Background(), ScoreRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestScanIdentifiesAndScores(t *testing.T) {
	ai := &fakeAI{id: domain.ProductIdentification{
		ProductName: "Cola",
		Brand:       "Coca-Cola",
		Category:    "food",
		Ingredients: []string{"Carbonated Water", "High Fructose Corn Syrup", "Caramel Color"},
		Confidence:  "high",
	}}
	svc := NewScoreService(newEngine(t), newMemScoreCache(), ai, time.Second)

	resp, err := svc.Scan(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "Cola", resp.Identification.ProductName)
	assert.Equal(t, "Coca-Cola", resp.Score.Result.ParentCompany)
	assert.LessOrEqual(t, resp.Score.Result.OverallScore, 49)
}

func TestScanTransientAIFailureDegrades(t *testing.T) {
	ai := &fakeAI{idErr: domain.ErrUpstreamTimeout}
	svc := NewScoreService(newEngine(t), newMemScoreCache(), ai, time.Second)

	resp, err := svc.Scan(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, 50, resp.Score.Result.OverallScore)
	require.Len(t, resp.Score.Result.IngredientsGraded, 1)
	assert.Equal(t, domain.TierC, resp.Score.Result.IngredientsGraded[0].Tier)
}

func TestScanSchemaFailureIsAnError(t *testing.T) {
	ai := &fakeAI{idErr: domain.ErrSchemaInvalid}
	svc := NewScoreService(newEngine(t), newMemScoreCache(), ai, time.Second)

	_, err := svc.Scan(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestScanEmptyImage(t *testing.T) {
	svc := NewScoreService(newEngine(t), newMemScoreCache(), &fakeAI{}, time.Second)

	_, err := svc.Scan(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestScoreSingleFlightSharesComputation(t *testing.T) {
	cacheStore := newMemScoreCache()
	svc := NewScoreService(newEngine(t), cacheStore, &fakeAI{}, time.Second)
	ctx := context.Background()

	req := ScoreRequest{ProductName: "Wipes", Brand: "Clorox", Ingredients: []string{"Water"}}
	var wg sync.WaitGroup
	results := make([]ScoreResponse, 8)
	for i := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r, err := svc.Score(ctx, req)
			assert.NoError(t, err)
			results[n] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0].Result, r.Result)
	}
}
