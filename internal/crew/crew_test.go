package crew

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-research-workers/internal/artifacts"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/llm"
	"product-research-workers/internal/models"
	"product-research-workers/internal/tools"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	queriesJSON  = `{"search_queries":["coffee machine amazon.eg","coffee machine jumia.com.eg"]}`
	productsJSON = `{"products":[{"page_url":"https://www.amazon.eg/dp/B01","product_title":"De'Longhi Dedica","product_price":"EGP 9,999","product_specs":[{"name":"Pressure","value":"15 bar"}],"agent_recommendation_rank":4,"agent_recommendation_reason":"Good value"}]}`
	reportMD     = "# Coffee Machine Market Research\n\n## 1. Executive Summary\nDedica wins."
)

// researchLLM plays all four agents of a successful run.
func researchLLM() *fakeLLM {
	return &fakeLLM{handler: func(req *llm.Request, call int) (*llm.Response, error) {
		last := lastMessage(req)
		switch {
		case isAgent(req, "Search Queries Recommender Agent"):
			return answer(queriesJSON), nil
		case isAgent(req, "Search Engine Agent"):
			if last.Role != llm.RoleTool {
				return toolCall("s1", tools.SearchToolName, `{"query":"coffee machine amazon.eg"}`), nil
			}
			return answer(validResults), nil
		case isAgent(req, "HTML Scraper Agent"):
			if last.Role != llm.RoleTool {
				return toolCall("h1", tools.ScrapeToolName, `{"url":"https://www.amazon.eg/dp/B01"}`), nil
			}
			return answer(productsJSON), nil
		case isAgent(req, "Report Generator Agent"):
			return answer(reportMD), nil
		}
		return nil, errors.New("unexpected agent")
	}}
}

// orderedStore records the order artifacts are written in.
type orderedStore struct {
	inner artifacts.Store
	mu    sync.Mutex
	names []string
}

func (s *orderedStore) Write(ctx context.Context, runID, name string, content []byte) (string, error) {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return s.inner.Write(ctx, runID, name, content)
}

type fakeRecorder struct {
	created  *models.ResearchRun
	stages   []string
	finished *models.ResearchRun
	err      error
}

func (r *fakeRecorder) Create(ctx context.Context, run *models.ResearchRun) error {
	cp := *run
	r.created = &cp
	return r.err
}

func (r *fakeRecorder) UpdateStage(ctx context.Context, runID, stage string) error {
	r.stages = append(r.stages, stage)
	return r.err
}

func (r *fakeRecorder) Finish(ctx context.Context, run *models.ResearchRun) error {
	cp := *run
	r.finished = &cp
	return r.err
}

type fakeIndexer struct {
	runID    string
	products []models.ScrapedProduct
}

func (i *fakeIndexer) IndexProducts(ctx context.Context, runID, productName string, products []models.ScrapedProduct) (int, error) {
	i.runID = runID
	i.products = products
	return len(products), nil
}

type fakeNotifier struct {
	calls        int
	notification models.RunNotification
	report       string
}

func (n *fakeNotifier) NotifyRunCompleted(ctx context.Context, note models.RunNotification, report string) error {
	n.calls++
	n.notification = note
	n.report = report
	return nil
}

type fakeObserver struct {
	status string
}

func (o *fakeObserver) RecordRun(ctx context.Context, product, status string, duration time.Duration) {
	o.status = status
}

type crewFixture struct {
	llm      *fakeLLM
	search   *recordingTool
	scrape   *recordingTool
	store    *orderedStore
	recorder *fakeRecorder
	indexer  *fakeIndexer
	notifier *fakeNotifier
	observer *fakeObserver
	dir      string
	crew     *Crew
}

func newCrewFixture(t *testing.T, fake *fakeLLM) *crewFixture {
	f := &crewFixture{
		llm:      fake,
		search:   &recordingTool{name: tools.SearchToolName, result: `{"results":[]}`},
		scrape:   &recordingTool{name: tools.ScrapeToolName, result: `{"url":"https://www.amazon.eg/dp/B01","details":{}}`},
		recorder: &fakeRecorder{},
		indexer:  &fakeIndexer{},
		notifier: &fakeNotifier{},
		observer: &fakeObserver{},
		dir:      filepath.Join(t.TempDir(), "ai-agent-output"),
	}
	f.store = &orderedStore{inner: artifacts.NewFileStore(f.dir)}

	log := logger.NewTestLogger(t)
	box := &tools.Toolbox{Search: f.search, Scrape: f.scrape}
	executor := NewExecutor(fake, ExecutorConfig{Model: "gpt-4o"}, log)

	f.crew = New(ResearchTasks(box), executor, f.store, log,
		WithRecorder(f.recorder),
		WithIndexer(f.indexer),
		WithNotifier(f.notifier),
		WithObserver(f.observer),
		WithStageTimeout(time.Minute),
		WithIDGenerator(func() string { return "run-1" }),
	)
	return f
}

// ==========================
// End-to-end
// ==========================

func TestCrew_KickoffCoffeeMachine(t *testing.T) {
	f := newCrewFixture(t, researchLLM())

	params := models.DefaultRunParams()
	require.Equal(t, "coffee machine", params.ProductName)

	result, err := f.crew.Kickoff(context.Background(), params)
	require.NoError(t, err)

	wantFiles := []string{SearchQueriesFile, SearchResultsFile, ScraperResultsFile, ReportFile}
	assert.Equal(t, wantFiles, f.store.names)

	require.Len(t, result.Artifacts, 4)
	for i, a := range result.Artifacts {
		assert.Equal(t, models.Stages[i], a.Task)
		assert.Equal(t, filepath.Join(f.dir, wantFiles[i]), a.Path)

		data, err := os.ReadFile(a.Path)
		require.NoError(t, err)
		assert.Equal(t, a.Content, string(data))
	}
	assert.JSONEq(t, queriesJSON, result.Artifacts[0].Content)
	assert.Equal(t, reportMD, result.Artifacts[3].Content)

	assert.Equal(t, models.RunStatusCompleted, result.Run.Status)
	assert.Equal(t, "run-1", result.Run.ID)
	require.NotNil(t, result.Run.FinishedAt)

	assert.Len(t, f.search.invocations(), 1)
	assert.Len(t, f.scrape.invocations(), 1)

	assert.Equal(t, models.Stages, f.recorder.stages)
	assert.Equal(t, models.RunStatusRunning, f.recorder.created.Status)
	assert.Equal(t, models.RunStatusCompleted, f.recorder.finished.Status)

	assert.Equal(t, "run-1", f.indexer.runID)
	require.Len(t, f.indexer.products, 1)
	assert.Equal(t, "De'Longhi Dedica", f.indexer.products[0].ProductTitle)

	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, reportMD, f.notifier.report)
	assert.Equal(t, 1, f.notifier.notification.Products)
	assert.Equal(t, filepath.Join(f.dir, ReportFile), f.notifier.notification.ReportPath)
	assert.Len(t, f.notifier.notification.Artifacts, 4)

	assert.Equal(t, string(models.RunStatusCompleted), f.observer.status)
}

func TestCrew_HandsPreviousOutputToNextStage(t *testing.T) {
	fake := researchLLM()
	f := newCrewFixture(t, fake)

	_, err := f.crew.Kickoff(context.Background(), models.DefaultRunParams())
	require.NoError(t, err)

	firstPromptOf := func(role string) string {
		for _, req := range fake.requests {
			req := req
			if isAgent(&req, role) {
				return req.Messages[1].Content
			}
		}
		return ""
	}

	assert.NotContains(t, firstPromptOf("Search Queries Recommender Agent"), "This is the context")
	assert.Contains(t, firstPromptOf("Search Engine Agent"), "### "+SearchQueriesFile)
	assert.Contains(t, firstPromptOf("HTML Scraper Agent"), "### "+SearchResultsFile)

	report := firstPromptOf("Report Generator Agent")
	assert.Contains(t, report, "### "+ScraperResultsFile)
	assert.Contains(t, report, "De'Longhi Dedica")
	assert.NotContains(t, report, "### "+SearchQueriesFile)
}

func TestCrew_AbortsOnFirstFailure(t *testing.T) {
	base := researchLLM()
	fake := &fakeLLM{handler: func(req *llm.Request, call int) (*llm.Response, error) {
		if isAgent(req, "Search Engine Agent") {
			return nil, apperrors.NewLLMRequestFailedError(errors.New("503 service unavailable"))
		}
		return base.handler(req, call)
	}}
	f := newCrewFixture(t, fake)

	result, err := f.crew.Kickoff(context.Background(), models.DefaultRunParams())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeLLMRequestFailed))

	require.NotNil(t, result)
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, []string{SearchQueriesFile}, f.store.names)

	_, statErr := os.Stat(filepath.Join(f.dir, SearchResultsFile))
	assert.True(t, os.IsNotExist(statErr))

	for _, req := range fake.requests {
		req := req
		assert.False(t, isAgent(&req, "HTML Scraper Agent"), "later stages must not run")
	}

	assert.Equal(t, models.RunStatusFailed, result.Run.Status)
	assert.Equal(t, models.StageSearchProducts, result.Run.CurrentStage)
	assert.Equal(t, models.RunStatusFailed, f.recorder.finished.Status)
	assert.Contains(t, f.recorder.finished.Error, "LLM_REQUEST_FAILED")
	assert.Equal(t, 0, f.notifier.calls)
	assert.Equal(t, string(models.RunStatusFailed), f.observer.status)
}

func TestCrew_InvalidParams(t *testing.T) {
	f := newCrewFixture(t, researchLLM())

	params := models.DefaultRunParams()
	params.NumberOfQueries = 11

	_, err := f.crew.Kickoff(context.Background(), params)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRunParameters))
	assert.Equal(t, 0, f.llm.calls())
	assert.Nil(t, f.recorder.created)
}

func TestCrew_RecorderFailuresDoNotAbort(t *testing.T) {
	f := newCrewFixture(t, researchLLM())
	f.recorder.err = errors.New("postgres down")

	result, err := f.crew.Kickoff(context.Background(), models.DefaultRunParams())
	require.NoError(t, err)
	assert.Len(t, result.Artifacts, 4)
}

func TestCrew_MinimalOptions(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewNoOpLogger()
	box := &tools.Toolbox{
		Search: &recordingTool{name: tools.SearchToolName, result: `{}`},
		Scrape: &recordingTool{name: tools.ScrapeToolName, result: `{}`},
	}
	c := New(ResearchTasks(box), NewExecutor(researchLLM(), ExecutorConfig{}, log), artifacts.NewFileStore(dir), log)

	result, err := c.Kickoff(context.Background(), models.DefaultRunParams())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Run.ID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{SearchQueriesFile, SearchResultsFile, ScraperResultsFile, ReportFile}, names)
	assert.False(t, strings.HasSuffix(strings.Join(names, ","), ".tmp"))
}
