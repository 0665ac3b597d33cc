// internal/workers/research/search-products/handler_test.go
package searchproducts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-research-workers/internal/artifacts"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/llm"
	"product-research-workers/internal/models"
	"product-research-workers/internal/tools"
	"product-research-workers/internal/workers/research/stage"
)

// ==========================
// Test Helper Functions
// ==========================

// agentLLM asks for one search and then answers with results.
type agentLLM struct {
	final    string
	requests [][]llm.Message
}

func (a *agentLLM) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	a.requests = append(a.requests, append([]llm.Message(nil), req.Messages...))
	last := req.Messages[len(req.Messages)-1]
	if last.Role != llm.RoleTool {
		return &llm.Response{
			FinishReason: "tool_calls",
			ToolCalls: []llm.ToolCall{{
				ID:        "call-1",
				Name:      tools.SearchToolName,
				Arguments: `{"query":"coffee machine site:amazon.eg"}`,
			}},
		}, nil
	}
	return &llm.Response{Content: a.final, FinishReason: "stop"}, nil
}

type stubSearch struct {
	result string
	err    error
	args   []string
}

func (s *stubSearch) Name() string        { return tools.SearchToolName }
func (s *stubSearch) Description() string { return "stub search" }
func (s *stubSearch) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (s *stubSearch) Invoke(ctx context.Context, args string) (string, error) {
	s.args = append(s.args, args)
	return s.result, s.err
}

const resultsJSON = `{"search_results":[{"title":"De'Longhi Dedica","url":"https://www.amazon.eg/dp/B01","content":"Espresso machine","confidence_score":0.91,"search_query":"coffee machine site:amazon.eg"}]}`

var carriedQueries = &models.SearchQuerySet{SearchQueries: []string{"coffee machine site:amazon.eg"}}

func createTestHandler(t *testing.T, fake llm.Client, search tools.Tool) (*Handler, *artifacts.FileStore) {
	log := logger.NewTestLogger(t)
	store := artifacts.NewPerRunFileStore(t.TempDir())
	deps := stage.Deps{
		Executor: crew.NewExecutor(fake, crew.ExecutorConfig{}, log),
		Store:    store,
	}
	return NewHandler(&Config{Timeout: 5 * time.Second, Defaults: models.DefaultRunParams()}, search, deps, log), store
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_WithCarriedQueries(t *testing.T) {
	fake := &agentLLM{final: resultsJSON}
	search := &stubSearch{result: `{"query":"coffee machine site:amazon.eg","results":[]}`}
	h, _ := createTestHandler(t, fake, search)

	output, err := h.Execute(context.Background(), &Input{RunID: "run-1", SearchQueries: carriedQueries})
	require.NoError(t, err)

	require.Len(t, output.SearchResults.SearchResults, 1)
	assert.Equal(t, "https://www.amazon.eg/dp/B01", output.SearchResults.SearchResults[0].URL)
	assert.FileExists(t, output.SearchResultsPath)
	assert.Equal(t, []string{`{"query":"coffee machine site:amazon.eg"}`}, search.args)

	prompt := fake.requests[0][1].Content
	assert.Contains(t, prompt, "### "+crew.SearchQueriesFile)
	assert.Contains(t, prompt, "coffee machine site:amazon.eg")
	assert.Contains(t, prompt, "confidence score less than 70")
}

func TestHandler_Execute_ReadsQueriesFromStore(t *testing.T) {
	fake := &agentLLM{final: resultsJSON}
	h, store := createTestHandler(t, fake, &stubSearch{result: "{}"})

	stored := `{"search_queries":["coffee machine site:noon.com"]}`
	_, err := store.Write(context.Background(), "run-2", crew.SearchQueriesFile, []byte(stored))
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), &Input{RunID: "run-2"})
	require.NoError(t, err)
	assert.Contains(t, fake.requests[0][1].Content, "coffee machine site:noon.com")
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_MissingPreviousArtifact(t *testing.T) {
	fake := &agentLLM{final: resultsJSON}
	h, _ := createTestHandler(t, fake, &stubSearch{})

	_, err := h.Execute(context.Background(), &Input{RunID: "run-3"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeArtifactNotFound))
	assert.Empty(t, fake.requests)
}

func TestHandler_Execute_MissingRunID(t *testing.T) {
	h, _ := createTestHandler(t, &agentLLM{final: resultsJSON}, &stubSearch{})

	_, err := h.Execute(context.Background(), &Input{SearchQueries: carriedQueries})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRunParameters))
}

func TestHandler_Execute_SearchToolFails(t *testing.T) {
	search := &stubSearch{err: apperrors.NewToolInvocationFailedError(tools.SearchToolName, errors.New("status 432"))}
	h, _ := createTestHandler(t, &agentLLM{final: resultsJSON}, search)

	_, err := h.Execute(context.Background(), &Input{RunID: "run-4", SearchQueries: carriedQueries})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeToolInvocationFailed))
}
