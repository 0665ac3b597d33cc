package tools

import (
	"context"
	"encoding/json"
	"time"

	apperrors "product-research-workers/internal/common/errors"
	apihttp "product-research-workers/internal/common/http"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/common/metrics"
)

const SearchToolName = "search_engine_tool"

type SearchConfig struct {
	BaseURL     string
	APIKey      string
	MaxResults  int
	SearchDepth string
	Timeout     time.Duration
}

// TavilySearch queries the Tavily search API.
type TavilySearch struct {
	config SearchConfig
	client *apihttp.Client
	logger logger.Logger
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

// SearchHit is one search engine result as handed to the model.
type SearchHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchOutput is the tool result returned to the model.
type SearchOutput struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

func NewTavilySearch(cfg SearchConfig, log logger.Logger) *TavilySearch {
	client := apihttp.NewClient(cfg.BaseURL, cfg.Timeout).
		WithHeader("Authorization", "Bearer "+cfg.APIKey)

	return &TavilySearch{
		config: cfg,
		client: client,
		logger: log.With(map[string]interface{}{"tool": SearchToolName}),
	}
}

func (s *TavilySearch) Name() string { return SearchToolName }

func (s *TavilySearch) Description() string {
	return "Search the web for the given query."
}

func (s *TavilySearch) Parameters() map[string]interface{} {
	return stringParameter("query", "The search query.")
}

func (s *TavilySearch) Invoke(ctx context.Context, args string) (result string, err error) {
	started := time.Now()
	defer func() { metrics.ObserveTool(SearchToolName, started, err) }()

	query, err := stringArgument(args, "query")
	if err != nil {
		return "", apperrors.NewToolInvocationFailedError(SearchToolName, err)
	}

	out, err := s.Search(ctx, query)
	if err != nil {
		return "", apperrors.NewToolInvocationFailedError(SearchToolName, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", apperrors.NewToolInvocationFailedError(SearchToolName, err)
	}
	return string(data), nil
}

// Search runs one query against the API.
func (s *TavilySearch) Search(ctx context.Context, query string) (*SearchOutput, error) {
	var resp tavilyResponse
	err := s.client.PostJSON(ctx, "/search", tavilyRequest{
		Query:       query,
		SearchDepth: s.config.SearchDepth,
		MaxResults:  s.config.MaxResults,
	}, &resp)
	if err != nil {
		s.logger.Error("search request failed", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return nil, err
	}

	hits := resp.Results
	if hits == nil {
		hits = []SearchHit{}
	}

	s.logger.Info("search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(hits),
	})

	return &SearchOutput{Query: query, Results: hits}, nil
}
