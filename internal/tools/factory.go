package tools

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"product-research-workers/internal/common/config"
	"product-research-workers/internal/common/logger"
)

// Toolbox holds the configured research tools.
type Toolbox struct {
	Search Tool
	Scrape Tool
}

// NewToolbox builds the search and scrape tools from configuration. rdb may be
// nil, in which case the cache setting is ignored.
func NewToolbox(cfg config.ToolsConfig, rdb redis.Cmdable, log logger.Logger) (*Toolbox, error) {
	var search Tool = NewTavilySearch(SearchConfig{
		BaseURL:     cfg.Search.BaseURL,
		APIKey:      cfg.Search.APIKey,
		MaxResults:  cfg.Search.MaxResults,
		SearchDepth: cfg.Search.SearchDepth,
		Timeout:     millis(cfg.Search.Timeout),
	}, log)

	var scraper PageScraper
	switch cfg.Scrape.Provider {
	case config.ScrapeProviderScrapeGraph, "":
		scraper = NewScrapeGraph(ScrapeGraphConfig{
			BaseURL: cfg.Scrape.BaseURL,
			APIKey:  cfg.Scrape.APIKey,
			Timeout: millis(cfg.Scrape.Timeout),
		})
	case config.ScrapeProviderChromedp:
		scraper = NewBrowser(BrowserConfig{
			Headless:      cfg.Scrape.Headless,
			Timeout:       millis(cfg.Scrape.Timeout),
			MaxTextLength: cfg.Scrape.MaxTextLength,
		})
	default:
		return nil, fmt.Errorf("unknown scrape provider %q", cfg.Scrape.Provider)
	}
	var scrape Tool = NewScrapeTool(scraper, log)

	if cfg.Cache.Enabled && rdb != nil {
		ttl := time.Duration(cfg.Cache.TTL) * time.Second
		search = NewCached(search, rdb, ttl, log)
		scrape = NewCached(scrape, rdb, ttl, log)
	}

	return &Toolbox{Search: search, Scrape: scrape}, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
