package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	apperrors "product-research-workers/internal/common/errors"
	apihttp "product-research-workers/internal/common/http"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/common/metrics"
	"product-research-workers/internal/models"
)

const ScrapeToolName = "html_scraper_tool"

const scrapeDescription = `Scrape the html of the given url.
Example:
html_scraper_tool(
    url = "https://www.amazon.eg/-/en/Mienta-american-coffee-barista-cm31316a/dp/B082VXBZYX",
)`

// PageScraper extracts product details from a single page.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (interface{}, error)
}

// ScrapeTool exposes a PageScraper to the model as html_scraper_tool.
type ScrapeTool struct {
	scraper PageScraper
	logger  logger.Logger
}

func NewScrapeTool(scraper PageScraper, log logger.Logger) *ScrapeTool {
	return &ScrapeTool{
		scraper: scraper,
		logger:  log.With(map[string]interface{}{"tool": ScrapeToolName}),
	}
}

func (s *ScrapeTool) Name() string        { return ScrapeToolName }
func (s *ScrapeTool) Description() string { return scrapeDescription }

func (s *ScrapeTool) Parameters() map[string]interface{} {
	return stringParameter("url", "The url of the product page to scrape.")
}

func (s *ScrapeTool) Invoke(ctx context.Context, args string) (result string, err error) {
	started := time.Now()
	defer func() { metrics.ObserveTool(ScrapeToolName, started, err) }()

	url, err := stringArgument(args, "url")
	if err != nil {
		return "", apperrors.NewToolInvocationFailedError(ScrapeToolName, err)
	}

	details, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		s.logger.Error("scrape failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return "", apperrors.NewToolInvocationFailedError(ScrapeToolName, err)
	}

	data, err := json.Marshal(models.ScrapeResult{URL: url, Details: details})
	if err != nil {
		return "", apperrors.NewToolInvocationFailedError(ScrapeToolName, err)
	}

	s.logger.Info("page scraped", map[string]interface{}{
		"url":   url,
		"bytes": len(data),
	})
	return string(data), nil
}

// ==========================
// ScrapeGraph backend
// ==========================

type ScrapeGraphConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ScrapeGraph calls the smartscraper endpoint, which reads the page and
// answers with the fields named in the prompt.
type ScrapeGraph struct {
	client *apihttp.Client
	prompt string
}

type smartScraperRequest struct {
	WebsiteURL string `json:"website_url"`
	UserPrompt string `json:"user_prompt"`
}

func NewScrapeGraph(cfg ScrapeGraphConfig) *ScrapeGraph {
	client := apihttp.NewClient(cfg.BaseURL, cfg.Timeout).
		WithHeader("SGAI-APIKEY", cfg.APIKey)

	return &ScrapeGraph{
		client: client,
		prompt: ExtractionPrompt(),
	}
}

// ExtractionPrompt asks for the fields of one scraped product, schema inlined.
func ExtractionPrompt() string {
	schema, _ := json.Marshal(models.ScrapedProductSchema.Document())
	return fmt.Sprintf("Extract the following fields: ```json\n%s\n``` from the html of the given url.", schema)
}

func (g *ScrapeGraph) Scrape(ctx context.Context, url string) (interface{}, error) {
	var details map[string]interface{}
	err := g.client.PostJSON(ctx, "/v1/smartscraper", smartScraperRequest{
		WebsiteURL: url,
		UserPrompt: g.prompt,
	}, &details)
	if err != nil {
		return nil, err
	}
	if msg, ok := details["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("smartscraper: %s", msg)
	}
	return details, nil
}

// ==========================
// Headless Chrome backend
// ==========================

type BrowserConfig struct {
	Headless      bool
	Timeout       time.Duration
	MaxTextLength int
}

// PageText is what the browser backend returns for a page.
type PageText struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Browser renders pages in headless Chrome and returns their visible text,
// leaving field extraction to the model.
type Browser struct {
	config BrowserConfig
	fetch  func(ctx context.Context, url string) (title, text string, err error)
}

func NewBrowser(cfg BrowserConfig) *Browser {
	b := &Browser{config: cfg}
	b.fetch = b.render
	return b
}

func (b *Browser) Scrape(ctx context.Context, url string) (interface{}, error) {
	title, text, err := b.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	page := PageText{Title: title, Text: text}
	if b.config.MaxTextLength > 0 && len([]rune(text)) > b.config.MaxTextLength {
		page.Text = string([]rune(text)[:b.config.MaxTextLength])
		page.Truncated = true
	}
	return page, nil
}

func (b *Browser) render(ctx context.Context, url string) (string, string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, b.config.Timeout)
		defer cancel()
	}

	var title, text string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.Title(&title),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", fmt.Errorf("render %s: %w", url, err)
	}
	return title, text, nil
}
