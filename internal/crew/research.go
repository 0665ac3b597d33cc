package crew

import (
	"strings"

	"product-research-workers/internal/models"
	"product-research-workers/internal/tools"
)

// Output files of the research stages.
const (
	SearchQueriesFile  = "search_queries.json"
	SearchResultsFile  = "search_results.json"
	ScraperResultsFile = "html_scraper_results.json"
	ReportFile         = "report.md"
)

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

func SearchQueriesTask() *Task {
	return &Task{
		Name: models.StageGenerateSearchQueries,
		Description: lines(
			"My company is looking to purchase a {{.product_name}} at the best prices (value for money).",
			"You're allowed to search products from curated list of websites given here: {{.websites_list}}",
			"The search queries should be relevant to the product and should be able to find to be compared later in another agent.",
			"All stores are based in {{.delivery_country}}.",
			"Generate {{.number_of_queries}} search queries for the product.",
			"The search query must reach a product e-commerce webpage for the product not just a blog post or a news article.",
			"The search queries must include the website domain name.",
			"The search queries should be in {{.language}}.",
		),
		ExpectedOutput: "A json object containing the list of search queries.",
		Schema:         models.SearchQuerySetSchema,
		OutputFile:     SearchQueriesFile,
		Agent: &Agent{
			Role: "Search Queries Recommender Agent",
			Goal: lines(
				"To generate search queries for a given product to be passed to a search engine.",
				"The search queries should be relevant to the product and should be able to find",
			),
			Backstory: "The agent is designed to generate a list of search queries for a given product to be passed to a search engine.",
		},
	}
}

func SearchProductsTask(search tools.Tool) *Task {
	return &Task{
		Name: models.StageSearchProducts,
		Description: lines(
			"The task is to search for products based on the search queries provided by the Search Queries Recommender Agent.",
			"You have to collect results from multiple search queries.",
			"Ignore any results with confidence score less than {{.confidence_score}}.",
			"Ignore any results that are not direct links to a single product page.",
			"The search results will be used to compare prices of the product across different websites.",
		),
		ExpectedOutput: "A json object containing the search results.",
		Schema:         models.SearchResultSetSchema,
		OutputFile:     SearchResultsFile,
		Agent: &Agent{
			Role:      "Search Engine Agent",
			Goal:      "To search the web for the given query.",
			Backstory: "The agent is designed to search the web for the given query.",
			Tools:     tools.Set{search},
		},
	}
}

func ScrapeProductsTask(scrape tools.Tool) *Task {
	return &Task{
		Name: models.StageScrapeProducts,
		Description: lines(
			"The task is to scrape the html of the given url.",
			"The task has to collect results from multiple urls.",
		),
		ExpectedOutput: "A json object containing the html of the given url.",
		Schema:         models.ScrapedProductSetSchema,
		OutputFile:     ScraperResultsFile,
		Agent: &Agent{
			Role:      "HTML Scraper Agent",
			Goal:      "The task is to scrape the html of the given url.",
			Backstory: "The agent is designed to scrape the html of the given url and extract the product details. These details will be used to compare prices of the product across different websites.",
			Tools:     tools.Set{scrape},
		},
	}
}

func ReportTask() *Task {
	return &Task{
		Name: models.StageGenerateReport,
		Description: lines(
			"The task is to generate a markdown report from the given html scraper results.",
			"The report should be structured in a way that is easy to understand and use.",
			"The report should be structured in the following sections:",
			"1. Executive Summary: A summary of the product and the market research.",
			"2. Introduction: A brief introduction to the product and the market research.",
			"3. Product Specifications: A detailed description of the product's features, models, and technical details.",
			"4. Pros and Cons: A bullet-point list of advantages and disadvantages.",
			"5. Use Cases & Applications: Typical use cases, user demographics, and industry applications.",
			"6. Pricing & Availability: Pricing models, availability, and distribution channels.",
			"7. Conclusion & Recommendations: Final thoughts, key takeaways, and actionable insights.",
			"8. References: Sources and links used for gathering the research data.",
		),
		ExpectedOutput: "A markdown report from the given html scraper results.",
		OutputFile:     ReportFile,
		Agent: &Agent{
			Role:      "Report Generator Agent",
			Goal:      "to generate a markdown report from the given html scraper results.",
			Backstory: "The agent is designed to generate a markdown report from the given html scraper results.",
		},
	}
}

// ResearchTasks returns the four research stages in execution order.
func ResearchTasks(box *tools.Toolbox) []*Task {
	return []*Task{
		SearchQueriesTask(),
		SearchProductsTask(box.Search),
		ScrapeProductsTask(box.Scrape),
		ReportTask(),
	}
}

// TaskForStage returns the definition of a single stage, or nil for an unknown name.
func TaskForStage(stage string, box *tools.Toolbox) *Task {
	for _, t := range ResearchTasks(box) {
		if t.Name == stage {
			return t
		}
	}
	return nil
}
