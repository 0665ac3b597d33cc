// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	LLM           LLMConfig               `mapstructure:"llm"`
	Extractor     ExtractorConfig         `mapstructure:"extractor"`
	Tools         ToolsConfig             `mapstructure:"tools"`
	Crew          CrewConfig              `mapstructure:"crew"`
	Research      ResearchConfig          `mapstructure:"research"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LLMConfig points at any OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

// ExtractorConfig holds the settings of the single-shot event extractor.
type ExtractorConfig struct {
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
	DefaultText  string `mapstructure:"default_text"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

type ToolsConfig struct {
	Search SearchToolConfig `mapstructure:"search"`
	Scrape ScrapeToolConfig `mapstructure:"scrape"`
	Cache  ToolCacheConfig  `mapstructure:"cache"`
}

// SearchToolConfig configures the Tavily search backend.
type SearchToolConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	APIKey      string `mapstructure:"api_key"`
	MaxResults  int    `mapstructure:"max_results"`
	SearchDepth string `mapstructure:"search_depth"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

// ScrapeToolConfig selects and configures the page scraper backend.
type ScrapeToolConfig struct {
	Provider      string `mapstructure:"provider"` // scrapegraph | chromedp
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
	Headless      bool   `mapstructure:"headless"`
	MaxTextLength int    `mapstructure:"max_text_length"`
}

type ToolCacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // seconds
}

// CrewConfig controls the sequential pipeline runner.
type CrewConfig struct {
	OutputDir            string `mapstructure:"output_dir"`
	MaxIterations        int    `mapstructure:"max_iterations"`
	MaxValidationRetries int    `mapstructure:"max_validation_retries"`
	StageTimeout         int    `mapstructure:"stage_timeout"` // milliseconds
	Verbose              bool   `mapstructure:"verbose"`
}

// ResearchConfig holds the default run parameters used when the CLI flags are omitted.
type ResearchConfig struct {
	ProductName     string   `mapstructure:"product_name"`
	Websites        []string `mapstructure:"websites"`
	DeliveryCountry string   `mapstructure:"delivery_country"`
	NumberOfQueries int      `mapstructure:"number_of_queries"`
	Language        string   `mapstructure:"language"`
	ConfidenceScore int      `mapstructure:"confidence_score"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	ProcessID      string `mapstructure:"process_id"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // caps engine retries handed back per failed job
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
	Index      string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// ArtifactTTL bounds how long mirrored artifacts live, in seconds. 0 keeps them.
	ArtifactTTL int `mapstructure:"artifact_ttl"`
}

// NotificationConfig holds settings for the run-completion notifier.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"ses"`
}

// Enabled reports whether any notification channel is switched on.
func (n NotificationConfig) Enabled() bool {
	return n.SNS.Enabled || n.SES.Enabled
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// RegistryConfig locates the generated activity registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
