// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported scrape backends.
const (
	ScrapeProviderScrapeGraph = "scrapegraph"
	ScrapeProviderChromedp    = "chromedp"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// applies environment overrides and defaults, then validates the result.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	if root := findProjectRoot(); root != "" {
		v.AddConfigPath(filepath.Join(root, "configs"))
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1. base config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2. environment overlay, optional
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// LLM_API_KEY overrides llm.api_key, TOOLS_SEARCH_API_KEY overrides tools.search.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile tries the usual .env locations so the binaries work from cmd/ and from tests.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			// stdout belongs to the CLI results
			if err := godotenv.Load(path); err == nil {
				fmt.Fprintf(os.Stderr, "loaded .env from: %s\n", path)
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from their conventional variable names
// when neither the yaml nor the viper env binding provided them.
func overrideEmptyConfig(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		for _, name := range []string{"OPENAI_API_KEY", "LLM_API_KEY", "GROQ_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.LLM.APIKey = val
				break
			}
		}
	}
	if cfg.Tools.Search.APIKey == "" {
		if val := os.Getenv("TAVILY_API_KEY"); val != "" {
			cfg.Tools.Search.APIKey = val
		}
	}
	if cfg.Tools.Scrape.APIKey == "" {
		if val := os.Getenv("SCRAPEGRAPH_API_KEY"); val != "" {
			cfg.Tools.Scrape.APIKey = val
		}
	}

	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Notifications.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Notifications.AWS.Region = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "product-research-workers"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	// LLM defaults
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-2024-08-06"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120000
	}
	if cfg.Extractor.Model == "" {
		cfg.Extractor.Model = cfg.LLM.Model
	}
	if cfg.Extractor.SystemPrompt == "" {
		cfg.Extractor.SystemPrompt = "Extract the event information."
	}
	if cfg.Extractor.DefaultText == "" {
		cfg.Extractor.DefaultText = "AI learning seminar, October 20."
	}
	if cfg.Extractor.Timeout == 0 {
		cfg.Extractor.Timeout = cfg.LLM.Timeout
	}

	// Tool defaults
	if cfg.Tools.Search.BaseURL == "" {
		cfg.Tools.Search.BaseURL = "https://api.tavily.com"
	}
	if cfg.Tools.Search.MaxResults == 0 {
		cfg.Tools.Search.MaxResults = 5
	}
	if cfg.Tools.Search.SearchDepth == "" {
		cfg.Tools.Search.SearchDepth = "basic"
	}
	if cfg.Tools.Search.Timeout == 0 {
		cfg.Tools.Search.Timeout = 30000
	}
	if cfg.Tools.Scrape.Provider == "" {
		cfg.Tools.Scrape.Provider = ScrapeProviderScrapeGraph
	}
	if cfg.Tools.Scrape.BaseURL == "" {
		cfg.Tools.Scrape.BaseURL = "https://api.scrapegraphai.com"
	}
	if cfg.Tools.Scrape.Timeout == 0 {
		cfg.Tools.Scrape.Timeout = 120000
	}
	if cfg.Tools.Scrape.MaxTextLength == 0 {
		cfg.Tools.Scrape.MaxTextLength = 20000
	}
	if cfg.Tools.Cache.TTL == 0 {
		cfg.Tools.Cache.TTL = 3600
	}

	// Crew defaults
	if cfg.Crew.OutputDir == "" {
		cfg.Crew.OutputDir = "./ai-agent-output"
	}
	if cfg.Crew.MaxIterations == 0 {
		cfg.Crew.MaxIterations = 15
	}
	if cfg.Crew.StageTimeout == 0 {
		cfg.Crew.StageTimeout = 600000
	}

	// Research run defaults
	if cfg.Research.ProductName == "" {
		cfg.Research.ProductName = "coffee machine"
	}
	if len(cfg.Research.Websites) == 0 {
		cfg.Research.Websites = []string{"https://www.amazon.eg", "https://www.jumia.com.eg", "https://noon.com/egypt-en"}
	}
	if cfg.Research.DeliveryCountry == "" {
		cfg.Research.DeliveryCountry = "Egypt"
	}
	if cfg.Research.NumberOfQueries == 0 {
		cfg.Research.NumberOfQueries = 10
	}
	if cfg.Research.Language == "" {
		cfg.Research.Language = "English"
	}
	if cfg.Research.ConfidenceScore == 0 {
		cfg.Research.ConfidenceScore = 70
	}

	// Camunda defaults
	if cfg.Camunda.ProcessID == "" {
		cfg.Camunda.ProcessID = "product-market-research"
	}
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "products"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "pkg/registry/activities.json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 1
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Crew.StageTimeout
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", cfg.LLM.Temperature)
	}

	switch cfg.Tools.Scrape.Provider {
	case ScrapeProviderScrapeGraph, ScrapeProviderChromedp:
	default:
		return fmt.Errorf("tools.scrape.provider must be %q or %q, got %q",
			ScrapeProviderScrapeGraph, ScrapeProviderChromedp, cfg.Tools.Scrape.Provider)
	}

	if cfg.Crew.MaxIterations < 1 {
		return fmt.Errorf("crew.max_iterations must be at least 1")
	}
	if cfg.Crew.MaxValidationRetries < 0 {
		return fmt.Errorf("crew.max_validation_retries must not be negative")
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}
	if cfg.Database.Elasticsearch.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}
	if (cfg.Database.Redis.Enabled || cfg.Tools.Cache.Enabled) && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Notifications.Enabled() && cfg.Notifications.AWS.Region == "" {
		return fmt.Errorf("notifications.aws.region is required")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.FromEmail == "" || len(cfg.Notifications.SES.ToEmails) == 0) {
		return fmt.Errorf("notifications.ses.from_email and to_emails are required")
	}

	return nil
}

// RequireCamunda checks the settings only the Zeebe-backed binaries need.
func (c *Config) RequireCamunda() error {
	if c.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       cfg.Crew.StageTimeout,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
