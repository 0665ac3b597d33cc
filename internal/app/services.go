// internal/app/services.go
package app

import (
	"context"
	"fmt"
	"time"

	"product-research-workers/internal/artifacts"
	"product-research-workers/internal/common/config"
	"product-research-workers/internal/common/database"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/index"
	"product-research-workers/internal/llm"
	"product-research-workers/internal/models"
	"product-research-workers/internal/notify"
	"product-research-workers/internal/repository/runs"
	"product-research-workers/internal/tools"
	"product-research-workers/internal/workers/research/stage"
)

// StoreLayout selects how artifacts are laid out under the output directory.
type StoreLayout int

const (
	// FlatLayout writes every run's files straight into the output directory,
	// the way the local CLI run does.
	FlatLayout StoreLayout = iota
	// PerRunLayout gives each run its own sub-directory, so concurrent runs
	// handled by the job workers do not overwrite each other.
	PerRunLayout
)

// Services are the long-lived clients shared by the CLI and the worker manager.
// Optional backends are nil when disabled in config.
type Services struct {
	LLM      llm.Client
	Tools    *tools.Toolbox
	Store    artifacts.Store
	Runs     *runs.Repository
	Products *index.ProductIndex
	Notifier *notify.Notifier

	postgres *database.PostgresClient
	redis    *database.RedisClient
	logger   logger.Logger
}

type Options struct {
	Layout StoreLayout
	// Attempts bounds how often each backend connection is tried.
	Attempts     int
	InitialDelay time.Duration
}

// New connects every enabled backend. A backend that is enabled but never
// comes up is a startup error.
func New(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) (*Services, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 2 * time.Second
	}

	s := &Services{logger: log}
	s.LLM = llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: config.GetDuration(cfg.LLM.Timeout),
	}, log)

	if cfg.Database.Redis.Enabled {
		err := RetryWithBackoff(ctx, func() error {
			var err error
			s.redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return s.redis.Ping(ctx)
		}, opts.Attempts, opts.InitialDelay, log, "Redis connection")
		if err != nil {
			s.Close()
			return nil, err
		}
		log.Info("Redis connected successfully", nil)
	}

	var err error
	if s.redis != nil {
		s.Tools, err = tools.NewToolbox(cfg.Tools, s.redis.Client, log)
	} else {
		s.Tools, err = tools.NewToolbox(cfg.Tools, nil, log)
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Store = newStore(cfg, opts.Layout, s.redis, log)

	if cfg.Database.Postgres.Enabled {
		err := RetryWithBackoff(ctx, func() error {
			var err error
			s.postgres, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return s.postgres.Ping(ctx)
		}, opts.Attempts, opts.InitialDelay, log, "PostgreSQL connection")
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Runs = runs.NewRepository(s.postgres.DB)
		if err := s.Runs.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("prepare research_runs table: %w", err)
		}
		log.Info("PostgreSQL connected successfully", nil)
	}

	if cfg.Database.Elasticsearch.Enabled {
		err := RetryWithBackoff(ctx, func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			s.Products = index.NewProductIndex(es.Client, cfg.Database.Elasticsearch.Index, log)
			return s.Products.EnsureIndex(ctx)
		}, opts.Attempts, opts.InitialDelay, log, "Elasticsearch connection")
		if err != nil {
			s.Close()
			return nil, err
		}
		log.Info("Elasticsearch connected successfully", nil)
	}

	s.Notifier, err = notify.FromConfig(ctx, cfg.Notifications, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func newStore(cfg *config.Config, layout StoreLayout, rdb *database.RedisClient, log logger.Logger) artifacts.Store {
	var files *artifacts.FileStore
	if layout == PerRunLayout {
		files = artifacts.NewPerRunFileStore(cfg.Crew.OutputDir)
	} else {
		files = artifacts.NewFileStore(cfg.Crew.OutputDir)
	}
	if rdb == nil {
		return files
	}
	ttl := time.Duration(cfg.Database.Redis.ArtifactTTL) * time.Second
	return artifacts.NewMirrored(files, rdb.Client, ttl, log)
}

// Recorder returns the run history, or nil when Postgres is disabled.
func (s *Services) Recorder() crew.RunRecorder {
	if s.Runs == nil {
		return nil
	}
	return s.Runs
}

// ProductIndexer returns the product index, or nil when Elasticsearch is disabled.
func (s *Services) ProductIndexer() crew.ProductIndexer {
	if s.Products == nil {
		return nil
	}
	return s.Products
}

// RunNotifier returns the notifier, or nil when no channel is enabled.
func (s *Services) RunNotifier() crew.Notifier {
	if s.Notifier == nil {
		return nil
	}
	return s.Notifier
}

// StageDeps is what every research job worker needs.
func (s *Services) StageDeps(executor *crew.Executor) stage.Deps {
	return stage.Deps{
		Executor: executor,
		Store:    s.Store,
		Recorder: s.Recorder(),
	}
}

// CrewOptions hands the optional backends to a local crew run.
func (s *Services) CrewOptions() []crew.Option {
	var opts []crew.Option
	if r := s.Recorder(); r != nil {
		opts = append(opts, crew.WithRecorder(r))
	}
	if i := s.ProductIndexer(); i != nil {
		opts = append(opts, crew.WithIndexer(i))
	}
	if n := s.RunNotifier(); n != nil {
		opts = append(opts, crew.WithNotifier(n))
	}
	return opts
}

func (s *Services) Close() {
	if s.postgres != nil {
		if err := s.postgres.Close(); err != nil {
			s.logger.Warn("failed to close postgres", map[string]interface{}{"error": err.Error()})
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("failed to close redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

// NewExecutor builds the task executor from the llm and crew settings.
func NewExecutor(client llm.Client, cfg *config.Config, log logger.Logger) *crew.Executor {
	return crew.NewExecutor(client, crew.ExecutorConfig{
		Model:                cfg.LLM.Model,
		Temperature:          cfg.LLM.Temperature,
		MaxTokens:            cfg.LLM.MaxTokens,
		MaxIterations:        cfg.Crew.MaxIterations,
		MaxValidationRetries: cfg.Crew.MaxValidationRetries,
	}, log)
}

// ResearchDefaults turns the research section into run parameters, falling
// back to the reference run for anything left unset.
func ResearchDefaults(cfg config.ResearchConfig) models.RunParams {
	return models.RunParams{
		ProductName:     cfg.ProductName,
		WebsitesList:    cfg.Websites,
		DeliveryCountry: cfg.DeliveryCountry,
		NumberOfQueries: cfg.NumberOfQueries,
		Language:        cfg.Language,
		ConfidenceScore: cfg.ConfidenceScore,
	}.WithDefaults(models.DefaultRunParams())
}
