// cmd/research/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"product-research-workers/internal/app"
	"product-research-workers/internal/common/camunda"
	"product-research-workers/internal/common/config"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/common/observability"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/models"
)

const (
	engineLocal = "local"
	engineZeebe = "zeebe"
)

type options struct {
	configPath string
	engine     string
	bpmnPath   string
	deploy     bool
	wait       bool
	outputDir  string

	product    string
	websites   string
	country    string
	queries    int
	language   string
	confidence int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a config file (defaults to configs/config.yaml)")
	flag.StringVar(&opts.engine, "engine", engineLocal, "where the stages run: local or zeebe")
	flag.StringVar(&opts.bpmnPath, "bpmn", "bpmn/product-market-research.bpmn", "process model deployed before a zeebe run")
	flag.BoolVar(&opts.deploy, "deploy", true, "deploy the process model before a zeebe run")
	flag.BoolVar(&opts.wait, "wait", true, "wait for a zeebe run to finish")
	flag.StringVar(&opts.outputDir, "output", "", "artifact directory (overrides crew.output_dir)")
	flag.StringVar(&opts.product, "product", "", "product to research")
	flag.StringVar(&opts.websites, "websites", "", "comma separated store websites")
	flag.StringVar(&opts.country, "country", "", "delivery country")
	flag.IntVar(&opts.queries, "queries", 0, "number of search queries (1-10)")
	flag.StringVar(&opts.language, "language", "", "language of queries and report")
	flag.IntVar(&opts.confidence, "confidence", 0, "minimum search result confidence (0-100)")
	flag.Parse()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if opts.outputDir != "" {
		cfg.Crew.OutputDir = opts.outputDir
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	params := runParams(cfg, &opts)
	if err := params.Validate(); err != nil {
		zapLog.Error("invalid run parameters", zap.Error(err))
		zapLog.Sync()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.engine {
	case engineLocal:
		err = runLocal(ctx, cfg, params, log)
	case engineZeebe:
		err = runZeebe(ctx, cfg, &opts, params, log)
	default:
		err = fmt.Errorf("unknown engine %q", opts.engine)
	}
	if err != nil {
		zapLog.Error("research run failed", zap.Error(err))
		zapLog.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// runParams starts from the research defaults in config and applies only the
// flags given on the command line.
func runParams(cfg *config.Config, opts *options) models.RunParams {
	params := app.ResearchDefaults(cfg.Research)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "product":
			params.ProductName = opts.product
		case "websites":
			params.WebsitesList = splitList(opts.websites)
		case "country":
			params.DeliveryCountry = opts.country
		case "queries":
			params.NumberOfQueries = opts.queries
		case "language":
			params.Language = opts.language
		case "confidence":
			params.ConfidenceScore = opts.confidence
		}
	})
	return params
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runLocal(ctx context.Context, cfg *config.Config, params models.RunParams, log logger.Logger) error {
	obs := observability.New("research")
	defer obs.Shutdown()

	services, err := app.New(ctx, cfg, app.Options{Layout: app.FlatLayout}, log)
	if err != nil {
		return err
	}
	defer services.Close()

	executor := app.NewExecutor(services.LLM, cfg, log)
	crewOpts := append(services.CrewOptions(),
		crew.WithObserver(obs),
		crew.WithStageTimeout(config.GetDuration(cfg.Crew.StageTimeout)),
	)
	c := crew.New(crew.ResearchTasks(services.Tools), executor, services.Store, log, crewOpts...)

	result, err := c.Kickoff(ctx, params)
	if result != nil {
		for _, a := range result.Artifacts {
			fmt.Println(a.Path)
		}
	}
	return err
}

func runZeebe(ctx context.Context, cfg *config.Config, opts *options, params models.RunParams, log logger.Logger) error {
	if err := cfg.RequireCamunda(); err != nil {
		return err
	}

	client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.deploy {
		deployments, err := client.DeployProcess(ctx, opts.bpmnPath)
		if err != nil {
			return err
		}
		for _, d := range deployments {
			log.Info("process deployed", map[string]interface{}{
				"bpmnProcessId": d.BPMNProcessID,
				"version":       d.Version,
				"key":           d.ProcessDefinitionKey,
			})
		}
	}

	variables := map[string]interface{}{
		"runId":  uuid.NewString(),
		"params": params,
	}
	log = log.With(map[string]interface{}{"runId": variables["runId"], "processId": cfg.Camunda.ProcessID})

	if !opts.wait {
		key, err := client.StartProcess(ctx, cfg.Camunda.ProcessID, variables)
		if err != nil {
			return err
		}
		log.Info("research process started", map[string]interface{}{"processInstanceKey": key})
		fmt.Println(variables["runId"])
		return nil
	}

	log.Info("research process started, waiting for the report", nil)
	result, err := client.RunProcess(ctx, cfg.Camunda.ProcessID, variables,
		"runId", "status", "searchQueriesPath", "searchResultsPath", "scrapedProductsPath", "reportPath")
	if err != nil {
		return err
	}
	for _, key := range []string{"searchQueriesPath", "searchResultsPath", "scrapedProductsPath", "reportPath"} {
		if path, ok := result[key].(string); ok && path != "" {
			fmt.Println(path)
		}
	}
	if status, _ := result["status"].(string); status != string(models.RunStatusCompleted) {
		return fmt.Errorf("research process ended with status %q", status)
	}
	return nil
}
