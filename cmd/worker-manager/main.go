// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"product-research-workers/internal/app"
	"product-research-workers/internal/common/camunda"
	"product-research-workers/internal/common/config"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/common/observability"

	// Research Workers (4)
	gr "product-research-workers/internal/workers/research/generate-report"
	gsq "product-research-workers/internal/workers/research/generate-search-queries"
	scp "product-research-workers/internal/workers/research/scrape-products"
	srp "product-research-workers/internal/workers/research/search-products"

	// Extraction Workers (1)
	ee "product-research-workers/internal/workers/extraction/extract-event"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	if err := cfg.RequireCamunda(); err != nil {
		zapLog.Fatal("invalid camunda config", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = app.RetryWithBackoff(ctx, func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init LLM, tools, artifact store and optional backends with retry ---
	services, err := app.New(ctx, cfg, app.Options{
		Layout:       app.PerRunLayout,
		Attempts:     15,
		InitialDelay: 2 * time.Second,
	}, log)
	if err != nil {
		zapLog.Fatal("service initialization failed", zap.Error(err))
	}
	defer services.Close()

	executor := app.NewExecutor(services.LLM, cfg, log)
	deps := services.StageDeps(executor)
	defaults := app.ResearchDefaults(cfg.Research)

	// --- START: Register workers ---
	var workers []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if wcfg.MaxJobsActive == 0 {
			wcfg.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if w := camunda.StartWorker(zeebeClient, taskType, wcfg, camunda.Instrument(handler, taskType, obs), log); w != nil {
			workers = append(workers, w)
		}
	}
	timeout := func(taskType string, fallback time.Duration) time.Duration {
		if wcfg := config.GetWorkerConfig(cfg, taskType); wcfg.Timeout > 0 {
			return config.GetDuration(wcfg.Timeout)
		}
		return fallback
	}
	maxRetries := func(taskType string, fallback int) int {
		if wcfg := config.GetWorkerConfig(cfg, taskType); wcfg.MaxRetries > 0 {
			return wcfg.MaxRetries
		}
		return fallback
	}

	// --- 1. Research Workers (4) ---
	{
		c := gsq.LoadConfig()
		c.Timeout = timeout(gsq.TaskType, c.Timeout)
		c.MaxRetries = maxRetries(gsq.TaskType, c.MaxRetries)
		c.Defaults = defaults
		start(gsq.TaskType, gsq.NewHandler(c, deps, log))
	}
	{
		c := srp.LoadConfig()
		c.Timeout = timeout(srp.TaskType, c.Timeout)
		c.MaxRetries = maxRetries(srp.TaskType, c.MaxRetries)
		c.Defaults = defaults
		start(srp.TaskType, srp.NewHandler(c, services.Tools.Search, deps, log))
	}
	{
		c := scp.LoadConfig()
		c.Timeout = timeout(scp.TaskType, c.Timeout)
		c.MaxRetries = maxRetries(scp.TaskType, c.MaxRetries)
		c.Defaults = defaults
		start(scp.TaskType, scp.NewHandler(c, services.Tools.Scrape, deps, services.ProductIndexer(), log))
	}
	{
		c := gr.LoadConfig()
		c.Timeout = timeout(gr.TaskType, c.Timeout)
		c.MaxRetries = maxRetries(gr.TaskType, c.MaxRetries)
		c.Defaults = defaults
		start(gr.TaskType, gr.NewHandler(c, deps, services.RunNotifier(), log))
	}

	// --- 2. Extraction Workers (1) ---
	{
		c := ee.LoadConfig()
		if cfg.Extractor.Model != "" {
			c.Model = cfg.Extractor.Model
		}
		if cfg.Extractor.SystemPrompt != "" {
			c.SystemPrompt = cfg.Extractor.SystemPrompt
		}
		c.Temperature = cfg.LLM.Temperature
		c.Timeout = timeout(ee.TaskType, c.Timeout)
		c.MaxRetries = maxRetries(ee.TaskType, c.MaxRetries)
		start(ee.TaskType, ee.NewHandler(c, services.LLM, log))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	var shuttingDown atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if shuttingDown.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "shutting_down")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shuttingDown.Store(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
