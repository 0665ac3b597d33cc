// cmd/extract-event/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"product-research-workers/internal/common/config"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/llm"
	extractevent "product-research-workers/internal/workers/extraction/extract-event"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to configs/config.yaml)")
	text := flag.String("text", "", "sentence to extract the event from")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the extracted event
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	input := &extractevent.Input{Text: *text}
	if input.Text == "" {
		input.Text = cfg.Extractor.DefaultText
	}

	workerCfg := extractevent.LoadConfig()
	if cfg.Extractor.Model != "" {
		workerCfg.Model = cfg.Extractor.Model
	}
	if cfg.Extractor.SystemPrompt != "" {
		workerCfg.SystemPrompt = cfg.Extractor.SystemPrompt
	}
	if cfg.Extractor.Timeout > 0 {
		workerCfg.Timeout = config.GetDuration(cfg.Extractor.Timeout)
	}
	workerCfg.Temperature = cfg.LLM.Temperature

	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
	}, log)
	handler := extractevent.NewHandler(workerCfg, client, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, workerCfg.Timeout)
	defer cancel()

	output, err := handler.Execute(ctx, input)
	if err != nil {
		zapLog.Error("event extraction failed", zap.Error(err))
		zapLog.Sync()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output.Event); err != nil {
		zapLog.Fatal("failed to print event", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
