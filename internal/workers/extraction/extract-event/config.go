// internal/workers/extraction/extract-event/config.go
package extractevent

import "time"

type Config struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
}

func LoadConfig() *Config {
	return &Config{
		Model:        "gpt-4o-2024-08-06",
		SystemPrompt: "Extract the event information.",
		Timeout:      60 * time.Second,
		MaxRetries:   1,
	}
}
