// internal/models/event.go
package models

import "product-research-workers/internal/common/validation"

// ExtractedEvent is the structured answer of the single-shot extractor.
type ExtractedEvent struct {
	Reasoning    string   `json:"reasoning" jsonschema_description:"The reasoning behind the LLM's response."`
	Name         string   `json:"name"`
	Date         string   `json:"date"`
	Participants []string `json:"participants"`
}

var ExtractedEventSchema = validation.MustReflect[ExtractedEvent](
	"CalendarEvent",
	"An event extracted from a natural-language sentence.",
)
