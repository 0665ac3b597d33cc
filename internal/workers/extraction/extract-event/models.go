// internal/workers/extraction/extract-event/models.go
package extractevent

import "product-research-workers/internal/models"

type Input struct {
	Text string `json:"text"`
}

type Output struct {
	Event models.ExtractedEvent `json:"event"`
	Model string                `json:"model"`
}
