// internal/models/notification.go
package models

// RunNotification is published when a research run completes.
type RunNotification struct {
	RunID       string   `json:"runId"`
	ProductName string   `json:"productName"`
	Status      string   `json:"status"`
	Artifacts   []string `json:"artifacts"`
	ReportPath  string   `json:"reportPath,omitempty"`
	Products    int      `json:"products"`
	Duration    string   `json:"duration"`
}
