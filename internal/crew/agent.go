// Package crew runs prompt-defined agents over a fixed, ordered list of tasks.
package crew

import (
	"fmt"

	"product-research-workers/internal/tools"
)

// Agent is the persona a task is executed as.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
	Tools     tools.Set
	// MaxIterations caps the tool-calling rounds of one task. Zero means the
	// executor default.
	MaxIterations int
}

func (a *Agent) SystemPrompt() string {
	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s", a.Role, a.Backstory, a.Goal)
}
