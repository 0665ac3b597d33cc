// Package tools holds the network-backed functions the research agents may call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"product-research-workers/internal/llm"
)

// Tool is a function exposed to the model during a task.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() map[string]interface{}
	// Invoke runs the tool with the raw JSON arguments produced by the model
	// and returns the text handed back to it.
	Invoke(ctx context.Context, args string) (string, error)
}

// Definition converts a tool into the form sent to the chat completion API.
func Definition(t Tool) llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Set is an ordered collection of tools looked up by name.
type Set []Tool

func (s Set) Find(name string) (Tool, bool) {
	for _, t := range s {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

func (s Set) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(s))
	for _, t := range s {
		defs = append(defs, Definition(t))
	}
	return defs
}

// stringParameter builds the schema of an arguments object holding one required string.
func stringParameter(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			name: map[string]interface{}{
				"type":        "string",
				"description": description,
			},
		},
		"required":             []string{name},
		"additionalProperties": false,
	}
}

// stringArgument extracts a required, non-empty string argument.
func stringArgument(args, name string) (string, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(args), &decoded); err != nil {
		return "", fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	raw, ok := decoded[name]
	if !ok {
		return "", fmt.Errorf("missing argument %q", name)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("argument %q is empty", name)
	}
	return value, nil
}
