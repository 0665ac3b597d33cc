// Package llm is the chat-completion seam used by the extractor and the crew.
package llm

import (
	"context"

	"product-research-workers/internal/common/validation"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role    Role
	Content string
	// ToolCalls is set on assistant messages that asked for tools.
	ToolCalls []ToolCall
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

type Request struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []Message
	// Schema, when set, is sent as a json_schema response format.
	Schema *validation.Schema
	Tools  []ToolDefinition
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Response struct {
	Model        string
	Content      string
	Refusal      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Client performs one chat completion round trip.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}
