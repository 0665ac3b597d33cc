package crew

import (
	"context"
	"strings"
	"sync"

	"product-research-workers/internal/llm"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeLLM answers each request with handler and keeps a snapshot of every request.
type fakeLLM struct {
	mu       sync.Mutex
	handler  func(req *llm.Request, call int) (*llm.Response, error)
	requests []llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	snapshot := *req
	snapshot.Messages = append([]llm.Message(nil), req.Messages...)
	f.requests = append(f.requests, snapshot)
	call := len(f.requests)
	f.mu.Unlock()
	return f.handler(req, call)
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func answer(content string) *llm.Response {
	return &llm.Response{Content: content, FinishReason: "stop"}
}

func toolCall(id, name, args string) *llm.Response {
	return &llm.Response{
		FinishReason: "tool_calls",
		ToolCalls:    []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func lastMessage(req *llm.Request) llm.Message {
	return req.Messages[len(req.Messages)-1]
}

func systemPrompt(req *llm.Request) string {
	return req.Messages[0].Content
}

func isAgent(req *llm.Request, role string) bool {
	return strings.Contains(systemPrompt(req), "You are "+role+".")
}

// recordingTool is a tools.Tool returning a canned result.
type recordingTool struct {
	name   string
	result string
	err    error

	mu   sync.Mutex
	args []string
}

func (r *recordingTool) Name() string        { return r.name }
func (r *recordingTool) Description() string { return "recording " + r.name }
func (r *recordingTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (r *recordingTool) Invoke(ctx context.Context, args string) (string, error) {
	r.mu.Lock()
	r.args = append(r.args, args)
	r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	return r.result, nil
}

func (r *recordingTool) invocations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.args...)
}
