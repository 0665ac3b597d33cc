package crew

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/llm"
	"product-research-workers/internal/models"
)

const defaultMaxIterations = 15

// Artifact is the validated output of one task.
type Artifact struct {
	Task    string `json:"task"`
	File    string `json:"file"`
	Content string `json:"content"`
	// Path is set once the artifact has been written.
	Path string `json:"path,omitempty"`
}

type ExecutorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// MaxIterations is used for agents that do not set their own.
	MaxIterations int
	// MaxValidationRetries is how often a schema mismatch is sent back to the
	// model for correction. Zero fails the task on the first mismatch.
	MaxValidationRetries int
}

// Executor runs a single task against the model, invoking tools as asked.
type Executor struct {
	client llm.Client
	config ExecutorConfig
	logger logger.Logger
}

func NewExecutor(client llm.Client, cfg ExecutorConfig, log logger.Logger) *Executor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	return &Executor{
		client: client,
		config: cfg,
		logger: log.With(map[string]interface{}{"component": "executor"}),
	}
}

// Execute renders the task, runs the tool loop and returns the validated
// final answer. prior holds the artifacts handed over from earlier stages.
func (e *Executor) Execute(ctx context.Context, task *Task, params models.RunParams, prior []Artifact) (*Artifact, error) {
	description, err := task.Render(params)
	if err != nil {
		return nil, err
	}

	agent := task.Agent
	limit := e.config.MaxIterations
	if agent.MaxIterations > 0 {
		limit = agent.MaxIterations
	}

	log := e.logger.With(map[string]interface{}{"task": task.Name, "agent": agent.Role})
	log.Info("task started", map[string]interface{}{"tools": len(agent.Tools), "context": len(prior)})
	started := time.Now()

	messages := []llm.Message{
		llm.SystemMessage(agent.SystemPrompt()),
		llm.UserMessage(taskPrompt(task, description, prior)),
	}

	req := &llm.Request{
		Model:       e.config.Model,
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
		Tools:       agent.Tools.Definitions(),
	}
	// tool-using tasks carry the schema in the prompt only
	if len(req.Tools) == 0 {
		req.Schema = task.Schema
	}

	toolRounds := 0
	corrections := 0
	for {
		req.Messages = messages
		resp, err := e.client.Complete(ctx, req)
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) > 0 {
			if toolRounds >= limit {
				log.Error("tool iteration limit reached", map[string]interface{}{"limit": limit})
				return nil, apperrors.NewToolIterationsExceededError(task.Name, limit)
			}
			toolRounds++

			messages = append(messages, llm.AssistantMessage(resp.Content, resp.ToolCalls))
			for _, call := range resp.ToolCalls {
				result, err := e.invoke(ctx, agent, call)
				if err != nil {
					log.Error("tool call failed", map[string]interface{}{"tool": call.Name, "error": err.Error()})
					return nil, err
				}
				messages = append(messages, llm.ToolMessage(call.ID, result))
			}
			continue
		}

		content, err := finalAnswer(task, resp)
		if err == nil {
			log.Info("task finished", map[string]interface{}{
				"toolRounds":  toolRounds,
				"corrections": corrections,
				"durationMs":  time.Since(started).Milliseconds(),
			})
			return &Artifact{Task: task.Name, File: task.OutputFile, Content: content}, nil
		}

		if corrections >= e.config.MaxValidationRetries {
			log.Error("final answer rejected", map[string]interface{}{"error": err.Error()})
			return nil, err
		}
		corrections++
		log.Warn("final answer rejected, asking for a correction", map[string]interface{}{
			"attempt": corrections,
			"error":   err.Error(),
		})
		messages = append(messages,
			llm.AssistantMessage(resp.Content, nil),
			llm.UserMessage(correctionPrompt(err)),
		)
	}
}

func (e *Executor) invoke(ctx context.Context, agent *Agent, call llm.ToolCall) (string, error) {
	tool, ok := agent.Tools.Find(call.Name)
	if !ok {
		return "", apperrors.NewToolInvocationFailedError(call.Name, fmt.Errorf("agent %q has no tool named %q", agent.Role, call.Name))
	}
	return tool.Invoke(ctx, call.Arguments)
}

// finalAnswer validates the model's answer and normalises it for writing.
func finalAnswer(task *Task, resp *llm.Response) (string, error) {
	if resp.Refusal != "" {
		return "", apperrors.NewSchemaValidationFailedError(schemaName(task), []string{"model refused: " + resp.Refusal})
	}

	if task.Markdown() {
		report := models.Report{Markdown: unfenceMarkdown(resp.Content)}
		if err := report.Validate(); err != nil {
			return "", err
		}
		return report.Markdown, nil
	}

	content := llm.StripCodeFence(resp.Content)
	if err := task.Schema.Validate([]byte(content)); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(content), "", "  "); err != nil {
		return "", apperrors.NewSchemaDecodeFailedError(task.Schema.Name(), err)
	}
	return buf.String(), nil
}

func schemaName(task *Task) string {
	if task.Schema != nil {
		return task.Schema.Name()
	}
	return "Report"
}

// unfenceMarkdown drops a ```markdown wrapper around a whole report.
func unfenceMarkdown(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```markdown") || strings.HasPrefix(trimmed, "```md") {
		return llm.StripCodeFence(trimmed)
	}
	return trimmed
}

func taskPrompt(task *Task, description string, prior []Artifact) string {
	var sb strings.Builder
	sb.WriteString(description)
	sb.WriteString("\n\nThis is the expected criteria for your final answer: ")
	sb.WriteString(task.ExpectedOutput)

	if task.Schema != nil {
		doc, _ := json.MarshalIndent(task.Schema.Document(), "", "  ")
		sb.WriteString("\nYour final answer must be a single JSON object matching this JSON schema:\n```json\n")
		sb.Write(doc)
		sb.WriteString("\n```\nReturn only the JSON object, without commentary.")
	} else {
		sb.WriteString("\nReturn the complete markdown document as your final answer, not a summary.")
	}

	if len(prior) > 0 {
		sb.WriteString("\n\nThis is the context you're working with:")
		for _, a := range prior {
			fmt.Fprintf(&sb, "\n\n### %s\n%s", a.File, a.Content)
		}
	}
	return sb.String()
}

func correctionPrompt(err error) string {
	var sb strings.Builder
	sb.WriteString("Your previous answer was rejected:")
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		if violations, ok := stdErr.Metadata["violations"].([]string); ok && len(violations) > 0 {
			for _, v := range violations {
				sb.WriteString("\n- ")
				sb.WriteString(v)
			}
		} else {
			sb.WriteString("\n- ")
			sb.WriteString(stdErr.Details)
		}
	} else {
		sb.WriteString("\n- ")
		sb.WriteString(err.Error())
	}
	sb.WriteString("\nAnswer again with the corrected final answer only.")
	return sb.String()
}
