package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/common/metrics"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single request; zero leaves it to the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client openai.Client
	logger logger.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, log logger.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// failures surface to the caller unchanged
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		logger: log.With(map[string]interface{}{"component": "llm"}),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	params := buildParams(req)
	started := time.Now()

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		metrics.ObserveLLM(req.Model, started, 0, 0, err)
		return nil, c.classify(ctx, req, err)
	}
	metrics.ObserveLLM(req.Model, started, completion.Usage.PromptTokens, completion.Usage.CompletionTokens, nil)

	if len(completion.Choices) == 0 {
		return nil, apperrors.NewLLMRequestFailedError(errors.New("response contained no choices"))
	}

	choice := completion.Choices[0]
	resp := &Response{
		Model:        completion.Model,
		Content:      choice.Message.Content,
		Refusal:      choice.Message.Refusal,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	c.logger.Debug("chat completion finished", map[string]interface{}{
		"model":            resp.Model,
		"finishReason":     resp.FinishReason,
		"toolCalls":        len(resp.ToolCalls),
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
		"durationMs":       time.Since(started).Milliseconds(),
	})
	return resp, nil
}

func (c *OpenAIClient) classify(ctx context.Context, req *Request, err error) error {
	fields := map[string]interface{}{"model": req.Model, "error": err}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		fields["statusCode"] = apiErr.StatusCode
	}
	c.logger.Error("chat completion failed", fields)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewLLMTimeoutError(err)
	}
	stdErr := apperrors.NewLLMRequestFailedError(err)
	if apiErr != nil {
		stdErr.WithMetadata("statusCode", apiErr.StatusCode)
	}
	return stdErr
}

func buildParams(req *Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name(),
					Description: openai.String(req.Schema.Description()),
					Schema:      req.Schema.Document(),
					Strict:      openai.Bool(req.Schema.Strict()),
				},
			},
		}
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	if len(req.Tools) > 0 {
		// one tool call at a time, in order
		params.ParallelToolCalls = openai.Bool(false)
	}
	return params
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case RoleAssistant:
			out = append(out, assistantParam(m))
		default:
			panic(fmt.Sprintf("llm: unknown message role %q", m.Role))
		}
	}
	return out
}

func assistantParam(m Message) openai.ChatCompletionMessageParamUnion {
	asst := &openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(m.Content),
		}
	}
	for _, tc := range m.ToolCalls {
		asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: asst}
}
