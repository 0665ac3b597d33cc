// internal/workers/extraction/extract-event/handler_test.go
package extractevent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/llm"
)

// ==========================
// Test Helper Functions
// ==========================

type cannedLLM struct {
	resp *llm.Response
	err  error
	reqs []*llm.Request
}

func (c *cannedLLM) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.reqs = append(c.reqs, req)
	return c.resp, c.err
}

func createTestHandler(t *testing.T, client llm.Client) *Handler {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return NewHandler(cfg, client, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	fake := &cannedLLM{resp: &llm.Response{
		Model:   "gpt-4o-2024-08-06",
		Content: `{"reasoning":"The sentence names a seminar on October 20.","name":"AI learning seminar","date":"October 20","participants":[]}`,
	}}
	h := createTestHandler(t, fake)

	output, err := h.Execute(context.Background(), &Input{Text: "AI learning seminar, October 20."})
	require.NoError(t, err)

	assert.Equal(t, "AI learning seminar", output.Event.Name)
	assert.Equal(t, "October 20", output.Event.Date)
	assert.Empty(t, output.Event.Participants)
	assert.Equal(t, "gpt-4o-2024-08-06", output.Model)

	require.Len(t, fake.reqs, 1)
	req := fake.reqs[0]
	assert.Equal(t, "gpt-4o-2024-08-06", req.Model)
	assert.Equal(t, "Extract the event information.", req.Messages[0].Content)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Equal(t, "AI learning seminar, October 20.", req.Messages[1].Content)
	require.NotNil(t, req.Schema)
	assert.Equal(t, "CalendarEvent", req.Schema.Name())
}

func TestHandler_Execute_KeepsParticipantOrder(t *testing.T) {
	fake := &cannedLLM{resp: &llm.Response{
		Content: `{"reasoning":"r","name":"Science fair","date":"Friday","participants":["Alice","Bob","Carol"]}`,
	}}
	output, err := createTestHandler(t, fake).Execute(context.Background(), &Input{Text: "Alice, Bob and Carol are going to a science fair on Friday."})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, output.Event.Participants)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_EmptyText(t *testing.T) {
	fake := &cannedLLM{}
	_, err := createTestHandler(t, fake).Execute(context.Background(), &Input{Text: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRunParameters))
	assert.Empty(t, fake.reqs)
}

func TestHandler_Execute_UnparsableAnswer(t *testing.T) {
	fake := &cannedLLM{resp: &llm.Response{Content: `{"name":"AI learning seminar"}`}}
	_, err := createTestHandler(t, fake).Execute(context.Background(), &Input{Text: "AI learning seminar, October 20."})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSchemaValidationFailed))
	assert.Len(t, fake.reqs, 1)
}

func TestHandler_Execute_ClientErrorPropagates(t *testing.T) {
	fake := &cannedLLM{err: apperrors.NewLLMTimeoutError(errors.New("deadline exceeded"))}
	_, err := createTestHandler(t, fake).Execute(context.Background(), &Input{Text: "AI learning seminar, October 20."})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeLLMTimeout))
	assert.Len(t, fake.reqs, 1)
}
