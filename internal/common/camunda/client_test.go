package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-research-workers/internal/common/errors"
)

func newRetryClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := newRetryClient(3)
	attempts := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "deploy")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_PermanentErrorIsNotRetried(t *testing.T) {
	c := newRetryClient(3)
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, stderrors.New("rpc error: code = NotFound desc = process 'product-market-research' not found")
	}, "start product-market-research")

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeWorkflowEngineFailed, stdErr.Code)
	assert.False(t, stdErr.Retryable)
	assert.Equal(t, "not_found", stdErr.Metadata["reason"])
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	c := newRetryClient(2)
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, stderrors.New("context deadline exceeded")
	}, "deploy")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeWorkflowEngineFailed))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestExecuteWithRetry_StopsOnCancel(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: 5,
		BaseDelay:  time.Hour,
		MaxDelay:   time.Hour,
	}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, stderrors.New("unavailable")
	}, "deploy")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"connection refused", true},
		{"rpc error: code = Unavailable", true},
		{"rpc error: code = RESOURCE_EXHAUSTED", true},
		{"context deadline exceeded", true},
		{"rpc error: code = InvalidArgument desc = bad variables", false},
		{"already exists", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}
