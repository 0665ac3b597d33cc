package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStage(t *testing.T) {
	before := testutil.ToFloat64(StageRuns.WithLabelValues("test-stage", "error"))
	ObserveStage("test-stage", time.Now(), errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(StageRuns.WithLabelValues("test-stage", "error")))
}

func TestObserveLLM_Tokens(t *testing.T) {
	ObserveLLM("test-model", time.Now(), 120, 30, nil)

	assert.Equal(t, float64(120), testutil.ToFloat64(LLMTokens.WithLabelValues("test-model", "prompt")))
	assert.Equal(t, float64(30), testutil.ToFloat64(LLMTokens.WithLabelValues("test-model", "completion")))
	assert.Equal(t, float64(1), testutil.ToFloat64(LLMRequests.WithLabelValues("test-model", "success")))
}

func TestObserveTool(t *testing.T) {
	ObserveTool("test-tool", time.Now(), nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(ToolCalls.WithLabelValues("test-tool", "success")))
}
