// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline errors
const (
	ErrCodeLLMRequestFailed       ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeLLMTimeout             ErrorCode = "LLM_TIMEOUT"
	ErrCodeSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeToolInvocationFailed   ErrorCode = "TOOL_INVOCATION_FAILED"
	ErrCodeToolIterationsExceeded ErrorCode = "TOOL_ITERATIONS_EXCEEDED"
	ErrCodeTemplateRenderFailed   ErrorCode = "TEMPLATE_RENDER_FAILED"
	ErrCodeInvalidRunParameters   ErrorCode = "INVALID_RUN_PARAMETERS"
	ErrCodeArtifactWriteFailed    ErrorCode = "ARTIFACT_WRITE_FAILED"
	ErrCodeArtifactNotFound       ErrorCode = "ARTIFACT_NOT_FOUND"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed          ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexWriteFailed              ErrorCode = "INDEX_WRITE_FAILED"
	ErrCodeNotificationSendFailed        ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeWorkflowEngineFailed          ErrorCode = "WORKFLOW_ENGINE_FAILED"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, retryable bool, message string, cause error) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewLLMRequestFailedError wraps a transport or API failure from the model provider.
func NewLLMRequestFailedError(err error) *StandardError {
	return newError(ErrCodeLLMRequestFailed, true, "LLM request failed", err)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, true, "LLM request timed out", err)
}

// NewSchemaValidationFailedError reports model output that does not fit the expected schema.
func NewSchemaValidationFailedError(schemaName string, violations []string) *StandardError {
	e := newError(ErrCodeSchemaValidationFailed, false,
		fmt.Sprintf("output does not match schema %s", schemaName), nil)
	e.Details = strings.Join(violations, "; ")
	return e.WithMetadata("schema", schemaName).WithMetadata("violations", violations)
}

// NewSchemaDecodeFailedError reports model output that is not valid JSON.
func NewSchemaDecodeFailedError(schemaName string, err error) *StandardError {
	return newError(ErrCodeSchemaValidationFailed, false,
		fmt.Sprintf("output for schema %s is not valid JSON", schemaName), err).
		WithMetadata("schema", schemaName)
}

func NewToolInvocationFailedError(tool string, err error) *StandardError {
	return newError(ErrCodeToolInvocationFailed, true,
		fmt.Sprintf("tool %s failed", tool), err).WithMetadata("tool", tool)
}

func NewToolIterationsExceededError(task string, limit int) *StandardError {
	e := newError(ErrCodeToolIterationsExceeded, false,
		fmt.Sprintf("task %s exceeded %d tool iterations", task, limit), nil)
	return e.WithMetadata("task", task).WithMetadata("limit", limit)
}

func NewTemplateRenderFailedError(task string, err error) *StandardError {
	return newError(ErrCodeTemplateRenderFailed, false,
		fmt.Sprintf("failed to render description of task %s", task), err)
}

func NewInvalidRunParametersError(details string) *StandardError {
	e := newError(ErrCodeInvalidRunParameters, false, "invalid run parameters", nil)
	e.Details = details
	return e
}

func NewArtifactWriteFailedError(file string, err error) *StandardError {
	return newError(ErrCodeArtifactWriteFailed, true,
		fmt.Sprintf("failed to write artifact %s", file), err).WithMetadata("file", file)
}

func NewArtifactNotFoundError(file string, err error) *StandardError {
	return newError(ErrCodeArtifactNotFound, false,
		fmt.Sprintf("artifact %s not found", file), err).WithMetadata("file", file)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, true, "Failed to connect to database", err)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, true,
		fmt.Sprintf("Query '%s' execution failed", queryType), err)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, true, "Failed to connect to Elasticsearch", err)
}

func NewIndexWriteFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexWriteFailed, true,
		fmt.Sprintf("Failed to write to index '%s'", index), err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, true,
		fmt.Sprintf("Failed to send %s notification", channel), err)
}

// NewWorkflowEngineError wraps a failed Zeebe gateway call.
func NewWorkflowEngineError(operation string, retryable bool, err error) *StandardError {
	return newError(ErrCodeWorkflowEngineFailed, retryable,
		fmt.Sprintf("Zeebe operation '%s' failed", operation), err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by the
// boundary events of the research process. Codes absent here keep their own name.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeSchemaValidationFailed: "RESEARCH_OUTPUT_INVALID",
	ErrCodeToolIterationsExceeded: "RESEARCH_OUTPUT_INVALID",
	ErrCodeInvalidRunParameters:   "RESEARCH_INPUT_INVALID",
	ErrCodeTemplateRenderFailed:   "RESEARCH_INPUT_INVALID",
	ErrCodeArtifactNotFound:       "RESEARCH_INPUT_INVALID",
	ErrCodeLLMRequestFailed:       "RESEARCH_STAGE_FAILED",
	ErrCodeLLMTimeout:             "RESEARCH_STAGE_FAILED",
	ErrCodeToolInvocationFailed:   "RESEARCH_STAGE_FAILED",
	ErrCodeArtifactWriteFailed:    "RESEARCH_STAGE_FAILED",
}

// GetRetryCount returns the number of engine retries for a code. Only the
// distributed runner honours it; the local runner never retries.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeLLMRequestFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeIndexWriteFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeToolInvocationFailed,
		ErrCodeArtifactWriteFailed:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "LLM"):
		return "LLM"
	case strings.HasPrefix(codeStr, "TOOL"):
		return "TOOL"
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "TEMPLATE"):
		return "VALIDATION"
	case strings.HasPrefix(codeStr, "ARTIFACT"):
		return "STORAGE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH_INDEX"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.HasPrefix(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
