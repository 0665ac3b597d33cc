package llm

import (
	"context"
	"errors"
	"strings"
	"unicode"

	apperrors "product-research-workers/internal/common/errors"
)

// ParseInto runs a structured-output completion and decodes the answer into dst.
// req.Schema is required. A refusal, an empty answer or a schema mismatch is a
// SCHEMA_VALIDATION_FAILED error; nothing is retried.
func ParseInto(ctx context.Context, client Client, req *Request, dst interface{}) (*Response, error) {
	if req.Schema == nil {
		return nil, errors.New("llm: ParseInto needs a response schema")
	}

	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return resp, apperrors.NewSchemaValidationFailedError(req.Schema.Name(), []string{"model refused: " + resp.Refusal})
	}

	content := StripCodeFence(resp.Content)
	if content == "" {
		return resp, apperrors.NewSchemaValidationFailedError(req.Schema.Name(), []string{"empty response"})
	}
	if err := req.Schema.Decode([]byte(content), dst); err != nil {
		return resp, err
	}
	return resp, nil
}

// StripCodeFence removes a ```json fence some providers wrap around JSON answers.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = dropFenceTag(s)
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// dropFenceTag removes the language tag of a one-line fence such as
// ```json {"a":1}```.
func dropFenceTag(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_+-.", r))
	})
	if end <= 0 {
		return s
	}
	rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s[end:]), "```"))
	if rest == "" {
		return s
	}
	return s[end:]
}
