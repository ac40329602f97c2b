package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// parseAPIError maps a provider error to a domain sentinel.
// 401/403 become domain.ErrInvalidCredentials; everything else wraps the kind sentinel.
func parseAPIError(err error, wrap error) error {
	if code, ok := statusCode(err); ok &&
		(code == http.StatusUnauthorized || code == http.StatusForbidden) {
		wrap = domain.ErrInvalidCredentials
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("provider API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("provider API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("provider request failed: %v: %w", err, wrap)
}

// extractDetail extracts the "detail" field some compatible providers use for errors.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

// errorType labels a raw provider error for metrics.
func errorType(err error) string {
	code, ok := statusCode(err)
	switch {
	case !ok:
		return "transport"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "auth"
	case code == http.StatusTooManyRequests:
		return "rate_limit"
	default:
		return "api_error"
	}
}
