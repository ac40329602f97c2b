package langchain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// langchaingo reports HTTP failures only as text.
var statusPattern = regexp.MustCompile(`status code: (\d{3})`)

func statusCode(err error) (int, bool) {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	code, convErr := strconv.Atoi(m[1])
	return code, convErr == nil
}

// isRetryable reports whether err is transient: 429, 5xx or a transport failure.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if code, ok := statusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classifyError maps a provider error to a domain sentinel.
// 401/403 become domain.ErrInvalidCredentials; everything else wraps the kind sentinel.
func classifyError(op string, err error, wrap error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if code, ok := statusCode(err); ok &&
		(code == http.StatusUnauthorized || code == http.StatusForbidden) {
		wrap = domain.ErrInvalidCredentials
	}
	return fmt.Errorf("%s: %v: %w", op, err, wrap)
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
