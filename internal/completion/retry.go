package completion

import (
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	maxAttempts = 3
	backoffBase = 500 * time.Millisecond
	backoffCap  = 4 * time.Second
)

// isRetryableStatus classifies retryable HTTP status codes.
func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return isRetryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}

// backoff computes a deterministic capped backoff duration.
func backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
