package onboardsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Error codes carried in ErrorResponse.Error.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeConflict       = "conflict"
	ErrorCodeExpired        = "expired"
	ErrorCodeAlreadyUsed    = "already_used"
	ErrorCodeRateLimited    = "rate_limit_exceeded"
	ErrorCodeUnavailable    = "unavailable"
	ErrorCodeServerError    = "server_error"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string

	// RetryAfter is the server's Retry-After in seconds, on 429s.
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("onboard: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("onboard: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Temporary reports whether retrying the same request later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		apiErr.Code = er.Error
		apiErr.Description = er.ErrorDescription
		apiErr.RetryAfter = er.RetryAfter
	} else {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}

	if apiErr.RetryAfter == 0 {
		if v, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = v
		}
	}
	return apiErr
}
