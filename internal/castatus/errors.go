package castatus

import (
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody is the maximum number of bytes read from an error response body.
const maxErrorBody = 4096

// StatusError is returned when the status endpoint answers with a non-2xx
// HTTP status.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error returns the formatted error string.
func (e *StatusError) Error() string {
	return fmt.Sprintf("castatus: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is matches another *StatusError with the same status code.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Message: string(body)}
}

// ParseError is returned for a status document that is not an
// XMLResponse carrying a Status element.
type ParseError struct {
	Err error
}

// Error returns the formatted error string.
func (e *ParseError) Error() string {
	if e.Err == nil {
		return "castatus: malformed status response: missing Status"
	}
	return fmt.Sprintf("castatus: malformed status response: %v", e.Err)
}

// Unwrap returns the underlying decode error, if any.
func (e *ParseError) Unwrap() error { return e.Err }
