package threads

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
)

// NetworkError is the Message of a PublishError caused by a failed round trip.
const NetworkError = "network_error"

var (
	ErrUnsupportedContent = errors.New("unsupported content")
	ErrNoAccessToken      = errors.New("No valid access token")
)

// PublishError is returned by every Client call that fails, either because the
// API answered with an error or because the request never completed.
type PublishError struct {
	Op         string
	StatusCode int
	Message    string
	Type       string
	Code       int
	Subcode    int
	TraceID    string
	Transient  bool
	Network    bool
	Err        error
}

func (e *PublishError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "threads %s: ", e.Op)
	if e.Network {
		b.WriteString(NetworkError)
		if e.Err != nil {
			b.WriteString(": " + e.Err.Error())
		}
		return b.String()
	}
	b.WriteString(e.Message)
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d", e.Code)
		if e.Subcode != 0 {
			fmt.Fprintf(&b, ", subcode %d", e.Subcode)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Meta Graph throttling and temporary-outage codes.
var transientCodes = map[int]struct{}{
	1: {}, 2: {}, 4: {}, 17: {}, 32: {}, 341: {}, 613: {},
}

// IsAuth reports whether the token was rejected.
func (e *PublishError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == 190 || e.Code == 102
}

// Retryable reports whether the same request may succeed later.
func (e *PublishError) Retryable() bool {
	if e.IsAuth() {
		return false
	}
	if e.Network || e.Transient {
		return true
	}
	if e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	_, ok := transientCodes[e.Code]
	return ok
}

func parseAPIError(op string, statusCode int, body []byte) *PublishError {
	perr := &PublishError{Op: op, StatusCode: statusCode}

	var apiErr transfer.ThreadsErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		perr.Message = fmt.Sprintf("unexpected status code from Threads: %d", statusCode)
		return perr
	}

	perr.Message = apiErr.Error.Message
	if apiErr.Error.ErrorUserMsg != "" {
		perr.Message += ": " + apiErr.Error.ErrorUserMsg
	}
	perr.Type = apiErr.Error.Type
	perr.Code = apiErr.Error.Code
	perr.Subcode = apiErr.Error.ErrorSubcode
	perr.TraceID = apiErr.Error.FbtraceID
	perr.Transient = apiErr.Error.IsTransient
	return perr
}
