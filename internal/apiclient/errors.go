package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindTransport means the call never produced a response.
	KindTransport Kind = iota + 1
	// KindUnauthorized means the session is invalid; stored tokens were cleared.
	KindUnauthorized
	// KindApplication is any other non-2xx response.
	KindApplication
	// KindRefresh means the refresh exchange itself failed.
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindApplication:
		return "application"
	case KindRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

var (
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrNoAccessToken  = errors.New("no access token returned")
)

// Error is returned for every failed pipeline call. StatusCode is zero when
// no response was received.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("request failed: %v", e.Err)
	case KindRefresh:
		if e.Body != "" {
			return e.Body
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		if e.StatusCode != 0 {
			return fmt.Sprintf("Refresh failed: %d", e.StatusCode)
		}
		return "Refresh failed"
	default:
		return fmt.Sprintf("API error: %d %s", e.StatusCode, e.Body)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err means the user must log in again.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
