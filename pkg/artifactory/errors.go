package artifactory

import (
	"errors"
	"fmt"
)

// AuthError indicates a rejected credential. It is never retried: every
// repository on the same server would fail the same way.
type AuthError struct {
	Server string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for server %s (status %d)", e.Server, e.Status)
}

// ServerError is a non-2xx response that survived the retry policy.
type ServerError struct {
	Server string
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server %s returned status %d", e.Server, e.Status)
	}
	return fmt.Sprintf("server %s returned status %d: %s", e.Server, e.Status, e.Body)
}

// NetworkError is a transport failure that survived the retry policy: no
// HTTP response was obtained at all.
type NetworkError struct {
	Server string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error talking to server %s: %v", e.Server, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err wraps an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
