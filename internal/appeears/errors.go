package appeears

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for AppEEARS client failures.
var (
	ErrAuthentication     = errors.New("appeears authentication failed")
	ErrCredentialExchange = errors.New("appeears credential exchange failed")
	ErrUnreachable        = errors.New("appeears unreachable")
	ErrTimeout            = errors.New("appeears request timeout")
)

// CredentialExchangeError reports a failed login round-trip other than rejected credentials.
type CredentialExchangeError struct {
	Cause error
}

func (e *CredentialExchangeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrCredentialExchange, e.Cause)
}

func (e *CredentialExchangeError) Unwrap() error { return e.Cause }

func (e *CredentialExchangeError) Is(target error) bool {
	return target == ErrCredentialExchange
}

// RemoteCallError is returned for any non-2xx response from the API.
type RemoteCallError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteCallError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("appeears %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("appeears %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from a RemoteCallError in err's chain.
// Returns 0 when err carries no remote status.
func StatusCode(err error) int {
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return rce.StatusCode
	}
	return 0
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}
