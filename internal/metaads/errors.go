package metaads

import (
	"errors"
	"fmt"
)

// ErrPagingHostMismatch is returned when a paging cursor points at another host.
var ErrPagingHostMismatch = errors.New("paging url host does not match graph url")

// UpstreamError is an error reported by the ads platform itself.
// Message is the platform's own text and is safe to show to users.
type UpstreamError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// NetworkError wraps a transport failure talking to the ads platform.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err is, or wraps, an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsNetwork reports whether err is, or wraps, a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
