package embedproxy

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget means the target URL was missing, relative, or unparsable.
var ErrInvalidTarget = errors.New("invalid target url")

// UpstreamError carries a non-success upstream status or wraps a network-level
// failure (timeout, DNS, reset). Never retried inside this subsystem.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream error: %d", e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// EdgeBlockedError signals that the upstream refused the proxy's own address
// (401/403/429/503). Callers degrade gracefully by redirecting the client
// straight to the target, trading away ad-blocking for availability.
type EdgeBlockedError struct {
	Target string
	Status int
}

func (e *EdgeBlockedError) Error() string {
	return fmt.Sprintf("upstream edge-blocked (%d): %s", e.Status, e.Target)
}
