package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig signals that persisted checkpoint state is absent or malformed.
	ErrConfig = errors.New("checkpoint config error")
	// ErrExhausted is returned when a bounded retry policy gives up.
	ErrExhausted = errors.New("retry attempts exhausted")
	// ErrNotReady is returned when a detail page never exposes its API identifier.
	ErrNotReady = fmt.Errorf("page not ready: %w", ErrExhausted)
	// ErrStructural marks a non-retryable change in the target site's structure.
	ErrStructural = errors.New("structural fault")
)

// StructuralError names the region whose pages no longer match expectations.
type StructuralError struct {
	Region Region
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural fault for %s, %s: %s", e.Region.Name, e.Region.Subdivision, e.Reason)
}

// Is lets errors.Is(err, ErrStructural) match any StructuralError.
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}

// FaultPolicy selects how the orchestrator reacts to a StructuralError.
type FaultPolicy string

const (
	// FaultAbort stops the whole crawl.
	FaultAbort FaultPolicy = "abort"
	// FaultSkipRegion logs the fault, marks the region done and moves on.
	FaultSkipRegion FaultPolicy = "skip_region"
)

// Valid reports whether p is a known policy.
func (p FaultPolicy) Valid() bool {
	return p == FaultAbort || p == FaultSkipRegion
}
