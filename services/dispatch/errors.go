package dispatch

import (
	"errors"
	"fmt"
)

// ErrTargetNotRegistered is reported by Channel implementations when the
// channel has no invocation record for a target under a batch.
var ErrTargetNotRegistered = errors.New("target not registered with execution channel")

// ResolutionError indicates an inventory transport failure during
// resolution. "No match" is never a ResolutionError; unmatched specs are
// returned in the unresolved list instead.
type ResolutionError struct {
	Spec TargetSpec
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Spec, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// AvailabilityCheckError indicates the channel's registration listing could
// not be read. Reachability is never guessed; the batch aborts.
type AvailabilityCheckError struct {
	Err error
}

func (e *AvailabilityCheckError) Error() string {
	return fmt.Sprintf("availability check: %v", e.Err)
}

func (e *AvailabilityCheckError) Unwrap() error { return e.Err }

// EmptyBatchError indicates there were no available targets to dispatch to.
type EmptyBatchError struct {
	Requested int
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("no available targets out of %d requested", e.Requested)
}

// DispatchError indicates the channel rejected the batch submission. No
// partial batch exists when this is returned.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("submit batch: %v", e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
