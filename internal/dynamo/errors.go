package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for run orchestration.
var (
	// ErrConfiguration indicates a malformed parameter record or a segment
	// count that does not evenly divide the epoch count. Never retried.
	ErrConfiguration = errors.New("dynamo: configuration error")

	// ErrEngineFailure indicates the stepper reported false from
	// initialize, run or postprocess.
	ErrEngineFailure = errors.New("dynamo: engine failure")

	// ErrSerializationGap indicates a value outside the codec's domain.
	ErrSerializationGap = errors.New("dynamo: value outside serialization domain")

	// ErrPersistence indicates a save that stopped partway. Re-running the
	// save with the same identity repairs it.
	ErrPersistence = errors.New("dynamo: persistence incomplete")

	// ErrLifecycle indicates an operation called in the wrong run state.
	ErrLifecycle = errors.New("dynamo: operation not valid in current run state")
)

// RunError wraps an error with the run operation and segment it came from.
type RunError struct {
	Op      string
	Segment int
	Wrapped error
}

func (e *RunError) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("%s (segment %d): %v", e.Op, e.Segment, e.Wrapped)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Wrapped)
}

func (e *RunError) Unwrap() error {
	return e.Wrapped
}

// Configf builds an ErrConfiguration with a formatted detail message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Enginef builds an ErrEngineFailure with a formatted detail message.
func Enginef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEngineFailure, fmt.Sprintf(format, args...))
}
