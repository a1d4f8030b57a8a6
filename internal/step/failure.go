package step

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a step failure for the trace and the executor's
// recovery policy.
type FailureKind string

const (
	// FailureTimeout indicates a collaborator call exceeded its deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureInvalidOutput indicates a collaborator returned output that
	// failed validation (unknown step name, out-of-range confidence,
	// unparsable structured output).
	FailureInvalidOutput FailureKind = "invalid_output"

	// FailureServiceUnavailable indicates a collaborator could not be
	// reached at all.
	FailureServiceUnavailable FailureKind = "service_unavailable"
)

// Sentinel errors for wrapping with fmt.Errorf("%w").
var (
	ErrStepNotFound   = errors.New("step not registered")
	ErrInvalidOutput  = errors.New("invalid collaborator output")
	ErrUnavailable    = errors.New("collaborator unavailable")
	ErrEmptyPlan      = errors.New("plan is empty")
	ErrNoResponseStep = errors.New("plan contains no response-producing step")
)

// Failure is a typed step failure. Cause carries a one-line reason for the
// trace; full collaborator payloads are never attached.
type Failure struct {
	Step  Name
	Kind  FailureKind
	Cause string
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("step %s failed (%s): %s", f.Step, f.Kind, f.Cause)
}

// NewFailure builds a typed failure for a step.
func NewFailure(step Name, kind FailureKind, cause string) *Failure {
	return &Failure{Step: step, Kind: kind, Cause: cause}
}

// Classify maps an arbitrary step error to a Failure. Typed failures pass
// through; context deadline errors become timeouts; everything else is
// reported as a service failure.
func Classify(name Name, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewFailure(name, FailureTimeout, "deadline exceeded")
	case errors.Is(err, ErrInvalidOutput):
		return NewFailure(name, FailureInvalidOutput, err.Error())
	default:
		return NewFailure(name, FailureServiceUnavailable, err.Error())
	}
}
