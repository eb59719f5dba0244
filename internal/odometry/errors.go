package odometry

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure is fatal to the sequence being processed.
var (
	// ErrInvalidConfiguration covers bad stack sizes, missing stamps and
	// similar parameter problems.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrMalformedRecord is returned when a ground-truth record or pose line
	// cannot be parsed.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrShapeMismatch is returned when frames within a sequence (or a stack
	// and a model) disagree on dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNonFinite is only returned when the pipeline is configured to fail
	// on NaN/Inf poses instead of surfacing them as a warning.
	ErrNonFinite = errors.New("non-finite pose")
)

// SequenceError attributes a failure to a sequence and, when known, the step
// index at which it happened. Step is -1 when no single step is at fault.
type SequenceError struct {
	Sequence string
	Step     int
	Err      error
}

func (e *SequenceError) Error() string {
	var b strings.Builder
	if e.Sequence != "" {
		fmt.Fprintf(&b, "sequence %s: ", e.Sequence)
	}
	if e.Step >= 0 {
		fmt.Fprintf(&b, "step %d: ", e.Step)
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SequenceError) Unwrap() error { return e.Err }

// wrapSequence attaches sequence context to err. An existing SequenceError
// keeps its step index.
func wrapSequence(sequence string, step int, err error) error {
	if err == nil {
		return nil
	}
	var se *SequenceError
	if errors.As(err, &se) {
		if se.Sequence == "" {
			se.Sequence = sequence
		}
		return se
	}
	return &SequenceError{Sequence: sequence, Step: step, Err: err}
}

// stepError marks err as having happened at a specific step. The sequence is
// filled in later by wrapSequence.
func stepError(step int, err error) error {
	return &SequenceError{Step: step, Err: err}
}
