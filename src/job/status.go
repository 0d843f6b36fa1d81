package job

import (
	"errors"
	"fmt"
)

// Status is the job state machine: pending → running → success | failure.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Terminal reports whether s is success or failure.
func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailure }

// FailureKind classifies why a job failed.
type FailureKind string

const (
	FailNone      FailureKind = ""
	FailCheckout  FailureKind = "checkout"
	FailProvision FailureKind = "provision"
	FailLint      FailureKind = "lint"
	FailTest      FailureKind = "test"
	FailCoverage  FailureKind = "coverage"
	FailCancelled FailureKind = "cancelled"
)

// StepError is a fatal step failure.
type StepError struct {
	Kind FailureKind
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// KindOf returns the failure kind carried by err, or FailNone.
func KindOf(err error) FailureKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailNone
}
