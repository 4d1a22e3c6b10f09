package sequencer

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseStart Phase = "start"
	PhaseWork  Phase = "work"
	PhaseEnd   Phase = "end"
)

// StepError reports which step of a run failed and during which phase.
type StepError struct {
	Step      string
	Operation string
	Phase     Phase
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q (operation %s) failed during %s: %v", e.Step, e.Operation, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

var (
	ErrEmptyPipeline     = errors.New("pipeline has no steps")
	ErrMissingStepName   = errors.New("step has no name")
	ErrMissingOperation  = errors.New("step has no service or operation")
	ErrDuplicateStep     = errors.New("step name is used more than once")
	ErrFirstStepNotRoot  = errors.New("the first step must open the root span")
	ErrMultipleRoots     = errors.New("only the first step may open a root span")
	ErrUnknownParentStep = errors.New("parent step does not run before this step")
	ErrParentClosed      = errors.New("parent step's span is already closed when this step starts")
	ErrNegativeDuration  = errors.New("step duration is negative")
)
