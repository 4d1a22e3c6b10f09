package sequencer

import (
	"fmt"
	"slices"
)

// Pipeline is a validated, immutable list of steps. One Pipeline may be run by many requests at once.
type Pipeline struct {
	steps     []Step
	closeMode CloseMode
}

func NewPipeline(steps []Step, closeMode CloseMode) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyPipeline
	}
	seen := make(map[string]bool, len(steps))
	var open []string
	for i, step := range steps {
		if step.Name == "" {
			return nil, fmt.Errorf("step %d: %w", i, ErrMissingStepName)
		}
		if seen[step.Name] {
			return nil, fmt.Errorf("step %q: %w", step.Name, ErrDuplicateStep)
		}
		if step.Service == "" || step.Operation == "" {
			return nil, fmt.Errorf("step %q: %w", step.Name, ErrMissingOperation)
		}
		if step.Duration < 0 {
			return nil, fmt.Errorf("step %q: %w", step.Name, ErrNegativeDuration)
		}

		switch step.Parent.kind {
		case parentRoot:
			if i != 0 {
				return nil, fmt.Errorf("step %q: %w", step.Name, ErrMultipleRoots)
			}
		case parentPrevious:
			if i == 0 {
				return nil, fmt.Errorf("step %q: %w", step.Name, ErrFirstStepNotRoot)
			}
		case parentStep:
			if i == 0 {
				return nil, fmt.Errorf("step %q: %w", step.Name, ErrFirstStepNotRoot)
			}
			if !seen[step.Parent.step] {
				return nil, fmt.Errorf("step %q: parent %q: %w", step.Name, step.Parent.step, ErrUnknownParentStep)
			}
			if closeMode == CloseOnUnwind {
				at := slices.Index(open, step.Parent.step)
				if at < 0 {
					return nil, fmt.Errorf("step %q: parent %q: %w", step.Name, step.Parent.step, ErrParentClosed)
				}
				open = open[:at+1]
			}
		}
		seen[step.Name] = true
		open = append(open, step.Name)
	}

	return &Pipeline{
		steps:     slices.Clone(steps),
		closeMode: closeMode,
	}, nil
}

func (p *Pipeline) Steps() []Step {
	return slices.Clone(p.steps)
}

func (p *Pipeline) CloseMode() CloseMode {
	return p.closeMode
}
