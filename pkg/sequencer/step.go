package sequencer

import (
	"context"
	"time"
)

type parentKind int

const (
	parentRoot parentKind = iota
	parentPrevious
	parentStep
)

// Parent declares which span a step's span hangs off.
type Parent struct {
	kind parentKind
	step string
}

// Root opens the trace. Only the first step of a pipeline may use it.
func Root() Parent {
	return Parent{kind: parentRoot}
}

func ChildOfPrevious() Parent {
	return Parent{kind: parentPrevious}
}

// ChildOf parents the step under the span of an earlier, named step.
func ChildOf(step string) Parent {
	return Parent{kind: parentStep, step: step}
}

func (p Parent) String() string {
	switch p.kind {
	case parentRoot:
		return "root"
	case parentPrevious:
		return "previous"
	default:
		return "step:" + p.step
	}
}

// Work is a real unit of work run inside a step's span.
type Work func(ctx context.Context) error

type Step struct {
	Name      string
	Service   string
	Operation string
	Message   string
	// Duration is how long the step's simulated work takes. Ignored when Work is set.
	Duration time.Duration
	Parent   Parent
	Work     Work
}

type CloseMode int

const (
	// CloseOnUnwind keeps spans open while later steps run beneath them and closes them last-opened,
	// first-closed.
	CloseOnUnwind CloseMode = iota
	// CloseImmediately ends every span as soon as its own work is done.
	CloseImmediately
)

func (m CloseMode) String() string {
	if m == CloseImmediately {
		return "immediate"
	}
	return "unwind"
}
