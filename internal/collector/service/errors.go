package service

import "errors"

var (
	ErrMissingField   = errors.New("missing required field")
	ErrUnknownParent  = errors.New("unknown parent span")
	ErrTraceMismatch  = errors.New("parent span belongs to another trace")
	ErrUnknownSpan    = errors.New("unknown span")
	ErrEndBeforeStart = errors.New("end time before start time")
)
