package reporter

import (
	"errors"
	"fmt"
)

type CollectorCall string

const (
	StartTraceCall CollectorCall = "start-trace"
	AddTraceCall   CollectorCall = "add-trace"
	StopTraceCall  CollectorCall = "stop-trace"
)

// ReportingError is returned for every failed collector call: transport failures and timeouts
// (StatusCode 0), non-success statuses, and success responses missing the identifiers we asked for.
type ReportingError struct {
	Call       CollectorCall
	StatusCode int
	Message    string
	Transient  bool
	Err        error
}

func (e *ReportingError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: collector returned status %d: %s", e.Call, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: collector returned status %d", e.Call, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Call, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Call, e.Message)
	}
}

func (e *ReportingError) Unwrap() error {
	return e.Err
}

// IsReportingError reports whether err is, or wraps, a ReportingError.
func IsReportingError(err error) bool {
	var reportingErr *ReportingError
	return errors.As(err, &reportingErr)
}

var (
	ErrMissingIdentifier = errors.New("collector response is missing an identifier")
	ErrTraceMismatch     = errors.New("collector assigned the span to a different trace")
	ErrEmptySpanID       = errors.New("span id must not be empty")
)
