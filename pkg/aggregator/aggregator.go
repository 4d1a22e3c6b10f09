package aggregator

import (
	"errors"

	"github.com/Avi18971911/augur-span-reporter/pkg/sequencer"
	"github.com/Avi18971911/augur-span-reporter/pkg/trace/model"
	"go.uber.org/zap"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the answer handed back to whoever triggered the pipeline.
type Result struct {
	Status  Status
	TraceID string
	Spans   []model.Span
	// Reason carries the failing step, operation and collector call. Empty on success.
	Reason     string
	FailedStep string
}

func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

type ResultAggregator interface {
	Aggregate(outcome sequencer.Outcome, err error) Result
}

type ResultAggregatorImpl struct {
	logger *zap.Logger
}

func NewResultAggregatorImpl(logger *zap.Logger) *ResultAggregatorImpl {
	return &ResultAggregatorImpl{
		logger: logger,
	}
}

func (ra *ResultAggregatorImpl) Aggregate(outcome sequencer.Outcome, err error) Result {
	if err == nil {
		return Result{
			Status:  StatusSuccess,
			TraceID: outcome.TraceID,
			Spans:   outcome.Spans,
		}
	}

	result := Result{
		Status: StatusFailed,
		Reason: err.Error(),
	}
	var stepErr *sequencer.StepError
	if errors.As(err, &stepErr) {
		result.FailedStep = stepErr.Step
	}

	openSpanIDs := make([]string, 0)
	for _, span := range outcome.OpenSpans() {
		openSpanIDs = append(openSpanIDs, span.SpanID)
	}
	ra.logger.Error(
		"Pipeline failed",
		zap.String("trace_id", outcome.TraceID),
		zap.String("failed_step", result.FailedStep),
		zap.Strings("spans_left_open", openSpanIDs),
		zap.Error(err),
	)
	return result
}
