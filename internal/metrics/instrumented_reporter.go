package metrics

import (
	"context"
	"time"

	"github.com/Avi18971911/augur-span-reporter/pkg/reporter"
	"github.com/Avi18971911/augur-span-reporter/pkg/trace/model"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// InstrumentedReporter counts and times every call made through the wrapped SpanReporter.
type InstrumentedReporter struct {
	next    reporter.SpanReporter
	metrics *Metrics
}

func NewInstrumentedReporter(next reporter.SpanReporter, metrics *Metrics) *InstrumentedReporter {
	return &InstrumentedReporter{
		next:    next,
		metrics: metrics,
	}
}

func (ir *InstrumentedReporter) StartSpan(
	ctx context.Context,
	parent model.TraceContext,
	service string,
	operation string,
	message string,
	startTime time.Time,
) (string, string, error) {
	call := reporter.AddTraceCall
	if parent.IsEmpty() {
		call = reporter.StartTraceCall
	}
	began := time.Now()
	spanID, traceID, err := ir.next.StartSpan(ctx, parent, service, operation, message, startTime)
	ir.observe(call, began, err)
	return spanID, traceID, err
}

func (ir *InstrumentedReporter) EndSpan(ctx context.Context, spanID string, endTime time.Time) error {
	began := time.Now()
	err := ir.next.EndSpan(ctx, spanID, endTime)
	ir.observe(reporter.StopTraceCall, began, err)
	return err
}

func (ir *InstrumentedReporter) observe(call reporter.CollectorCall, began time.Time, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	ir.metrics.ReporterCalls.WithLabelValues(string(call), outcome).Inc()
	ir.metrics.ReporterDuration.WithLabelValues(string(call)).Observe(time.Since(began).Seconds())
}
