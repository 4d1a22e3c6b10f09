package reporter

import (
	"context"
	"time"

	"github.com/Avi18971911/augur-span-reporter/pkg/trace/model"
)

// SpanReporter notifies the collector of span creation and completion. Every call is a single,
// synchronous round trip so the collector-assigned identifiers are known before dependent spans start.
type SpanReporter interface {
	StartSpan(
		ctx context.Context,
		parent model.TraceContext,
		service string,
		operation string,
		message string,
		startTime time.Time,
	) (spanID string, traceID string, err error)
	EndSpan(ctx context.Context, spanID string, endTime time.Time) error
}
