package model

// TraceContext carries the trace a pipeline belongs to and the span that new spans should hang off.
// It is a value type: every transition returns a new TraceContext.
type TraceContext struct {
	traceID       string
	currentSpanID string
}

func EmptyTraceContext() TraceContext {
	return TraceContext{}
}

func NewTraceContext(traceID string, currentSpanID string) TraceContext {
	return TraceContext{
		traceID:       traceID,
		currentSpanID: currentSpanID,
	}
}

func (tc TraceContext) TraceID() string {
	return tc.traceID
}

func (tc TraceContext) CurrentSpanID() string {
	return tc.currentSpanID
}

// IsEmpty reports whether no trace has been started yet, meaning the next span is a root span.
func (tc TraceContext) IsEmpty() bool {
	return tc.traceID == ""
}

func (tc TraceContext) WithCurrentSpan(spanID string) TraceContext {
	return TraceContext{
		traceID:       tc.traceID,
		currentSpanID: spanID,
	}
}
