package model

import "time"

type SpanStatus string

const (
	StatusOK       SpanStatus = "ok"
	StatusOrphaned SpanStatus = "orphaned"
)

// SpanRecord is a span as the collector saw it. EndTime is zero while the span is open.
type SpanRecord struct {
	SpanID       string     `json:"span_id"`
	TraceID      string     `json:"trace_id"`
	ParentSpanID string     `json:"parent_span_id,omitempty"`
	Service      string     `json:"service"`
	Operation    string     `json:"operation"`
	Message      string     `json:"message"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       SpanStatus `json:"status"`
}

func (sr SpanRecord) Duration() time.Duration {
	if sr.EndTime.IsZero() {
		return 0
	}
	return sr.EndTime.Sub(sr.StartTime)
}

// SpanClosedEvent is published once per span, when the client stops it or the janitor ends it.
type SpanClosedEvent struct {
	Span SpanRecord `json:"span"`
}
