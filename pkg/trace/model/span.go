package model

import "time"

type Span struct {
	SpanID       string     `json:"span_id"`
	TraceID      string     `json:"trace_id"`
	ParentSpanID string     `json:"parent_span_id,omitempty"`
	Service      string     `json:"service"`
	Operation    string     `json:"operation"`
	Message      string     `json:"message"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"` // nil until the span has been reported closed
}

func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

func (s Span) IsClosed() bool {
	return s.EndTime != nil
}

// Duration is zero for spans that are still open.
func (s Span) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
