package reporter

import "time"

type StartTraceRequestDTO struct {
	Service   string    `json:"service"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time"`
}

type AddTraceRequestDTO struct {
	TraceID      string    `json:"trace_id"`
	ParentSpanID string    `json:"parent_span_id"`
	Service      string    `json:"service"`
	Operation    string    `json:"operation"`
	Message      string    `json:"message"`
	StartTime    time.Time `json:"start_time"`
}

type StopTraceRequestDTO struct {
	SpanID  string    `json:"span_id"`
	EndTime time.Time `json:"end_time"`
}

// SpanCreatedResponseDTO answers both start-trace and add-trace. add-trace collectors may omit trace_id.
type SpanCreatedResponseDTO struct {
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id"`
}

type StopTraceResponseDTO struct {
	Status string `json:"status"`
}

type CollectorErrorDTO struct {
	Error string `json:"error"`
}
