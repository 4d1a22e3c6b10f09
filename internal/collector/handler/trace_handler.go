package handler

import (
	"net/http"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/service"
	"github.com/Avi18971911/augur-span-reporter/pkg/reporter"
	"go.uber.org/zap"
)

// StartTraceHandler creates a handler that opens a new trace with its root span.
// @Summary Start a trace
// @Tags collector
// @Accept json
// @Produce json
// @Param span body reporter.StartTraceRequestDTO true "The root span"
// @Success 200 {object} reporter.SpanCreatedResponseDTO "Identifiers of the new trace and span"
// @Failure 400 {object} reporter.CollectorErrorDTO "Missing fields"
// @Router /start-trace [post]
func StartTraceHandler(
	s service.CollectorService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reporter.StartTraceRequestDTO
		if !decodeBody(w, r, &req, logger) {
			return
		}

		ref, err := s.StartTrace(r.Context(), service.StartSpanInput{
			Service:   req.Service,
			Operation: req.Operation,
			Message:   req.Message,
			StartTime: req.StartTime,
		})
		if err != nil {
			logger.Error("Error encountered when starting trace", zap.Error(err))
			HttpError(w, err.Error(), statusForError(err), logger)
			return
		}
		writeJSON(w, reporter.SpanCreatedResponseDTO{TraceID: ref.TraceID, SpanID: ref.SpanID}, logger)
	}
}

// AddTraceHandler creates a handler that adds a child span to an existing trace.
// @Summary Add a span to a trace
// @Tags collector
// @Accept json
// @Produce json
// @Param span body reporter.AddTraceRequestDTO true "The child span"
// @Success 200 {object} reporter.SpanCreatedResponseDTO "Identifiers of the new span"
// @Failure 400 {object} reporter.CollectorErrorDTO "Missing fields"
// @Failure 404 {object} reporter.CollectorErrorDTO "Unknown parent span"
// @Failure 409 {object} reporter.CollectorErrorDTO "Parent span is in another trace"
// @Router /add-trace [post]
func AddTraceHandler(
	s service.CollectorService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reporter.AddTraceRequestDTO
		if !decodeBody(w, r, &req, logger) {
			return
		}

		ref, err := s.AddTrace(r.Context(), service.StartSpanInput{
			TraceID:      req.TraceID,
			ParentSpanID: req.ParentSpanID,
			Service:      req.Service,
			Operation:    req.Operation,
			Message:      req.Message,
			StartTime:    req.StartTime,
		})
		if err != nil {
			logger.Error("Error encountered when adding span", zap.Error(err))
			HttpError(w, err.Error(), statusForError(err), logger)
			return
		}
		writeJSON(w, reporter.SpanCreatedResponseDTO{TraceID: ref.TraceID, SpanID: ref.SpanID}, logger)
	}
}

// StopTraceHandler creates a handler that ends a span. Stopping a span twice is not an error.
// @Summary Stop a span
// @Tags collector
// @Accept json
// @Produce json
// @Param span body reporter.StopTraceRequestDTO true "The span to stop"
// @Success 200 {object} reporter.StopTraceResponseDTO "stopped or already_stopped"
// @Failure 400 {object} reporter.CollectorErrorDTO "Missing fields or end before start"
// @Failure 404 {object} reporter.CollectorErrorDTO "Unknown span"
// @Router /stop-trace [post]
func StopTraceHandler(
	s service.CollectorService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reporter.StopTraceRequestDTO
		if !decodeBody(w, r, &req, logger) {
			return
		}

		status, err := s.StopTrace(r.Context(), req.SpanID, req.EndTime)
		if err != nil {
			logger.Error("Error encountered when stopping span", zap.Error(err))
			HttpError(w, err.Error(), statusForError(err), logger)
			return
		}
		writeJSON(w, reporter.StopTraceResponseDTO{Status: string(status)}, logger)
	}
}
