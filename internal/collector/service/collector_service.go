package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/event_bus"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/model"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/registry"
	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type StopStatus string

const (
	Stopped        StopStatus = "stopped"
	AlreadyStopped StopStatus = "already_stopped"
)

type StartSpanInput struct {
	TraceID      string
	ParentSpanID string
	Service      string
	Operation    string
	Message      string
	StartTime    time.Time
}

type SpanRef struct {
	TraceID string
	SpanID  string
}

type CollectorService interface {
	StartTrace(ctx context.Context, input StartSpanInput) (SpanRef, error)
	AddTrace(ctx context.Context, input StartSpanInput) (SpanRef, error)
	StopTrace(ctx context.Context, spanID string, endTime time.Time) (StopStatus, error)
	// SweepOrphans ends every span still open that started before cutoff and returns how many it ended.
	SweepOrphans(ctx context.Context, cutoff time.Time, now time.Time) int
}

type CollectorServiceImpl struct {
	tracer   trace.Tracer
	registry registry.SpanRegistry
	bus      event_bus.SpanEventBus
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewCollectorServiceImpl(
	tracer trace.Tracer,
	registry registry.SpanRegistry,
	bus event_bus.SpanEventBus,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *CollectorServiceImpl {
	return &CollectorServiceImpl{
		tracer:   tracer,
		registry: registry,
		bus:      bus,
		metrics:  metrics,
		logger:   logger,
	}
}

func (cs *CollectorServiceImpl) StartTrace(ctx context.Context, input StartSpanInput) (SpanRef, error) {
	if err := validateStart(input); err != nil {
		return SpanRef{}, err
	}
	_, span := cs.tracer.Start(
		ctx,
		input.Operation,
		trace.WithNewRoot(),
		trace.WithTimestamp(input.StartTime),
		trace.WithAttributes(spanAttributes(input)...),
	)
	return cs.register(span, "", input)
}

func (cs *CollectorServiceImpl) AddTrace(ctx context.Context, input StartSpanInput) (SpanRef, error) {
	if input.TraceID == "" || input.ParentSpanID == "" {
		return SpanRef{}, fmt.Errorf("trace_id and parent_span_id: %w", ErrMissingField)
	}
	if err := validateStart(input); err != nil {
		return SpanRef{}, err
	}

	parent, err := cs.parentContext(input.ParentSpanID)
	if err != nil {
		return SpanRef{}, err
	}
	if parent.TraceID().String() != input.TraceID {
		return SpanRef{}, fmt.Errorf(
			"parent %s is in trace %s, not %s: %w",
			input.ParentSpanID,
			parent.TraceID().String(),
			input.TraceID,
			ErrTraceMismatch,
		)
	}

	_, span := cs.tracer.Start(
		trace.ContextWithSpanContext(ctx, parent),
		input.Operation,
		trace.WithTimestamp(input.StartTime),
		trace.WithAttributes(spanAttributes(input)...),
	)
	return cs.register(span, input.ParentSpanID, input)
}

// parentContext links a child to an open parent, or to a recently closed one for flat pipelines.
func (cs *CollectorServiceImpl) parentContext(parentSpanID string) (trace.SpanContext, error) {
	if open, ok := cs.registry.Lookup(parentSpanID); ok {
		return open.Span.SpanContext(), nil
	}
	if closed, ok := cs.registry.LookupClosed(parentSpanID); ok {
		return closed.SpanContext, nil
	}
	return trace.SpanContext{}, fmt.Errorf("parent %s: %w", parentSpanID, ErrUnknownParent)
}

func (cs *CollectorServiceImpl) register(span trace.Span, parentSpanID string, input StartSpanInput) (SpanRef, error) {
	sc := span.SpanContext()
	record := model.SpanRecord{
		SpanID:       sc.SpanID().String(),
		TraceID:      sc.TraceID().String(),
		ParentSpanID: parentSpanID,
		Service:      input.Service,
		Operation:    input.Operation,
		Message:      input.Message,
		StartTime:    input.StartTime,
	}
	if err := cs.registry.Open(registry.OpenSpan{Span: span, Record: record}); err != nil {
		span.End()
		return SpanRef{}, fmt.Errorf("failed to register span: %w", err)
	}
	cs.metrics.OpenSpans.Inc()
	cs.logger.Info(
		"Span started",
		zap.String("trace_id", record.TraceID),
		zap.String("span_id", record.SpanID),
		zap.String("parent_span_id", parentSpanID),
		zap.String("operation", record.Operation),
	)
	return SpanRef{TraceID: record.TraceID, SpanID: record.SpanID}, nil
}

func (cs *CollectorServiceImpl) StopTrace(ctx context.Context, spanID string, endTime time.Time) (StopStatus, error) {
	if spanID == "" || endTime.IsZero() {
		return "", fmt.Errorf("span_id and end_time: %w", ErrMissingField)
	}

	open, ok := cs.registry.Lookup(spanID)
	if !ok {
		if _, closed := cs.registry.LookupClosed(spanID); closed {
			cs.logger.Info("Span already stopped", zap.String("span_id", spanID))
			return AlreadyStopped, nil
		}
		return "", fmt.Errorf("span %s: %w", spanID, ErrUnknownSpan)
	}
	if endTime.Before(open.Record.StartTime) {
		return "", fmt.Errorf(
			"span %s ends at %s, before it started at %s: %w",
			spanID,
			endTime.Format(time.RFC3339Nano),
			open.Record.StartTime.Format(time.RFC3339Nano),
			ErrEndBeforeStart,
		)
	}

	record := open.Record
	record.EndTime = endTime
	record.Status = model.StatusOK
	span, err := cs.registry.Close(spanID, record)
	switch {
	case errors.Is(err, registry.ErrSpanAlreadyClosed):
		cs.logger.Info("Span already stopped", zap.String("span_id", spanID))
		return AlreadyStopped, nil
	case errors.Is(err, registry.ErrSpanNotFound):
		return "", fmt.Errorf("span %s: %w", spanID, ErrUnknownSpan)
	case err != nil:
		return "", fmt.Errorf("failed to close span %s: %w", spanID, err)
	}

	span.Span.SetStatus(codes.Ok, "")
	span.Span.End(trace.WithTimestamp(endTime))
	cs.metrics.OpenSpans.Dec()
	cs.publishClosed(record)
	cs.logger.Info(
		"Span stopped",
		zap.String("trace_id", record.TraceID),
		zap.String("span_id", spanID),
		zap.Duration("duration", record.Duration()),
	)
	return Stopped, nil
}

func (cs *CollectorServiceImpl) SweepOrphans(ctx context.Context, cutoff time.Time, now time.Time) int {
	orphans := cs.registry.CloseOpenedBefore(cutoff, now, model.StatusOrphaned)
	for _, orphan := range orphans {
		record := orphan.Record
		orphan.Span.SetStatus(codes.Error, string(model.StatusOrphaned))
		orphan.Span.End(trace.WithTimestamp(now))
		cs.metrics.OpenSpans.Dec()
		cs.metrics.OrphanedSpans.Inc()
		cs.publishClosed(record)
		cs.logger.Warn(
			"Ended orphaned span",
			zap.String("trace_id", record.TraceID),
			zap.String("span_id", record.SpanID),
			zap.String("operation", record.Operation),
			zap.Time("start_time", record.StartTime),
		)
	}
	return len(orphans)
}

func (cs *CollectorServiceImpl) publishClosed(record model.SpanRecord) {
	if err := cs.bus.PublishSpanClosed(model.SpanClosedEvent{Span: record}); err != nil {
		cs.logger.Error("Failed to publish span closed event", zap.String("span_id", record.SpanID), zap.Error(err))
	}
}

func validateStart(input StartSpanInput) error {
	if input.Service == "" || input.Operation == "" || input.StartTime.IsZero() {
		return fmt.Errorf("service, operation and start_time: %w", ErrMissingField)
	}
	return nil
}

func spanAttributes(input StartSpanInput) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("app.service", input.Service),
		attribute.String("app.message", input.Message),
	}
}
