package event_bus

import (
	"fmt"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/model"
	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

const spanClosedTopic = "span_closed"

// SpanClosedHandler consumes one closed span. An error is logged and does not stop delivery.
type SpanClosedHandler func(event model.SpanClosedEvent) error

// SpanEventBus fans closed spans out to the collector's sinks.
type SpanEventBus interface {
	PublishSpanClosed(event model.SpanClosedEvent) error
	// SubscribeSpanClosed delivers events asynchronously and in publish order to handler.
	SubscribeSpanClosed(name string, handler SpanClosedHandler) error
	// WaitAsync blocks until every asynchronous handler has returned.
	WaitAsync()
}

type SpanEventBusImpl struct {
	bus    EventBus.Bus
	logger *zap.Logger
}

func NewSpanEventBusImpl(bus EventBus.Bus, logger *zap.Logger) *SpanEventBusImpl {
	return &SpanEventBusImpl{
		bus:    bus,
		logger: logger,
	}
}

func (sb *SpanEventBusImpl) PublishSpanClosed(event model.SpanClosedEvent) error {
	if event.Span.SpanID == "" {
		return fmt.Errorf("refusing to publish a closed span without an id: %w", ErrMissingSpanID)
	}
	sb.bus.Publish(spanClosedTopic, event)
	return nil
}

func (sb *SpanEventBusImpl) SubscribeSpanClosed(name string, handler SpanClosedHandler) error {
	deliver := func(event model.SpanClosedEvent) {
		if err := handler(event); err != nil {
			sb.logger.Error(
				"Span closed subscriber failed",
				zap.String("subscriber", name),
				zap.String("trace_id", event.Span.TraceID),
				zap.String("span_id", event.Span.SpanID),
				zap.Error(err),
			)
		}
	}
	if err := sb.bus.SubscribeAsync(spanClosedTopic, deliver, true); err != nil {
		return fmt.Errorf("failed to subscribe %s to closed spans: %w", name, err)
	}
	sb.logger.Debug("Subscribed to closed spans", zap.String("subscriber", name))
	return nil
}

func (sb *SpanEventBusImpl) WaitAsync() {
	sb.bus.WaitAsync()
}
