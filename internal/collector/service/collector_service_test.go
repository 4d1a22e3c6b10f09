package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/event_bus"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/model"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/registry"
	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

var startTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCollectorServiceImpl_StartTrace(t *testing.T) {
	t.Run("Allocates W3C identifiers for a new root span", func(t *testing.T) {
		h := newHarness(t)
		ref, err := h.service.StartTrace(context.Background(), rootInput())
		require.NoError(t, err)

		assert.Len(t, ref.TraceID, 32)
		assert.Len(t, ref.SpanID, 16)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OpenSpans))
	})

	t.Run("Starts an unrelated trace for every root", func(t *testing.T) {
		h := newHarness(t)
		first, err := h.service.StartTrace(context.Background(), rootInput())
		require.NoError(t, err)
		second, err := h.service.StartTrace(context.Background(), rootInput())
		require.NoError(t, err)
		assert.NotEqual(t, first.TraceID, second.TraceID)
	})

	t.Run("Rejects a start without an operation", func(t *testing.T) {
		h := newHarness(t)
		input := rootInput()
		input.Operation = ""
		_, err := h.service.StartTrace(context.Background(), input)
		assert.ErrorIs(t, err, ErrMissingField)
	})
}

func TestCollectorServiceImpl_AddTrace(t *testing.T) {
	t.Run("Places the child under its parent in the same trace", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)

		child, err := h.service.AddTrace(ctx, childInput(root, "database-insert"))
		require.NoError(t, err)
		assert.Equal(t, root.TraceID, child.TraceID)

		_, err = h.service.StopTrace(ctx, child.SpanID, startTime.Add(time.Second))
		require.NoError(t, err)
		_, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(2*time.Second))
		require.NoError(t, err)

		spans := h.exporter.GetSpans()
		require.Len(t, spans, 2)
		assert.Equal(t, "database-insert", spans[0].Name)
		assert.Equal(t, root.SpanID, spans[0].Parent.SpanID().String())
		assert.Equal(t, root.TraceID, spans[0].SpanContext.TraceID().String())
		assert.False(t, spans[1].Parent.IsValid())
	})

	t.Run("Links a child to a parent that was already stopped", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)
		_, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(time.Second))
		require.NoError(t, err)

		child, err := h.service.AddTrace(ctx, childInput(root, "database-insert"))
		require.NoError(t, err)
		assert.Equal(t, root.TraceID, child.TraceID)
	})

	t.Run("Keeps linking children to stopped parents once the cache is full", func(t *testing.T) {
		h := newHarnessWithCache(t, 256)
		ctx := context.Background()
		const traces = 25000
		for i := 0; i < traces; i++ {
			root, err := h.service.StartTrace(ctx, rootInput())
			require.NoError(t, err)
			_, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(time.Second))
			require.NoError(t, err)

			child, err := h.service.AddTrace(ctx, childInput(root, "database-insert"))
			require.NoError(t, err, "child of stopped parent in trace %d", i)
			assert.Equal(t, root.TraceID, child.TraceID)
			status, err := h.service.StopTrace(ctx, child.SpanID, startTime.Add(2*time.Second))
			require.NoError(t, err)
			require.Equal(t, Stopped, status)

			status, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(time.Second))
			require.NoError(t, err)
			require.Equal(t, AlreadyStopped, status)
			if i%1000 == 0 {
				h.bus.WaitAsync()
				h.exporter.Reset()
			}
		}
		assert.Equal(t, 2*traces, h.registry.ClosedCount())
		assert.Equal(t, 0, h.registry.OpenCount())
	})

	t.Run("Rejects an unknown parent", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.service.AddTrace(context.Background(), childInput(SpanRef{
			TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
			SpanID:  "00f067aa0ba902b7",
		}, "database-insert"))
		assert.ErrorIs(t, err, ErrUnknownParent)
	})

	t.Run("Rejects a parent from another trace", func(t *testing.T) {
		h := newHarness(t)
		root, err := h.service.StartTrace(context.Background(), rootInput())
		require.NoError(t, err)

		input := childInput(root, "database-insert")
		input.TraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
		_, err = h.service.AddTrace(context.Background(), input)
		assert.ErrorIs(t, err, ErrTraceMismatch)
	})

	t.Run("Requires the parent identifiers", func(t *testing.T) {
		h := newHarness(t)
		input := rootInput()
		_, err := h.service.AddTrace(context.Background(), input)
		assert.ErrorIs(t, err, ErrMissingField)
	})
}

func TestCollectorServiceImpl_StopTrace(t *testing.T) {
	t.Run("Ends the span with the client's timestamps and publishes it", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)

		endTime := startTime.Add(500 * time.Millisecond)
		status, err := h.service.StopTrace(ctx, root.SpanID, endTime)
		require.NoError(t, err)
		assert.Equal(t, Stopped, status)

		spans := h.exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.True(t, startTime.Equal(spans[0].StartTime))
		assert.True(t, endTime.Equal(spans[0].EndTime))

		events := h.closedEvents()
		require.Len(t, events, 1)
		assert.Equal(t, root.SpanID, events[0].Span.SpanID)
		assert.Equal(t, model.StatusOK, events[0].Span.Status)
		assert.Equal(t, 500*time.Millisecond, events[0].Span.Duration())
		assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.OpenSpans))
	})

	t.Run("Answers a repeated stop without ending the span again", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)

		_, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(time.Second))
		require.NoError(t, err)
		status, err := h.service.StopTrace(ctx, root.SpanID, startTime.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, AlreadyStopped, status)
		assert.Len(t, h.exporter.GetSpans(), 1)
		assert.Len(t, h.closedEvents(), 1)
	})

	t.Run("Rejects an unknown span", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.service.StopTrace(context.Background(), "00f067aa0ba902b7", startTime)
		assert.ErrorIs(t, err, ErrUnknownSpan)
	})

	t.Run("Rejects an end time before the start time and keeps the span open", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)

		_, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(-time.Second))
		assert.ErrorIs(t, err, ErrEndBeforeStart)
		_, open := h.registry.Lookup(root.SpanID)
		assert.True(t, open)
	})
}

func TestCollectorServiceImpl_SweepOrphans(t *testing.T) {
	t.Run("Ends spans left open past the cutoff with an error status", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)
		freshInput := rootInput()
		freshInput.StartTime = startTime.Add(time.Hour)
		fresh, err := h.service.StartTrace(ctx, freshInput)
		require.NoError(t, err)

		now := startTime.Add(10 * time.Minute)
		ended := h.service.SweepOrphans(ctx, startTime.Add(time.Minute), now)
		assert.Equal(t, 1, ended)

		spans := h.exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, root.SpanID, spans[0].SpanContext.SpanID().String())
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "orphaned", spans[0].Status.Description)
		assert.True(t, now.Equal(spans[0].EndTime))

		events := h.closedEvents()
		require.Len(t, events, 1)
		assert.Equal(t, model.StatusOrphaned, events[0].Span.Status)

		_, open := h.registry.Lookup(fresh.SpanID)
		assert.True(t, open)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OrphanedSpans))
	})

	t.Run("Treats a late stop of an orphan as a repeat", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)
		h.service.SweepOrphans(ctx, startTime.Add(time.Minute), startTime.Add(time.Hour))

		status, err := h.service.StopTrace(ctx, root.SpanID, startTime.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, AlreadyStopped, status)
	})
}

func TestOrphanJanitor(t *testing.T) {
	t.Run("Sweeps spans older than the orphan age on the janitor clock", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		_, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)

		janitor := NewOrphanJanitor(h.service, h.registry, h.clock, 5*time.Minute, time.Second, zap.NewNop())
		assert.Equal(t, 0, janitor.SweepOnce(ctx))

		h.clock.Advance(5 * time.Minute)
		assert.Equal(t, 1, janitor.SweepOnce(ctx))
	})

	t.Run("Forgets closed spans once their retention is over", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		root, err := h.service.StartTrace(ctx, rootInput())
		require.NoError(t, err)
		_, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(time.Second))
		require.NoError(t, err)

		janitor := NewOrphanJanitor(h.service, h.registry, h.clock, 5*time.Minute, time.Second, zap.NewNop())
		janitor.SweepOnce(ctx)
		assert.Equal(t, 1, h.registry.ClosedCount())

		h.clock.Advance(closedTTL)
		janitor.SweepOnce(ctx)
		assert.Equal(t, 0, h.registry.ClosedCount())
		_, err = h.service.StopTrace(ctx, root.SpanID, startTime.Add(time.Second))
		assert.ErrorIs(t, err, ErrUnknownSpan)
		_, err = h.service.AddTrace(ctx, childInput(root, "database-insert"))
		assert.ErrorIs(t, err, ErrUnknownParent)
	})

	t.Run("Stops when the context is cancelled", func(t *testing.T) {
		h := newHarness(t)
		janitor := NewOrphanJanitor(h.service, h.registry, h.clock, time.Minute, time.Second, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			janitor.Run(ctx)
			close(done)
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("janitor did not stop")
		}
	})
}

const closedTTL = time.Hour

type harness struct {
	service  *CollectorServiceImpl
	registry *registry.SpanRegistryImpl
	exporter *tracetest.InMemoryExporter
	bus      *event_bus.SpanEventBusImpl
	metrics  *metrics.Metrics
	clock    *clockz.FakeClock
	mu       sync.Mutex
	events   []model.SpanClosedEvent
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithCache(t, 1<<16)
}

func newHarnessWithCache(t *testing.T, cacheSize int64) *harness {
	cache, err := registry.NewClosedSpanCache(cacheSize)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	clock := clockz.NewFakeClockAt(startTime.Add(time.Minute))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := &harness{
		registry: registry.NewSpanRegistryImpl(cache, closedTTL, clock),
		exporter: exporter,
		bus:      event_bus.NewSpanEventBusImpl(EventBus.New(), zap.NewNop()),
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
		clock:    clock,
	}
	require.NoError(t, h.bus.SubscribeSpanClosed("recorder", func(event model.SpanClosedEvent) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, event)
		return nil
	}))
	h.service = NewCollectorServiceImpl(tp.Tracer("test"), h.registry, h.bus, h.metrics, zap.NewNop())
	return h
}

func (h *harness) closedEvents() []model.SpanClosedEvent {
	h.bus.WaitAsync()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events
}

func rootInput() StartSpanInput {
	return StartSpanInput{
		Service:   "user-service",
		Operation: "create-user",
		Message:   "Creating user aun",
		StartTime: startTime,
	}
}

func childInput(parent SpanRef, operation string) StartSpanInput {
	return StartSpanInput{
		TraceID:      parent.TraceID,
		ParentSpanID: parent.SpanID,
		Service:      "user-service",
		Operation:    operation,
		Message:      "Inserting user data for aun",
		StartTime:    startTime.Add(100 * time.Millisecond),
	}
}
