package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/event_bus"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/registry"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/router"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/service"
	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"github.com/Avi18971911/augur-span-reporter/pkg/reporter"
	"github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// testCollector is the reference collector served over HTTP, with its exported spans kept in memory.
type testCollector struct {
	server   *httptest.Server
	service  *service.CollectorServiceImpl
	registry *registry.SpanRegistryImpl
	exporter *tracetest.InMemoryExporter
	calls    atomic.Int32
	// failOnCall aborts the connection of the n-th collector call when set.
	failOnCall int32
}

func newTestCollector(t *testing.T, failOnCall int32) *testCollector {
	cache, err := registry.NewClosedSpanCache(1 << 16)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	bus := event_bus.NewSpanEventBusImpl(EventBus.New(), zap.NewNop())

	tc := &testCollector{
		registry:   registry.NewSpanRegistryImpl(cache, time.Hour, clockz.RealClock),
		exporter:   exporter,
		failOnCall: failOnCall,
	}
	tc.service = service.NewCollectorServiceImpl(tp.Tracer("integration"), tc.registry, bus, m, zap.NewNop())

	h := router.CreateRouter(tc.service, m, reg, zap.NewNop())
	tc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tc.calls.Add(1) == tc.failOnCall {
			panic(http.ErrAbortHandler)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(tc.server.Close)
	return tc
}

func (tc *testCollector) reporter() *reporter.CollectorReporterImpl {
	return reporter.NewCollectorReporterImpl(reporter.CollectorReporterConfig{
		BaseURL: tc.server.URL,
		Timeout: 2 * time.Second,
	}, zap.NewNop())
}
