package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/event_bus"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/exporter"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/registry"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/router"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/service"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/sink"
	"github.com/Avi18971911/augur-span-reporter/internal/config"
	"github.com/Avi18971911/augur-span-reporter/internal/logging"
	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"github.com/asaskevich/EventBus"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

const shutdownTimeOut = 10 * time.Second

func main() {
	cfg, err := config.LoadCollector()
	if err != nil {
		panic(err)
	}
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	spanExporter, err := exporter.NewOTLPExporter(ctx, cfg.OTLP)
	if err != nil {
		logger.Fatal("Failed to create OTLP exporter", zap.Error(err))
	}
	if spanExporter == nil {
		logger.Warn("No OTLP endpoint configured, spans will not be exported")
	}
	tp := exporter.NewTracerProvider(cfg.ServiceName, spanExporter)

	cache, err := registry.NewClosedSpanCache(cfg.ClosedSpanCacheSize)
	if err != nil {
		logger.Fatal("Failed to create closed span cache", zap.Error(err))
	}
	defer cache.Close()
	spanRegistry := registry.NewSpanRegistryImpl(cache, cfg.ClosedSpanTTL, clockz.RealClock)

	bus := event_bus.NewSpanEventBusImpl(EventBus.New(), logger)
	writeBuffer := startSink(cfg.Sink, bus, logger)
	if writeBuffer != nil {
		go writeBuffer.RunPeriodicFlush(ctx, clockz.RealClock, cfg.Sink.FlushInterval)
	}

	cs := service.NewCollectorServiceImpl(
		tp.Tracer(exporter.TracerName),
		spanRegistry,
		bus,
		m,
		logger,
	)
	janitor := service.NewOrphanJanitor(cs, spanRegistry, clockz.RealClock, cfg.OrphanAfter, cfg.SweepEvery, logger)
	go janitor.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: router.CreateRouter(cs, m, reg, logger),
	}
	go func() {
		logger.Info("Starting collector", zap.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down collector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeOut)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down gracefully", zap.Error(err))
	}
	bus.WaitAsync()
	if writeBuffer != nil {
		if err := writeBuffer.Flush(shutdownCtx); err != nil {
			logger.Error("Failed to flush spans on shutdown", zap.Error(err))
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down tracer provider", zap.Error(err))
	}
}

// startSink subscribes the Elasticsearch write buffer to closed spans. It returns nil when no
// Elasticsearch address is configured.
func startSink(
	cfg config.ElasticsearchSinkConfig,
	bus event_bus.SpanEventBus,
	logger *zap.Logger,
) *sink.SpanWriteBufferImpl {
	if len(cfg.Addresses) == 0 {
		logger.Info("No Elasticsearch addresses configured, closed spans will not be stored")
		return nil
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Addresses})
	if err != nil {
		logger.Fatal("Failed to create elasticsearch client", zap.Error(err))
	}
	if err := sink.NewBootstrapper(es, logger).BootstrapSpanIndex(cfg.IndexName); err != nil {
		logger.Error("Failed to bootstrap elasticsearch", zap.Error(err))
	}

	store := sink.NewElasticsearchSpanStore(es, cfg.IndexName, sink.Async)
	writeBuffer := sink.NewSpanWriteBufferImpl(store, cfg.FlushSize, cfg.FlushTimeout, logger)
	if err := bus.SubscribeSpanClosed("elasticsearch", writeBuffer.HandleSpanClosed); err != nil {
		logger.Fatal("Failed to subscribe span sink", zap.Error(err))
	}
	return writeBuffer
}
