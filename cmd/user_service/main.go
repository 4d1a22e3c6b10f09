package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/config"
	"github.com/Avi18971911/augur-span-reporter/internal/logging"
	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"github.com/Avi18971911/augur-span-reporter/pkg/aggregator"
	"github.com/Avi18971911/augur-span-reporter/pkg/reporter"
	"github.com/Avi18971911/augur-span-reporter/pkg/sequencer"
	"github.com/Avi18971911/augur-span-reporter/pkg/server/router"
	"github.com/Avi18971911/augur-span-reporter/pkg/signup"
	"github.com/Avi18971911/augur-span-reporter/pkg/span_clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeOut = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	collectorReporter := reporter.NewCollectorReporterImpl(reporter.CollectorReporterConfig{
		BaseURL:      cfg.Collector.BaseURL,
		Timeout:      cfg.Collector.Timeout,
		MaxRetries:   cfg.Collector.MaxRetries,
		RetryWaitMin: cfg.Collector.RetryWaitMin,
		RetryWaitMax: cfg.Collector.RetryWaitMax,
	}, logger)
	seq := sequencer.NewSequencerImpl(
		metrics.NewInstrumentedReporter(collectorReporter, m),
		span_clock.NewRealSpanClock(),
		logger,
	)
	agg := aggregator.NewResultAggregatorImpl(logger)

	closeMode := sequencer.CloseOnUnwind
	if !cfg.Pipeline.Nested {
		closeMode = sequencer.CloseImmediately
	}
	ss := signup.NewSignupServiceImpl(seq, agg, signup.Config{
		Service:                  cfg.Pipeline.ServiceName,
		CreateUserDuration:       cfg.Pipeline.CreateUserDuration,
		DatabaseInsertDuration:   cfg.Pipeline.DatabaseDuration,
		SendConfirmationDuration: cfg.Pipeline.ConfirmationDuration,
		CloseMode:                closeMode,
	}, logger)

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router.CreateRouter(ss, m, reg, limiter, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.Info(
			"Starting user service",
			zap.String("address", cfg.Server.Address),
			zap.String("collector", cfg.Collector.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down user service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeOut)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down gracefully", zap.Error(err))
	}
}
