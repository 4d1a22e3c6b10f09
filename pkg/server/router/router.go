package router

import (
	"net/http"

	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"github.com/Avi18971911/augur-span-reporter/pkg/server/handler"
	"github.com/Avi18971911/augur-span-reporter/pkg/server/middleware"
	"github.com/Avi18971911/augur-span-reporter/pkg/signup"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CreateRouter wires the user-facing routes. A nil limiter disables rate limiting.
func CreateRouter(
	signupService signup.SignupService,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	limiter *rate.Limiter,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	traced := r.NewRoute().Subrouter()
	if limiter != nil {
		traced.Use(middleware.RateLimit(limiter, logger))
	}
	traced.Handle(
		"/test-trace", handler.TestTraceHandler(
			signupService,
			m,
			logger,
		),
	).Methods("GET")
	return r
}
