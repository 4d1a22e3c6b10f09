package router

import (
	"net/http"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/handler"
	"github.com/Avi18971911/augur-span-reporter/internal/collector/service"
	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func CreateRouter(
	collectorService service.CollectorService,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()
	r.Use(m.Middleware)

	r.Handle("/start-trace", handler.StartTraceHandler(collectorService, logger)).Methods("POST")
	r.Handle("/add-trace", handler.AddTraceHandler(collectorService, logger)).Methods("POST")
	r.Handle("/stop-trace", handler.StopTraceHandler(collectorService, logger)).Methods("POST")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return r
}
