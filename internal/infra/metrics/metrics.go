package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ScrapeItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_items_total",
		Help: "Элементы прохода сбора по источникам и исходу",
	}, []string{"source", "result"})

	ScrapeSourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_source_failures_total",
		Help: "Проходы, в которых источник оказался недоступен",
	}, []string{"source"})

	CollectionPassSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collection_pass_seconds",
		Help:    "Длительность одного прохода сбора",
		Buckets: prometheus.DefBuckets,
	})

	EnrichedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enriched_records_total",
		Help: "Обогащённые записи по метке тональности",
	}, []string{"label"})

	EnrichBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrich_batch_seconds",
		Help:    "Длительность обработки одной партии обогащения",
		Buckets: prometheus.DefBuckets,
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ScrapeItemsTotal,
		ScrapeSourceFailures,
		CollectionPassSeconds,
		EnrichedTotal,
		EnrichBatchSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: сервер остановился с ошибкой")
		}
	}()
}
