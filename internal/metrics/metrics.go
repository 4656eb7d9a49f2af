package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	endpointReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrotate",
			Name:      "ocr_requests_total",
			Help:      "Total orientation requests by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	endpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfrotate",
			Name:      "ocr_request_duration_seconds",
			Help:      "Duration of orientation requests by endpoint",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	endpointEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrotate",
			Name:      "ocr_endpoint_evictions_total",
			Help:      "Endpoints evicted after repeated failures",
		},
		[]string{"endpoint"},
	)

	pagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrotate",
			Name:      "pages_processed_total",
			Help:      "Total pages processed by result (rotated, unchanged, failed)",
		},
		[]string{"result"},
	)

	filesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrotate",
			Name:      "files_processed_total",
			Help:      "Total files processed by result (ok, partial, failed)",
		},
		[]string{"result"},
	)

	rotationsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrotate",
			Name:      "rotations_applied_total",
			Help:      "Rotation metadata updates by angle",
		},
		[]string{"angle"},
	)
)

func init() {
	prometheus.MustRegister(
		endpointReqs,
		endpointLatency,
		endpointEvictions,
		pagesProcessed,
		filesProcessed,
		rotationsApplied,
	)
}

// ObserveEndpoint records one orientation request outcome.
func ObserveEndpoint(endpoint, result string, dur time.Duration) {
	endpointReqs.WithLabelValues(endpoint, result).Inc()
	endpointLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

// EndpointEvicted records a permanent endpoint eviction.
func EndpointEvicted(endpoint string) {
	endpointEvictions.WithLabelValues(endpoint).Inc()
}

// PageProcessed records a page result: rotated, unchanged or failed.
func PageProcessed(result string) {
	pagesProcessed.WithLabelValues(result).Inc()
}

// FileProcessed records a file result: ok, partial or failed.
func FileProcessed(result string) {
	filesProcessed.WithLabelValues(result).Inc()
}

// RotationApplied records one rotation metadata update.
func RotationApplied(angle int) {
	rotationsApplied.WithLabelValues(strconv.Itoa(angle)).Inc()
}

// Serve exposes /metrics on addr in the background. A batch run usually
// leaves this off; it exists for long supervised runs.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listener started")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()
}
