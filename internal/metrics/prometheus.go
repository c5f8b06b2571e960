package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumi_weight_lookups_total",
		Help: "Total number of weight lookups",
	}, []string{"result"})

	TableDatasets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lumi_table_datasets",
		Help: "Number of datasets in the weight table",
	})

	TableScale = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lumi_table_scale",
		Help: "Current global luminosity scale",
	})

	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumi_weight_reloads_total",
		Help: "Weight table reloads from cross-section and counts files",
	}, []string{"status"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumi_events_total",
		Help: "Events processed by outcome",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lumi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

const (
	ResultFound   = "found"
	ResultUnknown = "unknown"

	StatusOK    = "ok"
	StatusError = "error"

	OutcomeSelected = "selected"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// ObserveTable updates the table gauges.
func ObserveTable(datasets int, scale float64) {
	TableDatasets.Set(float64(datasets))
	TableScale.Set(scale)
}
