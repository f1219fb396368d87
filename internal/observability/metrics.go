package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for an ingestion run.
type Metrics struct {
	// Acquisition metrics.
	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss,forced}
	Downloads       *prometheus.CounterVec // labels: outcome={success,failure}
	DownloadRetries prometheus.Counter

	// Row metrics.
	RowsProjected prometheus.Counter
	RowsDropped   prometheus.Counter // projected rows outside the month window
	RowsLoaded    prometheus.Counter

	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheLookups,
		m.Downloads,
		m.DownloadRetries,
		m.RowsProjected,
		m.RowsDropped,
		m.RowsLoaded,
		m.RunDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "griddap_etl",
			Name:      "cache_lookups_total",
			Help:      "Grid asset cache lookups by result.",
		}, []string{"result"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "griddap_etl",
			Name:      "downloads_total",
			Help:      "Grid asset download outcomes after retries.",
		}, []string{"outcome"}),
		DownloadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "griddap_etl",
			Name:      "download_retries_total",
			Help:      "Individual download attempts that failed and were retried.",
		}),
		RowsProjected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "griddap_etl",
			Name:      "rows_projected_total",
			Help:      "Rows flattened from decoded grids before month filtering.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "griddap_etl",
			Name:      "rows_dropped_total",
			Help:      "Projected rows whose period fell outside the target month.",
		}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "griddap_etl",
			Name:      "rows_loaded_total",
			Help:      "Rows appended to the warehouse.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "griddap_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete ingestion run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}
