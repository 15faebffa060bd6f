package progress

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of a run. Implements ingest.Recorder and consolidate.Recorder
type Collector struct {
	reg *prometheus.Registry

	ItemsSettled        *prometheus.CounterVec // labels: pool, result
	ItemDuration        *prometheus.HistogramVec
	InsertedTotal       prometheus.Counter
	DeletedTotal        prometheus.Counter
	CanonicalTotal      prometheus.Counter
	UnresolvedTotal     prometheus.Counter
	ProgressPublishErrs prometheus.Counter
}

// NewCollector creates Collector with its own registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ItemsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfs_delay_items_settled_total",
			Help: "Work items completed by pool and result.",
		}, []string{"pool", "result"}),
		ItemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gtfs_delay_item_duration_seconds",
			Help:    "Time taken to process one work item.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}, []string{"pool"}),
		InsertedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfs_delay_observations_inserted_total",
			Help: "Delay observations recorded from snapshots.",
		}),
		DeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfs_delay_observations_deleted_total",
			Help: "Delay observations removed during consolidation.",
		}),
		CanonicalTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfs_delay_canonical_observations_total",
			Help: "Observations kept as the final delay of a trip stop.",
		}),
		UnresolvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfs_delay_unresolved_trips_total",
			Help: "Trips purged during consolidation because they have no schedule.",
		}),
		ProgressPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfs_delay_progress_publish_errors_total",
			Help: "Progress messages that could not be published to NATS.",
		}),
	}

	reg.MustRegister(
		c.ItemsSettled, c.ItemDuration,
		c.InsertedTotal, c.DeletedTotal, c.CanonicalTotal, c.UnresolvedTotal,
		c.ProgressPublishErrs,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// ItemSettled records the completion of one work item of pool
func (c *Collector) ItemSettled(pool string, failed bool, elapsed time.Duration) {
	result := "success"
	if failed {
		result = "failure"
	}
	c.ItemsSettled.WithLabelValues(pool, result).Inc()
	c.ItemDuration.WithLabelValues(pool).Observe(elapsed.Seconds())
}

// ObservationsInserted implements ingest.Recorder
func (c *Collector) ObservationsInserted(count int64) {
	c.InsertedTotal.Add(float64(count))
}

// ObservationsDeleted implements consolidate.Recorder
func (c *Collector) ObservationsDeleted(count int64) {
	c.DeletedTotal.Add(float64(count))
}

// CanonicalKept implements consolidate.Recorder
func (c *Collector) CanonicalKept(count int) {
	c.CanonicalTotal.Add(float64(count))
}

// TripsUnresolved implements consolidate.Recorder
func (c *Collector) TripsUnresolved(count int) {
	c.UnresolvedTotal.Add(float64(count))
}
