// Package metrics exposes Prometheus collectors for scans.
//
// A Collector is registered on a caller-supplied prometheus.Registerer so
// that embedding applications decide where metrics end up, and tests can use
// a private registry. A nil *Collector is valid and records nothing, so
// instrumented code never needs to check for it.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewCollector(reg)
//	timer := metrics.NewTimer()
//	rows, err := scan()
//	m.ObserveScan("shop.orders", rows, timer.Stop(), err)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mongoscan"

// Collector groups every scan metric.
type Collector struct {
	scansTotal        *prometheus.CounterVec   // scans by collection and status
	rowsRead          *prometheus.CounterVec   // rows materialized
	partitionsTotal   *prometheus.CounterVec   // partitions by status
	activePartitions  *prometheus.GaugeVec     // partitions currently reading
	scanDuration      *prometheus.HistogramVec // end-to-end scan latency
	partitionDuration *prometheus.HistogramVec // per-partition latency
	throughput        *prometheus.GaugeVec     // rows per second of the last scan
}

// NewCollector creates the scan metrics and registers them on reg. A nil
// reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		scansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of collection scans",
		}, []string{"collection", "status"}),
		rowsRead: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Total number of documents converted to rows",
		}, []string{"collection"}),
		partitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_total",
			Help:      "Total number of partitions read",
		}, []string{"collection", "status"}),
		activePartitions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_partitions",
			Help:      "Partitions currently being read",
		}, []string{"collection"}),
		scanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Scan latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"collection"}),
		partitionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_duration_seconds",
			Help:      "Partition read latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"collection"}),
		throughput: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_rows_per_second",
			Help:      "Rows per second of the most recent scan",
		}, []string{"collection"}),
	}
}

// ObserveScan records one finished scan.
func (c *Collector) ObserveScan(collection string, rows int64, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.scansTotal.WithLabelValues(collection, status(err)).Inc()
	c.scanDuration.WithLabelValues(collection).Observe(d.Seconds())
	if err == nil && d > 0 {
		c.throughput.WithLabelValues(collection).Set(float64(rows) / d.Seconds())
	}
}

// PartitionStarted marks a partition as in flight. Call the returned
// function exactly once when it finishes.
func (c *Collector) PartitionStarted(collection string) func(rows int64, err error) {
	if c == nil {
		return func(int64, error) {}
	}
	timer := NewTimer()
	c.activePartitions.WithLabelValues(collection).Inc()
	return func(rows int64, err error) {
		c.activePartitions.WithLabelValues(collection).Dec()
		c.partitionsTotal.WithLabelValues(collection, status(err)).Inc()
		c.partitionDuration.WithLabelValues(collection).Observe(timer.Stop().Seconds())
		if rows > 0 {
			c.rowsRead.WithLabelValues(collection).Add(float64(rows))
		}
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Timer measures elapsed time from creation.
type Timer struct {
	start time.Time
}

// NewTimer starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time. It can be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
