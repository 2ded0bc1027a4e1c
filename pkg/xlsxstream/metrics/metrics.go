// Package metrics exposes Prometheus collectors for parse runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xlsxstream"

// Entry routes.
const (
	RouteWorkbook      = "workbook"
	RouteRelationships = "relationships"
	RouteSharedStrings = "shared_strings"
	RouteStyles        = "styles"
	RouteWorksheet     = "worksheet"
	RouteSpooled       = "spooled"
	RouteDrained       = "drained"
)

// Sheet modes.
const (
	SheetDirect   = "direct"
	SheetReplayed = "replayed"
)

// Collector groups the parse metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	entries      *prometheus.CounterVec
	sheets       *prometheus.CounterVec
	rows         prometheus.Counter
	spooledBytes prometheus.Counter
	warnings     prometheus.Counter
	errors       prometheus.Counter
	duration     prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Container entries seen, by route.",
		}, []string{"route"}),
		sheets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worksheets_total",
			Help:      "Worksheets handed out, by how they were read.",
		}, []string{"mode"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows emitted.",
		}),
		spooledBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spooled_bytes_total",
			Help:      "Uncompressed worksheet bytes written to the spool.",
		}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal parse warnings.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Parse runs that ended with a fatal error.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Wall time of completed parse runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	for _, col := range []prometheus.Collector{
		c.entries, c.sheets, c.rows, c.spooledBytes, c.warnings, c.errors, c.duration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveEntry counts a container entry routed to route.
func (c *Collector) ObserveEntry(route string) {
	if c == nil {
		return
	}
	c.entries.WithLabelValues(route).Inc()
}

// ObserveSheet counts a worksheet read in mode.
func (c *Collector) ObserveSheet(mode string) {
	if c == nil {
		return
	}
	c.sheets.WithLabelValues(mode).Inc()
}

// ObserveRows adds n emitted rows.
func (c *Collector) ObserveRows(n int) {
	if c == nil {
		return
	}
	c.rows.Add(float64(n))
}

// ObserveSpool adds n spooled bytes.
func (c *Collector) ObserveSpool(n int64) {
	if c == nil {
		return
	}
	c.spooledBytes.Add(float64(n))
}

// ObserveWarning counts a warning.
func (c *Collector) ObserveWarning() {
	if c == nil {
		return
	}
	c.warnings.Inc()
}

// ObserveError counts a failed run.
func (c *Collector) ObserveError() {
	if c == nil {
		return
	}
	c.errors.Inc()
}

// ObserveDuration records the duration of a completed run.
func (c *Collector) ObserveDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.duration.Observe(d.Seconds())
}
