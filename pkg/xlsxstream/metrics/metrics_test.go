package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveEntry(RouteWorkbook)
	c.ObserveEntry(RouteSpooled)
	c.ObserveEntry(RouteSpooled)
	c.ObserveSheet(SheetReplayed)
	c.ObserveRows(2)
	c.ObserveSpool(1024)
	c.ObserveWarning()
	c.ObserveDuration(150 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.entries.WithLabelValues(RouteSpooled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.entries.WithLabelValues(RouteWorkbook)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sheets.WithLabelValues(SheetReplayed)))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.rows))
	assert.Equal(t, float64(1024), testutil.ToFloat64(c.spooledBytes))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.warnings))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.errors))

	err = testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP xlsxstream_rows_total Rows emitted.
# TYPE xlsxstream_rows_total counter
xlsxstream_rows_total 2
`), "xlsxstream_rows_total")
	assert.NoError(t, err)
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveEntry(RouteDrained)
		c.ObserveSheet(SheetDirect)
		c.ObserveRows(3)
		c.ObserveSpool(1)
		c.ObserveWarning()
		c.ObserveError()
		c.ObserveDuration(time.Second)
	})
}
