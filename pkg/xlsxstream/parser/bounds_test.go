package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/models"
)

func TestBounds(t *testing.T) {
	var b Bounds
	assert.Equal(t, "", b.Range())
	assert.Zero(t, b.Density())
	assert.False(t, b.LooksLikeTable(DefaultTableParams()))

	b.ObserveRow(models.Row{Number: 2, Values: []any{nil, "a", ""}})
	b.ObserveRow(models.Row{Number: 4, Values: []any{nil, nil, nil, float64(1)}})
	b.Observe(3, 2)

	assert.Equal(t, 3, b.Cells())
	assert.Equal(t, "B2:D4", b.Range())
	assert.InDelta(t, 3.0/9.0, b.Density(), 1e-9)
	assert.True(t, b.LooksLikeTable(DefaultTableParams()))
	assert.False(t, b.LooksLikeTable(TableDetectionParams{DensityMin: 0.5, MinNonemptyCells: 1}))
}
