package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.InDelta(t, 9.0, SMA(values, 3), 1e-9)
	assert.InDelta(t, 5.5, SMA(values, 10), 1e-9)
	// window longer than the series is clamped
	assert.InDelta(t, 5.5, SMA(values, 30), 1e-9)
	assert.Equal(t, 0.0, SMA(nil, 3))
	assert.Equal(t, 0.0, SMA(values, 0))
}

func TestVolumeSMA(t *testing.T) {
	volumes := []float64{100, 100, 100, 400, 400, 400}

	assert.InDelta(t, 400.0, VolumeSMA(volumes, 3), 1e-9)
	assert.InDelta(t, 250.0, VolumeSMA(volumes, 30), 1e-9)
	assert.Equal(t, 0.0, VolumeSMA(nil, 3))
}

func TestNewSeries(t *testing.T) {
	series := NewSeries([]float64{1, 2, 3}, []float64{10, 20, 30})
	assert.Equal(t, 2, series.LastIndex())
	assert.InDelta(t, 3.0, series.LastCandle().ClosePrice.Float(), 1e-9)
	assert.InDelta(t, 30.0, series.LastCandle().Volume.Float(), 1e-9)
}
