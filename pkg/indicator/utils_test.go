package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailAndAgo(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, []float64{4, 5}, Tail(values, 2))
	assert.Equal(t, values, Tail(values, 0))
	assert.Equal(t, values, Tail(values, 10))

	assert.Equal(t, 5.0, Ago(values, 0))
	assert.Equal(t, 2.0, Ago(values, 3))
	assert.Equal(t, 1.0, Ago(values, 99))
	assert.Equal(t, 0.0, Ago(nil, 1))
}

func TestMinMaxMean(t *testing.T) {
	values := []float64{3, -1, 7, 2}
	assert.Equal(t, -1.0, Min(values))
	assert.Equal(t, 7.0, Max(values))
	assert.InDelta(t, 2.75, Mean(values), 1e-9)

	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
	assert.Equal(t, 0.0, Mean(nil))
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5, 11}

	assert.InDelta(t, 2.0, Percentile(values, 10), 1e-9)
	assert.InDelta(t, 10.0, Percentile(values, 90), 1e-9)
	assert.InDelta(t, 6.0, Percentile(values, 50), 1e-9)
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 11.0, Percentile(values, 100))

	// input untouched
	assert.Equal(t, 10.0, values[0])
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestFiniteAndRound(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, Finite([]float64{1, math.NaN(), math.Inf(1), 2}))
	assert.Equal(t, 1.3, Round(1.25001, 1))
	assert.Equal(t, 22.4, Round(22.4, 1))
}
