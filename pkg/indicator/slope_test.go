package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinRegSlope(t *testing.T) {
	rising := []float64{10, 12, 14, 16, 18, 20}
	assert.InDelta(t, 2.0, LinRegSlope(rising, 6), 1e-6)
	assert.InDelta(t, 2.0, LinRegSlope(rising, 3), 1e-6)

	flat := []float64{5, 5, 5, 5}
	assert.InDelta(t, 0.0, LinRegSlope(flat, 4), 1e-9)

	assert.Equal(t, 0.0, LinRegSlope([]float64{1}, 7))
	assert.Equal(t, 0.0, LinRegSlope(nil, 7))
}

func TestNormalizedSlope(t *testing.T) {
	rising := []float64{10, 12, 14, 16, 18, 20}
	// slope 2 over mean 15
	assert.InDelta(t, 2.0/15.0, NormalizedSlope(rising, 6), 1e-6)
	assert.Equal(t, 0.0, NormalizedSlope([]float64{0, 0, 0}, 3))
}
