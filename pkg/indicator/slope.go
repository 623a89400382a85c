package indicator

import (
	"github.com/markcheno/go-talib"
)

// LinRegSlope returns the least-squares slope per period over the newest
// window values. Fewer than two points yield 0.
func LinRegSlope(values []float64, window int) float64 {
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	if window < 2 {
		return 0
	}
	out := talib.LinearRegSlope(Tail(values, window), window)
	if len(out) == 0 {
		return 0
	}
	return out[len(out)-1]
}

// NormalizedSlope divides LinRegSlope by the mean of the window so that
// instruments of different size compare. A zero mean yields 0.
func NormalizedSlope(values []float64, window int) float64 {
	slope := LinRegSlope(values, window)
	mean := Mean(Tail(values, window))
	if mean == 0 {
		return 0
	}
	return slope / mean
}
