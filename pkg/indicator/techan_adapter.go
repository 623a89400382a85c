package indicator

import (
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

// seriesEpoch anchors synthetic candle periods. Only ordering matters to the
// indicators, so values are laid out on a fixed one-minute grid.
var seriesEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// NewSeries builds a techan time series whose close prices are closes and
// whose volumes are volumes. volumes may be nil.
func NewSeries(closes, volumes []float64) *techan.TimeSeries {
	series := techan.NewTimeSeries()
	for i, c := range closes {
		period := techan.NewTimePeriod(seriesEpoch.Add(time.Duration(i)*time.Minute), time.Minute)
		candle := techan.NewCandle(period)
		candle.OpenPrice = big.NewDecimal(c)
		candle.MaxPrice = big.NewDecimal(c)
		candle.MinPrice = big.NewDecimal(c)
		candle.ClosePrice = big.NewDecimal(c)
		if i < len(volumes) {
			candle.Volume = big.NewDecimal(volumes[i])
		}
		series.AddCandle(candle)
	}
	return series
}

// SMA returns the simple moving average of the newest window values. The
// window is clamped to the series length; an empty series yields 0.
func SMA(values []float64, window int) float64 {
	if len(values) == 0 || window <= 0 {
		return 0
	}
	if window > len(values) {
		window = len(values)
	}
	series := NewSeries(values, nil)
	sma := techan.NewSimpleMovingAverage(techan.NewClosePriceIndicator(series), window)
	return sma.Calculate(series.LastIndex()).Float()
}

// VolumeSMA returns the moving average of the newest window volumes.
func VolumeSMA(volumes []float64, window int) float64 {
	if len(volumes) == 0 || window <= 0 {
		return 0
	}
	if window > len(volumes) {
		window = len(volumes)
	}
	series := NewSeries(make([]float64, len(volumes)), volumes)
	sma := techan.NewSimpleMovingAverage(techan.NewVolumeIndicator(series), window)
	return sma.Calculate(series.LastIndex()).Float()
}
