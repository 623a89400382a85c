package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func testParams() Params {
	return DefaultParams(30, "1d")
}

func TestComputeFeatures_ShortSeriesFallBackToDefaults(t *testing.T) {
	inputs := []Series{
		{},
		{
			OpenInterest: []float64{100},
			LongShort:    []float64{1.2},
			TakerBuy:     []float64{5},
			TakerSell:    []float64{5},
			Basis:        []float64{0.001},
			Funding:      []float64{0.0001},
		},
	}

	for _, in := range inputs {
		f := ComputeFeatures(in, testParams())

		for _, input := range models.AllInputs {
			assert.True(t, f.Missing.Has(input), "expected %s missing", input)
		}
		assert.Equal(t, 0.0, f.OIMin)
		assert.Equal(t, 0.0, f.OILast)
		assert.Equal(t, DefaultLSRatio, f.LSRatioLast)
		assert.Equal(t, DefaultLSRatio, f.LSRatioP10)
		assert.Equal(t, DefaultLSRatio, f.LSRatioP90)
		assert.Equal(t, DefaultTakerBuyRatio, f.TakerBuyRatioLast)
		assert.Equal(t, 0.0, f.BasisLast)
		assert.False(t, f.OICleanThenBuildFlag)
		assert.False(t, f.LSReversalFlag)
		assert.False(t, f.TakerBuyBiasFlag)
		assert.False(t, f.BasisJumpFlag)

		b := Score(f)
		assert.Equal(t, models.ScoreBreakdown{}, b)
	}
}

func TestComputeFeatures_OpenInterestRhythm(t *testing.T) {
	oi := []float64{100, 98, 95, 90, 85, 88, 92, 96, 100, 102}
	f := ComputeFeatures(Series{OpenInterest: oi}, testParams())

	require.False(t, f.Missing.Has(models.InputOpenInterest))
	assert.Equal(t, 85.0, f.OIMin)
	assert.Equal(t, 102.0, f.OIMax)
	assert.Equal(t, 102.0, f.OILast)
	assert.InDelta(t, (85.0-102.0)/102.0, f.OIDrawdownPct, 1e-9)
	assert.InDelta(t, 0.2, f.OIReboundFromMinPct, 1e-9)
	assert.True(t, f.OICleanThenBuildFlag)
	assert.Greater(t, f.OISlope7d, 0.0)
}

func TestComputeFeatures_OpenInterestNoClean(t *testing.T) {
	oi := []float64{100, 99, 98, 97, 98, 99}
	f := ComputeFeatures(Series{OpenInterest: oi}, testParams())

	assert.False(t, f.OICleanThenBuildFlag)
	assert.LessOrEqual(t, f.OIDrawdownPct, 0.0)
}

func TestComputeFeatures_LongShortReversal(t *testing.T) {
	ls := append(repeat(0.6, 20), 0.9, 1.3)
	f := ComputeFeatures(Series{LongShort: ls}, testParams())

	assert.InDelta(t, 0.6, f.LSRatioP10, 1e-9)
	assert.InDelta(t, 1.3, f.LSRatioLast, 1e-9)
	assert.True(t, f.LSReversalFlag)

	flat := ComputeFeatures(Series{LongShort: repeat(1.1, 20)}, testParams())
	assert.False(t, flat.LSReversalFlag)
}

func TestComputeFeatures_TakerBias(t *testing.T) {
	// thirty neutral periods then seven buy-heavy ones
	buy := append(repeat(50, 30), repeat(70, 7)...)
	sell := append(repeat(50, 30), repeat(30, 7)...)
	f := ComputeFeatures(Series{TakerBuy: buy, TakerSell: sell}, testParams())

	require.False(t, f.Missing.Has(models.InputTaker))
	assert.InDelta(t, 0.7, f.TakerBuyRatioLast, 1e-9)
	assert.InDelta(t, 0.7, f.TakerBuyRatioMA7, 1e-9)
	assert.Greater(t, f.TakerBiasDelta(), 0.08)
	assert.True(t, f.TakerBuyBiasFlag)
	assert.InDelta(t, 40.0, f.TakerNetFlowLast, 1e-9)
}

func TestComputeFeatures_TakerVolumeSpike(t *testing.T) {
	buy := append(repeat(50, 30), repeat(200, 3)...)
	sell := append(repeat(50, 30), repeat(200, 3)...)
	f := ComputeFeatures(Series{TakerBuy: buy, TakerSell: sell}, testParams())

	assert.Greater(t, f.TakerVolumeSpike, 1.5)
	assert.True(t, f.TakerBuyBiasFlag)
	assert.InDelta(t, 0.5, f.TakerBuyRatioLast, 1e-9)
}

func TestComputeFeatures_TakerMisalignedAndZeroVolume(t *testing.T) {
	f := ComputeFeatures(Series{TakerBuy: []float64{0, 0, 0}, TakerSell: []float64{0, 0, 0}}, testParams())
	assert.True(t, f.Missing.Has(models.InputTaker))
	assert.Equal(t, DefaultTakerBuyRatio, f.TakerBuyRatioLast)

	f = ComputeFeatures(Series{TakerBuy: []float64{1, 2, 3, 4}, TakerSell: []float64{1, 1}}, testParams())
	assert.False(t, f.Missing.Has(models.InputTaker))
	assert.InDelta(t, 0.8, f.TakerBuyRatioLast, 1e-9)
}

func TestComputeFeatures_BasisJump(t *testing.T) {
	basis := []float64{0.0005, 0.0005, 0.0006, 0.0005, 0.0006, 0.0010, 0.0025, 0.0040}
	f := ComputeFeatures(Series{Basis: basis}, testParams())

	assert.InDelta(t, 0.0040, f.BasisLast, 1e-12)
	assert.InDelta(t, 0.0034, f.BasisJump3d, 1e-12)
	assert.True(t, f.BasisJumpFlag)

	calm := ComputeFeatures(Series{Basis: repeat(0.001, 10)}, testParams())
	assert.False(t, calm.BasisJumpFlag)
}

func TestComputeFeatures_Funding(t *testing.T) {
	f := ComputeFeatures(Series{Funding: []float64{0.0001, 0.0003}}, testParams())
	assert.False(t, f.Missing.Has(models.InputFunding))
	assert.InDelta(t, 0.0003, f.FundingLast, 1e-12)
	assert.InDelta(t, 0.0002, f.FundingAvg, 1e-12)
}

func TestComputeFeatures_BranchesIndependent(t *testing.T) {
	oi := []float64{100, 85, 102}
	f := ComputeFeatures(Series{OpenInterest: oi}, testParams())

	assert.False(t, f.Missing.Has(models.InputOpenInterest))
	assert.True(t, f.Missing.Has(models.InputLongShort))
	assert.True(t, f.Missing.Has(models.InputTaker))
	assert.Equal(t, []models.Input{models.InputBasis, models.InputFunding, models.InputLongShort, models.InputTaker}, f.Missing.List())
}

func TestComputeFeatures_WindowLimitsLookback(t *testing.T) {
	// the deep trough falls outside a five-period window
	oi := []float64{100, 10, 100, 100, 100, 100, 100}
	p := testParams()
	p.Periods = 5
	f := ComputeFeatures(Series{OpenInterest: oi}, p)

	assert.Equal(t, 100.0, f.OIMin)
	assert.Equal(t, 0.0, f.OIDrawdownPct)
}

func TestPeriodsPerDay(t *testing.T) {
	assert.Equal(t, 6, PeriodsPerDay("4h"))
	assert.Equal(t, 24, PeriodsPerDay("1h"))
	assert.Equal(t, 96, PeriodsPerDay("15m"))
	assert.Equal(t, 1, PeriodsPerDay("1d"))
	assert.Equal(t, 1, PeriodsPerDay("bogus"))
	assert.Equal(t, 1, PeriodsPerDay(""))

	p := DefaultParams(30, "4h")
	assert.Equal(t, 180, p.Periods)
	assert.Equal(t, 42, p.SlopePeriods)
}
