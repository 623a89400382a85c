package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

func TestScore_StrongOIAndLSReversal(t *testing.T) {
	f := models.Features{
		OIDrawdownPct:       -0.15,
		OIReboundFromMinPct: 0.20,
		LSRatioLast:         1.3,
		LSRatioP10:          0.6,
	}

	b := Score(f)

	assert.GreaterOrEqual(t, b.OIRhythm, 22.0)
	assert.InDelta(t, 22.4, b.OIRhythm, 1e-9)
	assert.GreaterOrEqual(t, b.LSReversal, 20.0)
	assert.InDelta(t, 21.8, b.LSReversal, 1e-9)
	assert.Equal(t, models.StructureShortSqueeze, Classify(f, b))
}

func TestScore_MissingInputsZeroSubScores(t *testing.T) {
	f := models.Features{
		OIDrawdownPct:       -0.15,
		OIReboundFromMinPct: 0.20,
		LSRatioLast:         1.3,
		LSRatioP10:          0.6,
		TakerBuyRatioMA7:    0.7,
		TakerBuyRatioMA30:   0.5,
		BasisLast:           0.005,
		BasisP90:            0.004,
		BasisJump3d:         0.004,
		Missing: models.Missing{
			models.InputOpenInterest: true,
			models.InputLongShort:    true,
			models.InputTaker:        true,
			models.InputBasis:        true,
		},
	}

	b := Score(f)
	assert.Equal(t, models.ScoreBreakdown{}, b)
	assert.Equal(t, models.StructureNeutral, Classify(f, b))
}

func TestScore_Tiers(t *testing.T) {
	tests := []struct {
		name  string
		f     models.Features
		pick  func(models.ScoreBreakdown) float64
		value float64
	}{
		{
			name:  "oi medium tier",
			f:     models.Features{OIDrawdownPct: -0.09, OIReboundFromMinPct: 0.14},
			pick:  func(b models.ScoreBreakdown) float64 { return b.OIRhythm },
			value: 17,
		},
		{
			name:  "oi weak tier",
			f:     models.Features{OIDrawdownPct: -0.02, OIReboundFromMinPct: 0.06},
			pick:  func(b models.ScoreBreakdown) float64 { return b.OIRhythm },
			value: 6,
		},
		{
			name:  "ls medium tier",
			f:     models.Features{LSRatioLast: 1.0, LSRatioP10: 0.625},
			pick:  func(b models.ScoreBreakdown) float64 { return b.LSReversal },
			value: 16.5,
		},
		{
			name:  "ls weak tier",
			f:     models.Features{LSRatioLast: 1.2, LSRatioP10: 1.0},
			pick:  func(b models.ScoreBreakdown) float64 { return b.LSReversal },
			value: 5,
		},
		{
			name:  "taker strong by delta",
			f:     models.Features{TakerBuyRatioMA7: 0.66, TakerBuyRatioMA30: 0.5},
			pick:  func(b models.ScoreBreakdown) float64 { return b.TakerBias },
			value: 22,
		},
		{
			name:  "taker medium by flag",
			f:     models.Features{TakerBuyRatioMA7: 0.6, TakerBuyRatioMA30: 0.5},
			pick:  func(b models.ScoreBreakdown) float64 { return b.TakerBias },
			value: 16.5,
		},
		{
			name:  "taker weak",
			f:     models.Features{TakerBuyRatioMA7: 0.54, TakerBuyRatioMA30: 0.5},
			pick:  func(b models.ScoreBreakdown) float64 { return b.TakerBias },
			value: 5,
		},
		{
			name:  "basis strong",
			f:     models.Features{BasisLast: 0.005, BasisP90: 0.004, BasisJump3d: 0.004},
			pick:  func(b models.ScoreBreakdown) float64 { return b.BasisExpansion },
			value: 21,
		},
		{
			name:  "basis medium",
			f:     models.Features{BasisLast: 0.003, BasisP90: 0.004, BasisJump3d: 0.002},
			pick:  func(b models.ScoreBreakdown) float64 { return b.BasisExpansion },
			value: 13,
		},
		{
			name:  "basis weak",
			f:     models.Features{BasisLast: 0.001, BasisP90: 0.004, BasisJump3d: 0.0001},
			pick:  func(b models.ScoreBreakdown) float64 { return b.BasisExpansion },
			value: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.value, tt.pick(Score(tt.f)), 1e-9)
		})
	}
}

func TestScore_BoundsAndSum(t *testing.T) {
	extreme := models.Features{
		OIDrawdownPct:       -0.9,
		OIReboundFromMinPct: 50,
		LSRatioLast:         40,
		LSRatioP10:          0.1,
		TakerBuyRatioMA7:    1,
		TakerBuyRatioMA30:   0,
		TakerVolumeSpike:    100,
		BasisLast:           1,
		BasisP90:            0.5,
		BasisJump3d:         1,
	}
	negative := models.Features{
		OIDrawdownPct:       0,
		OIReboundFromMinPct: -5,
		LSRatioLast:         0.1,
		LSRatioP10:          2,
		TakerBuyRatioMA7:    0,
		TakerBuyRatioMA30:   1,
		BasisLast:           -1,
		BasisP90:            0,
		BasisJump3d:         -1,
	}

	for _, f := range []models.Features{extreme, negative, {}} {
		b := Score(f)
		for _, v := range []float64{b.OIRhythm, b.LSReversal, b.TakerBias, b.BasisExpansion} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 25.0)
		}
		assert.Equal(t, b.OIRhythm+b.LSReversal+b.TakerBias+b.BasisExpansion, b.Total)
		assert.GreaterOrEqual(t, b.Total, 0.0)
		assert.LessOrEqual(t, b.Total, 100.0)
	}

	assert.Equal(t, 100.0, Score(extreme).Total)
}

func TestScore_Deterministic(t *testing.T) {
	f := ComputeFeatures(Series{
		OpenInterest: []float64{100, 90, 84, 95, 103},
		LongShort:    []float64{0.7, 0.6, 0.65, 1.1},
		TakerBuy:     []float64{10, 12, 15, 20},
		TakerSell:    []float64{10, 9, 8, 7},
		Basis:        []float64{0.001, 0.0012, 0.002, 0.004},
	}, testParams())

	first := Evaluate("BTCUSDT", f)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Evaluate("BTCUSDT", f))
	}
}

func TestClassify(t *testing.T) {
	t.Run("total alone makes short squeeze", func(t *testing.T) {
		b := models.ScoreBreakdown{OIRhythm: 10, LSReversal: 10, TakerBias: 25, BasisExpansion: 20, Total: 65}
		assert.Equal(t, models.StructureShortSqueeze, Classify(models.Features{}, b))
	})

	t.Run("oi plus basis makes short squeeze", func(t *testing.T) {
		b := models.ScoreBreakdown{OIRhythm: 16, BasisExpansion: 10, Total: 26}
		assert.Equal(t, models.StructureShortSqueeze, Classify(models.Features{}, b))
	})

	t.Run("long squeeze when longs unwind into sell flow", func(t *testing.T) {
		f := models.Features{LSRatioLast: 1.0, LSRatioP90: 1.6, LSRatioP10: 1.0, TakerBuyRatioLast: 0.4}
		b := models.ScoreBreakdown{OIRhythm: 18, Total: 18}
		assert.Equal(t, models.StructureLongSqueeze, Classify(f, b))
	})

	t.Run("long squeeze requires taker data", func(t *testing.T) {
		f := models.Features{
			LSRatioLast: 1.0, LSRatioP90: 1.6, TakerBuyRatioLast: 0.4,
			Missing: models.Missing{models.InputTaker: true},
		}
		b := models.ScoreBreakdown{OIRhythm: 18, Total: 18}
		assert.Equal(t, models.StructureNeutral, Classify(f, b))
	})

	t.Run("neutral otherwise", func(t *testing.T) {
		b := models.ScoreBreakdown{OIRhythm: 15, LSReversal: 14, Total: 29}
		assert.Equal(t, models.StructureNeutral, Classify(models.Features{}, b))
	})
}

func TestPassesFilter(t *testing.T) {
	strict := models.ScoreBreakdown{OIRhythm: 16, LSReversal: 14, Total: 30}
	weak := models.ScoreBreakdown{OIRhythm: 10, LSReversal: 10, TakerBias: 10, Total: 30}
	low := models.ScoreBreakdown{OIRhythm: 10, Total: 10}

	assert.True(t, PassesFilter(strict, false))
	assert.False(t, PassesFilter(weak, false))
	assert.True(t, PassesFilter(weak, true))
	assert.False(t, PassesFilter(low, true))
}
