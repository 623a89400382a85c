package signal

import (
	"math"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/indicator"
)

const maxSubScore = 25.0

// Structure and hard-filter thresholds on the breakdown.
const (
	StructureOIRhythm       = 16.0
	StructureLSReversal     = 14.0
	StructureBasisExpansion = 10.0
	StructureTotal          = 65.0
	LooseFilterTotal        = 30.0
)

// Score maps features to the four sub-scores and their total. It is pure
// and deterministic.
func Score(f models.Features) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		OIRhythm:       subScore(f.Missing, models.InputOpenInterest, oiRhythmScore(f)),
		LSReversal:     subScore(f.Missing, models.InputLongShort, lsReversalScore(f)),
		TakerBias:      subScore(f.Missing, models.InputTaker, takerBiasScore(f)),
		BasisExpansion: subScore(f.Missing, models.InputBasis, basisExpansionScore(f)),
	}
	b.Total = b.OIRhythm + b.LSReversal + b.TakerBias + b.BasisExpansion
	return b
}

// Classify derives the structure type from a breakdown and its features.
func Classify(f models.Features, b models.ScoreBreakdown) models.StructureType {
	if IsSqueezeStructure(b) {
		return models.StructureShortSqueeze
	}
	if b.OIRhythm >= StructureOIRhythm &&
		!f.Missing.Has(models.InputLongShort) && !f.Missing.Has(models.InputTaker) &&
		f.LSRatioP90 >= 1.2 && f.LSFallFromCeiling() <= 0.7 &&
		f.TakerBuyRatioLast <= 0.42 {
		return models.StructureLongSqueeze
	}
	return models.StructureNeutral
}

// IsSqueezeStructure is the documented co-movement rule shared by the
// classifier and the scan hard filter.
func IsSqueezeStructure(b models.ScoreBreakdown) bool {
	return (b.OIRhythm >= StructureOIRhythm &&
		(b.LSReversal >= StructureLSReversal || b.BasisExpansion >= StructureBasisExpansion)) ||
		b.Total >= StructureTotal
}

// PassesFilter reports whether a breakdown is admitted into the ranked
// list. loose additionally admits any total at or above LooseFilterTotal.
func PassesFilter(b models.ScoreBreakdown, loose bool) bool {
	if IsSqueezeStructure(b) {
		return true
	}
	return loose && b.Total >= LooseFilterTotal
}

// Evaluate runs scoring and classification for one symbol.
func Evaluate(symbol string, f models.Features) models.ScanResult {
	b := Score(f)
	return models.ScanResult{
		Symbol:        symbol,
		Score:         b.Total,
		StructureType: Classify(f, b),
		Features:      f,
		Breakdown:     b,
	}
}

func subScore(missing models.Missing, in models.Input, v float64) float64 {
	if missing.Has(in) {
		return 0
	}
	if v != v {
		return 0
	}
	return indicator.Round(clamp(v, 0, maxSubScore), 1)
}

func oiRhythmScore(f models.Features) float64 {
	dd, rb := f.OIDrawdownPct, f.OIReboundFromMinPct
	clean := f.OICleanThenBuildFlag || (dd <= oiCleanDrawdown && rb >= oiCleanRebound)
	switch {
	case clean && dd <= -0.12 && rb >= 0.18:
		return 22 + math.Min(3, (rb-0.18)*20)
	case clean:
		return 16 + math.Min(5, math.Max(0, rb-oiCleanRebound)*50)
	default:
		return linear(rb, oiCleanRebound, 12)
	}
}

func lsReversalScore(f models.Features) float64 {
	jump := f.LSJump()
	floor := f.LSRatioP10 > 0 && f.LSRatioP10 <= lsFloorCeiling
	switch {
	case floor && jump >= 1.8:
		return 20 + math.Min(5, (jump-1.8)*5)
	case floor && jump >= lsReversalJump:
		return 14 + math.Min(5, (jump-lsReversalJump)*12.5)
	default:
		return linear(jump-1, lsReversalJump-1, 10)
	}
}

func takerBiasScore(f models.Features) float64 {
	delta := f.TakerBiasDelta()
	spike := f.TakerVolumeSpike
	flag := f.TakerBuyBiasFlag || delta >= takerBiasDelta || spike > takerSpikeFactor
	switch {
	case delta >= 0.12 || (flag && spike >= 2):
		bonus := math.Max((delta-0.12)*50, (spike-2)*2.5)
		return 20 + math.Min(5, math.Max(0, bonus))
	case flag:
		return 14 + math.Min(5, math.Max(0, delta)*25)
	default:
		return linear(delta, takerBiasDelta, 10)
	}
}

func basisExpansionScore(f models.Features) float64 {
	jump := f.BasisJump3d
	atHigh := f.BasisLast >= f.BasisP90 && jump >= basisJumpAtHigh
	flag := f.BasisJumpFlag || atHigh || jump >= basisJumpAlone
	switch {
	case atHigh:
		return 20 + math.Min(5, (jump-basisJumpAtHigh)*1000)
	case flag:
		return 12 + math.Min(6, math.Max(0, jump-basisJumpAlone)*2000)
	default:
		return linear(f.BasisLast, 0.002, 8)
	}
}

// linear maps x in [0, span] onto [0, ceiling], clamped.
func linear(x, span, ceiling float64) float64 {
	if span <= 0 {
		return 0
	}
	return clamp(x/span*ceiling, 0, ceiling)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
