package signal

import (
	"math"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

// Signal derivation thresholds.
const (
	biasDeadband        = 0.02
	fundingExtremeAbs   = 0.001
	downReversalCeiling = 1.2
	downReversalFall    = 0.7
	downReversalMedium  = 0.63
	downReversalStrong  = 0.55
)

// BuildSignal summarizes a scan result into its routable signal.
func BuildSignal(r models.ScanResult) models.Signal {
	f := r.Features
	s := models.Signal{
		Reversal:         models.ReversalNone,
		ReversalStrength: models.StrengthNone,
		PositionBias:     models.BiasNeutral,
	}

	if !f.Missing.Has(models.InputLongShort) {
		switch {
		case f.LSReversalFlag:
			s.Reversal = models.ReversalUp
			s.ReversalStrength = strengthFromScore(r.Breakdown.LSReversal)
		case f.LSRatioP90 >= downReversalCeiling && f.LSFallFromCeiling() <= downReversalFall:
			s.Reversal = models.ReversalDown
			s.ReversalStrength = strengthFromFall(f.LSFallFromCeiling())
		}
	}

	if !f.Missing.Has(models.InputTaker) {
		s.PositionDelta = f.TakerBiasDelta()
		switch {
		case s.PositionDelta >= biasDeadband:
			s.PositionBias = models.BiasLong
		case s.PositionDelta <= -biasDeadband:
			s.PositionBias = models.BiasShort
		}
	}

	if !f.Missing.Has(models.InputFunding) {
		s.FundingExtreme = math.Abs(f.FundingLast) >= fundingExtremeAbs
	}
	return s
}

// ToCacheItem converts a scan result into a ranked-list entry.
func ToCacheItem(r models.ScanResult) models.CacheItem {
	return models.CacheItem{
		Ticker:     models.TickerOf(r.Symbol),
		PairSymbol: r.Symbol,
		Score:      r.Score,
		Signal:     BuildSignal(r),
	}
}

func strengthFromScore(score float64) models.Strength {
	switch {
	case score >= 20:
		return models.StrengthStrong
	case score >= 14:
		return models.StrengthMedium
	default:
		return models.StrengthWeak
	}
}

func strengthFromFall(ratio float64) models.Strength {
	switch {
	case ratio <= downReversalStrong:
		return models.StrengthStrong
	case ratio <= downReversalMedium:
		return models.StrengthMedium
	default:
		return models.StrengthWeak
	}
}
