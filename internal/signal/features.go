package signal

import (
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/indicator"
)

// Neutral defaults used when an input is unavailable.
const (
	DefaultLSRatio       = 1.0
	DefaultTakerBuyRatio = 0.5

	minPoints = 2
)

// Feature thresholds.
const (
	oiCleanDrawdown  = -0.08
	oiCleanRebound   = 0.12
	lsFloorCeiling   = 0.8
	lsReversalJump   = 1.4
	takerBiasDelta   = 0.08
	takerSpikeFactor = 1.5
	basisJumpAtHigh  = 0.003
	basisJumpAlone   = 0.0015
)

// Series is the raw input of FeatureEngine. Every slice is time ordered,
// newest last. TakerBuy and TakerSell are aligned on their newest element.
type Series struct {
	OpenInterest []float64
	LongShort    []float64
	TakerBuy     []float64
	TakerSell    []float64
	Basis        []float64
	Funding      []float64
}

// branch is the immutable result of one input's computation.
type branch interface {
	input() models.Input
	unavailable() bool
	apply(f models.Features) models.Features
}

// ComputeFeatures turns raw series into a Features record. It never fails;
// short or empty inputs produce neutral defaults and a missing mark.
func ComputeFeatures(in Series, p Params) models.Features {
	p = p.withDefaults()
	return merge(
		openInterestBranch(in.OpenInterest, p),
		longShortBranch(in.LongShort, p),
		takerBranch(in.TakerBuy, in.TakerSell, p),
		basisBranch(in.Basis, p),
		fundingBranch(in.Funding, p),
	)
}

// Defaults returns the feature record with every input missing.
func Defaults() models.Features {
	return ComputeFeatures(Series{}, Params{})
}

func merge(branches ...branch) models.Features {
	f := models.Features{Missing: models.Missing{}}
	for _, b := range branches {
		f = b.apply(f)
		if b.unavailable() {
			f.Missing[b.input()] = true
		}
	}
	return f
}

type oiResult struct {
	missing           bool
	min, max, last    float64
	drawdown, rebound float64
	slope             float64
	cleanThenBuild    bool
}

func (r oiResult) input() models.Input { return models.InputOpenInterest }
func (r oiResult) unavailable() bool { return r.missing }

func (r oiResult) apply(f models.Features) models.Features {
	f.OIMin, f.OIMax, f.OILast = r.min, r.max, r.last
	f.OIDrawdownPct = r.drawdown
	f.OIReboundFromMinPct = r.rebound
	f.OISlope7d = r.slope
	f.OICleanThenBuildFlag = r.cleanThenBuild
	return f
}

func openInterestBranch(values []float64, p Params) oiResult {
	values = indicator.Finite(values)
	if len(values) < minPoints {
		return oiResult{missing: true}
	}
	window := indicator.Tail(values, p.Periods)
	r := oiResult{
		min:  indicator.Min(window),
		max:  indicator.Max(window),
		last: indicator.Last(window, 0),
	}
	if r.max > 0 {
		r.drawdown = (r.min - r.max) / r.max
	}
	if r.min > 0 {
		r.rebound = (r.last - r.min) / r.min
	}
	r.slope = indicator.NormalizedSlope(values, p.SlopePeriods)
	r.cleanThenBuild = r.drawdown <= oiCleanDrawdown && r.rebound >= oiCleanRebound
	return r
}

type lsResult struct {
	missing        bool
	last, p10, p90 float64
	reversal       bool
}

func (r lsResult) input() models.Input { return models.InputLongShort }
func (r lsResult) unavailable() bool { return r.missing }

func (r lsResult) apply(f models.Features) models.Features {
	f.LSRatioLast, f.LSRatioP10, f.LSRatioP90 = r.last, r.p10, r.p90
	f.LSReversalFlag = r.reversal
	return f
}

func longShortBranch(values []float64, p Params) lsResult {
	values = indicator.Finite(values)
	if len(values) < minPoints {
		return lsResult{missing: true, last: DefaultLSRatio, p10: DefaultLSRatio, p90: DefaultLSRatio}
	}
	window := indicator.Tail(values, p.Periods)
	r := lsResult{
		last: indicator.Last(window, DefaultLSRatio),
		p10:  indicator.Percentile(window, 10),
		p90:  indicator.Percentile(window, 90),
	}
	jump := 1.0
	if r.p10 > 0 {
		jump = r.last / r.p10
	}
	r.reversal = r.p10 <= lsFloorCeiling && jump >= lsReversalJump
	return r
}

type takerResult struct {
	missing         bool
	last, ma7, ma30 float64
	spike           float64
	netFlow         float64
	bias            bool
}

func (r takerResult) input() models.Input { return models.InputTaker }
func (r takerResult) unavailable() bool { return r.missing }

func (r takerResult) apply(f models.Features) models.Features {
	f.TakerBuyRatioLast = r.last
	f.TakerBuyRatioMA7 = r.ma7
	f.TakerBuyRatioMA30 = r.ma30
	f.TakerVolumeSpike = r.spike
	f.TakerNetFlowLast = r.netFlow
	f.TakerBuyBiasFlag = r.bias
	return f
}

func takerBranch(buy, sell []float64, p Params) takerResult {
	n := len(buy)
	if len(sell) < n {
		n = len(sell)
	}
	neutral := takerResult{missing: true, last: DefaultTakerBuyRatio, ma7: DefaultTakerBuyRatio, ma30: DefaultTakerBuyRatio}
	if n < minPoints {
		return neutral
	}
	buy, sell = indicator.Tail(buy, n), indicator.Tail(sell, n)

	ratios := make([]float64, 0, n)
	volumes := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		total := buy[i] + sell[i]
		if total <= 0 || total != total {
			continue
		}
		ratios = append(ratios, buy[i]/total)
		volumes = append(volumes, total)
	}
	if len(ratios) < minPoints {
		return neutral
	}
	ratios = indicator.Tail(ratios, p.Periods)
	volumes = indicator.Tail(volumes, p.Periods)

	r := takerResult{
		last:    indicator.Last(ratios, DefaultTakerBuyRatio),
		ma7:     indicator.SMA(ratios, p.MAShort),
		ma30:    indicator.SMA(ratios, p.MALong),
		netFlow: buy[n-1] - sell[n-1],
	}
	if longAvg := indicator.VolumeSMA(volumes, p.SpikeLong); longAvg > 0 {
		r.spike = indicator.VolumeSMA(volumes, p.SpikeShort) / longAvg
	}
	r.bias = r.ma7-r.ma30 >= takerBiasDelta || r.spike > takerSpikeFactor
	return r
}

type basisResult struct {
	missing         bool
	last, p90, jump float64
	jumpFlag        bool
}

func (r basisResult) input() models.Input { return models.InputBasis }
func (r basisResult) unavailable() bool { return r.missing }

func (r basisResult) apply(f models.Features) models.Features {
	f.BasisLast, f.BasisP90, f.BasisJump3d = r.last, r.p90, r.jump
	f.BasisJumpFlag = r.jumpFlag
	return f
}

func basisBranch(values []float64, p Params) basisResult {
	values = indicator.Finite(values)
	if len(values) < minPoints {
		return basisResult{missing: true}
	}
	window := indicator.Tail(values, p.Periods)
	r := basisResult{
		last: indicator.Last(window, 0),
		p90:  indicator.Percentile(window, 90),
	}
	r.jump = r.last - indicator.Ago(window, p.JumpLag)
	r.jumpFlag = (r.last >= r.p90 && r.jump >= basisJumpAtHigh) || r.jump >= basisJumpAlone
	return r
}

type fundingResult struct {
	missing   bool
	last, avg float64
}

func (r fundingResult) input() models.Input { return models.InputFunding }
func (r fundingResult) unavailable() bool { return r.missing }

func (r fundingResult) apply(f models.Features) models.Features {
	f.FundingLast, f.FundingAvg = r.last, r.avg
	return f
}

func fundingBranch(values []float64, p Params) fundingResult {
	values = indicator.Finite(values)
	if len(values) < minPoints {
		return fundingResult{missing: true}
	}
	window := indicator.Tail(values, p.Periods)
	return fundingResult{last: indicator.Last(window, 0), avg: indicator.Mean(window)}
}
