package models

import "sort"

// Input names one upstream series feeding the feature record.
type Input string

const (
	InputOpenInterest Input = "oi"
	InputLongShort    Input = "ls"
	InputTaker        Input = "taker"
	InputBasis        Input = "basis"
	InputFunding      Input = "funding"
)

// AllInputs lists every input in a stable order.
var AllInputs = []Input{InputOpenInterest, InputLongShort, InputTaker, InputBasis, InputFunding}

// Missing records which inputs were unavailable for a symbol.
type Missing map[Input]bool

// Has reports whether the input is marked missing.
func (m Missing) Has(in Input) bool {
	return m[in]
}

// List returns the missing inputs sorted by name.
func (m Missing) List() []Input {
	out := make([]Input, 0, len(m))
	for in, v := range m {
		if v {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Features is the normalized per-symbol feature record.
type Features struct {
	OIMin                float64 `json:"oiMin"`
	OIMax                float64 `json:"oiMax"`
	OILast               float64 `json:"oiLast"`
	OIDrawdownPct        float64 `json:"oiDrawdownPct"`
	OIReboundFromMinPct  float64 `json:"oiReboundFromMinPct"`
	OISlope7d            float64 `json:"oiSlope7d"`
	OICleanThenBuildFlag bool    `json:"oiCleanThenBuildFlag"`

	LSRatioLast    float64 `json:"lsRatioLast"`
	LSRatioP10     float64 `json:"lsRatioP10"`
	LSRatioP90     float64 `json:"lsRatioP90"`
	LSReversalFlag bool    `json:"lsReversalFlag"`

	TakerBuyRatioLast float64 `json:"takerBuyRatioLast"`
	TakerBuyRatioMA7  float64 `json:"takerBuyRatioMa7"`
	TakerBuyRatioMA30 float64 `json:"takerBuyRatioMa30"`
	TakerVolumeSpike  float64 `json:"takerVolumeSpike"`
	TakerNetFlowLast  float64 `json:"takerNetFlowLast"`
	TakerBuyBiasFlag  bool    `json:"takerBuyBiasFlag"`

	BasisLast     float64 `json:"basisLast"`
	BasisP90      float64 `json:"basisP90"`
	BasisJump3d   float64 `json:"basisJump3d"`
	BasisJumpFlag bool    `json:"basisJumpFlag"`

	FundingLast float64 `json:"fundingLast"`
	FundingAvg  float64 `json:"fundingAvg"`

	Missing Missing `json:"missing"`
}

// TakerBiasDelta is the short-minus-long moving average spread of the buy ratio.
func (f Features) TakerBiasDelta() float64 {
	return f.TakerBuyRatioMA7 - f.TakerBuyRatioMA30
}

// LSJump is last/p10, or 1 when the floor is unknown.
func (f Features) LSJump() float64 {
	if f.LSRatioP10 <= 0 {
		return 1
	}
	return f.LSRatioLast / f.LSRatioP10
}

// LSFallFromCeiling is last/p90, or 1 when the ceiling is unknown.
func (f Features) LSFallFromCeiling() float64 {
	if f.LSRatioP90 <= 0 {
		return 1
	}
	return f.LSRatioLast / f.LSRatioP90
}
