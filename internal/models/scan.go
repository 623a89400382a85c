package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StructureType is the categorical squeeze classification.
type StructureType string

const (
	StructureShortSqueeze StructureType = "short_squeeze_like"
	StructureLongSqueeze  StructureType = "long_squeeze_like"
	StructureNeutral      StructureType = "neutral"
)

// ScoreBreakdown holds the four 0-25 sub-scores and their sum.
type ScoreBreakdown struct {
	OIRhythm       float64 `json:"oiRhythm"`
	LSReversal     float64 `json:"lsReversal"`
	TakerBias      float64 `json:"takerBias"`
	BasisExpansion float64 `json:"basisExpansion"`
	Total          float64 `json:"total"`
}

// ScanResult is the scored outcome for one symbol.
type ScanResult struct {
	Symbol        string         `json:"symbol"`
	Score         float64        `json:"score"`
	StructureType StructureType  `json:"structureType"`
	Features      Features       `json:"features"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
}

// Validate validates a ScanResult
func (r *ScanResult) Validate() error {
	if r.Symbol == "" {
		return ErrInvalidSymbol
	}
	if r.Score < 0 || r.Score > 100 {
		return ErrInvalidScore
	}
	return nil
}

// Reversal is the direction of a long/short ratio reversal.
type Reversal string

const (
	ReversalNone Reversal = ""
	ReversalUp   Reversal = "up"
	ReversalDown Reversal = "down"
)

// Strength grades a signal.
type Strength string

const (
	StrengthNone   Strength = "none"
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// Rank orders strengths from none (0) to strong (3).
func (s Strength) Rank() int {
	switch s {
	case StrengthStrong:
		return 3
	case StrengthMedium:
		return 2
	case StrengthWeak:
		return 1
	default:
		return 0
	}
}

// Bias is the one-sided aggressive flow direction.
type Bias string

const (
	BiasNeutral Bias = "neutral"
	BiasLong    Bias = "long"
	BiasShort   Bias = "short"
)

// Signal summarizes the routable part of a scan result.
type Signal struct {
	Reversal         Reversal `json:"reversal"`
	ReversalStrength Strength `json:"reversalStrength"`
	PositionBias     Bias     `json:"positionBias"`
	PositionDelta    float64  `json:"positionDelta"`
	FundingExtreme   bool     `json:"fundingExtreme,omitempty"`
}

// CacheItem is one entry of the ranked list.
type CacheItem struct {
	Ticker     string  `json:"ticker"`
	PairSymbol string  `json:"pairSymbol"`
	Score      float64 `json:"score"`
	Signal     Signal  `json:"signal"`
}

// FlowSummary aggregates last-period taker net flow over the listed instruments.
type FlowSummary struct {
	Inflow     decimal.Decimal `json:"inflow"`
	OutflowAbs decimal.Decimal `json:"outflowAbs"`
	Net        decimal.Decimal `json:"net"`
}

// RankedSnapshot is the product of one scan cycle.
type RankedSnapshot struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Exchange    string       `json:"exchange"`
	Interval    string       `json:"interval"`
	List        []CacheItem  `json:"list"`
	Flow        *FlowSummary `json:"flow,omitempty"`
}

// Validate validates a RankedSnapshot
func (s *RankedSnapshot) Validate() error {
	if s.GeneratedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	for i := range s.List {
		if s.List[i].Ticker == "" {
			return ErrInvalidSymbol
		}
	}
	return nil
}

// Find returns the item for ticker, if listed.
func (s *RankedSnapshot) Find(ticker string) (CacheItem, bool) {
	if s == nil {
		return CacheItem{}, false
	}
	for _, item := range s.List {
		if item.Ticker == ticker {
			return item, true
		}
	}
	return CacheItem{}, false
}

var quoteAssets = []string{"USDT", "USDC", "BUSD", "USD"}

// TickerOf strips the quote asset from a pair symbol ("BTCUSDT" -> "BTC").
func TickerOf(pairSymbol string) string {
	s := strings.ToUpper(strings.TrimSpace(pairSymbol))
	for _, q := range quoteAssets {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return strings.TrimSuffix(s, q)
		}
	}
	return s
}
