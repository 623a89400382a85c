package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUpstreamBusiness is returned when the provider answers 200 with an error envelope
	ErrUpstreamBusiness = errors.New("upstream business error")
	// ErrMalformedPayload is returned when a response cannot be decoded
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrHTTPStatus is returned for non-200 responses
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrInvalidRequest is returned when a request is missing required fields
	ErrInvalidRequest = errors.New("invalid series request")
)

// SeriesKind names one upstream time series.
type SeriesKind string

const (
	KindOpenInterest SeriesKind = "open_interest"
	KindFundingRate  SeriesKind = "funding_rate"
	KindLongShort    SeriesKind = "long_short_ratio"
	KindTakerVolume  SeriesKind = "taker_volume"
	KindBasis        SeriesKind = "basis"
)

// AllKinds lists the series a scan fetches per symbol.
var AllKinds = []SeriesKind{KindOpenInterest, KindFundingRate, KindLongShort, KindTakerVolume, KindBasis}

// SeriesRequest identifies one series fetch.
type SeriesRequest struct {
	Kind     SeriesKind
	Symbol   string
	Exchange string
	Interval string
	Limit    int
}

// Validate validates a SeriesRequest
func (r SeriesRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidRequest)
	}
	if r.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidRequest)
	}
	if r.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidRequest)
	}
	return nil
}

// Point is one sample of a series. Taker volume uses Buy and Sell; every
// other kind uses Value.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Buy       float64   `json:"buy,omitempty"`
	Sell      float64   `json:"sell,omitempty"`
}

// Fetcher is the market-data collaborator. Implementations return points
// oldest first and may return an empty slice.
type Fetcher interface {
	FetchSeries(ctx context.Context, req SeriesRequest) ([]Point, error)
}

// Values extracts the Value column.
func Values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// BuySell extracts the taker Buy and Sell columns.
func BuySell(points []Point) ([]float64, []float64) {
	buy := make([]float64, len(points))
	sell := make([]float64, len(points))
	for i, p := range points {
		buy[i] = p.Buy
		sell[i] = p.Sell
	}
	return buy, sell
}

// NormalizeSymbol upper-cases a pair symbol and strips separators
// ("btc-usdt" -> "BTCUSDT").
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}
