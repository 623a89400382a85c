package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
)

var endpoints = map[SeriesKind]string{
	KindOpenInterest: "/open-interest/history",
	KindFundingRate:  "/funding-rate/history",
	KindLongShort:    "/long-short-ratio/history",
	KindTakerVolume:  "/taker-volume/history",
	KindBasis:        "/basis/history",
}

// HTTPFetcher fetches series from a REST market-data provider.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   RetryPolicy
}

// NewHTTPFetcher creates a fetcher from market data configuration.
func NewHTTPFetcher(cfg config.MarketDataConfig) *HTTPFetcher {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	policy := DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		policy.Attempts = cfg.RetryAttempts
	}
	if cfg.RetryInitial > 0 {
		policy.Initial = cfg.RetryInitial
	}
	return &HTTPFetcher{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		retry:   policy,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 15 * time.Second}).DialContext,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// WithHTTPClient replaces the underlying client.
func (f *HTTPFetcher) WithHTTPClient(c *http.Client) *HTTPFetcher {
	f.http = c
	return f
}

// WithRetryPolicy replaces the retry policy.
func (f *HTTPFetcher) WithRetryPolicy(p RetryPolicy) *HTTPFetcher {
	f.retry = p
	return f
}

// FetchSeries fetches one series with retries.
func (f *HTTPFetcher) FetchSeries(ctx context.Context, req SeriesRequest) ([]Point, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	endpoint, ok := endpoints[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}

	params := map[string]string{
		"symbol":   req.Symbol,
		"exchange": req.Exchange,
		"interval": req.Interval,
	}
	if req.Limit > 0 {
		params["limit"] = strconv.Itoa(req.Limit)
	}
	fullURL, err := f.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	var points []Point
	err = Retry(ctx, f.retry, string(req.Kind), func() error {
		body, err := f.get(ctx, fullURL)
		if err != nil {
			return err
		}
		points, err = ParseSeries(req.Kind, body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", req.Kind, req.Symbol, err)
	}
	return points, nil
}

// Symbols lists the provider's supported instruments.
func (f *HTTPFetcher) Symbols(ctx context.Context) ([]string, error) {
	fullURL, err := f.buildURL("/symbols", nil)
	if err != nil {
		return nil, err
	}

	var symbols []string
	err = Retry(ctx, f.retry, "symbols", func() error {
		body, err := f.get(ctx, fullURL)
		if err != nil {
			return err
		}
		symbols, err = parseSymbols(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch symbols: %w", err)
	}
	return symbols, nil
}

func (f *HTTPFetcher) buildURL(endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(f.baseURL + endpoint)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: bad url: %v", ErrInvalidRequest, err))
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *HTTPFetcher) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("X-API-KEY", f.apiKey)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w %d: %s", ErrHTTPStatus, resp.StatusCode, truncate(body, 200))
		// client errors other than rate limiting will not improve on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}
	return body, nil
}

func parseSymbols(body []byte) ([]string, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	var arr []interface{}
	switch v := doc.(type) {
	case []interface{}:
		arr = v
	case map[string]interface{}:
		if err := checkEnvelope(v); err != nil {
			return nil, err
		}
		for _, key := range envelopeDataFields {
			if inner, ok := v[key].([]interface{}); ok {
				arr = inner
				break
			}
		}
	}

	symbols := make([]string, 0, len(arr))
	for _, item := range arr {
		switch s := item.(type) {
		case string:
			symbols = append(symbols, NormalizeSymbol(s))
		case map[string]interface{}:
			if name := firstString(s, "symbol", "pair", "instrument"); name != "" {
				symbols = append(symbols, NormalizeSymbol(name))
			}
		}
	}
	return symbols, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
