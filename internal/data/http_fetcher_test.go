package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*HTTPFetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher(config.MarketDataConfig{
		BaseURL:        srv.URL,
		APIKey:         "secret",
		RequestTimeout: time.Second,
	}).WithRetryPolicy(fastPolicy(3))
	return f, srv
}

func TestHTTPFetcher_FetchSeries(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open-interest/history", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "4h", r.URL.Query().Get("interval"))
		assert.Equal(t, "180", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":[{"timestamp":1704067200000,"openInterest":"123.5"}]}`))
	})

	points, err := f.FetchSeries(context.Background(), SeriesRequest{
		Kind: KindOpenInterest, Symbol: "BTCUSDT", Exchange: "binance", Interval: "4h", Limit: 180,
	})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 123.5, points[0].Value)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var hits int32
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"timestamp":1,"fundingRate":"0.0001"}]`))
	})

	points, err := f.FetchSeries(context.Background(), SeriesRequest{Kind: KindFundingRate, Symbol: "ETHUSDT"})
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestHTTPFetcher_RetriesBusinessErrors(t *testing.T) {
	var hits int32
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"code":50001,"msg":"busy"}`))
	})

	_, err := f.FetchSeries(context.Background(), SeriesRequest{Kind: KindBasis, Symbol: "ETHUSDT"})
	assert.ErrorIs(t, err, ErrUpstreamBusiness)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestHTTPFetcher_ClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := f.FetchSeries(context.Background(), SeriesRequest{Kind: KindLongShort, Symbol: "XYZUSDT"})
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestHTTPFetcher_RateLimitIsRetried(t *testing.T) {
	var hits int32
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := f.FetchSeries(context.Background(), SeriesRequest{Kind: KindLongShort, Symbol: "XYZUSDT"})
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestHTTPFetcher_InvalidRequest(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := f.FetchSeries(context.Background(), SeriesRequest{Kind: KindBasis})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.FetchSeries(context.Background(), SeriesRequest{Kind: "volume", Symbol: "BTCUSDT"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHTTPFetcher_Symbols(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/symbols", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"data":["btc-usdt",{"symbol":"ETHUSDT"},{"name":"skip"}]}`))
	})

	symbols, err := f.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}
