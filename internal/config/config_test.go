package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WS_GATEWAY_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.MarketData.Provider)
	assert.Equal(t, 4, cfg.Scanner.Concurrency)
	assert.Equal(t, 20, cfg.Scanner.TopN)
	assert.Equal(t, 4*time.Hour, cfg.Scanner.ScanInterval)
	assert.Equal(t, 15*time.Minute, cfg.Scanner.ScanCacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Scanner.FeatureCacheTTL)
	assert.Equal(t, 4*time.Hour, cfg.Scanner.SnapshotTTL)
	assert.False(t, cfg.Scanner.LooseFilter)
	assert.Equal(t, 3, cfg.Push.UserCeiling)
	assert.Equal(t, 1, cfg.Push.PriorityCutoff)
	assert.Equal(t, 3, cfg.Push.MaxPerCycle)
	assert.Equal(t, 60.0, cfg.Push.StrongScore)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.NotEmpty(t, cfg.MarketData.FallbackSymbols)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WS_GATEWAY_ENABLED", "false")
	t.Setenv("SCANNER_CONCURRENCY", "8")
	t.Setenv("SCANNER_LOOSE_FILTER", "true")
	t.Setenv("PUSH_STRONG_SCORE", "55.5")
	t.Setenv("MARKET_DATA_SYMBOLS", "BTCUSDT, ETHUSDT ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scanner.Concurrency)
	assert.True(t, cfg.Scanner.LooseFilter)
	assert.Equal(t, 55.5, cfg.Push.StrongScore)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.MarketData.Symbols)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "http provider needs base url", env: map[string]string{"MARKET_DATA_PROVIDER": "http"}, wantErr: true},
		{name: "unknown provider", env: map[string]string{"MARKET_DATA_PROVIDER": "ftp"}, wantErr: true},
		{name: "redis state without redis", env: map[string]string{"PUSH_STATE_BACKEND": "redis"}, wantErr: true},
		{name: "redis state with redis", env: map[string]string{"PUSH_STATE_BACKEND": "redis", "REDIS_HOST": "localhost"}},
		{name: "zero concurrency", env: map[string]string{"SCANNER_CONCURRENCY": "0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WS_GATEWAY_ENABLED", "false")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
