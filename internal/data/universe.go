package data

import (
	"context"
	"fmt"

	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// UniverseSupplier resolves the instruments a scan covers.
type UniverseSupplier interface {
	Symbols(ctx context.Context) ([]string, error)
}

// StaticUniverse always returns the same list.
type StaticUniverse []string

// Symbols returns the list, normalized and deduplicated.
func (s StaticUniverse) Symbols(ctx context.Context) ([]string, error) {
	return dedupe(s), nil
}

// FallbackUniverse asks Primary and falls back to a fixed priority list
// when it fails or returns nothing.
type FallbackUniverse struct {
	Primary  UniverseSupplier
	Fallback []string
}

// Symbols returns the primary universe or the fallback list.
func (f *FallbackUniverse) Symbols(ctx context.Context) ([]string, error) {
	if f.Primary != nil {
		symbols, err := f.Primary.Symbols(ctx)
		if err == nil && len(symbols) > 0 {
			return dedupe(symbols), nil
		}
		if err != nil {
			logger.Warn("Universe supplier failed, using fallback list",
				logger.ErrorField(err),
				logger.Int("fallback_size", len(f.Fallback)),
			)
		}
	}
	if len(f.Fallback) == 0 {
		return nil, fmt.Errorf("no universe available")
	}
	return dedupe(f.Fallback), nil
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
