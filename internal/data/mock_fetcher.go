package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Profile shapes the synthetic series of one symbol.
type Profile string

const (
	ProfileNeutral    Profile = "neutral"
	ProfileSqueeze    Profile = "squeeze"
	ProfileBuilding   Profile = "building"
	ProfileLongUnwind Profile = "long_unwind"
	ProfileSparse     Profile = "sparse"
)

var rotation = []Profile{ProfileNeutral, ProfileSqueeze, ProfileBuilding, ProfileNeutral, ProfileLongUnwind}

// MockFetcher generates deterministic series for tests and local runs.
// Each symbol's profile is fixed via Profiles or derived from a hash of the
// symbol, the seed and the current epoch.
type MockFetcher struct {
	mu       sync.Mutex
	seed     int64
	epoch    int64
	interval time.Duration
	end      time.Time
	profiles map[string]Profile
	failures map[string]error
	calls    map[string]int
	universe []string
}

// NewMockFetcher creates a mock fetcher.
func NewMockFetcher(seed int64, universe []string) *MockFetcher {
	return &MockFetcher{
		seed:     seed,
		interval: 4 * time.Hour,
		end:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		profiles: make(map[string]Profile),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		universe: dedupe(universe),
	}
}

// SetProfile pins the profile of symbol.
func (m *MockFetcher) SetProfile(symbol string, p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[NormalizeSymbol(symbol)] = p
}

// SetFailure makes every fetch for symbol return err; nil clears it.
func (m *MockFetcher) SetFailure(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, NormalizeSymbol(symbol))
		return
	}
	m.failures[NormalizeSymbol(symbol)] = err
}

// Rotate advances the epoch so hashed profiles change on the next fetch.
func (m *MockFetcher) Rotate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
}

// Calls returns how many fetches were made for symbol.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[NormalizeSymbol(symbol)]
}

// Symbols returns the configured universe.
func (m *MockFetcher) Symbols(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.universe))
	copy(out, m.universe)
	return out, nil
}

// FetchSeries returns a synthetic series.
func (m *MockFetcher) FetchSeries(ctx context.Context, req SeriesRequest) ([]Point, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol := NormalizeSymbol(req.Symbol)
	m.mu.Lock()
	m.calls[symbol]++
	failure := m.failures[symbol]
	profile, pinned := m.profiles[symbol]
	rng := rand.New(rand.NewSource(m.symbolSeed(symbol, req.Kind)))
	if !pinned {
		profile = rotation[int(m.symbolSeed(symbol, "")%int64(len(rotation)))]
	}
	m.mu.Unlock()

	if failure != nil {
		return nil, failure
	}

	n := req.Limit
	if n <= 0 {
		n = 180
	}
	if profile == ProfileSparse {
		n = 1
	}

	values := generate(profile, req.Kind, n, rng)
	points := make([]Point, n)
	start := m.end.Add(-time.Duration(n-1) * m.interval)
	for i := 0; i < n; i++ {
		points[i] = Point{Timestamp: start.Add(time.Duration(i) * m.interval)}
		if req.Kind == KindTakerVolume {
			ratio := values[i]
			total := 1000 + 200*rng.Float64()
			points[i].Buy = total * ratio
			points[i].Sell = total * (1 - ratio)
			points[i].Value = points[i].Buy - points[i].Sell
		} else {
			points[i].Value = values[i]
		}
	}
	if req.Kind == KindTakerVolume && profile == ProfileSqueeze {
		// a closing burst of volume
		for i := n - 3; i < n; i++ {
			if i >= 0 {
				points[i].Buy *= 2.5
				points[i].Sell *= 2.5
				points[i].Value = points[i].Buy - points[i].Sell
			}
		}
	}
	return points, nil
}

// must hold mu
func (m *MockFetcher) symbolSeed(symbol string, kind SeriesKind) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(kind))
	v := int64(h.Sum64()&0x7fffffffffffffff) ^ m.seed ^ (m.epoch * 7919)
	if v < 0 {
		v = -v
	}
	return v
}

// generate produces n values of kind following profile. Taker values are
// buy ratios in (0,1).
func generate(p Profile, kind SeriesKind, n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	noise := func(scale float64) float64 { return (rng.Float64()*2 - 1) * scale }
	// progress in [0,1] along the series
	at := func(i int) float64 {
		if n <= 1 {
			return 1
		}
		return float64(i) / float64(n-1)
	}

	for i := range out {
		x := at(i)
		switch kind {
		case KindOpenInterest:
			base := 1e8
			switch p {
			case ProfileSqueeze:
				// flush to -15% by 60% of the window, rebuild +20% from the trough
				if x < 0.6 {
					base *= 1 - 0.15*(x/0.6)
				} else {
					base *= 0.85 * (1 + 0.2*((x-0.6)/0.4))
				}
			case ProfileBuilding:
				if x < 0.5 {
					base *= 1 - 0.09*(x/0.5)
				} else {
					base *= 0.91 * (1 + 0.13*((x-0.5)/0.5))
				}
			case ProfileLongUnwind:
				if x < 0.6 {
					base *= 1 - 0.13*(x/0.6)
				} else {
					base *= 0.87 * (1 + 0.2*((x-0.6)/0.4))
				}
			default:
				base *= 1 + 0.02*math.Sin(x*6)
			}
			out[i] = base * (1 + noise(0.002))
		case KindLongShort:
			switch p {
			case ProfileSqueeze:
				v := 0.6
				if x > 0.9 {
					v = 0.6 + 0.7*((x-0.9)/0.1)
				}
				out[i] = v + noise(0.01)
			case ProfileBuilding:
				v := 0.75
				if x > 0.9 {
					v = 0.75 + 0.35*((x-0.9)/0.1)
				}
				out[i] = v + noise(0.01)
			case ProfileLongUnwind:
				v := 1.8
				if x > 0.85 {
					v = 1.8 - 0.8*((x-0.85)/0.15)
				}
				out[i] = v + noise(0.01)
			default:
				out[i] = 1.05 + noise(0.05)
			}
		case KindTakerVolume:
			switch p {
			case ProfileSqueeze:
				v := 0.5
				if x > 0.95 {
					v = 0.68
				}
				out[i] = v + noise(0.005)
			case ProfileBuilding:
				v := 0.5
				if x > 0.95 {
					v = 0.56
				}
				out[i] = v + noise(0.005)
			case ProfileLongUnwind:
				v := 0.5
				if x > 0.95 {
					v = 0.38
				}
				out[i] = v + noise(0.005)
			default:
				out[i] = 0.5 + noise(0.02)
			}
		case KindBasis:
			switch p {
			case ProfileSqueeze:
				v := 0.0005
				if x > 0.97 {
					v = 0.0005 + 0.004*((x-0.97)/0.03)
				}
				out[i] = v + noise(0.00005)
			case ProfileBuilding:
				out[i] = 0.0008 + noise(0.00005)
			default:
				out[i] = 0.0003 + noise(0.0001)
			}
		case KindFundingRate:
			switch p {
			case ProfileSqueeze:
				out[i] = -0.0003 + noise(0.00005)
			case ProfileLongUnwind:
				out[i] = 0.0012 + noise(0.0001)
			default:
				out[i] = 0.0001 + noise(0.00005)
			}
		default:
			out[i] = noise(1)
		}
	}
	return out
}
