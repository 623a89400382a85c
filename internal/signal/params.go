package signal

import (
	"strconv"
	"strings"
	"time"
)

// Params controls the windows FeatureEngine looks at.
type Params struct {
	// Periods is the lookback window in series periods.
	Periods int
	// SlopePeriods is the window of the open-interest regression slope.
	SlopePeriods int
	MAShort      int
	MALong       int
	SpikeShort   int
	SpikeLong    int
	JumpLag      int
}

// DefaultParams returns the windows for a lookback of days at interval.
func DefaultParams(days int, interval string) Params {
	perDay := PeriodsPerDay(interval)
	if days <= 0 {
		days = 30
	}
	return Params{
		Periods:      days * perDay,
		SlopePeriods: 7 * perDay,
		MAShort:      7,
		MALong:       30,
		SpikeShort:   3,
		SpikeLong:    30,
		JumpLag:      3,
	}
}

// PeriodsPerDay converts an interval such as "4h", "1d" or "15m" into the
// number of periods per day. Unknown intervals count as daily.
func PeriodsPerDay(interval string) int {
	interval = strings.TrimSpace(strings.ToLower(interval))
	if interval == "" {
		return 1
	}
	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 1
	}
	var d time.Duration
	switch unit {
	case 'm':
		d = time.Duration(n) * time.Minute
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	default:
		return 1
	}
	per := int((24 * time.Hour) / d)
	if per < 1 {
		return 1
	}
	return per
}

func (p Params) withDefaults() Params {
	d := DefaultParams(30, "1d")
	if p.Periods <= 0 {
		p.Periods = d.Periods
	}
	if p.SlopePeriods <= 0 {
		p.SlopePeriods = d.SlopePeriods
	}
	if p.MAShort <= 0 {
		p.MAShort = d.MAShort
	}
	if p.MALong <= 0 {
		p.MALong = d.MALong
	}
	if p.SpikeShort <= 0 {
		p.SpikeShort = d.SpikeShort
	}
	if p.SpikeLong <= 0 {
		p.SpikeLong = d.SpikeLong
	}
	if p.JumpLag <= 0 {
		p.JumpLag = d.JumpLag
	}
	return p
}
