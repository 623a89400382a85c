package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// field aliases probed per series kind, in order
var (
	timestampFields = []string{"timestamp", "time", "ts", "t", "fundingTime", "createTime"}

	valueFields = map[SeriesKind][]string{
		KindOpenInterest: {"sumOpenInterestValue", "openInterestValue", "sumOpenInterest", "openInterest", "oi", "value"},
		KindFundingRate:  {"fundingRate", "rate", "funding", "value"},
		KindLongShort:    {"longShortRatio", "longShortAccountRatio", "ratio", "value"},
		KindBasis:        {"basisRate", "basis", "value"},
	}

	buyFields  = []string{"buyVol", "buyVolume", "takerBuyVolume", "buy"}
	sellFields = []string{"sellVol", "sellVolume", "takerSellVolume", "sell"}

	envelopeDataFields = []string{"data", "result", "rows", "list"}
)

// ParseSeries decodes a provider response into points, oldest first.
// It accepts a bare array or an envelope ({"code":0,"data":[...]}); numeric
// fields may be encoded as numbers or strings. A non-zero envelope code or
// a false "success" flag yields ErrUpstreamBusiness. Rows without a usable
// value are skipped.
func ParseSeries(kind SeriesKind, raw []byte) ([]Point, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []Point{}, nil
	}

	rows, err := extractRows(raw)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		p, ok := parsePoint(kind, row)
		if ok {
			points = append(points, p)
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func extractRows(raw []byte) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch v := doc.(type) {
	case []interface{}:
		return toRows(v)
	case map[string]interface{}:
		if err := checkEnvelope(v); err != nil {
			return nil, err
		}
		for _, key := range envelopeDataFields {
			inner, ok := v[key]
			if !ok || inner == nil {
				continue
			}
			switch d := inner.(type) {
			case []interface{}:
				return toRows(d)
			case map[string]interface{}:
				// one more level, e.g. {"data":{"list":[...]}}
				for _, k := range envelopeDataFields {
					if arr, ok := d[k].([]interface{}); ok {
						return toRows(arr)
					}
				}
				return []map[string]interface{}{d}, nil
			}
		}
		if _, hasCode := v["code"]; hasCode {
			return []map[string]interface{}{}, nil
		}
		// a single bare row
		return []map[string]interface{}{v}, nil
	case nil:
		return []map[string]interface{}{}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %T document", ErrMalformedPayload, doc)
	}
}

func checkEnvelope(v map[string]interface{}) error {
	msg := firstString(v, "msg", "message", "error")
	if success, ok := v["success"].(bool); ok && !success {
		return fmt.Errorf("%w: %s", ErrUpstreamBusiness, msg)
	}
	raw, ok := v["code"]
	if !ok {
		return nil
	}
	code, ok := toFloat(raw)
	if !ok {
		// string codes such as "0" or "OK"
		s := strings.TrimSpace(fmt.Sprint(raw))
		if s == "" || s == "0" || strings.EqualFold(s, "ok") || strings.EqualFold(s, "success") {
			return nil
		}
		return fmt.Errorf("%w: code %s: %s", ErrUpstreamBusiness, s, msg)
	}
	if code != 0 && code != 200 {
		return fmt.Errorf("%w: code %v: %s", ErrUpstreamBusiness, code, msg)
	}
	return nil
}

func toRows(arr []interface{}) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, len(arr))
	for _, item := range arr {
		switch r := item.(type) {
		case map[string]interface{}:
			rows = append(rows, r)
		case []interface{}:
			// [timestamp, value] pairs
			if len(r) >= 2 {
				rows = append(rows, map[string]interface{}{"timestamp": r[0], "value": r[1]})
			}
		case nil:
		default:
			return nil, fmt.Errorf("%w: unexpected %T row", ErrMalformedPayload, item)
		}
	}
	return rows, nil
}

func parsePoint(kind SeriesKind, row map[string]interface{}) (Point, bool) {
	p := Point{Timestamp: parseTimestamp(firstValue(row, timestampFields...))}

	if kind == KindTakerVolume {
		buy, okBuy := toFloat(firstValue(row, buyFields...))
		sell, okSell := toFloat(firstValue(row, sellFields...))
		if !okBuy || !okSell {
			// some providers only send the buy/sell ratio
			ratio, ok := toFloat(firstValue(row, "buySellRatio", "ratio"))
			if !ok || ratio < 0 {
				return Point{}, false
			}
			buy, sell = ratio, 1
		}
		p.Buy, p.Sell = buy, sell
		p.Value = buy - sell
		return p, true
	}

	v, ok := toFloat(firstValue(row, valueFields[kind]...))
	if !ok {
		return Point{}, false
	}
	p.Value = v
	return p, true
}

func firstValue(row map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(row map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := row[k].(string); ok {
			return s
		}
	}
	return ""
}

// toFloat accepts json.Number, float64, int and numeric strings.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		s = strings.TrimSuffix(s, "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if strings.HasSuffix(strings.TrimSpace(n), "%") {
			f /= 100
		}
		return f, true
	default:
		return 0, false
	}
}

// parseTimestamp understands unix seconds, milliseconds, numeric strings
// and RFC3339. Anything else yields the zero time.
func parseTimestamp(v interface{}) time.Time {
	if v == nil {
		return time.Time{}
	}
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
	}
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return time.Time{}
	}
	ts := int64(f)
	switch {
	case ts > 1e17: // nanoseconds
		return time.Unix(0, ts).UTC()
	case ts > 1e14: // microseconds
		return time.UnixMicro(ts).UTC()
	case ts > 1e11: // milliseconds
		return time.UnixMilli(ts).UTC()
	default:
		return time.Unix(ts, 0).UTC()
	}
}
