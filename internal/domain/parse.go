package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsePulse converts a loosely typed pulse value (as decoded from JSON or
// an MQTT payload) into whole beats per minute.
func ParsePulse(v any) (int, error) {
	n, err := parseWhole("pulse", v)
	if err != nil {
		return 0, err
	}
	if err := checkColumnRange("pulse", n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// ParseSmartBandID converts a loosely typed device identifier.
func ParseSmartBandID(v any) (int64, error) {
	n, err := parseWhole("smartBandId", v)
	if err != nil {
		return 0, err
	}
	if err := checkColumnRange("smartBandId", n); err != nil {
		return 0, err
	}
	return n, nil
}

func parseWhole(field string, v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, &ValidationError{Field: field, Reason: "is required"}
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		return wholeFloat(field, x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a number", x.String())}
		}
		return wholeFloat(field, f)
	case string:
		s := strings.TrimSpace(x)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a whole number", x)}
		}
		return n, nil
	default:
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

func wholeFloat(field string, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%v is not a whole number", f)}
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%v is out of range", f)}
	}
	return int64(f), nil
}
