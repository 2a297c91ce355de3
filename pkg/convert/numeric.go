// Package convert reads numeric values back out of property maps.
//
// Graph stores hand properties back with whatever type their encoding
// produced: the memory store returns the int or float64 that was written,
// BadgerDB returns float64 for every JSON number, and configuration layers
// may hand over strings or json.Number. The helpers here normalize all of
// them so callers never write their own type switches.
//
// Example:
//
//	w, ok := convert.Float(edge.Properties, "weight")
//	cluster, _ := convert.Int(node.Properties, "cluster")
package convert

import (
	"encoding/json"
	"strconv"
)

// ToFloat64 converts various numeric types to float64.
// Returns (value, true) on success, (0, false) on failure.
//
// Strings are parsed with strconv.ParseFloat, so "1.5e-3", "NaN" and
// "Inf" are accepted.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// ToInt64 converts various numeric types to int64.
// Floats are truncated toward zero.
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		if f, err := val.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i, true
		}
		// Try parsing as float then converting
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// Float returns props[key] as a float64.
// ok is false when the key is absent or not numeric.
func Float(props map[string]any, key string) (float64, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	return ToFloat64(v)
}

// Int returns props[key] as an int.
func Int(props map[string]any, key string) (int, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	i, ok := ToInt64(v)
	return int(i), ok
}
