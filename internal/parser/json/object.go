package json

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Object is one decoded JSON object. Its accessors follow the same shape as
// config-style option bags: each returns the typed value, whether a usable
// value was present, and an error only when the value exists but has the
// wrong type.
//
// A key that is absent, null, or (for numeric accessors) an empty string is
// reported as not present.
type Object map[string]any

// Has reports whether key is present with a non-null value.
func (o Object) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// String returns the string value for key. JSON numbers are accepted and
// returned in their literal form.
func (o Object) String(key string) (string, bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch s := v.(type) {
	case string:
		return s, true, nil
	case json.Number:
		return s.String(), true, nil
	default:
		return "", false, fmt.Errorf("field %q: want string, got %T", key, v)
	}
}

// Int64 returns the integer value for key. It accepts integral JSON numbers
// (including forms like 2000.0) and numeric strings such as "26".
func (o Object) Int64(key string) (int64, bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	var lit string
	switch n := v.(type) {
	case json.Number:
		lit = n.String()
	case string:
		lit = strings.TrimSpace(n)
		if lit == "" {
			return 0, false, nil
		}
	default:
		return 0, false, fmt.Errorf("field %q: want integer, got %T", key, v)
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return i, true, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false, fmt.Errorf("field %q: want integer, got %q", key, lit)
	}
	return int64(f), true, nil
}

// Float64 returns the decimal value for key. Numeric strings are accepted.
func (o Object) Float64(key string) (float64, bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	var lit string
	switch n := v.(type) {
	case json.Number:
		lit = n.String()
	case string:
		lit = strings.TrimSpace(n)
		if lit == "" {
			return 0, false, nil
		}
	default:
		return 0, false, fmt.Errorf("field %q: want number, got %T", key, v)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, false, fmt.Errorf("field %q: want number, got %q", key, lit)
	}
	return f, true, nil
}
