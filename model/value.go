package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is a loosely typed JSON value. Clients send ids as numbers or
// strings interchangeably, so coercion happens when the value is read.
type Value struct {
	raw     interface{}
	present bool
}

// NewValue wraps an already decoded value.
func NewValue(v interface{}) Value {
	if v == nil {
		return Value{}
	}
	return Value{raw: v, present: true}
}

// IntValue is a shortcut used when building inputs from Go code.
func IntValue(n int64) Value {
	return Value{raw: json.Number(strconv.FormatInt(n, 10)), present: true}
}

// TextValue wraps a string.
func TextValue(s string) Value {
	return Value{raw: s, present: true}
}

// UnmarshalJSON keeps numbers as json.Number so large ids are not rounded
// through float64.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = NewValue(raw)
	return nil
}

// MarshalJSON writes the raw value back unchanged.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// Present reports whether the field was supplied with a non-null value.
func (v Value) Present() bool {
	return v.present
}

// Empty reports whether the value is absent or an empty string. Required
// fields use it as their presence check.
func (v Value) Empty() bool {
	if !v.present {
		return true
	}
	s, ok := v.raw.(string)
	return ok && s == ""
}

// Truthy reports whether the value would pass a JavaScript truthiness
// check: absent, "", false, 0 and NaN are all falsy.
func (v Value) Truthy() bool {
	if !v.present {
		return false
	}

	switch t := v.raw.(type) {
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

// Int returns the best-effort integer reading of the value.
func (v Value) Int() (int64, bool) {
	if !v.present {
		return 0, false
	}

	switch t := v.raw.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(t)
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		return parseLeadingInt(t)
	default:
		return 0, false
	}
}

// Text returns the string reading of the value. Empty strings count as absent.
func (v Value) Text() (string, bool) {
	if !v.present {
		return "", false
	}

	switch t := v.raw.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	default:
		return "", false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t > math.MaxInt64 || t < math.MinInt64 {
		return 0, false
	}
	return int64(t), true
}

// parseLeadingInt reads an optional sign followed by decimal digits and
// ignores whatever trails them, so "42abc" reads as 42.
func parseLeadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
