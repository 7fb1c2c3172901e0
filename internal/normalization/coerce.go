package normalization

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var leadingNumberRe = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?`)

// Float coerces v to a finite float64. Strings like "1,200" or "16 hours"
// yield their leading number.
func Float(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		m := leadingNumberRe.FindString(s)
		if m == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FloatOr is Float with a fallback.
func FloatOr(v any, def float64) float64 {
	if f, ok := Float(v); ok {
		return f
	}
	return def
}

// String coerces scalars to a trimmed string.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// Strings coerces a list (or a single string) into non-empty strings.
func Strings(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := String(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

// Bool coerces v, accepting yes/no style strings and numbers.
func Bool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "on", "included", "include":
			return true, true
		case "false", "no", "n", "0", "off", "excluded", "exclude":
			return false, true
		}
	}
	return false, false
}

func Map(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func Slice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// Pick returns the first present, non-nil value among keys.
func Pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Generic round-trips a typed value through JSON into maps and slices.
func Generic(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clamp bounds f to [lo, hi].
func Clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
