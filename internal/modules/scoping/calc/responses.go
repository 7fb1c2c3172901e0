package calc

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
)

// BuildResponseMap keys every question's answer by the canonical form of
// its mapping key (falling back to slug, then id). Answers may be supplied
// under any of those three keys, in any case or separator style;
// unanswered questions take their default value. Response keys that match
// no question are kept under their canonical form so callers can pass
// factor values directly.
func BuildResponseMap(questions []scoping.Question, responses map[string]any) map[string]any {
	rm := make(map[string]any, len(questions)+len(responses))
	keys := make([]string, 0, len(responses))
	for k := range responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	byCanon := make(map[string]string, len(keys))
	for _, k := range keys {
		c := scoping.CanonicalFactorKey(k)
		if _, ok := byCanon[c]; !ok {
			byCanon[c] = k
		}
	}

	consumed := map[string]bool{}
	for _, q := range questions {
		key := scoping.CanonicalFactorKey(q.Key())
		if key == "" {
			continue
		}
		var (
			val   any
			found bool
		)
		for _, k := range []string{q.MappingKey, q.Slug, q.ID} {
			if k == "" {
				continue
			}
			rk := k
			_, ok := responses[k]
			if !ok {
				rk, ok = byCanon[scoping.CanonicalFactorKey(k)]
			}
			if ok && !blank(responses[rk]) {
				val, found = responses[rk], true
				consumed[rk] = true
				break
			}
		}
		if !found {
			if _, already := rm[key]; already {
				continue
			}
			if q.DefaultValue == nil {
				continue
			}
			val = q.DefaultValue
		}
		rm[key] = scalar(val)
	}
	for _, k := range keys {
		v := responses[k]
		if consumed[k] || blank(v) {
			continue
		}
		c := scoping.CanonicalFactorKey(k)
		if _, ok := rm[c]; ok {
			continue
		}
		rm[c] = scalar(v)
	}
	return rm
}

// lookup reads key from rm, retrying under its canonical form so rules
// written as "userCount" see the answer stored under "user_count".
func lookup(rm map[string]any, key string) (any, bool) {
	if v, ok := rm[key]; ok {
		return v, true
	}
	c := scoping.CanonicalFactorKey(key)
	if c == key {
		return nil, false
	}
	v, ok := rm[c]
	return v, ok
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// scalar normalizes a response value to nil, bool, float64 or string.
// Numeric strings become numbers and yes/no words become booleans.
func scalar(v any) any {
	switch x := v.(type) {
	case nil, bool, float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case string:
		s := strings.TrimSpace(x)
		switch strings.ToLower(s) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
		return s
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, toString(scalar(p)))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}
