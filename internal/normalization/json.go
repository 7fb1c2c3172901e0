package normalization

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON value is found in the text.
var ErrNoJSON = errors.New("normalization: no JSON value found")

// maxCandidates bounds how many opening brackets Parse tries before giving up.
const maxCandidates = 32

var (
	fenceRe         = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	smartQuotes     = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`, "‘", "'", "’", "'")
)

// StripFences returns the body of the first markdown code fence in s, or s
// with any dangling fence markers removed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			rest = rest[nl+1:]
		} else {
			rest = strings.TrimLeft(rest, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		}
		s = strings.TrimSpace(s[:idx] + "\n" + rest)
	}
	return strings.TrimSpace(strings.ReplaceAll(s, "```", ""))
}

type frame struct {
	open      byte
	lastComma int
}

// ExtractJSON returns the first balanced JSON object or array in s. A value
// cut off before its closing brackets is closed best-effort; ok is false
// only when s holds no opening bracket at all.
func ExtractJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	candidates := extractFrom(s, start)
	return candidates[0], true
}

// extractFrom scans from start and returns the balanced value, or a list of
// repaired variants (most complete first) when the input is truncated.
func extractFrom(s string, start int) []string {
	var stack []frame
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			stack = append(stack, frame{open: c, lastComma: -1})
		case ',':
			if len(stack) > 0 {
				stack[len(stack)-1].lastComma = i
			}
		case '}', ']':
			if len(stack) == 0 {
				return []string{s[start:i]}
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return []string{s[start : i+1]}
			}
		}
	}
	return repairTruncated(s[start:], start, stack, inStr)
}

func repairTruncated(body string, offset int, stack []frame, inStr bool) []string {
	out := make([]string, 0, len(stack)+1)

	full := body
	if inStr {
		if strings.HasSuffix(full, `\`) {
			full = full[:len(full)-1]
		}
		full += `"`
	}
	out = append(out, closeFrames(full, stack))

	// Drop the trailing partial element of each container, innermost first.
	for d := len(stack) - 1; d >= 0; d-- {
		if stack[d].lastComma < 0 {
			continue
		}
		cut := body[:stack[d].lastComma-offset]
		out = append(out, closeFrames(cut, stack[:d+1]))
	}
	return out
}

func closeFrames(body string, stack []frame) string {
	body = strings.TrimRight(body, " \t\r\n")
	for strings.HasSuffix(body, ",") {
		body = strings.TrimRight(strings.TrimSuffix(body, ","), " \t\r\n")
	}
	if strings.HasSuffix(body, ":") {
		body += "null"
	}
	var b strings.Builder
	b.WriteString(body)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].open == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Clean removes trailing commas before closing brackets.
func Clean(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// Parse recovers the JSON value an LLM meant to emit from raw output:
// fenced, wrapped in prose, truncated, or using smart quotes.
func Parse(raw string) (any, error) {
	var v any
	if err := ParseInto(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseInto is Parse decoding into out.
func ParseInto(raw string, out any) error {
	s := StripFences(raw)
	if s == "" {
		return ErrNoJSON
	}
	if tryDecode(s, out) {
		return nil
	}
	tried := 0
	for pos := 0; pos < len(s) && tried < maxCandidates; {
		idx := strings.IndexAny(s[pos:], "{[")
		if idx < 0 {
			break
		}
		start := pos + idx
		tried++
		for _, cand := range extractFrom(s, start) {
			if tryDecode(cand, out) {
				return nil
			}
		}
		pos = start + 1
	}
	return ErrNoJSON
}

func tryDecode(s string, out any) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	variants := []string{s, Clean(s)}
	if fixed := smartQuotes.Replace(s); fixed != s {
		variants = append(variants, fixed, Clean(fixed))
	}
	for _, v := range variants {
		if !strings.HasPrefix(v, "{") && !strings.HasPrefix(v, "[") {
			return false
		}
		if err := json.Unmarshal([]byte(v), out); err == nil {
			return true
		}
	}
	return false
}
