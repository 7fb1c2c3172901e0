package questions

import (
	"strings"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/calc"
)

// FactorImpacts lists the ids of services and subservices that consume
// factor. A service id precedes the ids of its matching subservices.
func FactorImpacts(services []scoping.Service, factor string) []string {
	out := []string{}
	factor = scoping.CanonicalFactorKey(factor)
	for _, svc := range services {
		var subs []string
		for _, sub := range svc.Subservices {
			if contains(calc.SubserviceFactors(sub), factor) {
				subs = append(subs, sub.ID)
			}
		}
		own := contains(calc.OwnFactors(svc), factor)
		if own || len(subs) > 0 {
			out = append(out, svc.ID)
			out = append(out, subs...)
		}
	}
	return out
}

// KeywordImpacts matches a context question to services by word overlap
// between the question text and each service's name and description.
func KeywordImpacts(services []scoping.Service, text string) []string {
	words := keywords(text)
	out := []string{}
	if len(words) == 0 {
		return out
	}
	for _, svc := range services {
		target := keywords(svc.Name + " " + svc.Description)
		if overlaps(words, target) {
			out = append(out, svc.ID)
		}
	}
	return out
}

func keywords(text string) []string {
	var out []string
	for _, tok := range slugTokens(text) {
		tok = strings.Trim(tok, "-")
		if len(tok) < 4 || slugStopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// overlaps compares five-letter stems so "migrated" meets "migration".
func overlaps(a, b []string) bool {
	stem := func(s string) string {
		if len(s) > 5 {
			return s[:5]
		}
		return s
	}
	set := map[string]bool{}
	for _, w := range b {
		set[stem(w)] = true
	}
	for _, w := range a {
		if set[stem(w)] {
			return true
		}
	}
	return false
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
