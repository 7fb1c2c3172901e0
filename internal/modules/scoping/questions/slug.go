package questions

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
)

const MaxSlugLen = 15

// Entity stems are matched as word prefixes; more specific stems come
// before the shorter ones they contain.
var slugEntities = []struct {
	stem  string
	token string
}{
	{"mailbox", "mailbox"},
	{"user", "user"},
	{"seat", "user"},
	{"employee", "user"},
	{"site", "site"},
	{"location", "site"},
	{"office", "office"},
	{"branch", "site"},
	{"server", "server"},
	{"virtual", "vm"},
	{"vms", "vm"},
	{"device", "device"},
	{"endpoint", "endpoint"},
	{"laptop", "device"},
	{"application", "app"},
	{"apps", "app"},
	{"integration", "integ"},
	{"database", "db"},
	{"license", "license"},
	{"licence", "license"},
	{"data", "data"},
	{"storage", "storage"},
	{"file", "file"},
	{"workflow", "workflow"},
	{"environment", "env"},
	{"department", "dept"},
	{"network", "network"},
	{"firewall", "firewall"},
	{"switch", "switch"},
	{"training", "training"},
	{"documentation", "docs"},
	{"hypercare", "hypercare"},
	{"support", "support"},
	{"complex", "complexity"},
	{"security", "security"},
	{"compliance", "compliance"},
	{"backup", "backup"},
	{"region", "region"},
	{"countr", "country"},
	{"geograph", "region"},
	{"timeline", "timeline"},
	{"go-live", "golive"},
	{"deadline", "deadline"},
	{"budget", "budget"},
	{"migrat", "migration"},
}

var slugStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "be": true, "will": true,
	"do": true, "does": true, "you": true, "your": true, "to": true, "of": true, "for": true,
	"in": true, "on": true, "what": true, "which": true, "how": true, "many": true, "much": true,
	"need": true, "needs": true, "there": true, "this": true, "that": true, "and": true, "or": true,
	"with": true, "by": true, "any": true, "it": true, "we": true, "our": true, "should": true,
	"have": true, "has": true, "please": true, "can": true, "would": true,
}

func slugTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// slugAction names what the question asks for.
func slugAction(lower string, tokens []string) string {
	switch {
	case strings.HasPrefix(lower, "how many") || strings.Contains(lower, "number of"):
		return "qty"
	case strings.Contains(lower, "volume") || strings.Contains(lower, " size") || strings.Contains(lower, " gb") || strings.Contains(lower, " tb"):
		return "size"
	case strings.HasPrefix(lower, "how much"):
		return "amt"
	case strings.Contains(lower, "complexity") || strings.Contains(lower, "level"):
		return "lvl"
	case strings.HasPrefix(lower, "when") || strings.Contains(lower, "timeline") || strings.Contains(lower, "how long"):
		return "time"
	case strings.HasPrefix(lower, "which") || strings.Contains(lower, "what type") || strings.Contains(lower, "what kind"):
		return "type"
	}
	if len(tokens) > 0 {
		switch tokens[0] {
		case "is", "are", "will", "do", "does", "should", "must", "can", "would":
			return "req"
		}
	}
	return ""
}

// Slug derives a short, deterministic identifier from question text:
// a recognised entity plus an action ("How many mailboxes need to be
// migrated?" gives "mailbox_qty"), else the first meaningful words.
func Slug(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	tokens := slugTokens(lower)

	entity := ""
	for _, tok := range tokens {
		for _, e := range slugEntities {
			if strings.HasPrefix(tok, e.stem) {
				entity = e.token
				break
			}
		}
		if entity != "" {
			break
		}
	}

	action := slugAction(lower, tokens)
	if entity != "" {
		if action == "" {
			return truncateSlug(entity)
		}
		return truncateSlug(entity + "_" + action)
	}

	words := make([]string, 0, 3)
	for _, tok := range tokens {
		tok = strings.Trim(tok, "-")
		if tok == "" || slugStopwords[tok] {
			continue
		}
		words = append(words, tok)
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return "question"
	}
	return truncateSlug(strings.Join(words, "_"))
}

func truncateSlug(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	return strings.Trim(normalization.Truncate(s, MaxSlugLen), "_")
}

// Slugger hands out unique slugs within one question set by suffixing a
// counter on collision.
type Slugger struct {
	seen map[string]int
}

func NewSlugger() *Slugger { return &Slugger{seen: map[string]int{}} }

// Reserve marks slug as taken.
func (s *Slugger) Reserve(slug string) {
	if slug != "" {
		s.seen[slug]++
	}
}

func (s *Slugger) Next(text string) string {
	return s.unique(Slug(text))
}

func (s *Slugger) unique(base string) string {
	if s.seen[base] == 0 {
		s.seen[base] = 1
		return base
	}
	for n := s.seen[base] + 1; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		stem := base
		if len(stem)+len(suffix) > MaxSlugLen {
			stem = strings.TrimRight(normalization.Truncate(stem, MaxSlugLen-len(suffix)), "_")
		}
		cand := stem + suffix
		if s.seen[cand] == 0 {
			s.seen[base] = n
			s.seen[cand] = 1
			return cand
		}
	}
}
