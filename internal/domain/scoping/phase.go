package scoping

import (
	"strings"
	"unicode"
)

// Phase is one of the canonical project lifecycle phases.
type Phase string

const (
	PhaseInitiation Phase = "Initiation"
	PhasePlanning   Phase = "Planning"
	PhaseExecution  Phase = "Execution"
	PhaseMonitoring Phase = "Monitoring"
	PhaseClosing    Phase = "Closing"
)

// Phases returns the canonical phases in lifecycle order.
func Phases() []Phase {
	return []Phase{PhaseInitiation, PhasePlanning, PhaseExecution, PhaseMonitoring, PhaseClosing}
}

// phaseKeywords are matched as word prefixes; entries containing a space
// are matched as substrings of the normalized text.
var phaseKeywords = map[Phase][]string{
	PhaseInitiation: {"initiat", "discovery", "assess", "kickoff", "kick off", "requirement", "envision", "scoping", "evaluat", "feasibility"},
	PhasePlanning:   {"plan", "design", "architect", "blueprint", "strategy", "roadmap", "prepar", "readiness"},
	PhaseExecution:  {"execut", "implement", "deploy", "build", "install", "configur", "migrat", "integrat", "rollout", "provision", "develop", "cutover"},
	PhaseMonitoring: {"monitor", "test", "validat", "quality", "qa", "uat", "verif", "control", "pilot", "optimiz"},
	PhaseClosing:    {"clos", "handover", "handoff", "hand off", "transition", "documentation", "training", "knowledge transfer", "hypercare", "sign off", "signoff"},
}

// ParsePhase maps free text onto a canonical phase. The first phase in
// lifecycle order whose keywords match wins.
func ParsePhase(raw string) (Phase, bool) {
	text, tokens := phaseText(raw)
	if text == "" {
		return "", false
	}
	for _, p := range Phases() {
		if p.matches(text, tokens) {
			return p, true
		}
	}
	return "", false
}

// NormalizePhase returns the canonical name for raw, or raw unchanged
// when nothing matches.
func NormalizePhase(raw string) string {
	raw = strings.TrimSpace(raw)
	if p, ok := ParsePhase(raw); ok {
		return string(p)
	}
	return raw
}

// MatchesText reports whether any keyword of p occurs in text.
func (p Phase) MatchesText(text string) bool {
	t, tokens := phaseText(text)
	return p.matches(t, tokens)
}

func (p Phase) matches(text string, tokens []string) bool {
	for _, kw := range phaseKeywords[p] {
		if strings.Contains(kw, " ") {
			if strings.Contains(text, kw) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if strings.HasPrefix(tok, kw) {
				return true
			}
		}
	}
	return false
}

// PhaseCoverage returns the fraction of canonical phases represented by
// services, checking each service's phase, name and description.
func PhaseCoverage(services []Service) float64 {
	covered := CoveredPhases(services)
	return float64(len(covered)) / float64(len(Phases()))
}

func CoveredPhases(services []Service) []Phase {
	out := make([]Phase, 0, len(Phases()))
	for _, p := range Phases() {
		for _, svc := range services {
			if p.MatchesText(svc.Phase + " " + svc.Name + " " + svc.Description) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func phaseText(raw string) (string, []string) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(tokens, " "), tokens
}

func normalizeToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(s)
	return s
}
