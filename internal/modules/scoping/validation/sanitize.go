package validation

import (
	"fmt"
	"strings"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
)

const (
	DefaultServiceHours    = 8.0
	DefaultSubserviceHours = 4.0
)

// SanitizeSources keeps entries that carry a title or a url.
func SanitizeSources(v any) []scoping.ResearchSource {
	raw, _ := normalization.Slice(v)
	out := make([]scoping.ResearchSource, 0, len(raw))
	for _, item := range raw {
		if src, ok := SanitizeSource(item); ok {
			out = append(out, src)
		}
	}
	return out
}

func SanitizeSource(v any) (scoping.ResearchSource, bool) {
	m, ok := normalization.Map(v)
	if !ok {
		return scoping.ResearchSource{}, false
	}
	title := normalization.String(normalization.Pick(m, "title", "name"))
	url := normalization.String(normalization.Pick(m, "url", "link", "href"))
	if title == "" && url == "" {
		return scoping.ResearchSource{}, false
	}
	if title == "" {
		title = url
	}
	return scoping.ResearchSource{
		Title:       title,
		URL:         url,
		Summary:     normalization.String(normalization.Pick(m, "summary", "description", "snippet")),
		Credibility: scoping.ParseCredibility(normalization.String(m["credibility"])),
		Relevance:   normalization.Clamp(normalization.FloatOr(normalization.Pick(m, "relevance", "relevanceScore", "score"), 0.5), 0, 1),
		SourceType:  scoping.ParseSourceType(normalization.String(normalization.Pick(m, "sourceType", "source_type", "type"))),
	}, true
}

// SanitizeServices coerces raw services. It fails when v is not an array
// or when no entry survives.
func SanitizeServices(v any) ([]scoping.Service, error) {
	raw, ok := normalization.Slice(v)
	if !ok {
		return nil, fmt.Errorf("%w: services is %s, not an array", ErrInvalidServices, kindOf(v))
	}
	out := make([]scoping.Service, 0, len(raw))
	for i, item := range raw {
		if svc, ok := SanitizeService(item, i); ok {
			out = append(out, svc)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: none of %d services is valid", ErrInvalidServices, len(raw))
	}
	return out, nil
}

// SanitizeService maps one loosely shaped service. Entries without a name
// are rejected; a missing id becomes svc_{i}.
func SanitizeService(v any, i int) (scoping.Service, bool) {
	m, ok := normalization.Map(v)
	if !ok {
		return scoping.Service{}, false
	}
	name := normalization.String(normalization.Pick(m, "name", "title", "service"))
	if name == "" {
		return scoping.Service{}, false
	}
	id := normalization.String(m["id"])
	if id == "" {
		id = fmt.Sprintf("svc_%d", i)
	}
	svc := scoping.Service{
		ID:                     id,
		Name:                   name,
		Description:            normalization.String(m["description"]),
		Phase:                  scoping.NormalizePhase(normalization.String(normalization.Pick(m, "phase", "stage"))),
		Quantity:               1,
		ScalingFactors:         factorKeys(normalization.Pick(m, "scalingFactors", "scaling_factors")),
		CalculationRules:       sanitizeRules(normalization.Pick(m, "calculationRules", "calculation_rules")),
		ServiceDescription:     normalization.String(normalization.Pick(m, "serviceDescription", "service_description")),
		KeyAssumptions:         normalization.Strings(normalization.Pick(m, "keyAssumptions", "key_assumptions", "assumptions")),
		ClientResponsibilities: normalization.Strings(normalization.Pick(m, "clientResponsibilities", "client_responsibilities")),
		OutOfScope:             normalization.Strings(normalization.Pick(m, "outOfScope", "out_of_scope")),
	}

	rawSubs, _ := normalization.Slice(normalization.Pick(m, "subservices", "sub_services", "subServices", "tasks"))
	svc.Subservices = make([]scoping.Subservice, 0, len(rawSubs))
	for j, item := range rawSubs {
		if sub, ok := SanitizeSubservice(item, i, j); ok {
			svc.Subservices = append(svc.Subservices, sub)
		}
	}

	hours, given := normalization.Float(normalization.Pick(m, "hours", "totalHours", "total_hours", "estimatedHours"))
	if !given || hours < 0 {
		hours = DefaultServiceHours
	}
	if len(svc.Subservices) > 0 {
		if !given || hours <= 0 {
			hours = 0
			for _, sub := range svc.Subservices {
				hours += sub.Hours
			}
		}
	} else {
		svc.BaseHours = positiveOr(normalization.Pick(m, "baseHours", "base_hours"), hours)
	}
	svc.Hours = normalization.Round2(hours)
	return svc, true
}

// SanitizeSubservice maps one loosely shaped subservice of service i.
func SanitizeSubservice(v any, i, j int) (scoping.Subservice, bool) {
	m, ok := normalization.Map(v)
	if !ok {
		return scoping.Subservice{}, false
	}
	name := normalization.String(normalization.Pick(m, "name", "title"))
	if name == "" {
		return scoping.Subservice{}, false
	}
	id := normalization.String(m["id"])
	if id == "" {
		id = fmt.Sprintf("sub_%d_%d", i, j)
	}
	base := positiveOr(normalization.Pick(m, "baseHours", "base_hours", "hoursPerUnit", "hours_per_unit", "hours"), DefaultSubserviceHours)
	qty := 1.0
	if q, ok := normalization.Float(m["quantity"]); ok && q >= 0 {
		qty = normalization.Round2(q)
	}
	mult := positiveOr(m["multiplier"], 1)
	sub := scoping.Subservice{
		ID:               id,
		Name:             name,
		Description:      normalization.String(m["description"]),
		BaseHours:        base,
		Quantity:         qty,
		Multiplier:       mult,
		Hours:            normalization.Round2(qty * base * mult),
		ScalingFactors:   factorKeys(normalization.Pick(m, "scalingFactors", "scaling_factors", "factors")),
		QuantityDriver:   scoping.CanonicalFactorKey(normalization.String(normalization.Pick(m, "quantityDriver", "quantity_driver", "driver"))),
		CalculationRules: sanitizeRules(normalization.Pick(m, "calculationRules", "calculation_rules", "rules")),
		MappedQuestions:  normalization.Strings(normalization.Pick(m, "mappedQuestions", "mapped_questions")),
	}
	return sub, true
}

func sanitizeRules(v any) *scoping.CalculationRules {
	m, ok := normalization.Map(v)
	if !ok {
		return nil
	}
	r := &scoping.CalculationRules{
		Quantity:   normalization.String(m["quantity"]),
		Multiplier: normalization.String(m["multiplier"]),
		Included:   normalization.String(normalization.Pick(m, "included", "include")),
	}
	if r.Empty() {
		return nil
	}
	return r
}

func factorKeys(v any) []string {
	raw := normalization.Strings(v)
	out := make([]string, 0, len(raw))
	seen := map[string]bool{}
	for _, s := range raw {
		k := scoping.CanonicalFactorKey(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// SanitizeQuestions keeps questions with text and a usable type.
func SanitizeQuestions(v any) []scoping.Question {
	raw, _ := normalization.Slice(v)
	out := make([]scoping.Question, 0, len(raw))
	for i, item := range raw {
		if q, ok := SanitizeQuestion(item, i); ok {
			out = append(out, q)
		}
	}
	return out
}

func SanitizeQuestion(v any, i int) (scoping.Question, bool) {
	m, ok := normalization.Map(v)
	if !ok {
		return scoping.Question{}, false
	}
	text := normalization.String(normalization.Pick(m, "text", "question", "prompt"))
	if text == "" {
		return scoping.Question{}, false
	}
	options := normalization.Strings(m["options"])
	qt, ok := scoping.ParseQuestionType(normalization.String(m["type"]))
	if !ok {
		qt = scoping.QuestionText
		if len(options) > 0 {
			qt = scoping.QuestionMultipleChoice
		}
	}
	if qt == scoping.QuestionMultipleChoice && len(options) == 0 {
		qt = scoping.QuestionText
	}
	if qt != scoping.QuestionMultipleChoice {
		options = nil
	}

	q := scoping.Question{
		ID:              normalization.String(m["id"]),
		Text:            text,
		Slug:            normalization.String(m["slug"]),
		Type:            qt,
		Options:         options,
		Required:        true,
		MappingKey:      scoping.CanonicalFactorKey(normalization.String(normalization.Pick(m, "mappingKey", "mapping_key", "factor"))),
		CalculationType: scoping.ParseCalculationType(normalization.String(normalization.Pick(m, "calculationType", "calculation_type"))),
		DefaultValue:    defaultValue(qt, normalization.Pick(m, "defaultValue", "default_value", "default")),
		Impacts:         normalization.Strings(m["impacts"]),
	}
	if c, ok := scoping.ParseCategory(normalization.String(m["category"])); ok {
		q.Category = c
	}
	if q.ID == "" {
		q.ID = fmt.Sprintf("q_%d", i)
	}
	if q.Slug == "" {
		q.Slug = fallbackSlug(q, i)
	}
	return q, true
}

func defaultValue(qt scoping.QuestionType, v any) any {
	switch qt {
	case scoping.QuestionNumber:
		if f, ok := normalization.Float(v); ok {
			return f
		}
		return nil
	case scoping.QuestionBoolean:
		if b, ok := normalization.Bool(v); ok {
			return b
		}
		return nil
	default:
		if s := normalization.String(v); s != "" {
			return s
		}
		return nil
	}
}

func fallbackSlug(q scoping.Question, i int) string {
	s := q.MappingKey
	if s == "" {
		s = scoping.CanonicalFactorKey(q.ID)
	}
	if s == "" {
		s = fmt.Sprintf("q_%d", i)
	}
	return strings.TrimRight(normalization.Truncate(s, 15), "_")
}

// SanitizeCalculations keeps records with an id or a name.
func SanitizeCalculations(v any) []scoping.Calculation {
	raw, _ := normalization.Slice(v)
	out := make([]scoping.Calculation, 0, len(raw))
	for i, item := range raw {
		m, ok := normalization.Map(item)
		if !ok {
			continue
		}
		id := normalization.String(m["id"])
		name := normalization.String(m["name"])
		if id == "" && name == "" {
			continue
		}
		if id == "" {
			id = fmt.Sprintf("calc_%d", i)
		}
		if name == "" {
			name = id
		}
		value := m["value"]
		if value == nil {
			value = 0.0
		}
		out = append(out, scoping.Calculation{
			ID:              id,
			Name:            name,
			Value:           value,
			Unit:            normalization.String(m["unit"]),
			Source:          normalization.String(m["source"]),
			Formula:         normalization.String(m["formula"]),
			MappedQuestions: normalization.Strings(m["mappedQuestions"]),
			MappedServices:  normalization.Strings(m["mappedServices"]),
		})
	}
	return out
}

func positiveOr(v any, def float64) float64 {
	if f, ok := normalization.Float(v); ok && f >= 0 {
		return f
	}
	return def
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "missing"
	case map[string]any:
		return "an object"
	case string:
		return "a string"
	default:
		return fmt.Sprintf("%T", v)
	}
}
