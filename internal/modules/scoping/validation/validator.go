package validation

import (
	"errors"
	"fmt"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

var ErrInvalidServices = errors.New("validation: invalid services")

const (
	DefaultTechnology = "Technology Solution"
	DefaultTotalHours = 40.0
)

type Validator struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Validator {
	if log == nil {
		log = logger.Nop()
	}
	return &Validator{log: log.With("component", "ContentValidator")}
}

// Validate coerces draft into a guaranteed-shape GeneratedContent. draft may
// be a GeneratedContent, a map decoded from JSON or anything that marshals
// to the same shape. Only the services check is fatal.
func (v *Validator) Validate(draft any) (scoping.GeneratedContent, error) {
	generic, err := normalization.Generic(draft)
	if err != nil {
		return scoping.GeneratedContent{}, fmt.Errorf("validation: encode draft: %w", err)
	}
	m, ok := normalization.Map(generic)
	if !ok {
		return scoping.GeneratedContent{}, fmt.Errorf("%w: content is %s, not an object", ErrInvalidServices, kindOf(generic))
	}

	services, err := SanitizeServices(m["services"])
	if err != nil {
		v.log.Warn("content rejected", "error", err.Error())
		return scoping.GeneratedContent{}, err
	}

	out := scoping.GeneratedContent{
		Technology:      normalization.String(m["technology"]),
		Services:        services,
		Questions:       SanitizeQuestions(m["questions"]),
		Calculations:    SanitizeCalculations(m["calculations"]),
		Sources:         SanitizeSources(m["sources"]),
		ResearchSummary: normalization.String(m["researchSummary"]),
		KeyInsights:     normalization.Strings(m["keyInsights"]),
		Confidence:      normalization.Clamp(normalization.FloatOr(m["confidence"], 0), 0, 1),
		RunID:           normalization.String(m["runId"]),
	}
	if len(out.KeyInsights) == 0 {
		out.KeyInsights = nil
	}
	if out.Technology == "" {
		out.Technology = DefaultTechnology
	}
	if len(out.Questions) == 0 {
		v.log.Debug("no valid questions, using defaults")
		out.Questions = DefaultQuestions()
	}

	out.TotalHours = DefaultTotalHours
	if th, ok := normalization.Float(m["totalHours"]); ok && th > 0 {
		out.TotalHours = normalization.Round2(th)
	}
	if len(out.Calculations) == 0 {
		out.Calculations = []scoping.Calculation{DefaultCalculation(out.TotalHours)}
	}
	if ts, ok := draft.(scoping.GeneratedContent); ok {
		out.CreatedAt = ts.CreatedAt
	} else if ts, ok := draft.(*scoping.GeneratedContent); ok && ts != nil {
		out.CreatedAt = ts.CreatedAt
	}
	return out, nil
}

// DefaultQuestions are the scope and size questions used when none survive.
func DefaultQuestions() []scoping.Question {
	return []scoping.Question{
		{
			ID:              "q_scope",
			Text:            "What is the overall scope of this project?",
			Slug:            "project_scope",
			Type:            scoping.QuestionText,
			Required:        true,
			CalculationType: scoping.CalcQuantity,
			Impacts:         []string{},
			Category:        scoping.CategoryScale,
		},
		{
			ID:              "q_size",
			Text:            "How many users will be affected?",
			Slug:            "user_qty",
			Type:            scoping.QuestionNumber,
			Required:        true,
			MappingKey:      "user_count",
			CalculationType: scoping.CalcQuantity,
			DefaultValue:    100.0,
			Impacts:         []string{},
			Category:        scoping.CategoryScale,
		},
	}
}

func DefaultCalculation(totalHours float64) scoping.Calculation {
	return scoping.Calculation{
		ID:              "calc_total_hours",
		Name:            "Total Project Hours",
		Value:           totalHours,
		Unit:            "hours",
		Source:          "Estimated total effort",
		MappedQuestions: []string{},
		MappedServices:  []string{},
	}
}
