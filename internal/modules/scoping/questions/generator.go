package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/calc"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/prompts"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/validation"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

type Options struct {
	// FactorModel writes the per-factor questions, ContextModel the
	// supplementary ones.
	FactorModel  string
	ContextModel string

	// MaxContextQuestions <= 0 disables supplementary questions.
	MaxContextQuestions int
}

type Request struct {
	UserRequest string
	Research    scoping.ResearchData
	Services    []scoping.Service

	FactorModel  string
	ContextModel string
	Extra        string
}

type Generator struct {
	llm  llm.Client
	log  *logger.Logger
	opts Options
}

func New(client llm.Client, opts Options, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{llm: client, log: log.With("component", "QuestionGenerator"), opts: opts}
}

// GenerateQuestions yields one question per scaling factor the services
// reference plus a few context questions for uncovered categories.
func (g *Generator) GenerateQuestions(ctx context.Context, services []scoping.Service, research scoping.ResearchData, userRequest string) ([]scoping.Question, error) {
	return g.Generate(ctx, Request{UserRequest: userRequest, Research: research, Services: services})
}

// Generate never fails on model output: factor questions fall back to the
// template table and context questions are dropped. Only cancellation of
// ctx is returned.
func (g *Generator) Generate(ctx context.Context, req Request) ([]scoping.Question, error) {
	start := time.Now()
	factors := calc.ReferencedFactors(req.Services)
	covered, missing := categoryCoverage(factors)

	var (
		aiFactor  map[string]scoping.Question
		aiContext []scoping.Question
	)
	eg, egctx := errgroup.WithContext(ctx)
	if len(factors) > 0 {
		eg.Go(func() error {
			qs, err := g.factorQuestions(egctx, req, factors)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				g.log.Warn("factor questions fell back to templates", "factors", len(factors), "error", err.Error())
				return nil
			}
			aiFactor = qs
			return nil
		})
	}
	if g.opts.MaxContextQuestions > 0 && len(missing) > 0 {
		eg.Go(func() error {
			qs, err := g.contextQuestions(egctx, req, covered, missing)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				g.log.Warn("context questions skipped", "error", err.Error())
				return nil
			}
			aiContext = qs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slugger := NewSlugger()
	out := make([]scoping.Question, 0, len(factors)+len(aiContext))
	fallbacks := 0
	for _, factor := range factors {
		q, ok := aiFactor[factor]
		if !ok {
			q = TemplateQuestion(factor)
			fallbacks++
		}
		q = completeFactorQuestion(q, factor)
		q.ID = fmt.Sprintf("q_%d", len(out))
		q.Slug = slugger.Next(q.Text)
		q.Impacts = FactorImpacts(req.Services, factor)
		out = append(out, q)
	}

	seen := map[string]bool{}
	for _, q := range out {
		seen[strings.ToLower(q.Text)] = true
	}
	for _, q := range aiContext {
		key := strings.ToLower(q.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		q.ID = fmt.Sprintf("q_%d", len(out))
		q.Slug = slugger.Next(q.Text)
		q.MappingKey = ""
		q.Required = true
		q.Impacts = KeywordImpacts(req.Services, q.Text)
		out = append(out, q)
	}

	g.log.Info("questions generated",
		"factors", len(factors),
		"template_fallbacks", fallbacks,
		"context_questions", len(out)-len(factors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (g *Generator) factorQuestions(ctx context.Context, req Request, factors []string) (map[string]scoping.Question, error) {
	usage := map[string][]string{}
	for _, f := range factors {
		usage[f] = []string{}
	}
	for _, svc := range req.Services {
		for _, sub := range svc.Subservices {
			for _, f := range calc.SubserviceFactors(sub) {
				usage[f] = appendUnique(usage[f], svc.Name)
			}
		}
	}
	factorsJSON, err := json.Marshal(usage)
	if err != nil {
		return nil, err
	}
	researchJSON, err := json.Marshal(map[string]any{
		"researchSummary": req.Research.ResearchSummary,
		"keyInsights":     req.Research.KeyInsights,
	})
	if err != nil {
		return nil, err
	}
	p, err := prompts.Build(prompts.PromptFactorQuestions, prompts.Input{
		UserRequest:  req.UserRequest,
		ResearchJSON: string(researchJSON),
		FactorsJSON:  string(factorsJSON),
		Extra:        req.Extra,
	})
	if err != nil {
		return nil, err
	}

	model := firstNonEmpty(req.FactorModel, g.opts.FactorModel)
	raw, err := g.llm.Complete(llm.WithPhase(ctx, llm.PhaseQuestions), llm.Prompt(model, p.System, p.User))
	if err != nil {
		return nil, err
	}
	parsed, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}

	out := map[string]scoping.Question{}
	for _, q := range parsed {
		key := scoping.CanonicalFactorKey(q.MappingKey)
		if key == "" {
			continue
		}
		if _, wanted := usage[key]; !wanted {
			continue
		}
		if _, dup := out[key]; dup {
			continue
		}
		q.MappingKey = key
		out[key] = q
	}
	return out, nil
}

func (g *Generator) contextQuestions(ctx context.Context, req Request, covered, missing []scoping.Category) ([]scoping.Question, error) {
	type brief struct {
		Name        string   `json:"name"`
		Phase       string   `json:"phase"`
		Subservices []string `json:"subservices"`
	}
	briefs := make([]brief, 0, len(req.Services))
	for _, svc := range req.Services {
		b := brief{Name: svc.Name, Phase: svc.Phase, Subservices: []string{}}
		for _, sub := range svc.Subservices {
			b.Subservices = append(b.Subservices, sub.Name)
		}
		briefs = append(briefs, b)
	}
	servicesJSON, err := json.Marshal(briefs)
	if err != nil {
		return nil, err
	}
	p, err := prompts.Build(prompts.PromptContextQuestions, prompts.Input{
		UserRequest:       req.UserRequest,
		ServicesJSON:      string(servicesJSON),
		CoveredCategories: joinCategories(covered),
		MissingCategories: joinCategories(missing),
		MaxQuestions:      g.opts.MaxContextQuestions,
		Extra:             req.Extra,
	})
	if err != nil {
		return nil, err
	}

	model := firstNonEmpty(req.ContextModel, g.opts.ContextModel)
	raw, err := g.llm.Complete(llm.WithPhase(ctx, llm.PhaseContextQuestions), llm.Prompt(model, p.System, p.User))
	if err != nil {
		return nil, err
	}
	parsed, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}

	isCovered := map[scoping.Category]bool{}
	for _, c := range covered {
		isCovered[c] = true
	}
	out := make([]scoping.Question, 0, g.opts.MaxContextQuestions)
	for _, q := range parsed {
		if q.Category != "" && isCovered[q.Category] {
			continue
		}
		out = append(out, q)
		if len(out) == g.opts.MaxContextQuestions {
			break
		}
	}
	return out, nil
}

func parseQuestions(raw string) ([]scoping.Question, error) {
	v, err := normalization.Parse(raw)
	if err != nil {
		return nil, err
	}
	if m, ok := normalization.Map(v); ok {
		v = normalization.Pick(m, "questions", "Questions", "items")
	}
	if _, ok := normalization.Slice(v); !ok {
		return nil, fmt.Errorf("questions: response has no question list")
	}
	return validation.SanitizeQuestions(v), nil
}

// TemplateQuestion is the canned question for factor.
func TemplateQuestion(factor string) scoping.Question {
	t := scoping.FactorTemplateFor(factor)
	return scoping.Question{
		Text:            t.Text,
		Type:            t.Type,
		Options:         append([]string(nil), t.Options...),
		Required:        true,
		MappingKey:      factor,
		CalculationType: t.CalcType,
		DefaultValue:    t.Default,
		Category:        t.Category,
	}
}

// completeFactorQuestion fills what the model left out from the template.
func completeFactorQuestion(q scoping.Question, factor string) scoping.Question {
	t := scoping.FactorTemplateFor(factor)
	q.MappingKey = factor
	q.Required = true
	if q.DefaultValue == nil {
		q.DefaultValue = t.Default
	}
	if q.Type == scoping.QuestionMultipleChoice && len(q.Options) == 0 {
		q.Options = append([]string(nil), t.Options...)
	}
	if q.Category == "" {
		q.Category = t.Category
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	return q
}

// categoryCoverage splits the scaling categories into those the factors
// already ask about and the rest.
func categoryCoverage(factors []string) (covered, missing []scoping.Category) {
	has := map[scoping.Category]bool{}
	for _, f := range factors {
		has[scoping.ClassifyFactorCategory(f)] = true
	}
	for _, c := range scoping.Categories() {
		if has[c] {
			covered = append(covered, c)
		} else {
			missing = append(missing, c)
		}
	}
	return covered, missing
}

func joinCategories(cs []scoping.Category) string {
	if len(cs) == 0 {
		return "none"
	}
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func appendUnique(xs []string, s string) []string {
	if contains(xs, s) {
		return xs
	}
	return append(xs, s)
}
