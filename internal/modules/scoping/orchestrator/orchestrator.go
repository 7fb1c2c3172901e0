// Package orchestrator runs the research-to-scope pipeline: research,
// services, questions, calculations and validation, in that order, with a
// streaming event for every step transition.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/calc"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/questions"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/research"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/servicegen"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/validation"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/ctxutil"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

const maxTechnologyLen = 60

// PromptExtras are caller instructions appended to the stage prompts.
type PromptExtras struct {
	Research string `json:"research,omitempty"`
	Analysis string `json:"analysis,omitempty"`
	Parsing  string `json:"parsing,omitempty"`
}

type Request struct {
	Input   string
	Models  config.ModelSet
	Prompts PromptExtras

	// RunID is generated when empty.
	RunID string
}

type Orchestrator struct {
	research  *research.Engine
	services  *servicegen.Generator
	questions *questions.Generator
	calc      *calc.Engine
	validator *validation.Validator

	models  config.ModelSet
	metrics *observability.Metrics
	log     *logger.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// Components are the pipeline stages. They are built once at start-up
// and shared by every run.
type Components struct {
	Research  *research.Engine
	Services  *servicegen.Generator
	Questions *questions.Generator
	Calc      *calc.Engine
	Validator *validation.Validator
}

// NewComponents builds every stage against one completion client, with
// models and limits taken from configuration.
func NewComponents(client llm.Client, models config.ModelSet, pipeline config.PipelineConfig, log *logger.Logger) Components {
	return Components{
		Research: research.New(client, research.Options{
			Model:              models.Research,
			SourceCount:        pipeline.ResearchSources,
			EnhanceSources:     pipeline.EnhanceSources,
			EnhanceConcurrency: pipeline.EnhanceConcurrency,
		}, log),
		Services: servicegen.New(client, models.Analysis, servicegen.ThresholdsFrom(pipeline), log),
		Questions: questions.New(client, questions.Options{
			FactorModel:         models.Content,
			ContextModel:        models.Format,
			MaxContextQuestions: pipeline.MaxContextQuestions,
		}, log),
		Calc:      calc.New(log),
		Validator: validation.New(log),
	}
}

// New assembles an orchestrator from prebuilt stages. The model-backed
// stages are required; calc and validation default to fresh instances.
func New(c Components, models config.ModelSet, log *logger.Logger, metrics *observability.Metrics) (*Orchestrator, error) {
	if c.Research == nil || c.Services == nil || c.Questions == nil {
		return nil, errors.New("orchestrator: research, services and questions stages are required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if c.Calc == nil {
		c.Calc = calc.New(log)
	}
	if c.Validator == nil {
		c.Validator = validation.New(log)
	}
	return &Orchestrator{
		research:  c.Research,
		services:  c.Services,
		questions: c.Questions,
		calc:      c.Calc,
		validator: c.Validator,
		models:    models,
		metrics:   metrics,
		log:       log.With("component", "Orchestrator"),
		tracer:    observability.Tracer("scoping/orchestrator"),
		now:       time.Now,
	}, nil
}

// Run executes the pipeline for req.Input. Events go to sink as they
// happen; a failed run ends with an error event and never with complete.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) (scoping.GeneratedContent, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	input := strings.TrimSpace(req.Input)
	models := o.models.Merge(req.Models)
	log := o.log.With(append([]interface{}{"run_id", runID}, ctxutil.LogFields(ctx)...)...)
	m := newMachine(runID, sink)
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "scoping.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	content, err := o.run(ctx, m, log, runID, input, models, req.Prompts)
	if err != nil {
		m.fail(err)
		status := "failed"
		if ctx.Err() != nil {
			status = "canceled"
		}
		o.metrics.IncRun(status)
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		log.Warn("run failed", "step", string(m.current()), "status", status, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return scoping.GeneratedContent{}, err
	}

	o.metrics.IncRun("completed")
	log.Info("run complete",
		"services", len(content.Services),
		"questions", len(content.Questions),
		"total_hours", content.TotalHours,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (o *Orchestrator) run(ctx context.Context, m *machine, log *logger.Logger, runID, input string, models config.ModelSet, extras PromptExtras) (scoping.GeneratedContent, error) {
	if input == "" {
		return scoping.GeneratedContent{}, errors.New("orchestrator: input is empty")
	}

	var data scoping.ResearchData
	err := o.stage(ctx, m, scoping.StepResearch, func(ctx context.Context) error {
		var err error
		data, err = o.research.Research(ctx, research.Request{
			UserRequest: input,
			Model:       models.Research,
			Extra:       extras.Research,
			Progress: func(done, total int) {
				m.report(done, total, fmt.Sprintf("Enhanced %d of %d sources", done, total))
			},
		})
		if err == nil && len(data.Sources) == 0 {
			o.metrics.IncDegraded(string(scoping.StepResearch))
			log.Info("continuing without research sources")
		}
		return err
	})
	if err != nil {
		return scoping.GeneratedContent{}, err
	}
	technology := data.Technology
	if technology == "" {
		technology = TechnologyFromInput(input)
	}

	var services []scoping.Service
	err = o.stage(ctx, m, scoping.StepServices, func(ctx context.Context) error {
		var err error
		services, err = o.services.Generate(ctx, servicegen.Request{
			UserRequest: input,
			Technology:  technology,
			Research:    data,
			Model:       models.Analysis,
			Extra:       extras.Analysis,
		})
		return err
	})
	if err != nil {
		return scoping.GeneratedContent{}, err
	}

	var qs []scoping.Question
	err = o.stage(ctx, m, scoping.StepQuestions, func(ctx context.Context) error {
		var err error
		qs, err = o.questions.Generate(ctx, questions.Request{
			UserRequest:  input,
			Research:     data,
			Services:     services,
			FactorModel:  models.Content,
			ContextModel: models.Format,
			Extra:        extras.Parsing,
		})
		return err
	})
	if err != nil {
		return scoping.GeneratedContent{}, err
	}

	var content scoping.GeneratedContent
	err = o.stage(ctx, m, scoping.StepCalculations, func(ctx context.Context) error {
		created := o.now().UTC()
		draft := o.compute(scoping.GeneratedContent{
			Technology:      technology,
			Questions:       qs,
			Services:        services,
			Sources:         data.Sources,
			ResearchSummary: data.ResearchSummary,
			KeyInsights:     data.KeyInsights,
			Confidence:      data.Confidence,
			RunID:           runID,
			CreatedAt:       &created,
		}, nil)
		var err error
		content, err = o.validator.Validate(draft)
		return err
	})
	if err != nil {
		return scoping.GeneratedContent{}, err
	}

	if err := m.finish(&content); err != nil {
		return scoping.GeneratedContent{}, err
	}
	return content, nil
}

// stage runs fn as step, bracketed by its step events. Cancellation is
// checked before fn so no gateway call starts after ctx is done.
func (o *Orchestrator) stage(ctx context.Context, m *machine, step scoping.StepID, fn func(context.Context) error) error {
	if err := m.start(step); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := o.tracer.Start(ctx, "scoping."+string(step))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.metrics.ObserveStage(string(step), status, time.Since(start))
	o.log.Debug("stage finished", "step", string(step), "status", status, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		return err
	}
	return m.complete(step)
}

// ApplyResponses recomputes services, calculations and total hours of
// content for a new set of answers. No model is called.
func (o *Orchestrator) ApplyResponses(content scoping.GeneratedContent, responses map[string]any) (scoping.GeneratedContent, error) {
	start := time.Now()
	out, err := o.validator.Validate(o.compute(content, responses))
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.ObserveStage("apply", status, time.Since(start))
	return out, err
}

func (o *Orchestrator) compute(content scoping.GeneratedContent, responses map[string]any) scoping.GeneratedContent {
	rm := calc.BuildResponseMap(content.Questions, responses)
	content.Services = o.calc.ApplyResponseMap(content.Services, rm)
	calc.MapQuestions(content.Services, content.Questions)
	content.Calculations = o.calc.GenerateCalculations(content.Services, content.Questions, rm)
	content.TotalHours = calc.TotalHours(content.Services)
	return content
}

// TechnologyFromInput names the project from its description when research
// gave no name: the first line, cut at a word boundary.
func TechnologyFromInput(input string) string {
	line := strings.TrimSpace(input)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimRight(line, ".!?")
	if len(line) <= maxTechnologyLen {
		return line
	}
	cut := normalization.Truncate(line, maxTechnologyLen)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
