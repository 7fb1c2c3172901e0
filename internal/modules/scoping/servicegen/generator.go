package servicegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/prompts"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/validation"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

var (
	ErrUnparseable       = errors.New("servicegen: response is not a service list")
	ErrTooFewServices    = errors.New("servicegen: too few services")
	ErrTooFewSubservices = errors.New("servicegen: too few subservices")
	ErrPhaseCoverage     = errors.New("servicegen: insufficient phase coverage")
)

// GenerationError reports why a generated service list was rejected.
type GenerationError struct {
	Err         error
	Services    int
	Subservices int
	Coverage    float64
	Missing     []scoping.Phase
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("%v (services=%d subservices=%d coverage=%.0f%%)", e.Err, e.Services, e.Subservices, e.Coverage*100)
	if len(e.Missing) > 0 {
		names := make([]string, 0, len(e.Missing))
		for _, p := range e.Missing {
			names = append(names, string(p))
		}
		msg += " missing phases: " + strings.Join(names, ", ")
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

type Thresholds struct {
	MinServices      int
	MinSubservices   int
	MinPhaseCoverage float64
}

func ThresholdsFrom(cfg config.PipelineConfig) Thresholds {
	th := Thresholds{
		MinServices:      cfg.MinServices,
		MinSubservices:   cfg.MinSubservices,
		MinPhaseCoverage: cfg.MinPhaseCoverage,
	}
	if th.MinServices <= 0 {
		th.MinServices = 4
	}
	if th.MinSubservices <= 0 {
		th.MinSubservices = 12
	}
	if th.MinPhaseCoverage <= 0 {
		th.MinPhaseCoverage = 0.6
	}
	return th
}

// Request carries everything one generation needs. Model and Extra are
// optional per-request overrides.
type Request struct {
	UserRequest string
	Technology  string
	Research    scoping.ResearchData
	Model       string
	Extra       string
}

type Generator struct {
	llm   llm.Client
	log   *logger.Logger
	model string
	th    Thresholds
}

func New(client llm.Client, model string, th Thresholds, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{llm: client, log: log.With("component", "ServiceGenerator"), model: model, th: th}
}

// GenerateServices produces phase-structured services for userRequest.
func (g *Generator) GenerateServices(ctx context.Context, research scoping.ResearchData, userRequest string) ([]scoping.Service, error) {
	return g.Generate(ctx, Request{UserRequest: userRequest, Research: research})
}

// Generate runs one completion and validates the result. Falling below
// any threshold is an error; no fallback services are ever synthesized.
func (g *Generator) Generate(ctx context.Context, req Request) ([]scoping.Service, error) {
	start := time.Now()
	researchJSON, err := json.Marshal(req.Research)
	if err != nil {
		return nil, fmt.Errorf("servicegen: encode research: %w", err)
	}
	p, err := prompts.Build(prompts.PromptServices, prompts.Input{
		UserRequest:    req.UserRequest,
		Technology:     req.Technology,
		ResearchJSON:   string(researchJSON),
		PhasesCSV:      phasesCSV(),
		MinServices:    g.th.MinServices,
		MinSubservices: g.th.MinSubservices,
		Extra:          req.Extra,
	})
	if err != nil {
		return nil, fmt.Errorf("servicegen: %w", err)
	}

	model := req.Model
	if model == "" {
		model = g.model
	}
	raw, err := g.llm.Complete(llm.WithPhase(ctx, llm.PhaseServices), llm.Prompt(model, p.System, p.User))
	if err != nil {
		return nil, fmt.Errorf("servicegen: completion: %w", err)
	}

	services, err := Parse(raw)
	if err != nil {
		g.log.Warn("service response unusable", "model", model, "bytes", len(raw), "error", err.Error())
		return nil, err
	}
	if err := Check(services, g.th); err != nil {
		g.log.Warn("service generation rejected", "model", model, "error", err.Error())
		return nil, err
	}

	g.log.Info("services generated",
		"model", model,
		"services", len(services),
		"subservices", countSubservices(services),
		"coverage", scoping.PhaseCoverage(services),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return services, nil
}

// Parse reads a service list from raw model output. Both a bare array and
// an object with a "services" array are accepted.
func Parse(raw string) ([]scoping.Service, error) {
	v, err := normalization.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if m, ok := normalization.Map(v); ok {
		v = normalization.Pick(m, "services", "Services", "serviceList")
	}
	services, err := validation.SanitizeServices(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return services, nil
}

// Check enforces the volume and phase coverage thresholds.
func Check(services []scoping.Service, th Thresholds) error {
	gerr := &GenerationError{
		Services:    len(services),
		Subservices: countSubservices(services),
		Coverage:    scoping.PhaseCoverage(services),
	}
	switch {
	case gerr.Services < th.MinServices:
		gerr.Err = ErrTooFewServices
	case gerr.Subservices < th.MinSubservices:
		gerr.Err = ErrTooFewSubservices
	case gerr.Coverage < th.MinPhaseCoverage:
		gerr.Err = ErrPhaseCoverage
		gerr.Missing = missingPhases(services)
	default:
		return nil
	}
	return gerr
}

func countSubservices(services []scoping.Service) int {
	n := 0
	for _, svc := range services {
		n += len(svc.Subservices)
	}
	return n
}

func missingPhases(services []scoping.Service) []scoping.Phase {
	covered := map[scoping.Phase]bool{}
	for _, p := range scoping.CoveredPhases(services) {
		covered[p] = true
	}
	var out []scoping.Phase
	for _, p := range scoping.Phases() {
		if !covered[p] {
			out = append(out, p)
		}
	}
	return out
}

func phasesCSV() string {
	names := make([]string, 0, len(scoping.Phases()))
	for _, p := range scoping.Phases() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
