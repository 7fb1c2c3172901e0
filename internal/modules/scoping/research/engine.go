package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/prompts"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/validation"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

var ErrNoResearch = errors.New("research: response has no research payload")

type Options struct {
	Model       string
	SourceCount int

	// EnhanceSources is how many of the most relevant sources get a
	// follow-up call; 0 disables enhancement.
	EnhanceSources     int
	EnhanceConcurrency int
}

// ProgressFunc reports enhancement progress.
type ProgressFunc func(done, total int)

type Request struct {
	UserRequest string
	Model       string
	Extra       string
	Progress    ProgressFunc
}

type Engine struct {
	llm  llm.Client
	log  *logger.Logger
	opts Options
}

func New(client llm.Client, opts Options, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if opts.SourceCount <= 0 {
		opts.SourceCount = 8
	}
	if opts.EnhanceConcurrency <= 0 {
		opts.EnhanceConcurrency = 3
	}
	if opts.EnhanceConcurrency > 5 {
		opts.EnhanceConcurrency = 5
	}
	return &Engine{llm: client, log: log.With("component", "ResearchEngine"), opts: opts}
}

// PerformResearch discovers and ranks sources for userRequest.
func (e *Engine) PerformResearch(ctx context.Context, userRequest string) (scoping.ResearchData, error) {
	return e.Research(ctx, Request{UserRequest: userRequest})
}

// Research is advisory: any failure yields empty research data. The only
// error returned is ctx's own.
func (e *Engine) Research(ctx context.Context, req Request) (scoping.ResearchData, error) {
	start := time.Now()
	p, err := prompts.Build(prompts.PromptResearch, prompts.Input{
		UserRequest: req.UserRequest,
		SourceCount: e.opts.SourceCount,
		Extra:       req.Extra,
	})
	if err != nil {
		e.log.Warn("research prompt failed", "error", err.Error())
		return scoping.EmptyResearch(), nil
	}

	model := req.Model
	if model == "" {
		model = e.opts.Model
	}
	raw, err := e.llm.Complete(llm.WithPhase(ctx, llm.PhaseResearch), llm.Prompt(model, p.System, p.User))
	if err != nil {
		if ctx.Err() != nil {
			return scoping.EmptyResearch(), ctx.Err()
		}
		e.log.Warn("research call failed, continuing without sources", "model", model, "error", err.Error())
		return scoping.EmptyResearch(), nil
	}

	data, err := Parse(raw)
	if err != nil {
		e.log.Warn("research response unusable, continuing without sources", "model", model, "bytes", len(raw), "error", err.Error())
		return scoping.EmptyResearch(), nil
	}

	if e.opts.EnhanceSources > 0 && len(data.Sources) > 0 {
		if err := e.enhance(ctx, req, model, data.Sources); err != nil {
			return scoping.EmptyResearch(), err
		}
	}

	e.log.Info("research complete",
		"model", model,
		"sources", len(data.Sources),
		"confidence", data.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// Parse reads research data from raw model output. A bare array is taken
// as the source list.
func Parse(raw string) (scoping.ResearchData, error) {
	v, err := normalization.Parse(raw)
	if err != nil {
		return scoping.EmptyResearch(), err
	}
	data := scoping.EmptyResearch()
	switch t := v.(type) {
	case []any:
		data.Sources = validation.SanitizeSources(t)
	case map[string]any:
		data.Technology = normalization.String(normalization.Pick(t, "technology", "topic"))
		data.Sources = validation.SanitizeSources(normalization.Pick(t, "sources", "references"))
		data.ResearchSummary = normalization.String(normalization.Pick(t, "researchSummary", "research_summary", "summary"))
		data.KeyInsights = normalization.Strings(normalization.Pick(t, "keyInsights", "key_insights", "insights"))
		data.Confidence = normalization.Clamp(normalization.FloatOr(t["confidence"], 0), 0, 1)
	default:
		return scoping.EmptyResearch(), ErrNoResearch
	}
	if len(data.Sources) == 0 && data.ResearchSummary == "" {
		return scoping.EmptyResearch(), ErrNoResearch
	}
	return data, nil
}

// enhance refines the most relevant sources in place. Individual failures
// keep the original source.
func (e *Engine) enhance(ctx context.Context, req Request, model string, sources []scoping.ResearchSource) error {
	order := make([]int, len(sources))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sources[order[a]].Relevance > sources[order[b]].Relevance
	})
	n := e.opts.EnhanceSources
	if n > len(order) {
		n = len(order)
	}
	targets := order[:n]

	var (
		mu     sync.Mutex
		done   int
		failed int
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.opts.EnhanceConcurrency)
	for _, idx := range targets {
		idx := idx
		eg.Go(func() error {
			if egctx.Err() != nil {
				return egctx.Err()
			}
			improved, err := e.enhanceOne(egctx, req, model, sources[idx])

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed++
				e.log.Warn("source enhancement failed", "url", sources[idx].URL, "error", err.Error())
			} else {
				sources[idx] = improved
			}
			if req.Progress != nil {
				req.Progress(done, n)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	e.log.Debug("sources enhanced", "attempted", n, "failed", failed)
	return nil
}

func (e *Engine) enhanceOne(ctx context.Context, req Request, model string, src scoping.ResearchSource) (scoping.ResearchSource, error) {
	b, err := json.Marshal(src)
	if err != nil {
		return src, err
	}
	p, err := prompts.Build(prompts.PromptResearchEnhance, prompts.Input{UserRequest: req.UserRequest, SourceJSON: string(b)})
	if err != nil {
		return src, err
	}
	raw, err := e.llm.Complete(llm.WithPhase(ctx, llm.PhaseResearchEnhance), llm.Prompt(model, p.System, p.User))
	if err != nil {
		return src, err
	}
	v, err := normalization.Parse(raw)
	if err != nil {
		return src, err
	}
	m, ok := normalization.Map(v)
	if !ok {
		return src, fmt.Errorf("research: enhancement is not an object")
	}
	out := src
	if s := normalization.String(m["summary"]); s != "" {
		out.Summary = s
	}
	if c := normalization.String(m["credibility"]); c != "" {
		out.Credibility = scoping.ParseCredibility(c)
	}
	if r, ok := normalization.Float(m["relevance"]); ok {
		out.Relevance = normalization.Clamp(r, 0, 1)
	}
	return out, nil
}
