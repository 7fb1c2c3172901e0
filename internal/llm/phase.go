package llm

import "context"

type phaseKey struct{}

// Pipeline phases used to label gateway calls.
const (
	PhaseResearch         = "research"
	PhaseResearchEnhance  = "research_enhance"
	PhaseServices         = "services"
	PhaseQuestions        = "questions"
	PhaseContextQuestions = "context_questions"
)

// WithPhase tags ctx with the pipeline phase issuing the call.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseKey{}, phase)
}

func PhaseFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(phaseKey{}).(string); ok {
		return v
	}
	return ""
}
