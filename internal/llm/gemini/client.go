package gemini

import (
	"context"
	"errors"
	"strings"

	genai "google.golang.org/genai"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
)

// DefaultModel is used when a request names an OpenRouter-style model
// ("vendor/model") that Gemini cannot serve.
const DefaultModel = "gemini-2.0-flash"

type Engine struct {
	cli *genai.Client
}

func New(ctx context.Context, apiKey string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Engine{cli: cli}, nil
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := req.Valid(); err != nil {
		return "", err
	}
	cfg := &genai.GenerateContentConfig{}
	var user []string
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
			continue
		}
		user = append(user, m.Content)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := e.cli.Models.GenerateContent(ctx, ModelName(req.Model),
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: strings.Join(user, "\n\n")}}}},
		cfg,
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", llm.ErrEmptyCompletion
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", llm.ErrEmptyCompletion
	}
	return b.String(), nil
}

// ModelName maps a configured model id onto a Gemini model name.
func ModelName(model string) string {
	model = strings.TrimSpace(model)
	if rest, ok := strings.CutPrefix(model, "google/"); ok {
		model = rest
	}
	if model == "" || strings.Contains(model, "/") || !strings.HasPrefix(model, "gemini") {
		return DefaultModel
	}
	return model
}
