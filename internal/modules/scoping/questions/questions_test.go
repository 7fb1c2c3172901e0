package questions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm/mock"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/servicegen"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"How many mailboxes need to be migrated?":            "mailbox_qty",
		"How many users will be migrated?":                   "user_qty",
		"What is the total data volume in GB?":               "data_size",
		"Is end-user training required?":                     "training_req",
		"What is the overall complexity of the environment?": "complexity_lvl",
		"What is the target go-live timeline?":               "golive_time",
		"Describe your preferred cutover approach":           "describe_prefer",
		"???":                                                "question",
	}
	for text, want := range cases {
		got := Slug(text)
		assert.Equal(t, want, got, text)
		assert.LessOrEqual(t, len(got), MaxSlugLen, text)
	}
}

func TestSlugIsStable(t *testing.T) {
	text := "How many mailboxes need to be migrated?"
	first := Slug(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Slug(text))
	}
	assert.Contains(t, first, "mailbox")
	assert.LessOrEqual(t, len(first), 15)
}

func TestSluggerSuffixesCollisions(t *testing.T) {
	s := NewSlugger()
	assert.Equal(t, "mailbox_qty", s.Next("How many mailboxes?"))
	assert.Equal(t, "mailbox_qty_2", s.Next("How many mailboxes are shared?"))
	assert.Equal(t, "mailbox_qty_3", s.Next("How many mailboxes are archived?"))

	s.Reserve("compliance_type")
	got := s.Next("Which compliance framework applies?")
	assert.Equal(t, "compliance_ty_2", got)
	assert.LessOrEqual(t, len(got), MaxSlugLen)
}

func TestSlugNonASCIIStaysValidUTF8(t *testing.T) {
	for text, want := range map[string]string{
		"В каком регионе?":               "в_каком",
		"Сколько пользователей?":         "сколько",
		"Déploiement réseau prévu ?":     "déploiement_r",
		"Wie viele Büros gibt es genau?": "wie_viele_büro",
	} {
		got := Slug(text)
		assert.Equal(t, want, got, text)
		assert.True(t, utf8.ValidString(got), text)
		assert.LessOrEqual(t, len(got), MaxSlugLen, text)
	}

	s := NewSlugger()
	assert.Equal(t, "сколько", s.Next("Сколько пользователей?"))
	got := s.Next("Сколько пользователей?")
	assert.Equal(t, "скольк_2", got)
	assert.True(t, utf8.ValidString(got))
}

func mockServices(t *testing.T) []scoping.Service {
	t.Helper()
	services, err := servicegen.New(mock.New(), "m", servicegen.ThresholdsFrom(config.PipelineConfig{}), nil).
		GenerateServices(context.Background(), scoping.EmptyResearch(), "Migrate to Microsoft 365")
	require.NoError(t, err)
	return services
}

func slugs(qs []scoping.Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Slug)
	}
	return out
}

func TestGenerateWithMockEngine(t *testing.T) {
	services := mockServices(t)
	g := New(mock.New(), Options{FactorModel: "content", ContextModel: "format", MaxContextQuestions: 6}, nil)

	qs, err := g.GenerateQuestions(context.Background(), services, scoping.EmptyResearch(), "Migrate to Microsoft 365")
	require.NoError(t, err)

	require.Len(t, qs, 7)
	assert.Equal(t, []string{"office_qty", "user_qty", "env_lvl", "mailbox_qty", "data_size", "training_req", "golive_time"}, slugs(qs))

	keys := make([]string, 0, 6)
	for _, q := range qs[:6] {
		keys = append(keys, q.MappingKey)
		assert.True(t, q.Required)
	}
	assert.Equal(t, []string{"site_count", "user_count", "complexity", "mailbox_count", "data_volume_gb", "training_required"}, keys)

	users := qs[1]
	assert.Equal(t, "q_1", users.ID)
	assert.Equal(t, 100.0, users.DefaultValue)
	assert.Equal(t, []string{"svc_0", "sub_0_3", "svc_2", "sub_2_3"}, users.Impacts)

	complexity := qs[2]
	assert.Equal(t, scoping.QuestionMultipleChoice, complexity.Type)
	assert.Equal(t, scoping.CalcMultiplier, complexity.CalculationType)

	data := qs[4]
	assert.Equal(t, "What is the total data volume in GB?", data.Text)
	assert.Equal(t, 500.0, data.DefaultValue)

	training := qs[5]
	assert.Equal(t, scoping.QuestionBoolean, training.Type)
	assert.Equal(t, scoping.CalcIncludeExclude, training.CalculationType)
	assert.Equal(t, true, training.DefaultValue)

	timeline := qs[6]
	assert.Empty(t, timeline.MappingKey)
	assert.Equal(t, scoping.CategoryTimeline, timeline.Category)
	assert.Equal(t, []string{"svc_1"}, timeline.Impacts)
}

func TestGenerateFallsBackToTemplates(t *testing.T) {
	services := mockServices(t)
	var calls atomic.Int32
	failing := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		calls.Add(1)
		return "", errors.New("gateway unavailable")
	})

	qs, err := New(failing, Options{MaxContextQuestions: 6}, nil).
		GenerateQuestions(context.Background(), services, scoping.EmptyResearch(), "x")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, qs, 6)
	assert.Equal(t, []string{"site_qty", "user_qty", "complexity_lvl", "mailbox_qty", "data_size", "training_req"}, slugs(qs))
	for _, q := range qs {
		assert.NotEmpty(t, q.Text)
		assert.NotNil(t, q.DefaultValue, q.MappingKey)
	}
	assert.Equal(t, []string{"low", "medium", "high"}, qs[2].Options)
}

func TestGenerateIgnoresUnknownFactorsAndSkipsContext(t *testing.T) {
	services := []scoping.Service{{
		ID: "svc_0", Name: "Deploy",
		Subservices: []scoping.Subservice{{ID: "sub_0_0", Name: "Install", BaseHours: 1, QuantityDriver: "server_count"}},
	}}
	var phases []string
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		phases = append(phases, llm.PhaseFrom(ctx))
		return `{"questions": [
			{"mappingKey": "foo_count", "text": "How many foos?", "type": "number"},
			{"mappingKey": "server_count", "text": "How many servers are being replaced?", "type": "number"}
		]}`, nil
	})

	qs, err := New(client, Options{}, nil).GenerateQuestions(context.Background(), services, scoping.EmptyResearch(), "x")
	require.NoError(t, err)

	assert.Equal(t, []string{llm.PhaseQuestions}, phases)
	require.Len(t, qs, 1)
	assert.Equal(t, "server_count", qs[0].MappingKey)
	assert.Equal(t, "How many servers are being replaced?", qs[0].Text)
	assert.Equal(t, "server_qty", qs[0].Slug)
	assert.Equal(t, 10.0, qs[0].DefaultValue)
	assert.Equal(t, []string{"svc_0", "sub_0_0"}, qs[0].Impacts)
}

func TestGenerateMergesFactorSpellings(t *testing.T) {
	services := []scoping.Service{{
		ID: "svc_0", Name: "Deploy",
		Subservices: []scoping.Subservice{{
			ID: "sub_0_0", Name: "Onboard", BaseHours: 1,
			ScalingFactors:   []string{"userCount"},
			CalculationRules: &scoping.CalculationRules{Quantity: "userCount / 10 || 1"},
		}},
	}}
	failing := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("gateway unavailable")
	})

	qs, err := New(failing, Options{}, nil).GenerateQuestions(context.Background(), services, scoping.EmptyResearch(), "x")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "user_count", qs[0].MappingKey)
	assert.Equal(t, []string{"svc_0", "sub_0_0"}, qs[0].Impacts)
	assert.Equal(t, []string{"svc_0", "sub_0_0"}, FactorImpacts(services, "UserCount"))
}

func TestGenerateNoFactors(t *testing.T) {
	qs, err := New(mock.New(), Options{}, nil).GenerateQuestions(context.Background(), nil, scoping.EmptyResearch(), "x")
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestGenerateStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(mock.New(), Options{MaxContextQuestions: 3}, nil).
		GenerateQuestions(ctx, mockServices(t), scoping.EmptyResearch(), "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestKeywordImpacts(t *testing.T) {
	services := []scoping.Service{
		{ID: "svc_0", Name: "Network Readiness", Description: "Bandwidth review"},
		{ID: "svc_1", Name: "Training", Description: "End-user sessions"},
	}
	assert.Equal(t, []string{"svc_1"}, KeywordImpacts(services, "How many training sessions are needed?"))
	assert.Equal(t, []string{"svc_0"}, KeywordImpacts(services, "Is the network bandwidth sufficient?"))
	assert.Equal(t, []string{}, KeywordImpacts(services, "Who signs off?"))
}
