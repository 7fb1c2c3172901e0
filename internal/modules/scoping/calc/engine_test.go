package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
)

func sampleServices() []scoping.Service {
	return []scoping.Service{
		{
			ID:    "svc_0",
			Name:  "Assessment",
			Phase: "Initiation",
			CalculationRules: &scoping.CalculationRules{
				Quantity:   "site_count",
				Multiplier: "complexity === 'high' ? 1.2 : 1",
			},
			Subservices: []scoping.Subservice{
				{ID: "sub_0_0", Name: "Site survey", BaseHours: 4, QuantityDriver: "site_count", ScalingFactors: []string{"site_count"}},
				{ID: "sub_0_1", Name: "Current state", BaseHours: 0.5, ScalingFactors: []string{"user_count", "site_count"}},
				{ID: "sub_0_2", Name: "Kickoff", BaseHours: 3},
			},
		},
		{
			ID:    "svc_1",
			Name:  "Migration",
			Phase: "Execution",
			Subservices: []scoping.Subservice{
				{
					ID: "sub_1_0", Name: "Mailbox moves", BaseHours: 2,
					ScalingFactors:   []string{"mailbox_count"},
					CalculationRules: &scoping.CalculationRules{Quantity: "mailbox_count / 50 || 1", Multiplier: "complexity === 'high' ? 1.5 : 1.0"},
				},
				{
					ID: "sub_1_1", Name: "Training", BaseHours: 6,
					ScalingFactors:   []string{"training_required"},
					CalculationRules: &scoping.CalculationRules{Quantity: "user_count / 25 || 1", Included: "training_required"},
				},
			},
		},
		{ID: "svc_2", Name: "Closeout", Phase: "Closing", Hours: 10},
	}
}

func sampleQuestions() []scoping.Question {
	return []scoping.Question{
		{ID: "q1", Slug: "user_qty", MappingKey: "user_count", Type: scoping.QuestionNumber, DefaultValue: 100.0, CalculationType: scoping.CalcQuantity},
		{ID: "q2", Slug: "site_qty", MappingKey: "site_count", Type: scoping.QuestionNumber, DefaultValue: 1.0, CalculationType: scoping.CalcQuantity},
		{ID: "q3", Slug: "mailbox_qty", MappingKey: "mailbox_count", Type: scoping.QuestionNumber, DefaultValue: 100.0, CalculationType: scoping.CalcQuantity},
		{ID: "q4", Slug: "complexity_lvl", MappingKey: "complexity", Type: scoping.QuestionMultipleChoice, DefaultValue: "medium", CalculationType: scoping.CalcMultiplier},
		{ID: "q5", Slug: "training_req", MappingKey: "training_required", Type: scoping.QuestionBoolean, DefaultValue: true, CalculationType: scoping.CalcIncludeExclude},
		{ID: "q6", Slug: "budget_amt", MappingKey: "budget", Type: scoping.QuestionNumber, DefaultValue: 10000.0},
	}
}

func findSub(t *testing.T, services []scoping.Service, id string) scoping.Subservice {
	t.Helper()
	for _, svc := range services {
		for _, sub := range svc.Subservices {
			if sub.ID == id {
				return sub
			}
		}
	}
	t.Fatalf("subservice %s not found", id)
	return scoping.Subservice{}
}

func TestCombinedScalingFactorsAreSummed(t *testing.T) {
	e := New(nil)
	services := []scoping.Service{{
		ID: "svc_0",
		Subservices: []scoping.Subservice{
			{ID: "sub_0_0", BaseHours: 2, ScalingFactors: []string{"user_count", "site_count"}},
		},
	}}

	out := e.ApplyResponses(services, nil, map[string]any{"user_count": 100, "site_count": 4})

	sub := out[0].Subservices[0]
	assert.Equal(t, 104.0, sub.Quantity)
	assert.Equal(t, 208.0, sub.Hours)
	assert.Equal(t, 208.0, TotalHours(out))
}

func TestCombinedScalingFactorsFloorAtOne(t *testing.T) {
	e := New(nil)
	services := []scoping.Service{{
		ID:          "svc_0",
		Subservices: []scoping.Subservice{{ID: "sub_0_0", BaseHours: 5, ScalingFactors: []string{"user_count", "site_count"}}},
	}}
	out := e.ApplyResponses(services, nil, map[string]any{"user_count": "n/a"})
	assert.Equal(t, 1.0, out[0].Subservices[0].Quantity)
	assert.Equal(t, 5.0, out[0].Subservices[0].Hours)
}

func TestMultiplierRule(t *testing.T) {
	e := New(nil)
	services := []scoping.Service{{
		ID: "svc_0",
		Subservices: []scoping.Subservice{{
			ID: "sub_0_0", BaseHours: 10,
			CalculationRules: &scoping.CalculationRules{Multiplier: "complexity === 'high' ? 1.5 : 1.0"},
		}},
	}}

	high := e.ApplyResponses(services, nil, map[string]any{"complexity": "high"})
	assert.Equal(t, 1.5, high[0].Subservices[0].Multiplier)
	assert.Equal(t, 15.0, high[0].Subservices[0].Hours)

	low := e.ApplyResponses(services, nil, map[string]any{"complexity": "low"})
	assert.Equal(t, 1.0, low[0].Subservices[0].Multiplier)
	assert.Equal(t, 10.0, low[0].Subservices[0].Hours)
}

func TestIncludedFalseZeroesSubservice(t *testing.T) {
	e := New(nil)
	out := e.ApplyResponses(sampleServices(), sampleQuestions(), map[string]any{"training_required": false, "user_count": 500})

	sub := findSub(t, out, "sub_1_1")
	assert.Zero(t, sub.Quantity)
	assert.Zero(t, sub.Hours)

	out = e.ApplyResponses(sampleServices(), sampleQuestions(), map[string]any{"training_req": "yes", "user_count": 500})
	sub = findSub(t, out, "sub_1_1")
	assert.Equal(t, 20.0, sub.Quantity)
	assert.Equal(t, 120.0, sub.Hours)
}

func TestRuleFallbackOnEvalError(t *testing.T) {
	e := New(nil)
	services := []scoping.Service{{
		ID: "svc_0",
		Subservices: []scoping.Subservice{
			{ID: "a", BaseHours: 3, CalculationRules: &scoping.CalculationRules{Quantity: "unknown_factor * 2 || 4"}},
			{ID: "b", BaseHours: 3, CalculationRules: &scoping.CalculationRules{Quantity: "this is not an expression"}},
			{ID: "c", BaseHours: 3, CalculationRules: &scoping.CalculationRules{Included: "missing_flag || 0"}},
		},
	}}
	out := e.ApplyResponses(services, nil, nil)
	assert.Equal(t, 4.0, findSub(t, out, "a").Quantity)
	assert.Equal(t, 1.0, findSub(t, out, "b").Quantity)
	assert.Zero(t, findSub(t, out, "c").Hours)
}

func TestQuantityDriverDefaultsToOne(t *testing.T) {
	e := New(nil)
	services := []scoping.Service{{
		ID:          "svc_0",
		Subservices: []scoping.Subservice{{ID: "s", BaseHours: 4, QuantityDriver: "site_count"}},
	}}
	out := e.ApplyResponses(services, nil, nil)
	assert.Equal(t, 1.0, out[0].Subservices[0].Quantity)

	out = e.ApplyResponses(services, nil, map[string]any{"site_count": "3"})
	assert.Equal(t, 3.0, out[0].Subservices[0].Quantity)
	assert.Equal(t, 12.0, out[0].Subservices[0].Hours)
}

func TestServicesNeverScale(t *testing.T) {
	e := New(nil)
	out := e.ApplyResponses(sampleServices(), sampleQuestions(), map[string]any{"site_count": 12, "complexity": "high"})
	for _, svc := range out {
		assert.Equal(t, 1.0, svc.Quantity, svc.ID)
	}
	// The service multiplier only scales display hours.
	var sum float64
	for _, sub := range out[0].Subservices {
		sum += sub.Hours
	}
	assert.Equal(t, normalization.Round2(sum*1.2), out[0].Hours)
}

func TestSubserviceHourIdentity(t *testing.T) {
	e := New(nil)
	for _, responses := range []map[string]any{
		nil,
		{"user_count": 333, "site_count": 7, "mailbox_count": 1234, "complexity": "high"},
		{"user_count": "12.345", "complexity": "low", "training_required": "no"},
	} {
		out := e.ApplyResponses(sampleServices(), sampleQuestions(), responses)
		for _, svc := range out {
			for _, sub := range svc.Subservices {
				assert.Equal(t, normalization.Round2(sub.Quantity*sub.BaseHours*sub.Multiplier), sub.Hours, sub.ID)
			}
		}
	}
}

func TestTotalHoursConsistency(t *testing.T) {
	e := New(nil)
	out := e.ApplyResponses(sampleServices(), sampleQuestions(), map[string]any{"user_count": 250, "site_count": 3, "mailbox_count": 510})

	var want float64
	for _, svc := range out {
		if len(svc.Subservices) == 0 {
			want += svc.Quantity * svc.Hours
			continue
		}
		for _, sub := range svc.Subservices {
			want += normalization.Round2(sub.Quantity * sub.BaseHours)
		}
	}
	assert.Equal(t, normalization.Round2(want), TotalHours(out))

	// site survey 3x4, current state 253x0.5, kickoff 3, mailboxes 10.2x2,
	// training 10x6, closeout 10.
	assert.Equal(t, 12+126.5+3+20.4+60+10.0, TotalHours(out))
}

func TestApplyResponsesIsIdempotentAndPure(t *testing.T) {
	e := New(nil)
	in := sampleServices()
	responses := map[string]any{"user_count": 40, "complexity": "high"}

	first := e.ApplyResponses(in, sampleQuestions(), responses)
	second := e.ApplyResponses(in, sampleQuestions(), responses)
	assert.Equal(t, first, second)

	again := e.ApplyResponses(first, sampleQuestions(), responses)
	assert.Equal(t, first, again)

	assert.Equal(t, sampleServices(), in)
	first[0].Subservices[0].ScalingFactors[0] = "changed"
	first[1].Subservices[0].CalculationRules.Quantity = "changed"
	assert.Equal(t, sampleServices(), in)
}

func TestMapQuestions(t *testing.T) {
	e := New(nil)
	out := e.ApplyResponses(sampleServices(), sampleQuestions(), nil)
	assert.Equal(t, []string{"site_qty"}, findSub(t, out, "sub_0_0").MappedQuestions)
	assert.Equal(t, []string{"user_qty", "site_qty"}, findSub(t, out, "sub_0_1").MappedQuestions)
	assert.Equal(t, []string{}, findSub(t, out, "sub_0_2").MappedQuestions)
	assert.Equal(t, []string{"mailbox_qty", "complexity_lvl"}, findSub(t, out, "sub_1_0").MappedQuestions)
}

func TestReferencedFactors(t *testing.T) {
	assert.Equal(t,
		[]string{"site_count", "complexity", "user_count", "mailbox_count", "training_required"},
		ReferencedFactors(sampleServices()))
}

func TestGenerateCalculations(t *testing.T) {
	e := New(nil)
	questions := sampleQuestions()
	rm := BuildResponseMap(questions, map[string]any{"user_count": 250})
	services := e.ApplyResponseMap(sampleServices(), rm)

	calcs := e.GenerateCalculations(services, questions, rm)
	require.Len(t, calcs, 6)

	ids := make([]string, 0, len(calcs))
	for _, c := range calcs {
		ids = append(ids, c.ID)
	}
	// budget is asked but consumed by nothing, so it yields no record.
	assert.Equal(t, []string{
		"calc_site_count", "calc_complexity", "calc_user_count",
		"calc_mailbox_count", "calc_training_required", TotalHoursID,
	}, ids)

	users := calcs[2]
	assert.Equal(t, "User Count", users.Name)
	assert.Equal(t, 250.0, users.Value)
	assert.Equal(t, "users", users.Unit)
	assert.Equal(t, []string{"user_qty"}, users.MappedQuestions)
	assert.Equal(t, []string{"svc_0", "svc_1"}, users.MappedServices)

	complexity := calcs[1]
	assert.Equal(t, "medium", complexity.Value)
	assert.Equal(t, []string{"svc_0", "svc_1"}, complexity.MappedServices)
	assert.Contains(t, complexity.Formula, "multiplier")

	total := calcs[len(calcs)-1]
	assert.Equal(t, "Total Project Hours", total.Name)
	assert.Equal(t, TotalHours(services), total.Value)
	assert.Equal(t, "hours", total.Unit)
	assert.Equal(t, []string{"svc_0", "svc_1", "svc_2"}, total.MappedServices)
	assert.NotContains(t, total.MappedQuestions, "budget_amt")
}

func TestGenerateCalculationsReportsEngineValueWhenUnanswered(t *testing.T) {
	e := New(nil)
	services := e.ApplyResponseMap([]scoping.Service{{
		ID:          "svc_0",
		Subservices: []scoping.Subservice{{ID: "s", BaseHours: 1, QuantityDriver: "data_volume_gb"}},
	}}, map[string]any{})
	require.Equal(t, 1.0, services[0].Subservices[0].Quantity)

	calcs := e.GenerateCalculations(services, nil, map[string]any{})
	require.Len(t, calcs, 2)
	assert.Equal(t, services[0].Subservices[0].Quantity, calcs[0].Value)
	assert.Equal(t, "GB", calcs[0].Unit)
	assert.Empty(t, calcs[0].MappedQuestions)
}

func TestMixedCaseFactorJoinsQuestionAndRule(t *testing.T) {
	services := []scoping.Service{{
		ID: "svc_0",
		Subservices: []scoping.Subservice{{
			ID: "sub_0", BaseHours: 2,
			ScalingFactors:   []string{"userCount"},
			CalculationRules: &scoping.CalculationRules{Quantity: "userCount"},
		}},
	}}
	assert.Equal(t, []string{"user_count"}, ReferencedFactors(services))

	questions := []scoping.Question{{ID: "q1", Slug: "user_qty", MappingKey: "user_count", Type: scoping.QuestionNumber}}
	e := New(nil)
	for _, answers := range []map[string]any{
		{"user_qty": 50},
		{"user_count": 50},
		{"userCount": 50},
		{"User-Count": 50},
	} {
		out := e.ApplyResponses(services, questions, answers)
		sub := out[0].Subservices[0]
		assert.Equal(t, 50.0, sub.Quantity, "answers %v", answers)
		assert.Equal(t, 100.0, sub.Hours, "answers %v", answers)
		assert.Equal(t, []string{"user_qty"}, sub.MappedQuestions)
	}

	rm := BuildResponseMap(questions, map[string]any{"user_qty": 50})
	calcs := e.GenerateCalculations(services, questions, rm)
	require.Len(t, calcs, 2)
	assert.Equal(t, "calc_user_count", calcs[0].ID)
	assert.Equal(t, 50.0, calcs[0].Value)
	assert.Equal(t, []string{"user_qty"}, calcs[0].MappedQuestions)
}

func TestGenerateCalculationsWithoutServices(t *testing.T) {
	calcs := New(nil).GenerateCalculations(nil, sampleQuestions(), map[string]any{})
	require.Len(t, calcs, 1)
	assert.Equal(t, TotalHoursID, calcs[0].ID)
	assert.Equal(t, 0.0, calcs[0].Value)
}

func TestBuildResponseMap(t *testing.T) {
	rm := BuildResponseMap(sampleQuestions(), map[string]any{
		"site_qty":   "1,200",
		"q4":         "high",
		"user_count": "",
		"extra_key":  7,
	})
	assert.Equal(t, 1200.0, rm["site_count"])
	assert.Equal(t, "high", rm["complexity"])
	assert.Equal(t, 100.0, rm["user_count"])
	assert.Equal(t, true, rm["training_required"])
	assert.Equal(t, 7.0, rm["extra_key"])
	assert.NotContains(t, rm, "site_qty")
}

func TestBuildResponseMapCanonicalKeys(t *testing.T) {
	questions := []scoping.Question{{ID: "q1", Slug: "user_qty", MappingKey: "userCount", DefaultValue: 10.0}}

	rm := BuildResponseMap(questions, map[string]any{"User Count": 40, "Extra-Key": "yes"})
	assert.Equal(t, map[string]any{"user_count": 40.0, "extra_key": true}, rm)

	rm = BuildResponseMap(questions, nil)
	assert.Equal(t, map[string]any{"user_count": 10.0}, rm)
}
