package calc

import (
	"fmt"
	"math"
	"strings"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/normalization"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

const TotalHoursID = "calc_total_hours"

// Engine recomputes quantities and hours from question responses. It is
// purely computational and safe for concurrent use.
type Engine struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{log: log.With("component", "CalculationEngine")}
}

// ApplyResponses returns a copy of services with every quantity and hour
// figure recomputed from responses. Inputs are never modified, so repeated
// calls with the same responses give identical output.
func (e *Engine) ApplyResponses(services []scoping.Service, questions []scoping.Question, responses map[string]any) []scoping.Service {
	rm := BuildResponseMap(questions, responses)
	out := e.ApplyResponseMap(services, rm)
	MapQuestions(out, questions)
	return out
}

// ApplyResponseMap is ApplyResponses over an already built response map.
func (e *Engine) ApplyResponseMap(services []scoping.Service, rm map[string]any) []scoping.Service {
	out := CloneServices(services)
	for i := range out {
		e.applyService(&out[i], rm)
	}
	return out
}

func (e *Engine) applyService(svc *scoping.Service, rm map[string]any) {
	mult := 1.0
	if r := svc.CalculationRules; !r.Empty() {
		// Service-level quantity rules are evaluated for diagnostics only:
		// services represent phases and never scale.
		if r.Quantity != "" {
			_ = e.number(svc.ID, r.Quantity, rm)
		}
		if r.Multiplier != "" {
			if m := e.number(svc.ID, r.Multiplier, rm); m > 0 {
				mult = m
			}
		}
	}
	svc.Quantity = 1

	for j := range svc.Subservices {
		e.applySubservice(&svc.Subservices[j], rm)
	}

	if len(svc.Subservices) == 0 {
		if svc.BaseHours <= 0 {
			svc.BaseHours = math.Max(svc.Hours, 0)
		}
		svc.Hours = normalization.Round2(svc.BaseHours * mult)
		return
	}
	sum := 0.0
	for _, sub := range svc.Subservices {
		sum += sub.Hours
	}
	svc.Hours = normalization.Round2(sum * mult)
}

func (e *Engine) applySubservice(sub *scoping.Subservice, rm map[string]any) {
	base := math.Max(sub.BaseHours, 0)
	qty, mult, included := 1.0, 1.0, true

	rules := sub.CalculationRules
	switch {
	case !rules.Empty():
		if rules.Quantity != "" {
			qty = e.number(sub.ID, rules.Quantity, rm)
		} else {
			qty = e.unruledQuantity(sub, rm)
		}
		if rules.Multiplier != "" {
			mult = e.number(sub.ID, rules.Multiplier, rm)
		}
		if rules.Included != "" {
			included = e.flag(sub.ID, rules.Included, rm)
		}
	default:
		qty = e.unruledQuantity(sub, rm)
	}

	if qty < 0 || math.IsNaN(qty) {
		qty = 0
	}
	if mult < 0 || math.IsNaN(mult) {
		mult = 0
	}
	qty = normalization.Round2(qty)
	if !included {
		qty = 0
	}
	sub.BaseHours = base
	sub.Quantity = qty
	sub.Multiplier = mult
	sub.Hours = normalization.Round2(qty * base * mult)
}

// unruledQuantity handles subservices without a quantity rule: the
// quantity driver's value, else the sum of every numeric scaling factor
// (floor 1), else 1.
func (e *Engine) unruledQuantity(sub *scoping.Subservice, rm map[string]any) float64 {
	if d := strings.TrimSpace(sub.QuantityDriver); d != "" {
		if v, ok := lookup(rm, d); ok {
			if f := toNumber(scalar(v)); !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f
			}
		}
		return 1
	}
	if len(sub.ScalingFactors) > 0 {
		sum := 0.0
		for _, f := range sub.ScalingFactors {
			v, _ := lookup(rm, f)
			if n, ok := scalar(v).(float64); ok {
				sum += n
			}
		}
		return math.Max(sum, 1)
	}
	return 1
}

func (e *Engine) number(owner, expr string, rm map[string]any) float64 {
	f, err := EvalNumber(expr, rm)
	if err != nil {
		fb := Fallback(expr)
		e.log.Debug("calculation rule fell back", "owner", owner, "expr", expr, "fallback", fb, "error", err.Error())
		return fb
	}
	return f
}

func (e *Engine) flag(owner, expr string, rm map[string]any) bool {
	ok, err := EvalBool(expr, rm)
	if err != nil {
		fb := Fallback(expr)
		e.log.Debug("inclusion rule fell back", "owner", owner, "expr", expr, "fallback", fb, "error", err.Error())
		return fb != 0
	}
	return ok
}

// TotalHours sums, per service, the subservice quantity x base hours terms
// (each rounded to 2 places), or quantity x hours for a service without
// subservices.
func TotalHours(services []scoping.Service) float64 {
	total := 0.0
	for _, svc := range services {
		if len(svc.Subservices) == 0 {
			total += svc.Quantity * svc.Hours
			continue
		}
		for _, sub := range svc.Subservices {
			total += normalization.Round2(sub.Quantity * sub.BaseHours)
		}
	}
	return normalization.Round2(total)
}

// SubserviceFactors lists the factor keys a subservice depends on, in
// canonical form. Scaling factors, the quantity driver and rule
// identifiers that differ only in case or separators count once.
func SubserviceFactors(sub scoping.Subservice) []string {
	var out []string
	out = appendFactors(out, sub.ScalingFactors...)
	out = appendFactors(out, sub.QuantityDriver)
	out = appendRuleFactors(out, sub.CalculationRules)
	return out
}

// OwnFactors lists the factor keys a service references itself, through
// its scaling factors or its own calculation rules.
func OwnFactors(svc scoping.Service) []string {
	out := appendFactors(nil, svc.ScalingFactors...)
	return appendRuleFactors(out, svc.CalculationRules)
}

// ServiceFactors lists the factor keys a service or any of its
// subservices depend on.
func ServiceFactors(svc scoping.Service) []string {
	out := OwnFactors(svc)
	for _, sub := range svc.Subservices {
		for _, f := range SubserviceFactors(sub) {
			out = appendUnique(out, f)
		}
	}
	return out
}

// ReferencedFactors is the ordered union of factor keys across services.
func ReferencedFactors(services []scoping.Service) []string {
	var out []string
	for _, svc := range services {
		for _, f := range ServiceFactors(svc) {
			out = appendUnique(out, f)
		}
	}
	return out
}

func appendRuleFactors(out []string, r *scoping.CalculationRules) []string {
	if r.Empty() {
		return out
	}
	for _, expr := range []string{r.Quantity, r.Multiplier, r.Included} {
		if expr == "" {
			continue
		}
		out = appendFactors(out, Identifiers(expr)...)
	}
	return out
}

func appendFactors(out []string, keys ...string) []string {
	for _, k := range keys {
		if c := scoping.CanonicalFactorKey(k); c != "" {
			out = appendUnique(out, c)
		}
	}
	return out
}

// MapQuestions records on each subservice the slugs of the questions whose
// key it depends on.
func MapQuestions(services []scoping.Service, questions []scoping.Question) {
	for i := range services {
		for j := range services[i].Subservices {
			sub := &services[i].Subservices[j]
			factors := SubserviceFactors(*sub)
			mapped := []string{}
			for _, q := range questions {
				if containsString(factors, scoping.CanonicalFactorKey(q.Key())) {
					mapped = appendUnique(mapped, slugOrKey(q))
				}
			}
			sub.MappedQuestions = mapped
		}
	}
}

// GenerateCalculations describes which factor drives which services. A
// factor no service references yields nothing; the last record is always
// the project total.
func (e *Engine) GenerateCalculations(services []scoping.Service, questions []scoping.Question, rm map[string]any) []scoping.Calculation {
	byKey := map[string]scoping.Question{}
	for _, q := range questions {
		k := scoping.CanonicalFactorKey(q.Key())
		if _, ok := byKey[k]; !ok {
			byKey[k] = q
		}
	}

	var (
		calcs      []scoping.Calculation
		allMapped  []string
		serviceIDs []string
	)
	for _, svc := range services {
		serviceIDs = append(serviceIDs, svc.ID)
	}

	for _, factor := range ReferencedFactors(services) {
		var consumers []string
		count := 0
		for _, svc := range services {
			used := containsString(OwnFactors(svc), factor)
			for _, sub := range svc.Subservices {
				if containsString(SubserviceFactors(sub), factor) {
					used = true
					count++
				}
			}
			if used {
				consumers = appendUnique(consumers, svc.ID)
			}
		}
		if len(consumers) == 0 {
			continue
		}

		tmpl := scoping.FactorTemplateFor(factor)
		// An unanswered factor drives quantity 1 in the engine, so that is
		// the value reported.
		value, ok := lookup(rm, factor)
		if !ok || value == nil {
			value = 1.0
		}
		mappedQs := []string{}
		calcType := tmpl.CalcType
		if q, ok := byKey[factor]; ok {
			mappedQs = append(mappedQs, slugOrKey(q))
			allMapped = appendUnique(allMapped, slugOrKey(q))
			calcType = q.CalculationType
		}

		calcs = append(calcs, scoping.Calculation{
			ID:              "calc_" + factor,
			Name:            scoping.FactorLabel(factor),
			Value:           value,
			Unit:            scoping.FactorUnit(factor),
			Source:          fmt.Sprintf("Scales %d subservice(s) across %d service(s)", count, len(consumers)),
			Formula:         formulaFor(calcType, factor),
			MappedQuestions: mappedQs,
			MappedServices:  consumers,
		})
	}

	if allMapped == nil {
		allMapped = []string{}
	}
	if serviceIDs == nil {
		serviceIDs = []string{}
	}
	calcs = append(calcs, scoping.Calculation{
		ID:              TotalHoursID,
		Name:            "Total Project Hours",
		Value:           TotalHours(services),
		Unit:            "hours",
		Source:          fmt.Sprintf("Sum of subservice quantity x base hours across %d service(s)", len(services)),
		Formula:         "sum(round(quantity * baseHours, 2))",
		MappedQuestions: allMapped,
		MappedServices:  serviceIDs,
	})
	return calcs
}

func formulaFor(t scoping.CalculationType, factor string) string {
	switch t {
	case scoping.CalcMultiplier:
		return "hours = quantity * baseHours * multiplier(" + factor + ")"
	case scoping.CalcIncludeExclude:
		return "hours = " + factor + " ? quantity * baseHours : 0"
	default:
		return "quantity = " + factor + "; hours = quantity * baseHours"
	}
}

func slugOrKey(q scoping.Question) string {
	if q.Slug != "" {
		return q.Slug
	}
	return q.Key()
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// CloneServices deep-copies services so recalculation never aliases the
// caller's slices or rule pointers.
func CloneServices(services []scoping.Service) []scoping.Service {
	if services == nil {
		return nil
	}
	out := make([]scoping.Service, len(services))
	for i, svc := range services {
		c := svc
		c.ScalingFactors = cloneStrings(svc.ScalingFactors)
		c.KeyAssumptions = cloneStrings(svc.KeyAssumptions)
		c.ClientResponsibilities = cloneStrings(svc.ClientResponsibilities)
		c.OutOfScope = cloneStrings(svc.OutOfScope)
		c.CalculationRules = cloneRules(svc.CalculationRules)
		if svc.Subservices != nil {
			c.Subservices = make([]scoping.Subservice, len(svc.Subservices))
			for j, sub := range svc.Subservices {
				s := sub
				s.ScalingFactors = cloneStrings(sub.ScalingFactors)
				s.MappedQuestions = cloneStrings(sub.MappedQuestions)
				s.CalculationRules = cloneRules(sub.CalculationRules)
				c.Subservices[j] = s
			}
		}
		out[i] = c
	}
	return out
}

func cloneStrings(xs []string) []string {
	if xs == nil {
		return nil
	}
	return append([]string(nil), xs...)
}

func cloneRules(r *scoping.CalculationRules) *scoping.CalculationRules {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
