package scoping

import (
	"strings"
	"unicode"
)

// FactorKind classifies a scaling factor by how its value is used.
type FactorKind string

const (
	FactorCount      FactorKind = "count"
	FactorVolume     FactorKind = "volume"
	FactorComplexity FactorKind = "complexity"
	FactorToggle     FactorKind = "toggle"
	FactorDuration   FactorKind = "duration"
	FactorGeneric    FactorKind = "generic"
)

// Category is the scoping dimension a question targets.
type Category string

const (
	CategoryScale       Category = "scale"
	CategoryComplexity  Category = "complexity"
	CategoryGeography   Category = "geography"
	CategoryIntegration Category = "integration"
	CategorySupport     Category = "support"
	CategoryTimeline    Category = "timeline"
)

func Categories() []Category {
	return []Category{CategoryScale, CategoryComplexity, CategoryGeography, CategoryIntegration, CategorySupport, CategoryTimeline}
}

func ParseCategory(raw string) (Category, bool) {
	c := Category(normalizeToken(raw))
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// FactorTemplate is the canned question for a scaling factor.
type FactorTemplate struct {
	Kind     FactorKind
	Category Category
	Text     string
	Type     QuestionType
	Options  []string
	Default  any
	CalcType CalculationType
	Unit     string
}

var complexityOptions = []string{"low", "medium", "high"}

var factorTemplates = map[string]FactorTemplate{
	"user_count":             {FactorCount, CategoryScale, "How many users will be supported?", QuestionNumber, nil, 100.0, CalcQuantity, "users"},
	"mailbox_count":          {FactorCount, CategoryScale, "How many mailboxes need to be migrated?", QuestionNumber, nil, 100.0, CalcQuantity, "mailboxes"},
	"device_count":           {FactorCount, CategoryScale, "How many devices or endpoints are in scope?", QuestionNumber, nil, 50.0, CalcQuantity, "devices"},
	"endpoint_count":         {FactorCount, CategoryScale, "How many endpoints are in scope?", QuestionNumber, nil, 50.0, CalcQuantity, "endpoints"},
	"server_count":           {FactorCount, CategoryScale, "How many servers are in scope?", QuestionNumber, nil, 10.0, CalcQuantity, "servers"},
	"vm_count":               {FactorCount, CategoryScale, "How many virtual machines are in scope?", QuestionNumber, nil, 10.0, CalcQuantity, "VMs"},
	"database_count":         {FactorCount, CategoryScale, "How many databases need to be migrated or configured?", QuestionNumber, nil, 2.0, CalcQuantity, "databases"},
	"license_count":          {FactorCount, CategoryScale, "How many licenses need to be provisioned?", QuestionNumber, nil, 100.0, CalcQuantity, "licenses"},
	"environment_count":      {FactorCount, CategoryScale, "How many environments (for example dev, test, prod) are required?", QuestionNumber, nil, 3.0, CalcQuantity, "environments"},
	"department_count":       {FactorCount, CategoryScale, "How many departments are involved?", QuestionNumber, nil, 3.0, CalcQuantity, "departments"},
	"site_count":             {FactorCount, CategoryGeography, "How many sites or locations are in scope?", QuestionNumber, nil, 1.0, CalcQuantity, "sites"},
	"location_count":         {FactorCount, CategoryGeography, "How many physical locations are in scope?", QuestionNumber, nil, 1.0, CalcQuantity, "locations"},
	"region_count":           {FactorCount, CategoryGeography, "How many geographic regions are involved?", QuestionNumber, nil, 1.0, CalcQuantity, "regions"},
	"country_count":          {FactorCount, CategoryGeography, "How many countries are involved?", QuestionNumber, nil, 1.0, CalcQuantity, "countries"},
	"application_count":      {FactorCount, CategoryIntegration, "How many applications need to be integrated?", QuestionNumber, nil, 5.0, CalcQuantity, "applications"},
	"integration_count":      {FactorCount, CategoryIntegration, "How many third-party integrations are required?", QuestionNumber, nil, 2.0, CalcQuantity, "integrations"},
	"workflow_count":         {FactorCount, CategoryIntegration, "How many workflows need to be built or migrated?", QuestionNumber, nil, 5.0, CalcQuantity, "workflows"},
	"data_volume_gb":         {FactorVolume, CategoryScale, "What is the total data volume in GB?", QuestionNumber, nil, 500.0, CalcQuantity, "GB"},
	"data_volume_tb":         {FactorVolume, CategoryScale, "What is the total data volume in TB?", QuestionNumber, nil, 1.0, CalcQuantity, "TB"},
	"complexity":             {FactorComplexity, CategoryComplexity, "What is the overall complexity of the environment?", QuestionMultipleChoice, complexityOptions, "medium", CalcMultiplier, "level"},
	"complexity_level":       {FactorComplexity, CategoryComplexity, "What is the overall complexity level of the project?", QuestionMultipleChoice, complexityOptions, "medium", CalcMultiplier, "level"},
	"training_required":      {FactorToggle, CategorySupport, "Is end-user training required?", QuestionBoolean, nil, true, CalcIncludeExclude, ""},
	"training_sessions":      {FactorCount, CategorySupport, "How many training sessions are required?", QuestionNumber, nil, 2.0, CalcQuantity, "sessions"},
	"hypercare_weeks":        {FactorDuration, CategorySupport, "How many weeks of post go-live hypercare are required?", QuestionNumber, nil, 2.0, CalcQuantity, "weeks"},
	"support_months":         {FactorDuration, CategorySupport, "How many months of ongoing support are required?", QuestionNumber, nil, 1.0, CalcQuantity, "months"},
	"timeline_weeks":         {FactorDuration, CategoryTimeline, "What is the target project duration in weeks?", QuestionNumber, nil, 12.0, CalcQuantity, "weeks"},
	"documentation_required": {FactorToggle, CategorySupport, "Is formal as-built documentation required?", QuestionBoolean, nil, true, CalcIncludeExclude, ""},
}

// Aliases map common LLM spellings onto template keys.
var factorAliases = map[string]string{
	"users":           "user_count",
	"num_users":       "user_count",
	"number_of_users": "user_count",
	"mailboxes":       "mailbox_count",
	"sites":           "site_count",
	"locations":       "location_count",
	"devices":         "device_count",
	"endpoints":       "endpoint_count",
	"servers":         "server_count",
	"data_volume":     "data_volume_gb",
	"data_size_gb":    "data_volume_gb",
	"applications":    "application_count",
	"app_count":       "application_count",
	"integrations":    "integration_count",
	"environments":    "environment_count",
}

// CanonicalFactorKey is the one form every factor key is stored and
// matched in: lowercase snake_case, so "userCount", "User Count" and
// "user-count" all give "user_count".
func CanonicalFactorKey(key string) string {
	k := strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(strings.TrimSpace(key))
	k = strings.Trim(k, "_")
	var b strings.Builder
	b.Grow(len(k) + 4)
	prevLower := false
	for _, r := range k {
		if unicode.IsUpper(r) {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}

// LookupFactorTemplate returns the canned template for key, if one exists.
func LookupFactorTemplate(key string) (FactorTemplate, bool) {
	k := CanonicalFactorKey(key)
	if t, ok := factorTemplates[k]; ok {
		return t, true
	}
	if alias, ok := factorAliases[k]; ok {
		t, ok := factorTemplates[alias]
		return t, ok
	}
	return FactorTemplate{}, false
}

// FactorTemplateFor returns the canned template for key or synthesizes
// one from the key's shape.
func FactorTemplateFor(key string) FactorTemplate {
	if t, ok := LookupFactorTemplate(key); ok {
		return t
	}
	kind := ClassifyFactorKind(key)
	words := FactorWords(key)
	t := FactorTemplate{Kind: kind, Category: ClassifyFactorCategory(key), Type: QuestionNumber, CalcType: CalcQuantity, Default: 1.0}
	switch kind {
	case FactorCount:
		noun := pluralize(words)
		t.Text = "How many " + noun + " are in scope?"
		t.Unit = noun
	case FactorVolume:
		t.Text = "What is the expected " + words + "?"
		t.Unit = volumeUnit(key)
		t.Default = 100.0
	case FactorComplexity:
		t.Text = "What is the " + words + " level?"
		t.Type = QuestionMultipleChoice
		t.Options = complexityOptions
		t.Default = "medium"
		t.CalcType = CalcMultiplier
		t.Unit = "level"
	case FactorToggle:
		t.Text = "Is " + words + " required?"
		t.Type = QuestionBoolean
		t.Default = true
		t.CalcType = CalcIncludeExclude
	case FactorDuration:
		unit := durationUnit(key)
		t.Text = "How many " + unit + " of " + words + " are required?"
		t.Unit = unit
	default:
		t.Text = "What is the expected " + words + "?"
		t.Unit = "units"
	}
	return t
}

func ClassifyFactorKind(key string) FactorKind {
	if t, ok := LookupFactorTemplate(key); ok {
		return t.Kind
	}
	k := CanonicalFactorKey(key)
	switch {
	case strings.Contains(k, "complex"):
		return FactorComplexity
	case strings.HasSuffix(k, "_required") || strings.HasPrefix(k, "include_") ||
		strings.HasPrefix(k, "has_") || strings.HasPrefix(k, "needs_") || strings.HasPrefix(k, "requires_"):
		return FactorToggle
	case strings.HasSuffix(k, "_gb") || strings.HasSuffix(k, "_tb") || strings.Contains(k, "volume") || strings.Contains(k, "size"):
		return FactorVolume
	case strings.HasSuffix(k, "_weeks") || strings.HasSuffix(k, "_months") || strings.HasSuffix(k, "_days") || strings.HasSuffix(k, "_hours"):
		return FactorDuration
	case strings.HasSuffix(k, "_count") || strings.HasSuffix(k, "_qty") || strings.HasSuffix(k, "_quantity") ||
		strings.HasPrefix(k, "num_") || strings.HasPrefix(k, "number_of_"):
		return FactorCount
	default:
		return FactorGeneric
	}
}

var categoryHints = []struct {
	category Category
	words    []string
}{
	{CategoryGeography, []string{"site", "location", "region", "country", "office", "branch", "geo"}},
	{CategoryIntegration, []string{"integrat", "api", "application", "app", "system", "workflow", "connector"}},
	{CategorySupport, []string{"support", "training", "hypercare", "documentation", "maintenance"}},
	{CategoryTimeline, []string{"timeline", "week", "month", "deadline", "phase", "duration"}},
	{CategoryComplexity, []string{"complex", "custom", "security", "compliance"}},
}

func ClassifyFactorCategory(key string) Category {
	if t, ok := LookupFactorTemplate(key); ok {
		return t.Category
	}
	k := CanonicalFactorKey(key)
	for _, h := range categoryHints {
		for _, w := range h.words {
			if strings.Contains(k, w) {
				return h.category
			}
		}
	}
	return CategoryScale
}

// FactorUnit is the display unit for a factor value.
func FactorUnit(key string) string {
	return FactorTemplateFor(key).Unit
}

// FactorWords turns "data_volume_gb" into "data volume gb", dropping
// count markers.
func FactorWords(key string) string {
	parts := strings.Split(CanonicalFactorKey(key), "_")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		switch p {
		case "count", "qty", "quantity", "num", "required", "include", "has", "needs", "requires":
			continue
		case "number":
			if i+1 < len(parts) && parts[i+1] == "of" {
				continue
			}
		case "of":
			if i > 0 && parts[i-1] == "number" {
				continue
			}
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return strings.ReplaceAll(CanonicalFactorKey(key), "_", " ")
	}
	return strings.Join(out, " ")
}

// FactorLabel turns "user_count" into "User Count".
func FactorLabel(key string) string {
	parts := strings.Split(CanonicalFactorKey(key), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func pluralize(words string) string {
	if words == "" || strings.HasSuffix(words, "s") {
		return words
	}
	if strings.HasSuffix(words, "y") && !strings.HasSuffix(words, "ey") {
		return words[:len(words)-1] + "ies"
	}
	return words + "s"
}

func volumeUnit(key string) string {
	k := CanonicalFactorKey(key)
	switch {
	case strings.HasSuffix(k, "_tb"):
		return "TB"
	case strings.HasSuffix(k, "_mb"):
		return "MB"
	default:
		return "GB"
	}
}

func durationUnit(key string) string {
	k := CanonicalFactorKey(key)
	switch {
	case strings.HasSuffix(k, "_months"):
		return "months"
	case strings.HasSuffix(k, "_days"):
		return "days"
	case strings.HasSuffix(k, "_hours"):
		return "hours"
	default:
		return "weeks"
	}
}
