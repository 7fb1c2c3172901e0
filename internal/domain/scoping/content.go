package scoping

import "time"

type Credibility string

const (
	CredibilityHigh   Credibility = "high"
	CredibilityMedium Credibility = "medium"
	CredibilityLow    Credibility = "low"
)

func ParseCredibility(raw string) Credibility {
	switch Credibility(normalizeToken(raw)) {
	case CredibilityHigh:
		return CredibilityHigh
	case CredibilityLow:
		return CredibilityLow
	default:
		return CredibilityMedium
	}
}

type SourceType string

const (
	SourceDocumentation SourceType = "documentation"
	SourceVendor        SourceType = "vendor"
	SourceCaseStudy     SourceType = "case_study"
	SourceWhitepaper    SourceType = "whitepaper"
	SourceBlog          SourceType = "blog"
	SourceForum         SourceType = "forum"
	SourceAcademic      SourceType = "academic"
	SourceOther         SourceType = "other"
)

var sourceTypes = map[string]SourceType{
	"documentation":  SourceDocumentation,
	"docs":           SourceDocumentation,
	"official_docs":  SourceDocumentation,
	"vendor":         SourceVendor,
	"vendor_site":    SourceVendor,
	"case_study":     SourceCaseStudy,
	"whitepaper":     SourceWhitepaper,
	"white_paper":    SourceWhitepaper,
	"blog":           SourceBlog,
	"article":        SourceBlog,
	"forum":          SourceForum,
	"community":      SourceForum,
	"academic":       SourceAcademic,
	"research_paper": SourceAcademic,
	"other":          SourceOther,
}

func ParseSourceType(raw string) SourceType {
	if st, ok := sourceTypes[normalizeToken(raw)]; ok {
		return st
	}
	return SourceOther
}

type ResearchSource struct {
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Summary     string      `json:"summary"`
	Credibility Credibility `json:"credibility"`
	Relevance   float64     `json:"relevance"`
	SourceType  SourceType  `json:"sourceType"`
}

type ResearchData struct {
	// Technology is the model's short name for the subject, when it gave one.
	Technology      string           `json:"technology,omitempty"`
	Sources         []ResearchSource `json:"sources"`
	ResearchSummary string           `json:"researchSummary"`
	KeyInsights     []string         `json:"keyInsights"`
	Confidence      float64          `json:"confidence"`
}

// EmptyResearch is what the research step degrades to.
func EmptyResearch() ResearchData {
	return ResearchData{Sources: []ResearchSource{}, KeyInsights: []string{}}
}

// CalculationRules hold expressions over response keys, e.g. "user_count || 1".
type CalculationRules struct {
	Quantity   string `json:"quantity,omitempty"`
	Multiplier string `json:"multiplier"`
	Included   string `json:"included,omitempty"`
}

func (r *CalculationRules) Empty() bool {
	return r == nil || (r.Quantity == "" && r.Multiplier == "" && r.Included == "")
}

type Subservice struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	BaseHours        float64           `json:"baseHours"`
	Hours            float64           `json:"hours"`
	Quantity         float64           `json:"quantity"`
	Multiplier       float64           `json:"multiplier"`
	ScalingFactors   []string          `json:"scalingFactors"`
	QuantityDriver   string            `json:"quantityDriver,omitempty"`
	CalculationRules *CalculationRules `json:"calculationRules,omitempty"`
	MappedQuestions  []string          `json:"mappedQuestions"`
}

type Service struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	Description            string            `json:"description"`
	Phase                  string            `json:"phase"`
	Hours                  float64           `json:"hours"`
	BaseHours              float64           `json:"baseHours,omitempty"`
	Quantity               float64           `json:"quantity"`
	Subservices            []Subservice      `json:"subservices"`
	ScalingFactors         []string          `json:"scalingFactors,omitempty"`
	CalculationRules       *CalculationRules `json:"calculationRules,omitempty"`
	ServiceDescription     string            `json:"serviceDescription,omitempty"`
	KeyAssumptions         []string          `json:"keyAssumptions,omitempty"`
	ClientResponsibilities []string          `json:"clientResponsibilities,omitempty"`
	OutOfScope             []string          `json:"outOfScope,omitempty"`
}

type QuestionType string

const (
	QuestionNumber         QuestionType = "number"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionText           QuestionType = "text"
	QuestionBoolean        QuestionType = "boolean"
)

func ParseQuestionType(raw string) (QuestionType, bool) {
	switch normalizeToken(raw) {
	case "number", "numeric", "integer", "quantity":
		return QuestionNumber, true
	case "multiple_choice", "select", "choice", "dropdown":
		return QuestionMultipleChoice, true
	case "text", "string", "free_text":
		return QuestionText, true
	case "boolean", "bool", "yes_no", "toggle":
		return QuestionBoolean, true
	default:
		return "", false
	}
}

type CalculationType string

const (
	CalcQuantity       CalculationType = "quantity"
	CalcMultiplier     CalculationType = "multiplier"
	CalcIncludeExclude CalculationType = "include_exclude"
)

func ParseCalculationType(raw string) CalculationType {
	switch normalizeToken(raw) {
	case "multiplier":
		return CalcMultiplier
	case "include_exclude", "include", "exclude", "toggle":
		return CalcIncludeExclude
	default:
		return CalcQuantity
	}
}

type Question struct {
	ID              string          `json:"id"`
	Text            string          `json:"text"`
	Slug            string          `json:"slug"`
	Type            QuestionType    `json:"type"`
	Options         []string        `json:"options,omitempty"`
	Required        bool            `json:"required"`
	MappingKey      string          `json:"mappingKey,omitempty"`
	CalculationType CalculationType `json:"calculationType"`
	DefaultValue    any             `json:"defaultValue,omitempty"`
	Impacts         []string        `json:"impacts"`
	Category        Category        `json:"category,omitempty"`
}

// Key is the response-map key for q.
func (q Question) Key() string {
	switch {
	case q.MappingKey != "":
		return q.MappingKey
	case q.Slug != "":
		return q.Slug
	default:
		return q.ID
	}
}

type Calculation struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Value           any      `json:"value"`
	Unit            string   `json:"unit"`
	Source          string   `json:"source"`
	Formula         string   `json:"formula,omitempty"`
	MappedQuestions []string `json:"mappedQuestions"`
	MappedServices  []string `json:"mappedServices"`
}

type GeneratedContent struct {
	Technology   string           `json:"technology"`
	Questions    []Question       `json:"questions"`
	Services     []Service        `json:"services"`
	Calculations []Calculation    `json:"calculations"`
	Sources      []ResearchSource `json:"sources"`
	TotalHours   float64          `json:"totalHours"`

	ResearchSummary string     `json:"researchSummary,omitempty"`
	KeyInsights     []string   `json:"keyInsights,omitempty"`
	Confidence      float64    `json:"confidence,omitempty"`
	RunID           string     `json:"runId,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}
