package prompts

func RegisterAll() {
	// ---------- Research ----------

	RegisterSpec(Spec{
		Name:    PromptResearch,
		Version: 1,
		System: `
You are a senior solutions architect researching a technology implementation project.
Cite real, verifiable sources. Prefer vendor documentation, case studies and whitepapers.
Return JSON only.`,
		User: `
PROJECT REQUEST:
{{.UserRequest}}

Task:
- Find {{.SourceCount}} sources that help estimate the professional services effort for this project.
- Summarize what each source says that matters for scoping.
- Name the technology in a short title (2-6 words).

Output JSON object:
{
  "technology": string,
  "sources": [{"title": string, "url": string, "summary": string,
    "credibility": "high"|"medium"|"low", "relevance": number 0-1,
    "sourceType": "documentation"|"vendor"|"case_study"|"whitepaper"|"blog"|"forum"|"academic"|"other"}],
  "researchSummary": string,
  "keyInsights": [string],
  "confidence": number 0-1
}`,
		Validators: []Validator{
			RequireNonEmpty("UserRequest", func(in Input) string { return in.UserRequest }),
			RequirePositive("SourceCount", func(in Input) int { return in.SourceCount }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptResearchEnhance,
		Version: 1,
		System: `
You verify and sharpen a single research source for a scoping exercise.
Do not invent facts that the source would not contain.
Return JSON only.`,
		User: `
PROJECT REQUEST:
{{.UserRequest}}

SOURCE_JSON:
{{.SourceJSON}}

Task:
- Rewrite the summary (2-4 sentences) to focus on effort drivers, sizing figures and risks.
- Re-assess credibility and relevance to the request.

Output JSON object:
{"summary": string, "credibility": "high"|"medium"|"low", "relevance": number 0-1}`,
		Validators: []Validator{
			RequireNonEmpty("SourceJSON", func(in Input) string { return in.SourceJSON }),
		},
	})

	// ---------- Services ----------

	RegisterSpec(Spec{
		Name:    PromptServices,
		Version: 1,
		System: `
You are a professional services scoping expert. You build phase-structured statements of work.
Services represent project phases and never scale; subservices carry the hours and scale with
the client's answers through scaling factors.
Return JSON only.`,
		User: `
PROJECT REQUEST:
{{.UserRequest}}

TECHNOLOGY:
{{.Technology}}

RESEARCH_JSON:
{{.ResearchJSON}}

Task:
- Produce 4-5 services, one per lifecycle phase: {{.PhasesCSV}}.
- Use exactly one of those phase names in each service's "phase" field.
- Give each service at least 4 subservices ({{.MinSubservices}}+ subservices in total, {{.MinServices}}+ services).
- baseHours is the effort for ONE unit of the subservice's driving factor.
- Where effort scales, list snake_case factor keys in "scalingFactors" (e.g. user_count, site_count,
  mailbox_count, data_volume_gb, complexity) and set "quantityDriver" to the primary one.
- Optional "calculationRules" are expressions over factor keys:
  "quantity": e.g. "user_count / 25 || 1"
  "multiplier": e.g. "complexity === 'high' ? 1.5 : 1.0"
  "included": e.g. "training_required"

Output JSON array:
[{"name": string, "description": string, "phase": string,
  "serviceDescription": string, "keyAssumptions": [string],
  "clientResponsibilities": [string], "outOfScope": [string],
  "subservices": [{"name": string, "description": string, "baseHours": number,
    "scalingFactors": [string], "quantityDriver": string,
    "calculationRules": {"quantity": string, "multiplier": string, "included": string}}]}]`,
		Validators: []Validator{
			RequireNonEmpty("UserRequest", func(in Input) string { return in.UserRequest }),
			RequireNonEmpty("PhasesCSV", func(in Input) string { return in.PhasesCSV }),
		},
	})

	// ---------- Questions ----------

	RegisterSpec(Spec{
		Name:    PromptFactorQuestions,
		Version: 1,
		System: `
You write scoping questions that a sales engineer asks a client.
Each question must collect exactly one scaling factor value.
Return JSON only.`,
		User: `
PROJECT REQUEST:
{{.UserRequest}}

RESEARCH_JSON:
{{.ResearchJSON}}

SCALING_FACTORS_JSON (key -> services that use it):
{{.FactorsJSON}}

Task:
- Write exactly one question per scaling factor key.
- Set "mappingKey" to the factor key verbatim.
- Counts and volumes are "number" questions with a realistic numeric defaultValue.
- Levels (complexity, tier) are "multiple_choice" with options and a default among them.
- Yes/no factors are "boolean".

Output JSON object:
{"questions": [{"mappingKey": string, "text": string,
  "type": "number"|"multiple_choice"|"text"|"boolean", "options": [string],
  "defaultValue": any, "calculationType": "quantity"|"multiplier"|"include_exclude"}]}`,
		Validators: []Validator{
			RequireNonEmpty("FactorsJSON", func(in Input) string { return in.FactorsJSON }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptContextQuestions,
		Version: 1,
		System: `
You find gaps in a scoping questionnaire.
Return JSON only.`,
		User: `
PROJECT REQUEST:
{{.UserRequest}}

SERVICES_JSON:
{{.ServicesJSON}}

CATEGORIES ALREADY COVERED: {{.CoveredCategories}}
CATEGORIES NOT YET COVERED: {{.MissingCategories}}

Task:
- Propose 3-{{.MaxQuestions}} additional questions, only for the categories not yet covered.
- Do not repeat anything the covered categories already ask.

Output JSON object:
{"questions": [{"text": string, "type": "number"|"multiple_choice"|"text"|"boolean",
  "options": [string], "defaultValue": any,
  "category": "scale"|"complexity"|"geography"|"integration"|"support"|"timeline"}]}`,
		Validators: []Validator{
			RequireNonEmpty("MissingCategories", func(in Input) string { return in.MissingCategories }),
			RequirePositive("MaxQuestions", func(in Input) int { return in.MaxQuestions }),
		},
	})
}
