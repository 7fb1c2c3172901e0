package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	UserRequest string
	Technology  string

	// Research grounding
	SourceCount  int
	ResearchJSON string
	SourceJSON   string

	// Service generation
	PhasesCSV      string
	MinServices    int
	MinSubservices int

	// Question generation
	FactorsJSON       string
	ServicesJSON      string
	CoveredCategories string
	MissingCategories string
	MaxQuestions      int

	// Extra is caller-supplied instructions appended to the user message.
	Extra string
}
