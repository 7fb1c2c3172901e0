package scoping

type EventType string

const (
	EventStep     EventType = "step"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

type StepID string

const (
	StepResearch     StepID = "research"
	StepServices     StepID = "services"
	StepQuestions    StepID = "questions"
	StepCalculations StepID = "calculations"
	StepComplete     StepID = "complete"
)

type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in-progress"
	StatusCompleted  StepStatus = "completed"
	StatusError      StepStatus = "error"
)

// StreamingEvent is one server-sent event of a generation run.
type StreamingEvent struct {
	Type     EventType         `json:"type"`
	StepID   StepID            `json:"stepId,omitempty"`
	Status   StepStatus        `json:"status,omitempty"`
	Progress int               `json:"progress"`
	Message  string            `json:"message,omitempty"`
	Error    string            `json:"error,omitempty"`
	RunID    string            `json:"runId,omitempty"`
	Content  *GeneratedContent `json:"content,omitempty"`
}
