package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
)

var ErrInvalidTransition = errors.New("orchestrator: invalid step transition")

// Sink receives run events. It is never called concurrently.
type Sink func(scoping.StreamingEvent)

// stepIdle is the state before the first step starts.
const stepIdle scoping.StepID = ""

var successor = map[scoping.StepID]scoping.StepID{
	stepIdle:                 scoping.StepResearch,
	scoping.StepResearch:     scoping.StepServices,
	scoping.StepServices:     scoping.StepQuestions,
	scoping.StepQuestions:    scoping.StepCalculations,
	scoping.StepCalculations: scoping.StepComplete,
}

// Progress bounds per step: the value reported when the step starts and
// when it completes.
var stepProgress = map[scoping.StepID][2]int{
	scoping.StepResearch:     {5, 25},
	scoping.StepServices:     {30, 55},
	scoping.StepQuestions:    {60, 80},
	scoping.StepCalculations: {85, 95},
	scoping.StepComplete:     {100, 100},
}

// machine tracks one run through its steps and turns every transition
// into an event.
type machine struct {
	mu       sync.Mutex
	runID    string
	sink     Sink
	step     scoping.StepID
	running  bool
	failed   bool
	progress int
}

func newMachine(runID string, sink Sink) *machine {
	return &machine{runID: runID, sink: sink}
}

func (m *machine) emit(ev scoping.StreamingEvent) {
	ev.RunID = m.runID
	if ev.Progress < m.progress {
		ev.Progress = m.progress
	}
	m.progress = ev.Progress
	if m.sink != nil {
		m.sink(ev)
	}
}

// start enters step, which must directly follow the last completed one.
func (m *machine) start(step scoping.StepID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed || m.running || successor[m.step] != step || step == scoping.StepComplete {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, m.step, step)
	}
	m.step = step
	m.running = true
	m.emit(scoping.StreamingEvent{
		Type:     scoping.EventStep,
		StepID:   step,
		Status:   scoping.StatusInProgress,
		Progress: stepProgress[step][0],
	})
	return nil
}

func (m *machine) complete(step scoping.StepID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed || !m.running || m.step != step {
		return fmt.Errorf("%w: complete %q while at %q", ErrInvalidTransition, step, m.step)
	}
	m.running = false
	m.emit(scoping.StreamingEvent{
		Type:     scoping.EventStep,
		StepID:   step,
		Status:   scoping.StatusCompleted,
		Progress: stepProgress[step][1],
	})
	return nil
}

// report emits sub-progress for the running step; done of total maps onto
// the step's progress range.
func (m *machine) report(done, total int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || total <= 0 {
		return
	}
	bounds := stepProgress[m.step]
	m.emit(scoping.StreamingEvent{
		Type:     scoping.EventProgress,
		StepID:   m.step,
		Progress: bounds[0] + (bounds[1]-bounds[0])*done/total,
		Message:  message,
	})
}

// finish moves from the last step to complete and hands out the content.
func (m *machine) finish(content *scoping.GeneratedContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed || m.running || successor[m.step] != scoping.StepComplete {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, m.step, scoping.StepComplete)
	}
	m.step = scoping.StepComplete
	m.emit(scoping.StreamingEvent{
		Type:     scoping.EventComplete,
		StepID:   scoping.StepComplete,
		Status:   scoping.StatusCompleted,
		Progress: 100,
		Content:  content,
	})
	return nil
}

// fail is reachable from any step before complete. Later calls are no-ops.
func (m *machine) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed || m.step == scoping.StepComplete {
		return
	}
	m.failed = true
	m.running = false
	m.emit(scoping.StreamingEvent{
		Type:     scoping.EventError,
		StepID:   m.step,
		Status:   scoping.StatusError,
		Progress: m.progress,
		Error:    err.Error(),
	})
}

func (m *machine) current() scoping.StepID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}
