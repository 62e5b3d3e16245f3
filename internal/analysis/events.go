package analysis

import "time"

// Phase names a step of a run, in the order runs emit them.
type Phase string

// Phases.
const (
	PhaseInputChecked     Phase = "input-checked"
	PhaseGuideExtracted   Phase = "guide-extracted"
	PhaseSpeakersDetected Phase = "speakers-detected"
	PhasePromptComposed   Phase = "prompt-composed"
	PhaseInvokingModel    Phase = "invoking-model"
	PhaseValidating       Phase = "validating"
	PhasePersisted        Phase = "persisted"
)

// Event reports progress of one run.
type Event struct {
	RunID  string
	Phase  Phase
	Detail string
	At     time.Time
}

// EventFunc receives events synchronously on the run's goroutine.
type EventFunc func(Event)
