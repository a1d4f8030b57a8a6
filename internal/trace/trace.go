// Package trace records the append-only decision trail of one turn:
// planning, step outcomes, governor transitions, and the termination
// reason. The trail is the sole input to downstream self-evaluation.
package trace

import (
	"context"
	"sync"
	"time"
)

// EntryKind categorizes trace entries.
type EntryKind string

const (
	KindPlan        EntryKind = "plan"
	KindPlanFailed  EntryKind = "plan_failed"
	KindStepStart   EntryKind = "step_start"
	KindStepSuccess EntryKind = "step_success"
	KindStepSkipped EntryKind = "step_skipped"
	KindStepFailed  EntryKind = "step_failed"
	KindGovernor    EntryKind = "governor"
	KindTermination EntryKind = "termination"
)

// TerminationReason is the final disposition of a turn.
type TerminationReason string

const (
	TerminationAccepted   TerminationReason = "accepted"
	TerminationWithCaveat TerminationReason = "accepted-with-caveat"
	TerminationFatal      TerminationReason = "aborted-fatal"
	TerminationCancelled  TerminationReason = "aborted-cancelled"
)

// Entry is one record of the turn trail. Detail is a one-line summary;
// raw collaborator payloads and credentials are never attached.
type Entry struct {
	Kind     EntryKind     `json:"kind"`
	Time     time.Time     `json:"time"`
	Step     string        `json:"step,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Fields   []string      `json:"fields,omitempty"` // context fields written
}

// Sink persists completed trails, keyed by (session_id, turn_id).
// Implementations must be append-only.
type Sink interface {
	Append(ctx context.Context, sessionID, turnID string, entries []Entry) error
}

// Recorder accumulates the trail for a single turn. It is append-only;
// once Complete is called further writes are discarded.
type Recorder struct {
	sessionID string
	turnID    string
	sink      Sink

	mu       sync.Mutex
	entries  []Entry
	complete bool
}

// NewRecorder creates a recorder for one turn.
func NewRecorder(sink Sink, sessionID, turnID string) *Recorder {
	return &Recorder{sink: sink, sessionID: sessionID, turnID: turnID}
}

// TurnID returns the traced turn identifier.
func (r *Recorder) TurnID() string { return r.turnID }

// Plan records the chosen plan and planning strategy before execution.
func (r *Recorder) Plan(strategy string, steps []string) {
	r.append(Entry{Kind: KindPlan, Step: strategy, Detail: join(steps)})
}

// PlanFailed records an exhausted planning strategy with a one-line
// cause, before the plan entry that replaced it.
func (r *Recorder) PlanFailed(strategy, cause string) {
	r.append(Entry{Kind: KindPlanFailed, Step: strategy, Detail: cause})
}

// StepStart records the start of a step.
func (r *Recorder) StepStart(name string) {
	r.append(Entry{Kind: KindStepStart, Step: name})
}

// StepSuccess records a completed step with its written fields.
func (r *Recorder) StepSuccess(name, outcome string, d time.Duration, fields []string) {
	r.append(Entry{Kind: KindStepSuccess, Step: name, Detail: outcome, Duration: d, Fields: fields})
}

// StepSkipped records a recoverable failure that was absorbed.
func (r *Recorder) StepSkipped(name, cause string, d time.Duration) {
	r.append(Entry{Kind: KindStepSkipped, Step: name, Detail: cause, Duration: d})
}

// StepFailed records a fatal-to-plan step failure.
func (r *Recorder) StepFailed(name, cause string, d time.Duration) {
	r.append(Entry{Kind: KindStepFailed, Step: name, Detail: cause, Duration: d})
}

// Governor records a retry-governor transition.
func (r *Recorder) Governor(from, to, reason string) {
	r.append(Entry{Kind: KindGovernor, Step: from + "->" + to, Detail: reason})
}

// Complete records the termination reason, seals the recorder, and flushes
// the trail to the sink. The flush uses its own deadline so a cancelled
// turn still persists its trace.
func (r *Recorder) Complete(reason TerminationReason) error {
	r.append(Entry{Kind: KindTermination, Detail: string(reason)})

	r.mu.Lock()
	r.complete = true
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.sink.Append(ctx, r.sessionID, r.turnID, entries)
}

// Entries returns a copy of the recorded trail.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Recorder) append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.complete {
		return
	}
	e.Time = time.Now()
	r.entries = append(r.entries, e)
}

func join(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
