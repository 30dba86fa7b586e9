package harness

import (
	"fmt"
	"strings"

	"github.com/Heizenburger/chess-mentor/internal/session"
)

// Trace event types.
const (
	TypeStep   = "step"   // a scenario step began
	TypeEvent  = "event"  // an event reached the machine
	TypeReject = "reject" // the machine rejected a move
	TypeTimer  = "timer"  // a deferred event was scheduled
	TypeFetch  = "fetch"  // the machine requested a batch
	TypeRecord = "record" // an attempt was logged
	TypeState  = "state"  // the snapshot after an event
)

// TraceEvent is one line of a scenario transcript.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// String renders the event as a transcript line.
func (e TraceEvent) String() string {
	return fmt.Sprintf("%03d %-6s %s", e.Seq, e.Type, e.Detail)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace is the full transcript in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Attempts are the records the session asked to log, in order.
	Attempts []session.AttemptRecord `json:"attempts"`

	// Final is the snapshot after the last step.
	Final session.Snapshot `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Attempts: []session.AttemptRecord{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Transcript renders the trace, one event per line.
func (r *Result) Transcript() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
