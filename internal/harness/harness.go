package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/session"
	"github.com/Heizenburger/chess-mentor/internal/testutil"
)

// Harness drives one session machine through a scenario.
//
// Effects are performed inline on the calling goroutine: scheduled events
// wait on a virtual clock, fetches are answered immediately by the scripted
// source, and records are appended to the result.
type Harness struct {
	machine *session.Machine
	sched   *testutil.ManualScheduler
	source  *scriptedSource
	clock   *session.Clock
	timers  []session.Timer
	inbox   []session.Event
	result  *Result
	session string
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Queue the scenario's initial puzzles
// 2. Execute each step, delivering follow-up events until none remain
// 3. Check each step's expect clause against the snapshot
// 4. Evaluate assertions against the attempt log and final snapshot
func Run(scenario *Scenario) (*Result, error) {
	q := puzzle.NewQueue()
	q.EnqueueBatch(toPuzzles(scenario.Queue))

	h := &Harness{
		machine: session.NewMachine(rules.NewStandard(), q, scenario.Config()),
		sched:   testutil.NewManualScheduler(),
		source:  &scriptedSource{answers: scenario.Fetches},
		clock:   session.NewClock(),
		result:  NewResult(),
		session: scenario.Name,
	}

	ctx := context.Background()
	for i, step := range scenario.Flow {
		ps, err := parseStep(step.Do)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		h.trace(TypeStep, step.Do)
		stepErr := h.execute(ctx, ps)
		h.checkStep(i, step, stepErr)
	}

	h.result.Final = h.snapshot()
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// execute performs one step and delivers every event it causes.
func (h *Harness) execute(ctx context.Context, ps parsedStep) error {
	var err error
	switch ps.kind {
	case stepStart:
		err = h.dispatch(ctx, session.Event{Type: session.EventStart})
	case stepSkip:
		err = h.dispatch(ctx, session.Event{Type: session.EventSkip})
	case stepReset:
		err = h.dispatch(ctx, session.Event{Type: session.EventReset})
	case stepMove:
		err = h.dispatch(ctx, session.Move(ps.attempt))
	case stepAdvance:
		h.sched.Advance(ps.advance)
	}
	h.drain(ctx)
	return err
}

func (h *Harness) drain(ctx context.Context) {
	for len(h.inbox) > 0 {
		ev := h.inbox[0]
		h.inbox = h.inbox[1:]
		_ = h.dispatch(ctx, ev)
	}
}

// dispatch applies one event and performs its effects, cancelling pending
// timers when the machine moves to a new generation.
func (h *Harness) dispatch(ctx context.Context, ev session.Event) error {
	h.trace(TypeEvent, describeEvent(ev))

	before := h.machine.Generation()
	effects, err := h.machine.Update(ev)
	if err != nil {
		h.trace(TypeReject, err.Error())
		return err
	}
	if h.machine.Generation() != before {
		for _, t := range h.timers {
			t.Stop()
		}
		h.timers = h.timers[:0]
	}
	for _, eff := range effects {
		h.perform(ctx, eff)
	}
	h.trace(TypeState, describeSnapshot(h.snapshot()))
	return nil
}

func (h *Harness) perform(ctx context.Context, eff session.Effect) {
	switch eff.Type {
	case session.EffectSchedule:
		ev := eff.Event
		h.trace(TypeTimer, fmt.Sprintf("%s in %s", ev.Type, eff.Delay))
		h.timers = append(h.timers, h.sched.AfterFunc(eff.Delay, func() {
			h.inbox = append(h.inbox, ev)
		}))

	case session.EffectFetch:
		h.trace(TypeFetch, fmt.Sprintf("max_count=%d min_rating=%d", eff.Request.MaxCount, eff.Request.MinRating))
		batch, err := h.source.Fetch(ctx, eff.Request)
		h.inbox = append(h.inbox, session.Event{Type: session.EventBatchFetched, Puzzles: batch, Err: err})

	case session.EffectRecord:
		rec := eff.Record
		rec.SessionID = h.session
		h.result.Attempts = append(h.result.Attempts, rec)
		move := rec.Move
		if move == "" {
			move = "-"
		}
		h.trace(TypeRecord, fmt.Sprintf("%s %s %s", rec.PuzzleID, rec.Result, move))
	}
}

// checkStep compares the settled snapshot and the step error with the
// step's expect clause.
func (h *Harness) checkStep(i int, step Step, stepErr error) {
	label := fmt.Sprintf("flow[%d] %q", i, step.Do)

	var wantErr string
	if step.Expect != nil {
		wantErr = step.Expect.Error
	}
	switch {
	case wantErr != "" && stepErr == nil:
		h.result.AddError(fmt.Sprintf("%s: expected error containing %q, got none", label, wantErr))
	case wantErr != "" && !strings.Contains(stepErr.Error(), wantErr):
		h.result.AddError(fmt.Sprintf("%s: expected error containing %q, got %q", label, wantErr, stepErr.Error()))
	case wantErr == "" && stepErr != nil:
		h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, stepErr))
	}

	if step.Expect == nil {
		return
	}
	for _, mismatch := range matchSnapshot(h.snapshot(), step.Expect) {
		h.result.AddError(fmt.Sprintf("%s: %s", label, mismatch))
	}
}

func (h *Harness) snapshot() session.Snapshot {
	snap := h.machine.Snapshot()
	snap.SessionID = h.session
	snap.Seq = h.clock.Current()
	return snap
}

func (h *Harness) trace(typ, detail string) {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Seq:    h.clock.Next(),
		Type:   typ,
		Detail: detail,
	})
}

func describeEvent(ev session.Event) string {
	switch ev.Type {
	case session.EventMove:
		return "move " + ev.Attempt.Coordinate() + ev.Attempt.Promotion
	case session.EventBatchFetched:
		if ev.Err != nil {
			return fmt.Sprintf("batch_fetched error: %v", ev.Err)
		}
		return fmt.Sprintf("batch_fetched count=%d", len(ev.Puzzles))
	}
	return ev.Type.String()
}

func describeSnapshot(s session.Snapshot) string {
	id := s.PuzzleID
	if id == "" {
		id = "-"
	}
	line := fmt.Sprintf("%s puzzle=%s index=%d %q", s.Status, id, s.SolutionIndex, s.Message)
	if s.Outcome != "" {
		line += fmt.Sprintf(" outcome=%q", s.Outcome)
	}
	return line
}

// scriptedSource answers fetches from the scenario in order, then with
// empty batches.
type scriptedSource struct {
	answers []FetchSpec
	calls   int
}

// Fetch implements puzzle.Source.
func (s *scriptedSource) Fetch(ctx context.Context, req puzzle.Request) ([]puzzle.Puzzle, error) {
	s.calls++
	if len(s.answers) == 0 {
		return nil, nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	if a.Error != "" {
		return nil, &puzzle.FetchError{Err: errors.New(a.Error)}
	}
	return toPuzzles(a.Puzzles), nil
}
