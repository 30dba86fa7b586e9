package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
)

// ErrStopped is returned by submissions after the Runner has stopped.
var ErrStopped = errors.New("session runner stopped")

// Recorder persists attempt records.
type Recorder interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord) error
}

// Runner is the single-writer event loop around a Machine.
//
// Thread-safety model:
//   - Enqueue, Submit, Query, Subscribe, Latest: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Runner struct {
	id       string
	machine  *Machine
	inbox    *inbox
	sched    Scheduler
	source   puzzle.Source
	recorder Recorder
	clock    *Clock

	// timers pending in the current generation; only touched by Run.
	timers []Timer

	latest atomic.Pointer[Snapshot]

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithScheduler overrides the wall-clock scheduler (tests use a manual one).
func WithScheduler(s Scheduler) RunnerOption {
	return func(r *Runner) {
		r.sched = s
	}
}

// WithRecorder sets where attempt records are written.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a Runner for session id.
func NewRunner(id string, m *Machine, src puzzle.Source, opts ...RunnerOption) *Runner {
	r := &Runner{
		id:      id,
		machine: m,
		inbox:   newInbox(),
		sched:   WallScheduler{},
		source:  src,
		clock:   NewClock(),
		subs:    make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the session ID.
func (r *Runner) ID() string {
	return r.id
}

// Enqueue submits an event without waiting. Returns false once stopped.
func (r *Runner) Enqueue(ev Event) bool {
	return r.inbox.Enqueue(item{ev: ev})
}

// Submit enqueues an event and waits for it to be processed, returning the
// rejection error from Update if any.
func (r *Runner) Submit(ctx context.Context, ev Event) error {
	reply := make(chan error, 1)
	if !r.inbox.Enqueue(item{ev: ev, reply: reply}) {
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query runs fn on the loop goroutine and waits for it.
func (r *Runner) Query(ctx context.Context, fn func(*Machine)) error {
	done := make(chan struct{})
	if !r.inbox.Enqueue(item{fn: fn, done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LegalMoves returns legal moves from a square of the live position.
func (r *Runner) LegalMoves(ctx context.Context, from string) ([]rules.Move, error) {
	var moves []rules.Move
	err := r.Query(ctx, func(m *Machine) {
		moves = m.LegalMoves(from)
	})
	return moves, err
}

// Latest returns the most recently published snapshot.
func (r *Runner) Latest() Snapshot {
	if s := r.latest.Load(); s != nil {
		return *s
	}
	return Snapshot{SessionID: r.id, Status: Idle.String()}
}

// Subscribe returns a channel receiving every published snapshot and a
// cancel function. Slow subscribers miss snapshots rather than block the
// loop; Seq lets them notice.
func (r *Runner) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
		})
	}
}

// Run processes events until ctx is cancelled or Stop is called.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("session starting", "session", r.id)
	r.publish()

	defer r.drain()
	for {
		if it, ok := r.inbox.TryDequeue(); ok {
			r.process(ctx, it)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("session stopping: context cancelled", "session", r.id)
			r.inbox.Close()
			r.cancelTimers()
			return ctx.Err()
		case <-r.inbox.Wait():
			if r.inbox.Done() {
				slog.Info("session stopping: inbox closed", "session", r.id)
				r.cancelTimers()
				return nil
			}
		}
	}
}

// Stop closes the inbox; Run returns once it is drained.
func (r *Runner) Stop() {
	r.inbox.Close()
}

// drain answers any submissions still queued after the loop exits.
func (r *Runner) drain() {
	for {
		it, ok := r.inbox.TryDequeue()
		if !ok {
			return
		}
		if it.reply != nil {
			it.reply <- ErrStopped
		}
		if it.done != nil {
			close(it.done)
		}
	}
}

func (r *Runner) process(ctx context.Context, it item) {
	if it.fn != nil {
		it.fn(r.machine)
		close(it.done)
		return
	}

	before := r.machine.Generation()
	effects, err := r.machine.Update(it.ev)
	if it.reply != nil {
		it.reply <- err
	}
	if err != nil {
		slog.Debug("session event rejected", "event", it.ev.Type.String(), "error", err)
	}

	if r.machine.Generation() != before {
		r.cancelTimers()
	}
	for _, eff := range effects {
		r.perform(ctx, eff)
	}
	r.publish()
}

func (r *Runner) perform(ctx context.Context, eff Effect) {
	switch eff.Type {
	case EffectSchedule:
		ev := eff.Event
		r.timers = append(r.timers, r.sched.AfterFunc(eff.Delay, func() {
			r.inbox.Enqueue(item{ev: ev})
		}))

	case EffectFetch:
		req := eff.Request
		go func() {
			puzzles, err := r.source.Fetch(ctx, req)
			r.inbox.Enqueue(item{ev: Event{Type: EventBatchFetched, Puzzles: puzzles, Err: err}})
		}()

	case EffectRecord:
		if r.recorder == nil {
			return
		}
		rec := eff.Record
		rec.SessionID = r.id
		if err := r.recorder.RecordAttempt(ctx, rec); err != nil {
			slog.Error("failed to record attempt", "session", r.id, "puzzle", rec.PuzzleID, "error", err)
		}
	}
}

func (r *Runner) cancelTimers() {
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = r.timers[:0]
}

func (r *Runner) publish() {
	snap := r.machine.Snapshot()
	snap.Seq = r.clock.Next()
	snap.SessionID = r.id
	r.latest.Store(&snap)

	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
