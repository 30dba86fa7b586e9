// Package session implements the puzzle session state machine.
//
// The Machine owns the active puzzle, its position, and the index into the
// solution line. It is driven by Update(event), which mutates the owned
// state and returns effects for the caller to perform: deferred events,
// puzzle fetches, and attempt records.
//
// STATES:
//
//	Idle -> AwaitingPlayerMove -> Verifying -> Correct   -> AwaitingPlayerMove
//	                                        -> Correct   -> Solved -> Idle
//	                                        -> Incorrect -> AwaitingPlayerMove
//
// DEFERRED EVENTS:
//
// The scripted reply, the rollback after a wrong move, and the advance after
// a solve are Schedule effects whose events carry the generation at which
// they were scheduled. Every puzzle change bumps the generation, so an event
// from an earlier puzzle is dropped instead of mutating the new position.
// While one of these events is pending the status stays Correct, Incorrect
// or Solved, and Move events are rejected with ErrNotAwaitingMove.
//
// RUNNER:
//
// Runner is the single-writer loop around a Machine. Player input, fired
// timers and fetch results are all funnelled through one FIFO and processed
// on one goroutine; after every processed event a Snapshot is published.
// There is no locking around the Machine because nothing else touches it.
package session
