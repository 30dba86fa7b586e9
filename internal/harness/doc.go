// Package harness runs scripted puzzle-session scenarios.
//
// A scenario drives a session.Machine synchronously under virtual time:
// every effect the machine returns is performed inline, fetches are served
// from a scripted source, and deferred events fire only when a step
// advances the clock. The resulting transcript is deterministic, so it is
// compared against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: solve_italian
//	description: "Player solves a three-ply puzzle"
//	session:
//	  reply_delay: 500ms
//	  advance_delay: 2s
//	queue:
//	  - id: italian
//	    position: "e4 e5"
//	    solution: [g1f3, b8c6, f1c4]
//	    rating: 1350
//	fetches:
//	  - puzzles: [...]
//	  - error: "unavailable"
//	flow:
//	  - do: start
//	    expect: { status: awaiting_player_move, puzzle: italian }
//	  - do: move g1f3
//	  - do: advance 500ms
//	assertions:
//	  - type: attempt_logged
//	    puzzle: italian
//	    result: correct
//
// # Steps
//
//   - start, skip, reset: submit the matching session event
//   - move <coord>: submit a move in coordinate form
//   - advance <duration>: move virtual time forward and deliver due events
//
// # Assertion Types
//
//   - attempt_logged: an attempt with the given puzzle, result and move was recorded
//   - attempt_order: the given results were recorded in this order
//   - attempt_count: exactly count attempts with the given result were recorded
//   - final_state: the final snapshot matches status, message, puzzle and index
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/solve_italian.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
package harness
