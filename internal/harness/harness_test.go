package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its transcript with the golden file of the same name.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

// TestScenariosReplay checks that running the same scenario twice produces
// identical transcripts.
func TestScenariosReplay(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/wrong_move_rollback.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Transcript(), second.Transcript())
	assert.Equal(t, first.Attempts, second.Attempts)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatch
description: "expect clause disagrees with the session"
queue:
  - id: p1
    position: "e4"
    solution: [e7e5]
flow:
  - do: start
    expect: { status: solved, puzzle: p2 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `status: expected "solved", got "awaiting_player_move"`)
	assert.Contains(t, result.Errors[1], `puzzle: expected "p2", got "p1"`)
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: rejected
description: "a move before start is rejected"
flow:
  - do: move e2e4
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error: session is not awaiting a move")
}

func TestRun_ExpectedErrorMissingFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: no_error
description: "expects an error that never comes"
flow:
  - do: start
    expect: { error: "illegal move" }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected error containing "illegal move", got none`)
}

func TestRun_SessionIDAndFinalSnapshot(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/solve_italian.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Attempts, 2)
	for _, a := range result.Attempts {
		assert.Equal(t, "solve_italian", a.SessionID)
	}
	assert.Equal(t, "queens", result.Final.PuzzleID)
	assert.Equal(t, int64(len(result.Trace)), result.Final.Seq)
}

func TestScriptedSource_ExhaustedReturnsEmpty(t *testing.T) {
	src := &scriptedSource{answers: []FetchSpec{{Error: "down"}}}

	_, err := src.Fetch(context.Background(), puzzle.Request{MaxCount: 5})
	require.Error(t, err)
	assert.Equal(t, "fetch puzzles: down", err.Error())

	batch, err := src.Fetch(context.Background(), puzzle.Request{MaxCount: 5})
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 2, src.calls)
}
