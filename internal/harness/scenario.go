package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

// Scenario defines a scripted puzzle session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session overrides the session defaults.
	Session *SessionSettings `yaml:"session,omitempty"`

	// Queue holds puzzles present before the first step.
	Queue []PuzzleSpec `yaml:"queue,omitempty"`

	// Fetches are the source's answers, one per fetch, in order. Fetches
	// beyond the list return an empty batch.
	Fetches []FetchSpec `yaml:"fetches,omitempty"`

	// Flow is the list of steps to execute.
	Flow []Step `yaml:"flow"`

	// Assertions validate the attempt log and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SessionSettings overrides fields of session.DefaultConfig. Zero values
// keep the default.
type SessionSettings struct {
	ReplyDelay    time.Duration `yaml:"reply_delay"`
	RollbackDelay time.Duration `yaml:"rollback_delay"`
	AdvanceDelay  time.Duration `yaml:"advance_delay"`
	MaxSkips      int           `yaml:"max_skips"`
	MaxCount      int           `yaml:"max_count"`
	MinRating     int           `yaml:"min_rating"`
}

// PuzzleSpec is a puzzle record as written in a scenario.
type PuzzleSpec struct {
	ID       string   `yaml:"id"`
	Position string   `yaml:"position"`
	Solution []string `yaml:"solution"`
	Rating   int      `yaml:"rating"`
}

// FetchSpec is one scripted fetch answer: a batch or an error.
type FetchSpec struct {
	Puzzles []PuzzleSpec `yaml:"puzzles,omitempty"`
	Error   string       `yaml:"error,omitempty"`
}

// Step is one action against the session.
type Step struct {
	// Do is "start", "skip", "reset", "move <coord>" or "advance <duration>".
	Do string `yaml:"do"`

	// Expect is checked against the snapshot after the step settles.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match against a snapshot. Empty fields are not checked.
type Expect struct {
	Status  string `yaml:"status,omitempty"`
	Message string `yaml:"message,omitempty"`
	Puzzle  string `yaml:"puzzle,omitempty"`
	Index   *int   `yaml:"index,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Error is a substring of the error a rejected move must return.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the attempt log or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "attempt_logged": an attempt matching puzzle/result/move exists
	// - "attempt_order": results appear in this order
	// - "attempt_count": result appears exactly count times
	// - "final_state": the final snapshot matches expect
	Type string `yaml:"type"`

	Puzzle string `yaml:"puzzle,omitempty"`
	Result string `yaml:"result,omitempty"`
	Move   string `yaml:"move,omitempty"`

	// Results is the expected order (used by attempt_order).
	Results []string `yaml:"results,omitempty"`

	// Count is the expected number of occurrences (used by attempt_count).
	Count int `yaml:"count,omitempty"`

	// Expect is the final snapshot match (used by final_state).
	Expect *Expect `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertAttemptLogged = "attempt_logged"
	AssertAttemptOrder  = "attempt_order"
	AssertAttemptCount  = "attempt_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Config returns the session settings the scenario runs with.
func (s *Scenario) Config() session.Config {
	cfg := session.DefaultConfig()
	o := s.Session
	if o == nil {
		return cfg
	}
	if o.ReplyDelay > 0 {
		cfg.ReplyDelay = o.ReplyDelay
	}
	if o.RollbackDelay > 0 {
		cfg.RollbackDelay = o.RollbackDelay
	}
	if o.AdvanceDelay > 0 {
		cfg.AdvanceDelay = o.AdvanceDelay
	}
	if o.MaxSkips > 0 {
		cfg.MaxSkips = o.MaxSkips
	}
	if o.MaxCount > 0 {
		cfg.Request.MaxCount = o.MaxCount
	}
	cfg.Request.MinRating = o.MinRating
	return cfg
}

// Puzzle converts the scenario entry to a puzzle record.
func (p PuzzleSpec) Puzzle() puzzle.Puzzle {
	return puzzle.Puzzle{
		ID:              p.ID,
		InitialPosition: p.Position,
		Solution:        p.Solution,
		Rating:          p.Rating,
	}
}

func toPuzzles(specs []PuzzleSpec) []puzzle.Puzzle {
	out := make([]puzzle.Puzzle, len(specs))
	for i, p := range specs {
		out[i] = p.Puzzle()
	}
	return out
}

// validateScenario checks that required fields are present and valid.
// Puzzle records are not validated: malformed ones are how scenarios
// exercise the skip loop.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, f := range s.Fetches {
		if f.Error != "" && len(f.Puzzles) > 0 {
			return fmt.Errorf("fetches[%d]: puzzles and error are mutually exclusive", i)
		}
	}

	for i, step := range s.Flow {
		if _, err := parseStep(step.Do); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAttemptLogged:
		if a.Puzzle == "" && a.Result == "" && a.Move == "" {
			return fmt.Errorf("assertions[%d]: puzzle, result or move is required for attempt_logged", index)
		}
	case AssertAttemptOrder:
		if len(a.Results) == 0 {
			return fmt.Errorf("assertions[%d]: results list is required for attempt_order", index)
		}
	case AssertAttemptCount:
		if a.Result == "" {
			return fmt.Errorf("assertions[%d]: result is required for attempt_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for attempt_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// stepKind identifies a parsed step.
type stepKind int

const (
	stepStart stepKind = iota + 1
	stepSkip
	stepReset
	stepMove
	stepAdvance
)

type parsedStep struct {
	kind    stepKind
	attempt rules.Attempt
	advance time.Duration
}

func parseStep(do string) (parsedStep, error) {
	fields := strings.Fields(do)
	if len(fields) == 0 {
		return parsedStep{}, fmt.Errorf("do is required")
	}

	switch fields[0] {
	case "start", "skip", "reset":
		if len(fields) != 1 {
			return parsedStep{}, fmt.Errorf("%s takes no argument", fields[0])
		}
		kind := stepStart
		if fields[0] == "skip" {
			kind = stepSkip
		} else if fields[0] == "reset" {
			kind = stepReset
		}
		return parsedStep{kind: kind}, nil

	case "move":
		if len(fields) != 2 {
			return parsedStep{}, fmt.Errorf("move needs exactly one coordinate")
		}
		a, err := rules.ParseCoordinate(fields[1])
		if err != nil {
			return parsedStep{}, err
		}
		return parsedStep{kind: stepMove, attempt: a}, nil

	case "advance":
		if len(fields) != 2 {
			return parsedStep{}, fmt.Errorf("advance needs exactly one duration")
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return parsedStep{}, fmt.Errorf("advance: %w", err)
		}
		if d <= 0 {
			return parsedStep{}, fmt.Errorf("advance: duration must be positive")
		}
		return parsedStep{kind: stepAdvance, advance: d}, nil
	}
	return parsedStep{}, fmt.Errorf("unknown step %q", fields[0])
}
