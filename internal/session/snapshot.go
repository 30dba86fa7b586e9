package session

// Snapshot is what the session publishes to the UI after every transition.
type Snapshot struct {
	Seq            int64  `json:"seq"`
	SessionID      string `json:"session_id"`
	Position       string `json:"position"`
	SideToMove     string `json:"side_to_move,omitempty"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	PuzzleID       string `json:"puzzle_id,omitempty"`
	PuzzleRating   *int   `json:"puzzle_rating,omitempty"`
	SolutionIndex  int    `json:"solution_index"`
	SolutionLength int    `json:"solution_length"`
	Outcome        string `json:"outcome,omitempty"`
}

// Snapshot returns the current view of the session. Seq and SessionID are
// filled in by the Runner.
func (m *Machine) Snapshot() Snapshot {
	s := m.state
	snap := Snapshot{
		Status:        s.Status.String(),
		Message:       s.Message,
		SolutionIndex: s.SolutionIndex,
	}
	if s.Position != nil {
		snap.Position = s.Position.Serialize()
		snap.SideToMove = s.Position.SideToMove().String()
	}
	if s.Puzzle != nil {
		rating := s.Puzzle.Rating
		snap.PuzzleID = s.Puzzle.ID
		snap.PuzzleRating = &rating
		snap.SolutionLength = len(s.Puzzle.Solution)
	}
	if s.Terminal {
		snap.Outcome = s.Outcome.Message()
	}
	return snap
}
