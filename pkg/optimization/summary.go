// Package optimization provides shared data structures for adjustment ranking runs.
package optimization

// Summary captures the bookkeeping of a single ranking run.
type Summary struct {
	RunID               string   `json:"run_id"`
	GoalID              string   `json:"goal_id"`
	BaselineProbability float64  `json:"baseline_probability"`
	Iterations          int      `json:"iterations"`
	Seed                int64    `json:"seed"`
	Generated           int      `json:"generated"`
	Evaluated           int      `json:"evaluated"`
	Dropped             int      `json:"dropped"`
	Notes               []string `json:"notes,omitempty"`
}

// AddNote appends a human-readable note, typically why a candidate was dropped.
func (s *Summary) AddNote(note string) {
	s.Notes = append(s.Notes, note)
}
