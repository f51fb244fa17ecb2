package testutil

// FixedRunID generates the same run id every time, so recorded baselines and
// golden snapshots are byte-identical across test runs.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a fixed generator. An empty id defaults to "test-run".
func NewFixedRunID(id string) FixedRunID {
	if id == "" {
		id = "test-run"
	}
	return FixedRunID{id: id}
}

// Generate returns the fixed id.
func (g FixedRunID) Generate() string {
	return g.id
}
