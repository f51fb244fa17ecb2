package store

import (
	"context"
	"fmt"
	"sync"
)

// Candidate is one recorded observation.
type Candidate struct {
	RunID  string `json:"run_id"`
	Seq    int64  `json:"seq"`
	Key    string `json:"key"`
	Path   string `json:"path"`
	Value  string `json:"value"`
	Device string `json:"device,omitempty"`
}

// BeginRun registers a run. The run gets the next ordinal.
// Uses ON CONFLICT(id) DO NOTHING - beginning the same run twice is a no-op.
func (s *Store) BeginRun(ctx context.Context, runID, label string) error {
	if runID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, ordinal, label)
		VALUES (?, (SELECT COALESCE(MAX(ordinal), 0) + 1 FROM runs), ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, label)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteCandidate appends an observation. The run must exist (foreign key).
func (s *Store) WriteCandidate(ctx context.Context, c Candidate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recorded_values (run_id, seq, key, path, value, device)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.RunID, c.Seq, c.Key, c.Path, c.Value, c.Device)
	if err != nil {
		return fmt.Errorf("write candidate %s: %w", c.Key, err)
	}
	return nil
}

// Recorder appends recorded values to the store under one run. It satisfies
// expected.Recorder, so it can be combined with the file-backed recorder.
type Recorder struct {
	store  *Store
	runID  string
	label  string
	device string
	clock  Clock

	mu    sync.Mutex
	begun bool
}

// NewRecorder creates a recorder for runID. The run row is created on the
// first recorded value. A nil clock uses a fresh SeqClock.
func (s *Store) NewRecorder(runID, label, device string, clock Clock) *Recorder {
	if clock == nil {
		clock = NewClock()
	}
	return &Recorder{store: s, runID: runID, label: label, device: device, clock: clock}
}

// RunID returns the run the recorder writes to.
func (r *Recorder) RunID() string { return r.runID }

// WithDevice returns a recorder for the same run and clock that stamps
// values with device.
func (r *Recorder) WithDevice(device string) *Recorder {
	return &Recorder{store: r.store, runID: r.runID, label: r.label, device: device, clock: r.clock}
}

// RecordNewValue appends key=value observed under path.
func (r *Recorder) RecordNewValue(ctx context.Context, path, key, value string) error {
	r.mu.Lock()
	if !r.begun {
		if err := r.store.BeginRun(ctx, r.runID, r.label); err != nil {
			r.mu.Unlock()
			return err
		}
		r.begun = true
	}
	r.mu.Unlock()

	return r.store.WriteCandidate(ctx, Candidate{
		RunID:  r.runID,
		Seq:    r.clock.Next(),
		Key:    key,
		Path:   path,
		Value:  value,
		Device: r.device,
	})
}
