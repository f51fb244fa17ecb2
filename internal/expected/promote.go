package expected

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Change is one key whose expected value a promotion adds or replaces.
type Change struct {
	Key string `json:"key"`
	Old string `json:"old,omitempty"`
	New string `json:"new"`
	// Added is true when the key had no expected value before.
	Added bool `json:"added"`
}

// Promote merges every recorded.properties below recordRoot into
// expectedFile, creating it if needed. Unchanged keys are not reported.
// When dryRun is set the file is left untouched.
func Promote(recordRoot, expectedFile string, dryRun bool) ([]Change, error) {
	recorded := make(map[string]string)
	err := filepath.WalkDir(recordRoot, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || e.Name() != RecordedFile {
			return nil
		}
		values, err := readFile(p)
		if err != nil {
			return err
		}
		for k, v := range values {
			recorded[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("promote: scan %s: %w", recordRoot, err)
	}
	return PromoteValues(recorded, expectedFile, dryRun)
}

// PromoteValues merges values into expectedFile.
func PromoteValues(values map[string]string, expectedFile string, dryRun bool) ([]Change, error) {
	current, err := readFile(expectedFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("promote: %w", err)
	}
	if current == nil {
		current = make(map[string]string)
	}

	var changes []Change
	for k, v := range values {
		old, ok := current[k]
		if ok && old == v {
			continue
		}
		changes = append(changes, Change{Key: k, Old: old, New: v, Added: !ok})
		current[k] = v
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })

	if dryRun || len(changes) == 0 {
		return changes, nil
	}
	if err := os.MkdirAll(filepath.Dir(expectedFile), 0o755); err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	if err := writeFile(expectedFile, current); err != nil {
		return nil, fmt.Errorf("promote: write %s: %w", expectedFile, err)
	}
	return changes, nil
}

// multiRecorder fans a recorded value out to several recorders.
type multiRecorder []Recorder

// Recorders combines recorders. Nil entries are skipped. All recorders are
// attempted; their errors are joined.
func Recorders(rs ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) RecordNewValue(ctx context.Context, path, key, value string) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordNewValue(ctx, path, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
