package expected

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change before
// reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the store whenever a *.properties file below the root
// changes, until ctx is cancelled. Bursts of events within debounce collapse
// into one reload. onReload, if non-nil, is called after each reload attempt
// with its error. Reload errors keep the previous snapshot.
//
// Directories created after Watch starts are not watched.
func (d *Dir) Watch(ctx context.Context, debounce time.Duration, onReload func(error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", d.root, err)
	}
	defer w.Close()

	err = filepath.WalkDir(d.root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			return nil
		}
		if p != d.root && filepath.Clean(p) == filepath.Clean(d.recordRoot) {
			return fs.SkipDir
		}
		return w.Add(p)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", d.root, err)
	}
	d.logger.Debug("expected: watching", "root", d.root)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			d.logger.Debug("expected: change", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("expected: watcher error", "error", err)

		case <-timer.C:
			err := d.Reload()
			if err != nil {
				d.logger.Warn("expected: reload failed, keeping previous values", "error", err)
			}
			if onReload != nil {
				onReload(err)
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, ".properties") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
