// Package watch re-runs the rollup whenever input files land in the upload
// directory, coalescing bursts of file events.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"command-centre/command/rollup"
	"command-centre/domain/config"
	"command-centre/trigger"
)

// Watcher reports input file changes in one directory.
type Watcher struct {
	dir string
	w   *fsnotify.Watcher
}

// NewWatcher starts watching dir, creating it if needed.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, w: w}, nil
}

func (w *Watcher) Close() error { return w.w.Close() }

// Loop schedules d for every relevant event until ctx is done.
func (w *Watcher) Loop(ctx context.Context, d *trigger.Debouncer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			slog.Debug("watch.event", "file", ev.Name, "op", ev.Op.String())
			d.Schedule()
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch.error", "dir", w.dir, "err", err)
		}
	}
}

// relevant skips chmod-only events, hidden files (partial downloads) and
// office lock files.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	return !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "~$")
}

// Run watches the upload directory of cfg until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	env, err := rollup.Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer env.Close()

	w, err := NewWatcher(cfg.Inputs.UploadDir)
	if err != nil {
		return err
	}
	defer w.Close()

	d := trigger.NewDebouncer(cfg.Web.Debounce, func() {
		if _, err := env.Runner.Run(ctx, "watch"); err != nil {
			slog.Error("watch.run.failed", "err", err)
		}
	})
	defer d.Stop()

	slog.Info("watch.start", "dir", cfg.Inputs.UploadDir, "debounce", cfg.Web.Debounce.String())
	return w.Loop(ctx, d)
}
