package hemodynamics

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchTuning reloads the tuning file at path whenever it is written and
// passes the new Tuning to onChange. A reload that fails to parse or
// validate is logged and skipped, so the caller keeps its previous tuning.
// It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that
// replace the file through a rename keep triggering reloads.
func WatchTuning(ctx context.Context, path string, onChange func(Tuning)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	slog.Info("tuning: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			t, err := LoadTuningFile(path)
			if err != nil {
				// A rename away from path leaves nothing to load until the
				// replacement lands.
				slog.Error("tuning: reload failed, keeping previous tuning", "path", path, "error", err)
				continue
			}
			slog.Info("tuning: reloaded", "path", path)
			onChange(t)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("tuning: watcher error", "error", err)
		}
	}
}
