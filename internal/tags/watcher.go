package tags

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch re-seeds the catalog whenever the catalog file changes, until ctx is
// cancelled. Writers see the new tags once the cache TTL expires.
//
// The parent directory is watched rather than the file so that editors that
// replace the file by rename keep triggering events.
func Watch(ctx context.Context, w Writer, path string, logger *slog.Logger) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("tags watcher: started", slog.String("path", abs))

	// Debounce bursts of writes from a single save.
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("tags watcher: stopped")
			return nil

		case <-timerCh:
			n, err := SeedFromFile(ctx, w, abs)
			if err != nil {
				logger.Warn("tags watcher: reseed failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("tags watcher: catalog reseeded", slog.Int("tags", n))

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(100 * time.Millisecond)
				timerCh = timer.C
			} else {
				timer.Reset(100 * time.Millisecond)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("tags watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
