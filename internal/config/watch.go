package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"LedgerRouter/internal/logger"
)

// reloadDebounce groups the burst of events an editor produces on save.
const reloadDebounce = 200 * time.Millisecond

// WatchRouter reloads the router configuration at path whenever the file
// changes and passes each valid version to onChange. Invalid versions are
// logged and skipped. It returns when ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors and
// config managers that replace the file by rename are followed.
func WatchRouter(ctx context.Context, path string, onChange func(*RouterConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher:\n%w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path:\n%w", err)
	}

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s:\n%w", filepath.Dir(target), err)
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil

			cfg, err := LoadRouter(target)
			if err != nil {
				logger.Warn("config reload rejected", "path", target, "error", err)
				continue
			}

			logger.Info("config reloaded", "path", target, "shards", len(cfg.Shards))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", "error", err)
		}
	}
}
