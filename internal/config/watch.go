package config

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher observes the config file and category table on disk and calls
// OnChange after writes settle. Editors replace files with rename+create
// bursts, so events are debounced and the parent directories are watched
// rather than the files themselves.
type Watcher struct {
	logger   *zap.Logger
	paths    []string
	debounce time.Duration
	onChange func(context.Context)
}

func NewWatcher(paths []string, debounce time.Duration, onChange func(context.Context), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounceMillis * time.Millisecond
	}
	return &Watcher{
		logger:   logger.Named("config_watcher"),
		paths:    paths,
		debounce: debounce,
		onChange: onChange,
	}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watcher failed", zap.Error(err))
		return
	}
	defer watcher.Close()

	watched := make(map[string]struct{})
	for _, path := range w.paths {
		dir := filepath.Dir(path)
		if _, ok := watched[dir]; ok {
			continue
		}
		watched[dir] = struct{}{}
		if err := watcher.Add(dir); err != nil {
			w.logger.Warn("config watcher add failed", zap.String("path", dir), zap.Error(err))
		}
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-watcher.Errors:
			if err != nil {
				w.logger.Warn("config watcher error", zap.Error(err))
			}
		case event := <-watcher.Events:
			if !w.shouldReloadForPath(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.onChange(ctx)
		}
	}
}

func (w *Watcher) shouldReloadForPath(path string) bool {
	if path == "" {
		return false
	}
	base := filepath.Base(path)
	for _, watched := range w.paths {
		if strings.EqualFold(base, filepath.Base(watched)) {
			return true
		}
	}
	return false
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
