package scanner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last filesystem
// event before triggering a rescan. Editors fire bursts of events per save.
const DefaultDebounce = 2 * time.Second

// Watch monitors rootPath and runs onChange after filesystem activity
// settles. It blocks until ctx is canceled. Rescans that overlap a running
// scan fail with ErrScanInProgress and are retried on the next event burst.
func (s *Scanner) Watch(ctx context.Context, rootPath string, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := s.addWatchDirs(watcher, rootPath); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories need their own watches
			if event.Op.Has(fsnotify.Create) {
				_ = s.addWatchDirs(watcher, event.Name)
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			report, err := s.Scan(ctx, rootPath)
			if err == ErrScanInProgress {
				timer.Reset(debounce)
				continue
			}
			if err != nil {
				return err
			}
			if report.Changed() && onChange != nil {
				onChange()
			}
		}
	}
}

// addWatchDirs registers path and every non-ignored directory under it.
func (s *Scanner) addWatchDirs(watcher *fsnotify.Watcher, path string) error {
	dirs, err := s.listWatchDirs(path)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			s.log.Warn("failed to watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}
	return nil
}

func (s *Scanner) listWatchDirs(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var dirs []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && s.ignore.SkipDir(info.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}
