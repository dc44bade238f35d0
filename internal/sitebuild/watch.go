package sitebuild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

// DefaultDebounce coalesces bursts of editor writes into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// Watch builds once and then rebuilds after every change under the source
// directory until ctx is done. onBuild receives every build outcome.
func (b *Builder) Watch(ctx context.Context, debounce time.Duration, onBuild func(*Result, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	outAbs, err := filepath.Abs(b.cfg.OutDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err = b.addDirs(watcher, outAbs); err != nil {
		return err
	}

	onBuild(b.Build())

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if b.ignored(event.Name, outAbs) || event.Op == fsnotify.Chmod {
				continue
			}
			b.logger.Debug("Source changed",
				infralogger.String("path", event.Name),
				infralogger.String("op", event.Op.String()),
			)
			if event.Op.Has(fsnotify.Create) {
				// new directories need their own watch
				_ = b.addDirs(watcher, outAbs)
			}
			timer.Reset(debounce)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			b.logger.Warn("Watcher error", infralogger.Error(watchErr))

		case <-timer.C:
			onBuild(b.Build())
		}
	}
}

func (b *Builder) addDirs(watcher *fsnotify.Watcher, outAbs string) error {
	return filepath.WalkDir(b.cfg.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if b.ignored(path, outAbs) {
			return filepath.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			return fmt.Errorf("watch %s: %w", path, addErr)
		}
		return nil
	})
}

func (b *Builder) ignored(path, outAbs string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	if abs == outAbs || strings.HasPrefix(abs, outAbs+string(filepath.Separator)) {
		return true
	}
	rel, err := filepath.Rel(b.cfg.SourceDir, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") || part == "node_modules" {
			return true
		}
	}
	return false
}
