package launcher

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce coalesces editor save bursts into one restart.
const reloadDebounce = 500 * time.Millisecond

// runWithReload runs a single worker and restarts it when watched files change.
func (l *Launcher) runWithReload(ctx context.Context, lf *os.File) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, l.opts.WatchDir); err != nil {
		return err
	}

	cmd, err := l.spawn(lf, 0)
	if err != nil {
		return err
	}
	wait := waitChan(cmd)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			l.stopAndWait(cmd, wait)
			return nil
		case err := <-wait:
			// Worker exited on its own; hand its status back.
			return err
		case ev, ok := <-watcher.Events:
			if !ok {
				l.stopAndWait(cmd, wait)
				return nil
			}
			// New directories need watching too.
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addWatchTree(watcher, ev.Name)
				}
			}
			if !reloadRelevant(ev) {
				continue
			}
			l.log.Debug("change detected", zap.String("file", ev.Name))
			pending = time.After(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if ok && err != nil {
				l.log.Warn("watch error", zap.Error(err))
			}
		case <-pending:
			pending = nil
			l.log.Info("reloading worker")
			l.stopAndWait(cmd, wait)
			cmd, err = l.spawn(lf, 0)
			if err != nil {
				return err
			}
			wait = waitChan(cmd)
		}
	}
}

func waitChan(cmd *exec.Cmd) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- cmd.Wait() }()
	return ch
}

// addWatchTree registers dir and every subdirectory, skipping hidden and
// dependency directories.
func addWatchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != dir && (strings.HasPrefix(base, ".") || base == "node_modules" || base == "vendor" || base == "__pycache__") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// reloadRelevant filters watch events down to source and config changes.
func reloadRelevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	return watchedFile(ev.Name)
}

// watchedFile reports whether a change to name should restart the worker.
func watchedFile(name string) bool {
	base := filepath.Base(name)
	if base == ".env" {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch filepath.Ext(base) {
	case ".go", ".sql", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}
