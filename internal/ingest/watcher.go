package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/bill-audit/constants"
)

// archiveExts is what an inbox watcher emits by default.
var archiveExts = map[string]struct{}{"zip": {}}

// WatchConfig configures StartWatcher.
type WatchConfig struct {
	Roots       []string // directories to watch (recursive)
	AllowedExts map[string]struct{}
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid write bursts of one upload
	Logger      *slog.Logger
}

// StartWatcher emits paths of archives that appear under the roots. An
// archive is emitted once its write burst has been quiet for Debounce.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = archiveExts
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	addDir := func(root string) error {
		return filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if p != root && (IsHidden(p) || isIgnoredDir(root, p)) {
					return filepath.SkipDir
				}
				return w.Add(p)
			}
			if cfg.InitialScan && allowed(p, cfg.AllowedExts) {
				select {
				case evCh <- p:
				default:
				}
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("ingest.watch.add_root", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("ingest.watch.start", "roots", cfg.Roots, "debounce", cfg.Debounce)

	go func() {
		pending := map[string]struct{}{}
		flush := make(chan struct{}, 1)
		var timer *time.Timer

		defer func() {
			if timer != nil {
				timer.Stop()
			}
			_ = w.Close()
			close(evCh)
			close(errCh)
		}()

		sendPending := func() bool {
			for p := range pending {
				select {
				case evCh <- p:
				case <-ctx.Done():
					return false
				}
				delete(pending, p)
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-flush:
				if !sendPending() {
					return
				}
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() && !IsHidden(e.Name) {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_dir", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !allowed(e.Name, cfg.AllowedExts) || IsHidden(e.Name) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !sendPending() {
						return
					}
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(cfg.Debounce, func() {
					select {
					case flush <- struct{}{}:
					default:
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

func isIgnoredDir(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return constants.IsIgnoredPath(filepath.ToSlash(rel))
}
