package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a Watcher waits for writes to settle before
// reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a registry when its files change. It watches each
// directory passed to NewWatcher and the parent directory of each file, so
// editors that save by renaming are noticed. Included files outside those
// directories are not watched.
type Watcher struct {
	// Debounce is the quiet period before a reload. Set it before Run.
	Debounce time.Duration

	paths  []string
	logger *log.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher starts watching paths, the same arguments Load takes. Changes
// made after NewWatcher returns are picked up by Run.
func NewWatcher(logger *log.Logger, paths ...string) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch registry: %w", err)
	}
	w := &Watcher{Debounce: DefaultDebounce, paths: paths, logger: logger, fsw: fsw}
	for _, p := range paths {
		dir := p
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Debug("watching registry", "dir", dir)
	}
	return w, nil
}

// Run waits for changes to registry files and calls onReload with each
// successfully reloaded registry. A reload that fails is logged and the
// previous registry stays in use. Run returns when ctx is done and closes
// the watcher.
func (w *Watcher) Run(ctx context.Context, onReload func(*Registry)) error {
	defer w.fsw.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("registry file changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("registry watcher", "error", err)
		case <-fire:
			fire = nil
			reg, err := Load(w.logger, w.paths...)
			if err != nil {
				w.logger.Warn("registry reload failed, keeping the previous one", "error", err)
				continue
			}
			w.logger.Info("registry reloaded", "packages", len(reg.packages))
			onReload(reg)
		}
	}
}

// Close stops watching without running.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func relevant(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != Extension {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
