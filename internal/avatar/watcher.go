package avatar

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to bundle directories. Changes under one root are
// debounced into a single callback with that root.
type Watcher struct {
	mu sync.Mutex

	fsw      *fsnotify.Watcher
	delay    time.Duration
	onChange func(root string)
	logger   *slog.Logger

	// roots maps each watched bundle root to its debouncer.
	roots map[string]*debouncer

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher starts a watcher calling onChange delay after the last change
// under a root.
func NewWatcher(delay time.Duration, onChange func(root string), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		fsw:      fsw,
		delay:    delay,
		onChange: onChange,
		logger:   logger,
		roots:    make(map[string]*debouncer),
		closeCh:  make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.roots[abs]; ok {
		return nil
	}
	if err := w.addTree(abs); err != nil {
		return err
	}
	w.roots[abs] = newDebouncer(w.delay, func() { w.onChange(abs) })
	return nil
}

// addTree registers dir and its sub-directories with fsnotify.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// Remove stops watching root. Pending callbacks for it are dropped.
func (w *Watcher) Remove(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	d, ok := w.roots[abs]
	if !ok {
		return nil
	}
	d.Cancel()
	delete(w.roots, abs)

	for _, p := range w.fsw.WatchList() {
		if p == abs || strings.HasPrefix(p, abs+string(filepath.Separator)) {
			_ = w.fsw.Remove(p)
		}
	}
	return nil
}

// Roots returns the watched bundle roots.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	roots := make([]string, 0, len(w.roots))
	for r := range w.roots {
		roots = append(roots, r)
	}
	return roots
}

// Close stops the watcher. Pending callbacks are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for _, d := range w.roots {
		d.Cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("avatar watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	root, d := w.rootOf(event.Name)
	if d == nil {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("avatar watcher add failed", "path", event.Name, "error", err)
			}
			d.Call()
			return
		}
	}
	if !isBundleFile(event.Name) {
		return
	}

	w.logger.Debug("avatar file changed", "root", root, "path", event.Name, "op", event.Op.String())
	d.Call()
}

// rootOf returns the watched root containing p.
func (w *Watcher) rootOf(p string) (string, *debouncer) {
	for root, d := range w.roots {
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			return root, d
		}
	}
	return "", nil
}
