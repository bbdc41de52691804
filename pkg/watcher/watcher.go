// Package watcher notifies registered handlers when single files change.
//
// Changes are detected by polling os.Stat at a fixed interval and comparing
// (exists, size, mtime). An optional fsnotify watch on each parent directory
// wakes the poll loop early; the stat comparison still decides whether a
// change happened, so bursts of filesystem events collapse into one check.
//
// Each registration owns a dispatcher goroutine with a single-slot pending
// flag: handler calls for one file never overlap, and changes observed while
// a call is pending coalesce into it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/filerealm/internal/logger"
)

// DefaultInterval is the poll interval used when Config.Interval is zero.
const DefaultInterval = 5 * time.Second

// ErrStopped is returned by Register after Stop.
var ErrStopped = errors.New("watcher: stopped")

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("watcher: already started")

// Handler is invoked after a change to a registered file.
type Handler func()

// Notifier is the subset of Watcher used by consumers that only need change
// callbacks. Tests substitute a manual implementation.
type Notifier interface {
	Watch(path string, h Handler) (io.Closer, error)
}

// Config configures a Watcher.
type Config struct {
	// Interval between stat checks. Zero means DefaultInterval.
	Interval time.Duration

	// UseFSNotify enables early wakeups from filesystem events.
	UseFSNotify bool
}

type fileState struct {
	exists bool
	size   int64
	mod    time.Time
}

func statFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, size: info.Size(), mod: info.ModTime()}
}

func (s fileState) equal(o fileState) bool {
	return s.exists == o.exists && s.size == o.size && s.mod.Equal(o.mod)
}

// Watcher polls registered files and dispatches change handlers.
//
// Thread Safety: all methods are safe for concurrent use.
type Watcher struct {
	cfg Config

	mu      sync.Mutex
	regs    map[*Registration]struct{}
	dirs    map[string]int // parent directory -> registrations watching it
	fsw     *fsnotify.Watcher
	started bool
	stopped bool

	// checkMu serializes stat comparisons between the poll loop and Check.
	checkMu sync.Mutex

	wake     chan struct{}
	stopCh   chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher. Call Start to begin polling.
func New(cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Watcher{
		cfg:      cfg,
		regs:     make(map[*Registration]struct{}),
		dirs:     make(map[string]int),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Interval returns the effective poll interval.
func (w *Watcher) Interval() time.Duration {
	return w.cfg.Interval
}

// Start launches the poll loop. The loop exits when ctx is cancelled or Stop
// is called. If fsnotify cannot be initialized the watcher falls back to
// polling only.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true

	if w.cfg.UseFSNotify {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warn("fsnotify unavailable, polling only", logger.KeyError, err)
		} else {
			w.fsw = fsw
			for dir := range w.dirs {
				w.addDirLocked(dir)
			}
			go w.runFSNotify(fsw)
		}
	}
	w.mu.Unlock()

	go w.run(ctx)

	logger.Debug("file watcher started",
		logger.KeyInterval, w.cfg.Interval.String(),
		"fsnotify", w.fsw != nil,
	)
	return nil
}

// Stop terminates the poll loop and closes every registration. It is safe to
// call multiple times or on a watcher that was never started.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		started := w.started
		fsw := w.fsw
		w.fsw = nil
		regs := make([]*Registration, 0, len(w.regs))
		for r := range w.regs {
			regs = append(regs, r)
		}
		w.mu.Unlock()

		close(w.stopCh)
		if started {
			<-w.loopDone
		}
		if fsw != nil {
			_ = fsw.Close()
		}
		for _, r := range regs {
			_ = r.Close()
		}
	})
}

// Register starts watching path and returns the registration. h runs on the
// registration's dispatcher goroutine after each detected change.
func (w *Watcher) Register(path string, h Handler) (*Registration, error) {
	if h == nil {
		return nil, errors.New("watcher: nil handler")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve %q: %w", path, err)
	}

	r := &Registration{
		w:       w,
		path:    abs,
		handler: h,
		last:    statFile(abs),
		pending: make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, ErrStopped
	}
	w.regs[r] = struct{}{}
	dir := filepath.Dir(abs)
	w.dirs[dir]++
	if w.dirs[dir] == 1 && w.fsw != nil {
		w.addDirLocked(dir)
	}
	w.mu.Unlock()

	go r.dispatch()

	logger.Debug("watching file", logger.KeyPath, abs)
	return r, nil
}

// Watch implements Notifier.
func (w *Watcher) Watch(path string, h Handler) (io.Closer, error) {
	r, err := w.Register(path, h)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Check compares every registered file against its last observed state and
// schedules handlers for the ones that changed. The poll loop calls it on
// every tick; tests call it directly for deterministic detection.
func (w *Watcher) Check() {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	w.mu.Lock()
	regs := make([]*Registration, 0, len(w.regs))
	for r := range w.regs {
		regs = append(regs, r)
	}
	w.mu.Unlock()

	for _, r := range regs {
		cur := statFile(r.path)
		if cur.equal(r.last) {
			continue
		}
		r.last = cur
		logger.Debug("file change detected", logger.KeyPath, r.path, "exists", cur.exists)
		r.signal()
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.loopDone)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-w.wake:
			w.Check()
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) runFSNotify(fsw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.isRegistered(filepath.Clean(ev.Name)) {
				select {
				case w.wake <- struct{}{}:
				default:
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("fsnotify error", logger.KeyError, err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) isRegistered(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for r := range w.regs {
		if r.path == path {
			return true
		}
	}
	return false
}

// addDirLocked watches dir with fsnotify. Caller holds w.mu.
func (w *Watcher) addDirLocked(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		logger.Warn("fsnotify watch failed, relying on polling",
			logger.KeyPath, dir,
			logger.KeyError, err,
		)
	}
}

func (w *Watcher) release(r *Registration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.regs[r]; !ok {
		return
	}
	delete(w.regs, r)

	dir := filepath.Dir(r.path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if w.fsw != nil {
			_ = w.fsw.Remove(dir)
		}
	}
}

// Registration is one watched file with its handler.
type Registration struct {
	w       *Watcher
	path    string
	handler Handler

	// last is only touched under w.checkMu.
	last fileState

	pending   chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Path returns the absolute path being watched.
func (r *Registration) Path() string {
	return r.path
}

// Close deregisters the file and waits for an in-flight handler call to
// return. It must not be called from the handler itself. Idempotent.
func (r *Registration) Close() error {
	r.closeOnce.Do(func() {
		r.w.release(r)
		close(r.quit)
		<-r.done
	})
	return nil
}

// signal marks a handler call as pending. A call that is already pending
// absorbs the signal.
func (r *Registration) signal() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

func (r *Registration) dispatch() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case <-r.pending:
			select {
			case <-r.quit:
				return
			default:
			}
			r.invoke()
		}
	}
}

func (r *Registration) invoke() {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("file change handler panicked",
				logger.KeyPath, r.path,
				"panic", p,
			)
		}
	}()
	r.handler()
}
