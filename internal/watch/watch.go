// Package watch feeds edits of an on-disk tree file into a live session.
//
// The parent directory is watched rather than the file itself so that editors
// which save by writing a temp file and renaming it are still observed.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 150 * time.Millisecond

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce window. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnError sets the callback invoked for watch and read errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// WithInitial makes Start deliver the current file contents once before
// waiting for changes.
func WithInitial(initial bool) Option {
	return func(w *Watcher) {
		w.initial = initial
	}
}

// Watcher delivers the text of a file every time it settles after a change.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(text string)
	onError  func(error)
	initial  bool

	mu      sync.Mutex
	started bool
	fsw     *fsnotify.Watcher
	timer   *time.Timer
	last    string
	seen    bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a watcher for path. onChange receives the full file text and is
// only called when the text differs from the last delivered value.
func New(path string, onChange func(text string), opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		onChange: onChange,
		onError:  func(error) {},
	}
	if w.onChange == nil {
		w.onChange = func(string) {}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Start begins watching. The watcher stops when ctx is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	events, errs := fsw.Events, fsw.Errors
	go w.loop(ctx, events, errs, w.done)

	if w.initial {
		go w.deliver()
	}
	return nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.cancel()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	fsw, done := w.fsw, w.done
	w.fsw = nil
	w.mu.Unlock()

	_ = fsw.Close()
	<-done
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, done chan struct{}) {
	defer close(done)
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				w.onError(ErrFileRemoved)
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.trigger()
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.deliver)
}

func (w *Watcher) deliver() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// A rename-based save can briefly leave the path missing.
		if !os.IsNotExist(err) {
			w.onError(err)
		}
		return
	}
	text := string(data)

	w.mu.Lock()
	if !w.started || (w.seen && text == w.last) {
		w.mu.Unlock()
		return
	}
	w.last, w.seen = text, true
	w.mu.Unlock()

	w.onChange(text)
}
