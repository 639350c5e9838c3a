package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the file must stay quiet before a change is
// reported.
const DefaultDebounce = 250 * time.Millisecond

// Event describes a settled change of the watched file.
type Event struct {
	Path string
	At   time.Time
}

// Watcher watches one file through its parent directory.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	fs      *fsnotify.Watcher
	changes chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Watcher for path. Nothing is watched until Start.
func New(path string, logger zerolog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   logger,
		changes:  make(chan Event, 1),
		stopCh:   make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Changes delivers one Event per settled burst of writes. A change that
// arrives while the previous one is unread is merged into it.
func (w *Watcher) Changes() <-chan Event { return w.changes }

// Start begins watching the parent directory of the file.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fs = fsw

	w.wg.Add(1)
	go w.run()

	w.logger.Debug().Str("path", w.path).Msg("watching catalog")
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.changes <- Event{Path: w.path, At: time.Now()}:
			default:
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Str("path", w.path).Msg("catalog watch error")

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Stop halts the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	select {
	case <-w.stopCh:
		return nil
	default:
		close(w.stopCh)
	}

	w.wg.Wait()
	if w.fs == nil {
		return nil
	}
	if err := w.fs.Close(); err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}
