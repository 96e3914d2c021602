package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.tatikoma.dev/corpix/keeper/errors"
)

type (
	Event           = fsnotify.Event
	Callback        func(ev *Event)
	CallbackWrapper func(next Callback) Callback
	Filter          func(ev *Event) bool

	// Watch identifies a registered callback, pass it to Unwatch.
	Watch struct {
		name     string
		dir      string
		callback Callback
		filters  []Filter
	}

	// Watcher dispatches file events to callbacks registered per file name.
	// Parent directories are watched so files replaced by rename keep working.
	Watcher struct {
		mu      sync.Mutex
		notify  *fsnotify.Watcher
		dirs    map[string]int
		watches map[string][]*Watch
	}
)

// WithModifyFilter passes writes and creations, which is how
// an installer rewriting or replacing a binary shows up.
func WithModifyFilter() Filter {
	return func(ev *Event) bool {
		return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
	}
}

// WithDebounce delays next until no event for the same file arrived for dur.
func WithDebounce(dur time.Duration) CallbackWrapper {
	return func(next Callback) Callback {
		var (
			mu     sync.Mutex
			timers = map[string]*time.Timer{}
		)
		return func(ev *Event) {
			mu.Lock()
			defer mu.Unlock()

			if timer, ok := timers[ev.Name]; ok {
				timer.Stop()
			}
			evc := *ev
			timers[evc.Name] = time.AfterFunc(dur, func() {
				mu.Lock()
				delete(timers, evc.Name)
				mu.Unlock()
				next(&evc)
			})
		}
	}
}

func (w *Watcher) Watch(name string, cb Callback, filters ...Filter) (*Watch, error) {
	absName, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}
	absDir := filepath.Dir(absName)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[absDir] == 0 {
		err := w.notify.Add(absDir)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to watch %q", absDir)
		}
	}
	w.dirs[absDir]++

	watch := &Watch{
		name:     absName,
		dir:      absDir,
		callback: cb,
		filters:  filters,
	}
	w.watches[absName] = append(w.watches[absName], watch)
	return watch, nil
}

func (w *Watcher) Unwatch(watch *Watch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	bucket := w.watches[watch.name]
	for n, candidate := range bucket {
		if candidate == watch {
			bucket = append(bucket[:n], bucket[n+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(w.watches, watch.name)
	} else {
		w.watches[watch.name] = bucket
	}

	w.dirs[watch.dir]--
	if w.dirs[watch.dir] <= 0 {
		delete(w.dirs, watch.dir)
		return w.notify.Remove(watch.dir)
	}
	return nil
}

func (w *Watcher) emit(ev *Event) {
	w.mu.Lock()
	bucket := append([]*Watch(nil), w.watches[ev.Name]...)
	w.mu.Unlock()

loop:
	for _, watch := range bucket {
		for _, filter := range watch.filters {
			if !filter(ev) {
				continue loop
			}
		}
		watch.callback(ev)
	}
}

// Run dispatches events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.notify.Events:
			if !ok {
				return nil
			}
			w.emit(&event)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "file watcher failed")
		}
	}
}

func (w *Watcher) Close() error {
	return w.notify.Close()
}

func New() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		notify:  w,
		dirs:    map[string]int{},
		watches: map[string][]*Watch{},
	}, nil
}
