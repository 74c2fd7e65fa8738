package defs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiescence window collapsing bursts of changes.
const DefaultDebounce = 2 * time.Second

// DefaultPollInterval is how often a missing root is checked for.
const DefaultPollInterval = time.Second

// Watcher publishes the aggregated tree once at start and again after every
// burst of filesystem changes under Root. Every publish is a full rebuild,
// published even when unchanged.
type Watcher struct {
	Root         string
	Debounce     time.Duration
	PollInterval time.Duration
	Publish      func(tree any)
	Log          *slog.Logger
}

// NewWatcher creates a Watcher with default timings.
func NewWatcher(root string, publish func(tree any), log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}

	return &Watcher{
		Root:         root,
		Debounce:     DefaultDebounce,
		PollInterval: DefaultPollInterval,
		Publish:      publish,
		Log:          log,
	}
}

// Aggregate runs one full aggregation pass over Root.
func (w *Watcher) Aggregate() any {
	return Aggregate(w.Root, w.Log)
}

// Run publishes eagerly, then watches Root until ctx is cancelled. Bursts
// of changes are collapsed into one publish after Debounce of quiet. No
// publish happens after Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("defs: watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	var (
		mu      sync.Mutex
		stopped bool
	)
	republish := func() {
		mu.Lock()
		defer mu.Unlock()

		if !stopped {
			w.publish()
		}
	}
	defer func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
	}()

	debounced := debounce.New(w.debounce())

	republish()

	watching := w.addTree(fw)

	poll := time.NewTicker(w.pollInterval())
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isHidden(filepath.Base(ev.Name)) {
				continue
			}
			w.Log.Debug("definition change", "path", ev.Name, "op", ev.Op.String())
			if filepath.Clean(ev.Name) == filepath.Clean(w.Root) && ev.Has(fsnotify.Remove|fsnotify.Rename) {
				watching = false
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addDir(fw, ev.Name)
				}
			}
			debounced(republish)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Log.Warn("watch error", "error", err)

		case <-poll.C:
			if watching {
				continue
			}
			if watching = w.addTree(fw); watching {
				w.Log.Info("definition root appeared", "root", w.Root)
				debounced(republish)
			}
		}
	}
}

func (w *Watcher) publish() {
	if w.Publish != nil {
		w.Publish(w.Aggregate())
	}
}

func (w *Watcher) debounce() time.Duration {
	if w.Debounce <= 0 {
		return DefaultDebounce
	}
	return w.Debounce
}

func (w *Watcher) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return w.PollInterval
}

// addTree watches Root and every non-hidden directory below it. It reports
// false if Root does not exist yet.
func (w *Watcher) addTree(fw *fsnotify.Watcher) bool {
	info, err := os.Stat(w.Root)
	if err != nil || !info.IsDir() {
		return false
	}

	w.addDir(fw, w.Root)

	return true
}

// addDir watches dir and its non-hidden subdirectories, following the same
// link rule as the aggregation walk: every alias is added, links back to an
// ancestor are cut. fsnotify is not recursive, so each directory is added
// individually.
func (w *Watcher) addDir(fw *fsnotify.Watcher, dir string) {
	ancestors := map[string]bool{}

	var add func(string)
	add = func(d string) {
		resolved, err := filepath.EvalSymlinks(d)
		if err != nil || ancestors[resolved] {
			return
		}
		ancestors[resolved] = true
		defer delete(ancestors, resolved)

		if err := fw.Add(d); err != nil {
			w.Log.Warn("cannot watch directory", "dir", d, "error", err)
			return
		}

		entries, err := os.ReadDir(d)
		if err != nil {
			return
		}
		for _, e := range entries {
			if isHidden(e.Name()) {
				continue
			}
			p := filepath.Join(d, e.Name())
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				add(p)
			}
		}
	}

	add(dir)
}
