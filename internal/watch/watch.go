package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
)

const (
	defaultDebounce = 500 * time.Millisecond
	defaultMaxDelay = 5 * time.Second
)

// Rescanner is satisfied by *index.Indexer.
type Rescanner interface {
	Name() string
	ForceRescan() (index.Stats, error)
}

// Watcher triggers a rescan of one pipeline shortly after log files under
// its root are created or written. Removals are ignored; stored sessions
// outlive their source files.
type Watcher struct {
	root     string
	target   Rescanner
	debounce time.Duration
	maxDelay time.Duration // cap on how long a burst of writes can postpone a rescan
	log      zerolog.Logger
}

func New(root string, target Rescanner, log zerolog.Logger) *Watcher {
	return &Watcher{
		root:     root,
		target:   target,
		debounce: defaultDebounce,
		maxDelay: defaultMaxDelay,
		log:      log,
	}
}

// Run watches until ctx is done. fsnotify is not recursive, so every
// directory under root is added, and directories created later are added as
// they appear.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.Stat(w.root); errors.Is(err, fs.ErrNotExist) {
		w.log.Warn().Str("root", w.root).Msg("watch root missing; not watching")
		<-ctx.Done()
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	w.addTree(fw, w.root)
	w.log.Info().Str("root", w.root).Msg("watching for new sessions")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	// deadline is set by the first event after a rescan
	var deadline time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fw, event) {
				continue
			}
			now := time.Now()
			if deadline.IsZero() {
				deadline = now.Add(w.maxDelay)
			}
			timer.Reset(min(w.debounce, deadline.Sub(now)))

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			deadline = time.Time{}
			stats, err := w.target.ForceRescan()
			if err != nil {
				w.log.Error().Err(err).Msg("rescan after change")
				continue
			}
			w.log.Debug().Str("stats", stats.String()).Msg("rescan after change")
		}
	}
}

// relevant reports whether event should schedule a rescan, registering new
// directories on the way.
func (w *Watcher) relevant(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(fw, event.Name)
			// files may have landed before the directory was watched
			return true
		}
	}
	return strings.HasSuffix(event.Name, ".jsonl")
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				w.log.Warn().Err(err).Str("dir", path).Msg("watch add failed")
			}
		}
		return nil
	})
}
