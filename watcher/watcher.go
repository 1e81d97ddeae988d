// Package watcher keeps the in-memory site in step with the posts directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"inkwell/logging"
	"inkwell/metrics"
	"inkwell/storage"
)

// DefaultDebounce is used when a non-positive debounce is configured.
const DefaultDebounce = 200 * time.Millisecond

// Site is the part of site.Site the watcher updates.
type Site interface {
	Upsert(storage.Entry) error
	Remove(name string) (bool, error)
}

// Watcher applies file events from the posts directory to a Site.
type Watcher struct {
	store    *storage.Store
	site     Site
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingSync
	wg      sync.WaitGroup
}

type pendingSync struct {
	timer *time.Timer
}

// New creates a watcher for the store's directory.
func New(store *storage.Store, site Site, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		store:    store,
		site:     site,
		debounce: debounce,
		logger:   logging.WithComponent("watcher"),
		pending:  make(map[string]*pendingSync),
	}
}

// Run watches until ctx is cancelled. Syncs still waiting on their
// debounce are dropped; a sync already running is waited for.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
		w.stopPending()
	}()

	if err := w.store.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure posts dir: %w", err)
	}
	if err := fw.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("watch posts dir: %w", err)
	}

	w.logger.Info().
		Str("event", "watcher.started").
		Str("path", w.store.Dir()).
		Dur("debounce", w.debounce).
		Msg("watching posts directory")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("event", "watcher.stopped").Msg("posts watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("event", "watcher.file_changed").
					Str("op", event.Op.String()).
					Str("path", event.Name).
					Msg("post file changed")
				w.schedule(event.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().
				Err(err).
				Str("event", "watcher.error").
				Msg("posts watcher error")
		}
	}
}

// schedule (re)starts the debounce timer for one file.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		w.wg.Done()
	}

	p := &pendingSync{}
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == p {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.sync(path)
	})
	w.pending[path] = p
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// sync reconciles one file with the site. The file's presence on disk
// decides the outcome, so the event op does not matter.
func (w *Watcher) sync(path string) {
	entry, err := w.store.Read(path)
	switch {
	case err == nil:
		if err := w.site.Upsert(entry); err != nil {
			metrics.RecordWatchEvent("error")
			w.logger.Error().Err(err).Str("event", "watcher.upsert_failed").Str("path", path).Msg("failed to render post")
			return
		}
		metrics.RecordWatchEvent("upsert")
		w.logger.Info().Str("event", "watcher.upsert").Str("post", entry.OriginalName).Msg("post updated")

	case errors.Is(err, storage.ErrNotFound):
		name := storage.Describe(path).OriginalName
		found, err := w.site.Remove(name)
		if err != nil {
			metrics.RecordWatchEvent("error")
			w.logger.Error().Err(err).Str("event", "watcher.remove_failed").Str("post", name).Msg("failed to remove post")
			return
		}
		metrics.RecordWatchEvent("remove")
		w.logger.Info().Str("event", "watcher.remove").Str("post", name).Bool("listed", found).Msg("post removed")

	default:
		metrics.RecordWatchEvent("error")
		w.logger.Error().Err(err).Str("event", "watcher.read_failed").Str("path", path).Msg("failed to read post")
	}
}

// ignored skips hidden files, which includes atomic-write temp files and
// editor swap files.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~")
}
