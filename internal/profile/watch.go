package profile

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the profile when the file changes on disk, so the next
// engine selection picks up edited credentials or engine choices without a
// restart. A failed reload keeps the previous snapshot.
type Watcher struct {
	path   string
	holder *Holder
	log    zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	// Debounce: editors produce rapid Create+Write+Rename bursts when
	// saving; coalesce them so the file is read once, fully written.
	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

const reloadDebounce = 250 * time.Millisecond

// NewWatcher watches the directory containing path for changes to the
// profile file. Watching the directory rather than the file itself survives
// the rename-over-replace dance most editors do on save.
func NewWatcher(path string, holder *Holder, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		holder:  holder,
		log:     log.With().Str("component", "profile-watcher").Logger(),
		watcher: fw,
		done:    make(chan struct{}),
	}
	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.log.Info().Str("path", w.path).Msg("watching profile for changes")
	go w.loop()
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Reset(reloadDebounce)
		return
	}
	w.debounceTimer = time.AfterFunc(reloadDebounce, func() {
		w.debounceMu.Lock()
		w.debounceTimer = nil
		w.debounceMu.Unlock()

		w.reload()
	})
}

func (w *Watcher) reload() {
	p, err := Load(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("profile reload failed, keeping previous snapshot")
		return
	}
	w.holder.Replace(p)
	w.log.Info().Str("path", w.path).Msg("profile reloaded")
}
