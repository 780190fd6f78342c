// Package watcher turns raw filesystem notifications on the store root into
// typed store-change events on the bus.
//
// Editors and the ingest pipeline emit bursts of writes per document, so
// events are debounced per path: changes accumulate in a pending map and a
// ticker flushes them every debounce window (150 ms by default).
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// Watcher watches a knowledge-store root recursively.
type Watcher struct {
	res      *resolver.Store
	bus      *bus.Bus
	debounce time.Duration
	fsw      *fsnotify.Watcher

	// single-project stores have no <slug> path segment; remember the
	// layout and slug at start.
	single     bool
	singleSlug string

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op
}

// New creates a watcher publishing to b.
func New(res *resolver.Store, b *bus.Bus, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	return &Watcher{
		res:      res,
		bus:      b,
		debounce: debounce,
		fsw:      fsw,
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

// Start begins watching; it returns after the initial walk and processes
// events on a background goroutine until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.single = w.res.SingleProject()
	if w.single {
		slugs, err := w.res.ProjectSlugs()
		if err == nil && len(slugs) > 0 {
			w.singleSlug = slugs[0]
		}
	}
	if err := w.addRecursive(w.res.Root); err != nil {
		return err
	}
	go w.loop(ctx)
	log.Info().Str("root", w.res.Root).Dur("debounce", w.debounce).Msg("store watcher started")
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watcher error")
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	// Temp files and lock siblings are write-protocol noise.
	if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".lock") {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				log.Warn().Err(err).Str("path", ev.Name).Msg("failed to watch new directory")
			}
			return
		}
	}
	w.pendingMu.Lock()
	w.pending[ev.Name] |= ev.Op
	w.pendingMu.Unlock()
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range batch {
		if e, ok := w.classify(path, op); ok {
			w.bus.Publish(e)
		}
	}
}

// classify maps a changed path to its typed event by walking the store
// layout conventions.
func (w *Watcher) classify(path string, op fsnotify.Op) (models.Event, bool) {
	rel, err := filepath.Rel(w.res.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return models.Event{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	removed := op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)

	// Fleet-level sidecars sit directly under the root.
	if len(parts) == 2 && parts[0] == resolver.ControlDir {
		switch parts[1] {
		case resolver.DirectivesFile:
			return models.Event{Type: models.EventDirectiveChange}, true
		case resolver.RegistryFile:
			return models.Event{Type: models.EventRegistryUpdate}, true
		}
	}

	project := w.singleSlug
	if !w.single {
		if len(parts) < 2 {
			return models.Event{}, false
		}
		project = parts[0]
		parts = parts[1:]
	}

	switch {
	case len(parts) == 1 && parts[0] == resolver.ProjectFile:
		if removed {
			return models.Event{Type: models.EventProjectRemoved, Project: project}, true
		}
		return models.Event{Type: models.EventProjectAdded, Project: project}, true

	case len(parts) == 3 && parts[0] == resolver.PagesDir:
		page := parts[1]
		switch parts[2] {
		case resolver.Pass1File:
			if op.Has(fsnotify.Create) {
				return models.Event{Type: models.EventPageAdded, Project: project, Page: page}, true
			}
			return models.Event{Type: models.EventPageUpdated, Project: project, Page: page}, true
		case resolver.PageImage:
			return models.Event{Type: models.EventPageImageReady, Project: project, Page: page}, true
		}

	case len(parts) == 5 && parts[0] == resolver.PagesDir && parts[2] == resolver.PointersDir && parts[4] == resolver.Pass2File:
		return models.Event{Type: models.EventRegionComplete, Project: project, Page: parts[1], Region: parts[3]}, true

	case len(parts) == 3 && parts[0] == resolver.WorkspacesDir && parts[2] == resolver.WorkspaceFile:
		return models.Event{Type: models.EventWorkspaceUpdate, Project: project, Workspace: parts[1]}, true

	case len(parts) == 2 && parts[0] == "notes" && parts[1] == "project_notes.json":
		return models.Event{Type: models.EventNotesUpdate, Project: project}, true

	case len(parts) == 2 && parts[0] == "schedule" && parts[1] == "maestro_schedule.json":
		return models.Event{Type: models.EventScheduleUpdate, Project: project}, true

	case len(parts) == 2 && parts[0] == resolver.ControlDir && parts[1] == resolver.HeartbeatFile:
		return models.Event{Type: models.EventHeartbeat, Project: project}, true
	}
	return models.Event{}, false
}
