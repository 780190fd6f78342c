package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(resolver.New(root), bus.New(16), 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestClassifyMultiProject(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)

	cases := []struct {
		rel    string
		op     fsnotify.Op
		want   models.Event
		wantOK bool
	}{
		{"riverside/project.json", fsnotify.Create,
			models.Event{Type: models.EventProjectAdded, Project: "riverside"}, true},
		{"riverside/project.json", fsnotify.Remove,
			models.Event{Type: models.EventProjectRemoved, Project: "riverside"}, true},
		{"riverside/pages/A101/pass1.json", fsnotify.Create,
			models.Event{Type: models.EventPageAdded, Project: "riverside", Page: "A101"}, true},
		{"riverside/pages/A101/pass1.json", fsnotify.Write,
			models.Event{Type: models.EventPageUpdated, Project: "riverside", Page: "A101"}, true},
		{"riverside/pages/A101/page.png", fsnotify.Write,
			models.Event{Type: models.EventPageImageReady, Project: "riverside", Page: "A101"}, true},
		{"riverside/pages/A101/pointers/r1/pass2.json", fsnotify.Write,
			models.Event{Type: models.EventRegionComplete, Project: "riverside", Page: "A101", Region: "r1"}, true},
		{"riverside/workspaces/demo/workspace.json", fsnotify.Write,
			models.Event{Type: models.EventWorkspaceUpdate, Project: "riverside", Workspace: "demo"}, true},
		{"riverside/notes/project_notes.json", fsnotify.Write,
			models.Event{Type: models.EventNotesUpdate, Project: "riverside"}, true},
		{"riverside/schedule/maestro_schedule.json", fsnotify.Write,
			models.Event{Type: models.EventScheduleUpdate, Project: "riverside"}, true},
		{"riverside/.command_center/heartbeat.json", fsnotify.Write,
			models.Event{Type: models.EventHeartbeat, Project: "riverside"}, true},
		{".command_center/system_directives.json", fsnotify.Write,
			models.Event{Type: models.EventDirectiveChange}, true},
		{".command_center/fleet_registry.json", fsnotify.Write,
			models.Event{Type: models.EventRegistryUpdate}, true},
		{"riverside/pages/A101/somethingelse.txt", fsnotify.Write, models.Event{}, false},
		{"riverside/README.md", fsnotify.Write, models.Event{}, false},
	}
	for _, c := range cases {
		got, ok := w.classify(filepath.Join(root, filepath.FromSlash(c.rel)), c.op)
		if ok != c.wantOK {
			t.Errorf("classify(%s) ok=%v, want %v", c.rel, ok, c.wantOK)
			continue
		}
		if got != c.want {
			t.Errorf("classify(%s) = %+v, want %+v", c.rel, got, c.want)
		}
	}
}

func TestClassifySingleProject(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	w.single = true
	w.singleSlug = "solo-job"

	got, ok := w.classify(filepath.Join(root, "pages", "A101", "pass1.json"), fsnotify.Write)
	if !ok || got.Type != models.EventPageUpdated || got.Project != "solo-job" {
		t.Errorf("single-project classify = %+v ok=%v", got, ok)
	}
	got, ok = w.classify(filepath.Join(root, ".command_center", "heartbeat.json"), fsnotify.Write)
	if !ok || got.Type != models.EventHeartbeat || got.Project != "solo-job" {
		t.Errorf("single-project heartbeat = %+v ok=%v", got, ok)
	}
}

func TestClassifyOutsideRoot(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())
	if _, ok := w.classify("/somewhere/else/project.json", fsnotify.Write); ok {
		t.Error("paths outside the root must not classify")
	}
}

func TestHandleIgnoresWriteProtocolNoise(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())
	w.handle(fsnotify.Event{Name: "/store/riverside/notes/project_notes.json.tmp", Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: "/store/riverside/notes/project_notes.json.lock", Op: fsnotify.Create})
	w.pendingMu.Lock()
	n := len(w.pending)
	w.pendingMu.Unlock()
	if n != 0 {
		t.Fatalf("tmp/lock files must not pend, got %d entries", n)
	}
}

func TestWatcherEndToEnd(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "riverside", "notes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "riverside", "project.json"), []byte(`{"slug":"riverside"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	b := bus.New(16)
	defer b.Close()
	w, err := New(resolver.New(root), b, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := b.Subscribe("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "riverside", "notes", "project_notes.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-sub.Events():
			if e.Type == models.EventNotesUpdate && e.Project == "riverside" {
				return
			}
		case <-deadline:
			t.Fatal("no notes_update event within 5s")
		}
	}
}
