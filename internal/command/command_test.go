package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fleet"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/knowledge"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixtureStore(t *testing.T) *resolver.Store {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "riverside", "project.json"), `{"name":"Riverside","slug":"riverside"}`)
	writeFile(t, filepath.Join(root, "riverside", "pages", "A101_Floor_Plan_p001", "pass1.json"), `{"page_name":"A101_Floor_Plan_p001"}`)
	return resolver.New(root)
}

func TestDirectiveVersionMonotonic(t *testing.T) {
	d := NewDirectives(fixtureStore(t), nil)
	ctx := context.Background()

	v0, err := d.Version()
	if err != nil {
		t.Fatal(err)
	}
	saved, err := d.Upsert(ctx, models.Directive{Text: "Hold all concrete pours pending mix review"})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" || saved.CreatedAt == "" {
		t.Fatalf("minted directive = %+v", saved)
	}
	v1, _ := d.Version()
	if v1 != v0+1 {
		t.Errorf("upsert must bump version: %d -> %d", v0, v1)
	}

	if _, err := d.Archive(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}
	v2, _ := d.Version()
	if v2 != v1+1 {
		t.Errorf("archive must bump version: %d -> %d", v1, v2)
	}
}

func TestDirectiveArchiveRetains(t *testing.T) {
	d := NewDirectives(fixtureStore(t), nil)
	ctx := context.Background()
	saved, err := d.Upsert(ctx, models.Directive{Text: "Daily safety walk at 7am"})
	if err != nil {
		t.Fatal(err)
	}
	archived, err := d.Archive(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if archived.ArchivedAt == "" {
		t.Fatalf("archive must stamp archived_at, got %+v", archived)
	}

	active, err := d.List(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("archived directives must be excluded by default, got %+v", active)
	}
	all, err := d.List(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("archived rows are retained, got %+v", all)
	}

	// Updating an archived directive reactivates it.
	revived, err := d.Upsert(ctx, models.Directive{ID: saved.ID, Text: "Daily safety walk at 6am"})
	if err != nil {
		t.Fatal(err)
	}
	if revived.ArchivedAt != "" {
		t.Errorf("update must clear archived_at, got %+v", revived)
	}
}

func TestDirectiveUpsertUnknownID(t *testing.T) {
	d := NewDirectives(fixtureStore(t), nil)
	_, err := d.Upsert(context.Background(), models.Directive{ID: "ghost", Text: "x"})
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func aggregatorFixture(t *testing.T) (*Aggregator, *fleet.Fleet, *resolver.Store) {
	t.Helper()
	res := fixtureStore(t)
	f := fleet.New(res, nil, 0)
	a := NewAggregator(f, knowledge.NewLoader(res), NewDirectives(res, nil))
	return a, f, res
}

func TestPosture(t *testing.T) {
	a, f, _ := aggregatorFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f.WithClock(func() time.Time { return base })

	// No agents registered yet.
	snap, err := a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Posture != PostureDegraded || !snap.StoreReachable {
		t.Fatalf("empty fleet snapshot = %+v", snap)
	}

	if _, err := f.Register(ctx, models.RegistryEntry{AgentID: "pa-1", Role: models.RoleProject, ProjectSlug: "riverside"}); err != nil {
		t.Fatal(err)
	}

	// Registered but never heartbeated: nothing fresh, fleet offline.
	a.Invalidate()
	snap, err = a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Posture != PostureOffline {
		t.Errorf("no fresh heartbeat should be offline, got %q", snap.Posture)
	}

	if err := f.WriteHeartbeat(ctx, "riverside", models.Heartbeat{Summary: "online"}); err != nil {
		t.Fatal(err)
	}
	a.Invalidate()
	snap, err = a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Posture != PostureHealthy {
		t.Errorf("all fresh should be healthy, got %q", snap.Posture)
	}
	if len(snap.Projects) != 1 || snap.Projects[0].Pages != 1 {
		t.Errorf("projects = %+v", snap.Projects)
	}
}

func TestPostureOfflineStore(t *testing.T) {
	res := resolver.New(filepath.Join(t.TempDir(), "gone"))
	a := NewAggregator(fleet.New(res, nil, 0), knowledge.NewLoader(res), NewDirectives(res, nil))
	snap, err := a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.StoreReachable || snap.Posture != PostureOffline {
		t.Fatalf("unreachable store snapshot = %+v", snap)
	}
}

func TestSnapshotCache(t *testing.T) {
	a, f, _ := aggregatorFixture(t)
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	now := base
	a.WithClock(func() time.Time { return now })
	f.WithClock(func() time.Time { return now })

	first, err := a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	// Register an agent behind the cache's back: within the TTL the stale
	// snapshot is served, after Invalidate the change is visible.
	if _, err := f.Register(context.Background(), models.RegistryEntry{AgentID: "pa-1", Role: models.RoleProject, ProjectSlug: "riverside"}); err != nil {
		t.Fatal(err)
	}
	cached, err := a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(cached.Agents) != len(first.Agents) {
		t.Errorf("cache must serve within TTL: %+v", cached.Agents)
	}
	a.Invalidate()
	fresh, err := a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh.Agents) != 1 {
		t.Errorf("invalidate must rebuild, agents = %+v", fresh.Agents)
	}
}

func TestConversationRing(t *testing.T) {
	c := NewConversations()
	for i := 0; i < conversationCap+25; i++ {
		c.Append("riverside", "commander", fmt.Sprintf("msg %d", i))
	}
	all := c.List("riverside", 0)
	if len(all) != conversationCap {
		t.Fatalf("retained %d, want %d", len(all), conversationCap)
	}
	if all[0].Text != "msg 25" {
		t.Errorf("oldest retained = %q, want msg 25", all[0].Text)
	}
	last := c.List("riverside", 10)
	if len(last) != 10 || last[9].Text != fmt.Sprintf("msg %d", conversationCap+24) {
		t.Errorf("limited list = %+v", last)
	}
	if got := c.List("other", 0); len(got) != 0 {
		t.Errorf("unknown node must be empty, got %+v", got)
	}
}

func TestDoctor(t *testing.T) {
	res := fixtureStore(t)
	writeFile(t, filepath.Join(res.Root, "riverside", "pages", "A102_Broken", "pass1.json"), "{not json")
	writeFile(t, filepath.Join(res.Root, "riverside", "workspace.json.tmp"), "partial")

	rep, err := Doctor(res, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Healthy {
		t.Fatalf("malformed pass1 must fail doctor, report = %+v", rep)
	}
	if rep.Projects != 1 {
		t.Errorf("projects = %d", rep.Projects)
	}
	var sawTmp, sawBroken bool
	for _, f := range rep.Findings {
		if f.Severity == SeverityWarn && filepath.Ext(f.Path) == ".tmp" {
			sawTmp = true
		}
		if f.Severity == SeverityError && filepath.Base(filepath.Dir(f.Path)) == "A102_Broken" {
			sawBroken = true
		}
	}
	if !sawTmp || !sawBroken {
		t.Errorf("findings missing: tmp=%v broken=%v %+v", sawTmp, sawBroken, rep.Findings)
	}
	if DoctorErr(rep) == nil {
		t.Error("unhealthy report must map to an error")
	}

	// Fix mode removes temp litter and creates the control dir.
	rep, err = Doctor(res, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(res.Root, "riverside", "workspace.json.tmp")); !os.IsNotExist(err) {
		t.Error("fix must remove leftover temp files")
	}
}

func TestDoctorHealthyStore(t *testing.T) {
	res := fixtureStore(t)
	if err := os.MkdirAll(filepath.Dir(res.RegistryPath()), 0o755); err != nil {
		t.Fatal(err)
	}
	rep, err := Doctor(res, false)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Healthy {
		t.Fatalf("report = %+v", rep)
	}
	if DoctorErr(rep) != nil {
		t.Error("healthy report must not error")
	}
}

func TestDirectiveMutationDeadline(t *testing.T) {
	ctx, cancel := withDeadline(context.Background())
	defer cancel()
	dl, ok := ctx.Deadline()
	if !ok {
		t.Fatal("a deadline-free context must gain the default deadline")
	}
	if remaining := time.Until(dl); remaining > defaultDeadline {
		t.Errorf("deadline too far out: %v", remaining)
	}

	parent, pcancel := context.WithTimeout(context.Background(), time.Minute)
	defer pcancel()
	ctx2, cancel2 := withDeadline(parent)
	defer cancel2()
	dl2, _ := ctx2.Deadline()
	pdl, _ := parent.Deadline()
	if !dl2.Equal(pdl) {
		t.Error("an existing deadline must be preserved")
	}
}
