package fleet

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

func fixtureFleet(t *testing.T) *Fleet {
	t.Helper()
	root := t.TempDir()
	p := filepath.Join(root, "riverside")
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, "project.json"), []byte(`{"slug":"riverside"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return New(resolver.New(root), nil, 0)
}

func TestRegisterSecondCommanderConflicts(t *testing.T) {
	f := fixtureFleet(t)
	ctx := context.Background()

	if _, err := f.Register(ctx, models.RegistryEntry{AgentID: "cmd-1", Role: models.RoleCommander}); err != nil {
		t.Fatal(err)
	}
	_, err := f.Register(ctx, models.RegistryEntry{AgentID: "cmd-2", Role: models.RoleCommander})
	if !fault.IsKind(err, fault.KindConflict) {
		t.Fatalf("second commander should be Conflict, got %v", err)
	}

	// Archiving the first frees the slot.
	if err := f.Archive(ctx, "cmd-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Register(ctx, models.RegistryEntry{AgentID: "cmd-2", Role: models.RoleCommander}); err != nil {
		t.Fatalf("commander slot should be free after archive, got %v", err)
	}
}

func TestRegisterUpsertsByAgentID(t *testing.T) {
	f := fixtureFleet(t)
	ctx := context.Background()

	first, err := f.Register(ctx, models.RegistryEntry{
		AgentID: "pa-1", Role: models.RoleProject, ProjectSlug: "riverside", DisplayName: "Riverside PA",
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.RegisteredAt == "" {
		t.Error("new entry must carry registered_at")
	}

	updated, err := f.Register(ctx, models.RegistryEntry{
		AgentID: "pa-1", Role: models.RoleProject, ProjectSlug: "riverside", DisplayName: "Renamed",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.DisplayName != "Renamed" {
		t.Errorf("upsert = %+v", updated)
	}

	reg, err := f.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Agents) != 1 {
		t.Fatalf("re-register must not duplicate, got %+v", reg.Agents)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := fixtureFleet(t)
	ctx := context.Background()
	cases := []models.RegistryEntry{
		{Role: models.RoleCommander},             // missing agent_id
		{AgentID: "x", Role: "observer"},         // unknown role
		{AgentID: "x", Role: models.RoleProject}, // project role without slug
	}
	for _, e := range cases {
		if _, err := f.Register(ctx, e); !fault.IsKind(err, fault.KindInvalidArgument) {
			t.Errorf("Register(%+v) = %v, want InvalidArgument", e, err)
		}
	}
}

func TestArchiveRetainsRow(t *testing.T) {
	f := fixtureFleet(t)
	ctx := context.Background()
	if _, err := f.Register(ctx, models.RegistryEntry{AgentID: "pa-1", Role: models.RoleProject, ProjectSlug: "riverside"}); err != nil {
		t.Fatal(err)
	}
	if err := f.Archive(ctx, "pa-1"); err != nil {
		t.Fatal(err)
	}
	got, err := f.Get("pa-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Archived {
		t.Errorf("archived row must be retained with the flag set, got %+v", got)
	}
	if err := f.Archive(ctx, "ghost"); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("archiving unknown agent should be NotFound, got %v", err)
	}
}

func TestHeartbeatFreshness(t *testing.T) {
	f := fixtureFleet(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f.WithClock(func() time.Time { return base })

	err := f.WriteHeartbeat(ctx, "riverside", models.Heartbeat{
		LoopState: models.LoopComputing,
		Summary:   "Tracing waterproofing details on A101",
	})
	if err != nil {
		t.Fatal(err)
	}
	entry := models.RegistryEntry{AgentID: "pa-1", ProjectSlug: "riverside", Role: models.RoleProject}

	st := f.NodeStatus(entry)
	if !st.IsFresh || st.LoopState != models.LoopComputing || st.Summary == "" {
		t.Fatalf("fresh status = %+v", st)
	}

	// Two minutes later the 90s TTL has lapsed.
	f.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	st = f.NodeStatus(entry)
	if st.IsFresh || st.LoopState != models.LoopIdle {
		t.Fatalf("stale status = %+v", st)
	}
	if !strings.Contains(st.Summary, "stale") || !strings.Contains(st.Summary, "2m0s ago") {
		t.Errorf("stale summary = %q", st.Summary)
	}
}

func TestNodeStatusNoHeartbeat(t *testing.T) {
	f := fixtureFleet(t)
	st := f.NodeStatus(models.RegistryEntry{AgentID: "pa-1", ProjectSlug: "riverside", Role: models.RoleProject})
	if st.IsFresh {
		t.Error("missing heartbeat is never fresh")
	}
	if st.Summary != "Agent reporting stale; no heartbeat recorded" {
		t.Errorf("summary = %q", st.Summary)
	}
}

func TestWriteHeartbeatValidatesLoopState(t *testing.T) {
	f := fixtureFleet(t)
	err := f.WriteHeartbeat(context.Background(), "riverside", models.Heartbeat{LoopState: "spinning"})
	if !fault.IsKind(err, fault.KindInvalidArgument) {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	f := fixtureFleet(t)
	ctx := context.Background()
	if _, err := f.Register(ctx, models.RegistryEntry{AgentID: "pa-1", Role: models.RoleProject, ProjectSlug: "riverside"}); err != nil {
		t.Fatal(err)
	}

	if err := f.Authorize("riverside", CommandCenterSource); err != nil {
		t.Errorf("command center writing a registered project must pass, got %v", err)
	}
	if err := f.Authorize("riverside", "rogue_script"); !fault.IsKind(err, fault.KindForbidden) {
		t.Errorf("wrong source should be Forbidden, got %v", err)
	}
	if err := f.Authorize("unregistered", CommandCenterSource); !fault.IsKind(err, fault.KindForbidden) {
		t.Errorf("unregistered target should be Forbidden, got %v", err)
	}

	if err := f.Archive(ctx, "pa-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.Authorize("riverside", CommandCenterSource); !fault.IsKind(err, fault.KindForbidden) {
		t.Errorf("archived target should be Forbidden, got %v", err)
	}
}

func TestStatusesSkipArchived(t *testing.T) {
	f := fixtureFleet(t)
	ctx := context.Background()
	if _, err := f.Register(ctx, models.RegistryEntry{AgentID: "pa-1", Role: models.RoleProject, ProjectSlug: "riverside"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Register(ctx, models.RegistryEntry{AgentID: "cmd-1", Role: models.RoleCommander}); err != nil {
		t.Fatal(err)
	}
	if err := f.Archive(ctx, "pa-1"); err != nil {
		t.Fatal(err)
	}
	sts, err := f.Statuses()
	if err != nil {
		t.Fatal(err)
	}
	if len(sts) != 1 || sts[0].AgentID != "cmd-1" {
		t.Fatalf("statuses = %+v", sts)
	}
}

func TestRegistryMutationDeadline(t *testing.T) {
	ctx, cancel := withDeadline(context.Background())
	defer cancel()
	dl, ok := ctx.Deadline()
	if !ok {
		t.Fatal("a deadline-free context must gain the default deadline")
	}
	if remaining := time.Until(dl); remaining > DefaultDeadline {
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
