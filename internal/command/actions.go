package command

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fleet"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/knowledge"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// Action names accepted by the dispatcher. Anything else is rejected with
// UnsupportedAction before any lock is taken.
const (
	ActionSyncRegistry         = "sync_registry"
	ActionListDirectives       = "list_system_directives"
	ActionUpsertDirective      = "upsert_system_directive"
	ActionArchiveDirective     = "archive_system_directive"
	ActionDoctorFix            = "doctor_fix"
	ActionCreateProjectNode    = "create_project_node"
	ActionOnboardProjectStore  = "onboard_project_store"
	ActionIngest               = "ingest_command"
	ActionPreflightIngest      = "preflight_ingest"
	ActionIndex                = "index_command"
	ActionMoveProjectStore     = "move_project_store"
	ActionRegisterProjectAgent = "register_project_agent"
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "maestro_actions_total",
	Help: "Command-center actions dispatched, by action and outcome.",
}, []string{"action", "outcome"})

// Request is one dispatched command-center action.
type Request struct {
	Action string         `json:"action"`
	Target string         `json:"target,omitempty"`
	Source string         `json:"source"`
	Params map[string]any `json:"params,omitempty"`
}

// Result is the dispatcher's reply. Long-running actions carry only a handle;
// progress arrives as action_progress events tagged with it.
type Result struct {
	Handle string `json:"handle,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Dispatcher executes command-center actions against the store and registry.
// Actions are serialized per target: a second action on a busy target fails
// with Conflict instead of queueing.
type Dispatcher struct {
	res        *resolver.Store
	bus        *bus.Bus
	fleet      *fleet.Fleet
	directives *Directives
	loader     *knowledge.Loader

	mu   sync.Mutex
	busy map[string]bool
}

// NewDispatcher creates an action dispatcher.
func NewDispatcher(res *resolver.Store, b *bus.Bus, f *fleet.Fleet, d *Directives, l *knowledge.Loader) *Dispatcher {
	return &Dispatcher{res: res, bus: b, fleet: f, directives: d, loader: l, busy: make(map[string]bool)}
}

// Dispatch validates, authorizes and runs one action.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	res, err := d.dispatch(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = string(fault.KindOf(err))
	}
	actionsTotal.WithLabelValues(req.Action, outcome).Inc()
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (Result, error) {
	if req.Source != fleet.CommandCenterSource {
		return Result{}, fault.Newf(fault.KindForbidden, "source %q may not dispatch actions", req.Source)
	}

	switch req.Action {
	case ActionSyncRegistry:
		reg, err := d.fleet.List()
		if err != nil {
			return Result{}, err
		}
		d.bus.Publish(models.Event{Type: models.EventRegistryUpdate})
		return Result{Data: reg}, nil

	case ActionListDirectives:
		include, _ := req.Params["include_archived"].(bool)
		dirs, err := d.directives.List(include)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: dirs}, nil

	case ActionUpsertDirective:
		dir := models.Directive{
			ID:        paramStr(req.Params, "id"),
			Text:      paramStr(req.Params, "text"),
			Scope:     paramStr(req.Params, "scope"),
			UpdatedBy: paramStr(req.Params, "updated_by"),
		}
		saved, err := d.directives.Upsert(ctx, dir)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: saved}, nil

	case ActionArchiveDirective:
		saved, err := d.directives.Archive(ctx, paramStr(req.Params, "id"))
		if err != nil {
			return Result{}, err
		}
		return Result{Data: saved}, nil

	case ActionRegisterProjectAgent:
		entry, err := d.fleet.Register(ctx, models.RegistryEntry{
			AgentID:     paramStr(req.Params, "agent_id"),
			ProjectSlug: paramStr(req.Params, "project_slug"),
			DisplayName: paramStr(req.Params, "display_name"),
			Role:        models.RoleProject,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Data: entry}, nil

	case ActionDoctorFix:
		rep, err := Doctor(d.res, true)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: rep}, nil

	case ActionCreateProjectNode:
		return d.createProjectNode(req)

	case ActionPreflightIngest:
		return d.preflightIngest(req)

	case ActionOnboardProjectStore:
		return d.longRunning(req, d.onboardProjectStore)

	case ActionIngest:
		return d.longRunning(req, d.ingest)

	case ActionIndex:
		if err := d.requireProjectWrite(req); err != nil {
			return Result{}, err
		}
		return d.longRunning(req, d.reindex)

	case ActionMoveProjectStore:
		if err := d.requireProjectWrite(req); err != nil {
			return Result{}, err
		}
		return d.moveProjectStore(ctx, req)

	default:
		return Result{}, fault.Newf(fault.KindUnsupportedAction, "unknown action %q", req.Action)
	}
}

// requireProjectWrite enforces the chain of command for actions that mutate
// a project's store.
func (d *Dispatcher) requireProjectWrite(req Request) error {
	if req.Target == "" {
		return fault.New(fault.KindInvalidArgument, "action requires a target project")
	}
	return d.fleet.Authorize(req.Target, req.Source)
}

// longRunning acquires the per-target slot, returns a handle and runs fn in
// the background, streaming progress events tagged with the handle.
func (d *Dispatcher) longRunning(req Request, fn func(req Request, progress func(detail string)) error) (Result, error) {
	key := req.Target
	if key == "" {
		key = req.Action
	}
	d.mu.Lock()
	if d.busy[key] {
		d.mu.Unlock()
		return Result{}, fault.Newf(fault.KindConflict, "target %q has an action in flight", key)
	}
	d.busy[key] = true
	d.mu.Unlock()

	handle := uuid.New().String()
	progress := func(detail string) {
		d.bus.Publish(models.Event{
			Type:    models.EventActionProgress,
			Project: req.Target,
			Handle:  handle,
			Detail:  detail,
		})
	}

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.busy, key)
			d.mu.Unlock()
		}()
		progress("started: " + req.Action)
		if err := fn(req, progress); err != nil {
			log.Error().Err(err).Str("action", req.Action).Str("handle", handle).Msg("action failed")
			progress("failed: " + err.Error())
			return
		}
		progress("completed")
	}()

	return Result{Handle: handle}, nil
}

// ── Individual actions ──────────────────────────────────────

// createProjectNode creates an empty project directory with its metadata
// document in a multi-project store.
func (d *Dispatcher) createProjectNode(req Request) (Result, error) {
	name := paramStr(req.Params, "name")
	if name == "" {
		return Result{}, fault.New(fault.KindInvalidArgument, "project name is required")
	}
	if d.res.SingleProject() {
		return Result{}, fault.New(fault.KindConflict, "store is single-project; cannot add nodes")
	}
	slug := resolver.Slug(name)
	path := d.res.ProjectPath(slug)
	if fsjson.Exists(path) {
		return Result{}, fault.Newf(fault.KindConflict, "project %q already exists", slug)
	}
	p := models.Project{
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := fsjson.WriteJSON(path, &p); err != nil {
		return Result{}, err
	}
	d.bus.Publish(models.Event{Type: models.EventProjectAdded, Project: slug})
	return Result{Data: p}, nil
}

// preflightIngest validates the ingest source without starting anything.
func (d *Dispatcher) preflightIngest(req Request) (Result, error) {
	src := paramStr(req.Params, "path")
	if src == "" {
		return Result{}, fault.New(fault.KindInvalidArgument, "path is required")
	}
	info, err := os.Stat(src)
	if err != nil {
		return Result{}, fault.Newf(fault.KindNotFound, "ingest source %q not found", src)
	}
	report := map[string]any{"path": src, "dir": info.IsDir()}
	if !info.IsDir() && !strings.EqualFold(filepath.Ext(src), ".pdf") {
		return Result{}, fault.Newf(fault.KindInvalidArgument, "ingest source must be a PDF or a directory, got %q", src)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(src)
		if err != nil {
			return Result{}, fault.Wrap(fault.KindInternal, err, "read ingest source")
		}
		pdfs := 0
		for _, e := range entries {
			if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				pdfs++
			}
		}
		if pdfs == 0 {
			return Result{}, fault.Newf(fault.KindInvalidArgument, "ingest source %q contains no PDFs", src)
		}
		report["pdfs"] = pdfs
	}
	return Result{Data: report}, nil
}

// onboardProjectStore validates an external store path and registers its
// agent in the fleet.
func (d *Dispatcher) onboardProjectStore(req Request, progress func(string)) error {
	src := paramStr(req.Params, "path")
	if src == "" {
		return fault.New(fault.KindInvalidArgument, "path is required")
	}
	progress("validating store at " + src)
	if !fsjson.Exists(filepath.Join(src, resolver.ProjectFile)) {
		return fault.Newf(fault.KindNotFound, "no project.json under %q", src)
	}
	var p models.Project
	if err := fsjson.ReadJSON(filepath.Join(src, resolver.ProjectFile), &p); err != nil {
		return err
	}
	slug := p.Slug
	if slug == "" {
		slug = resolver.Slug(p.Name)
	}
	progress("registering agent for " + slug)
	_, err := d.fleet.Register(context.Background(), models.RegistryEntry{
		AgentID:     paramStr(req.Params, "agent_id"),
		ProjectSlug: slug,
		DisplayName: p.Name,
		Role:        models.RoleProject,
	})
	return err
}

// ingest validates the handoff and delegates to the external pipeline; the
// runtime does not rasterize or analyze documents itself.
func (d *Dispatcher) ingest(req Request, progress func(string)) error {
	if _, err := d.preflightIngest(req); err != nil {
		return err
	}
	progress("preflight passed; handing off to ingest pipeline")
	return nil
}

// reindex rebuilds the derived search index from pass1 and pass2 documents.
func (d *Dispatcher) reindex(req Request, progress func(string)) error {
	slug := req.Target
	names, err := d.res.ListPageNames(slug)
	if err != nil {
		return err
	}
	idx := models.Index{
		Keywords:  map[string][]models.IndexRef{},
		Materials: map[string][]models.IndexRef{},
		CrossRefs: map[string][]string{},
	}
	for _, page := range names {
		p1, err := d.loader.LoadPass1(slug, page)
		if err != nil {
			continue
		}
		if len(p1.CrossReferences) > 0 {
			refs := append([]string(nil), p1.CrossReferences...)
			sort.Strings(refs)
			idx.CrossRefs[page] = refs
		}
		for _, stub := range p1.Regions {
			p2, err := d.loader.LoadPass2(slug, page, stub.ID)
			if err != nil {
				continue
			}
			for _, m := range p2.Materials {
				addRef(idx.Materials, strings.ToLower(m), page)
			}
			for _, k := range p2.Keynotes {
				addRef(idx.Keywords, strings.ToLower(k), page)
			}
		}
		progress("indexed " + page)
	}

	path := d.res.IndexPath(slug)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		if err := fsjson.WriteJSON(path, &idx); err != nil {
			return err
		}
		d.bus.Publish(models.Event{Type: models.EventProjectAdded, Project: slug, Detail: "index rebuilt"})
		return nil
	})
}

func addRef(m map[string][]models.IndexRef, term, page string) {
	for _, r := range m[term] {
		if r.Page == page {
			return
		}
	}
	m[term] = append(m[term], models.IndexRef{Page: page})
}

// moveProjectStore renames a project directory to a new slug inside a
// multi-project store.
func (d *Dispatcher) moveProjectStore(ctx context.Context, req Request) (Result, error) {
	if d.res.SingleProject() {
		return Result{}, fault.New(fault.KindConflict, "store is single-project; nothing to move")
	}
	newSlug := resolver.Slug(paramStr(req.Params, "new_slug"))
	if newSlug == "" {
		return Result{}, fault.New(fault.KindInvalidArgument, "new_slug is required")
	}
	oldDir := d.res.ProjectDir(req.Target)
	if !fsjson.Exists(filepath.Join(oldDir, resolver.ProjectFile)) {
		return Result{}, fault.Newf(fault.KindNotFound, "project %q not found", req.Target)
	}
	newDir := d.res.ProjectDir(newSlug)
	if _, err := os.Stat(newDir); err == nil {
		return Result{}, fault.Newf(fault.KindConflict, "project %q already exists", newSlug)
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return Result{}, fault.Wrap(fault.KindInternal, err, "move project dir")
	}

	path := d.res.ProjectPath(newSlug)
	err := fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		var p models.Project
		if err := fsjson.ReadJSON(path, &p); err != nil {
			return err
		}
		p.Slug = newSlug
		return fsjson.WriteJSON(path, &p)
	})
	if err != nil {
		return Result{}, err
	}
	d.bus.Publish(models.Event{Type: models.EventProjectRemoved, Project: req.Target})
	d.bus.Publish(models.Event{Type: models.EventProjectAdded, Project: newSlug})
	return Result{Data: map[string]string{"from": req.Target, "to": newSlug}}, nil
}

func paramStr(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	s, _ := params[key].(string)
	return s
}
