package command

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fleet"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/knowledge"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// snapshotTTL bounds how stale a cached awareness snapshot may be.
const snapshotTTL = time.Second

// Fleet posture values.
const (
	PostureHealthy  = "healthy"
	PostureDegraded = "degraded"
	PostureOffline  = "offline"
)

// ProjectSummary is the per-project block of an awareness snapshot.
type ProjectSummary struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Workspaces int    `json:"workspaces"`
}

// Snapshot is the aggregated command-center view of the whole fleet.
type Snapshot struct {
	GeneratedAt      string              `json:"generated_at"`
	Posture          string              `json:"posture"`
	StoreRoot        string              `json:"store_root"`
	StoreReachable   bool                `json:"store_reachable"`
	Agents           []models.NodeStatus `json:"agents"`
	Projects         []ProjectSummary    `json:"projects"`
	Directives       []models.Directive  `json:"directives"`
	DirectiveVersion int                 `json:"directive_version"`
}

// Aggregator builds awareness snapshots with a short-lived cache. The cache
// is invalidated by heartbeat, directive and registry events so the command
// center sees changes within one event delivery.
type Aggregator struct {
	fleet      *fleet.Fleet
	loader     *knowledge.Loader
	directives *Directives
	now        func() time.Time

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(f *fleet.Fleet, l *knowledge.Loader, d *Directives) *Aggregator {
	return &Aggregator{fleet: f, loader: l, directives: d, now: time.Now}
}

// WithClock substitutes the time source. Test hook.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Invalidate drops the cached snapshot.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

// Watch subscribes to the bus and invalidates the cache on control-plane
// events until ctx is cancelled.
func (a *Aggregator) Watch(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe("aggregator", func(e models.Event) bool {
		switch e.Type {
		case models.EventHeartbeat, models.EventDirectiveChange, models.EventRegistryUpdate:
			return true
		}
		return false
	})
	go func() {
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
				a.Invalidate()
			}
		}
	}()
}

// Snapshot returns the current awareness view, serving the cached copy when
// it is younger than one second.
func (a *Aggregator) Snapshot() (Snapshot, error) {
	a.mu.Lock()
	if a.cached != nil && a.now().Sub(a.cachedAt) < snapshotTTL {
		snap := *a.cached
		a.mu.Unlock()
		return snap, nil
	}
	a.mu.Unlock()

	snap, err := a.build()
	if err != nil {
		return Snapshot{}, err
	}
	a.mu.Lock()
	a.cached = &snap
	a.cachedAt = a.now()
	a.mu.Unlock()
	return snap, nil
}

func (a *Aggregator) build() (Snapshot, error) {
	now := a.now().UTC()
	res := a.loader.Resolver()
	snap := Snapshot{
		GeneratedAt: now.Format(time.RFC3339),
		StoreRoot:   res.Root,
		Agents:      []models.NodeStatus{},
		Projects:    []ProjectSummary{},
		Directives:  []models.Directive{},
	}

	if info, err := os.Stat(res.Root); err == nil && info.IsDir() {
		snap.StoreReachable = true
	}

	agents, err := a.fleet.Statuses()
	if err != nil {
		log.Warn().Err(err).Msg("registry unreadable, snapshot degraded")
	} else {
		snap.Agents = agents
	}

	projects, err := a.loader.ListProjects()
	if err == nil {
		for _, p := range projects {
			snap.Projects = append(snap.Projects, ProjectSummary{
				Slug:       p.Slug,
				Name:       p.Name,
				Pages:      a.loader.CountPages(p.Slug),
				Workspaces: a.loader.CountWorkspaces(p.Slug),
			})
		}
	}

	if dirs, err := a.directives.List(false); err == nil {
		snap.Directives = dirs
	}
	if v, err := a.directives.Version(); err == nil {
		snap.DirectiveVersion = v
	}

	snap.Posture = posture(snap)
	return snap, nil
}

// posture classifies the fleet: offline when the store is unreachable or no
// agent is fresh, degraded when some are stale, healthy otherwise.
func posture(snap Snapshot) string {
	if !snap.StoreReachable {
		return PostureOffline
	}
	if len(snap.Agents) == 0 {
		return PostureDegraded
	}
	fresh := 0
	for _, a := range snap.Agents {
		if a.IsFresh {
			fresh++
		}
	}
	switch {
	case fresh == 0:
		return PostureOffline
	case fresh < len(snap.Agents):
		return PostureDegraded
	default:
		return PostureHealthy
	}
}
