// Package fleet manages the agent registry and heartbeat freshness for the
// command center.
package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// DefaultTTL is how long a heartbeat counts as fresh.
const DefaultTTL = 90 * time.Second

// DefaultDeadline bounds a registry or heartbeat mutation, lock wait included.
const DefaultDeadline = 10 * time.Second

func withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultDeadline)
}

// CommandCenterSource is the only source allowed to mutate project stores
// across the chain of command.
const CommandCenterSource = "command_center_ui"

// Fleet reads and writes the registry and heartbeat sidecars.
type Fleet struct {
	res *resolver.Store
	bus *bus.Bus
	ttl time.Duration
	now func() time.Time
}

// New creates a fleet manager. ttl <= 0 selects the default.
func New(res *resolver.Store, b *bus.Bus, ttl time.Duration) *Fleet {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Fleet{res: res, bus: b, ttl: ttl, now: time.Now}
}

// WithClock substitutes the time source. Test hook.
func (f *Fleet) WithClock(now func() time.Time) *Fleet {
	f.now = now
	return f
}

// TTL returns the configured freshness window.
func (f *Fleet) TTL() time.Duration { return f.ttl }

// ── Registry ────────────────────────────────────────────────

// List returns the registry, archived entries included.
func (f *Fleet) List() (models.FleetRegistry, error) {
	var reg models.FleetRegistry
	if err := fsjson.ReadJSON(f.res.RegistryPath(), &reg); err != nil {
		return reg, err
	}
	if reg.Agents == nil {
		reg.Agents = []models.RegistryEntry{}
	}
	return reg, nil
}

// Get returns the registry entry for agentID.
func (f *Fleet) Get(agentID string) (models.RegistryEntry, error) {
	reg, err := f.List()
	if err != nil {
		return models.RegistryEntry{}, err
	}
	for _, a := range reg.Agents {
		if a.AgentID == agentID {
			return a, nil
		}
	}
	return models.RegistryEntry{}, fault.Newf(fault.KindNotFound, "agent %q not registered", agentID)
}

// Register upserts an agent. At most one non-archived commander may exist;
// re-registering the same agent id updates its row in place.
func (f *Fleet) Register(ctx context.Context, entry models.RegistryEntry) (models.RegistryEntry, error) {
	if entry.AgentID == "" {
		return models.RegistryEntry{}, fault.New(fault.KindInvalidArgument, "agent_id is required")
	}
	if entry.Role != models.RoleCommander && entry.Role != models.RoleProject {
		return models.RegistryEntry{}, fault.Newf(fault.KindInvalidArgument, "role must be commander or project, got %q", entry.Role)
	}
	if entry.Role == models.RoleProject && entry.ProjectSlug == "" {
		return models.RegistryEntry{}, fault.New(fault.KindInvalidArgument, "project agents require project_slug")
	}

	var saved models.RegistryEntry
	err := f.updateRegistry(ctx, func(reg *models.FleetRegistry) error {
		if entry.Role == models.RoleCommander {
			for _, a := range reg.Agents {
				if a.Role == models.RoleCommander && !a.Archived && a.AgentID != entry.AgentID {
					return fault.Newf(fault.KindConflict, "commander %q already registered", a.AgentID)
				}
			}
		}
		for i := range reg.Agents {
			if reg.Agents[i].AgentID == entry.AgentID {
				a := &reg.Agents[i]
				a.Role = entry.Role
				a.ProjectSlug = entry.ProjectSlug
				if entry.DisplayName != "" {
					a.DisplayName = entry.DisplayName
				}
				a.Archived = false
				saved = *a
				return nil
			}
		}
		entry.Archived = false
		entry.RegisteredAt = f.now().UTC().Format(time.RFC3339)
		reg.Agents = append(reg.Agents, entry)
		saved = entry
		return nil
	})
	if err != nil {
		return models.RegistryEntry{}, err
	}
	log.Info().Str("agent", saved.AgentID).Str("role", saved.Role).Msg("agent registered")
	return saved, nil
}

// Archive marks an agent archived. The row is retained for history.
func (f *Fleet) Archive(ctx context.Context, agentID string) error {
	if agentID == "" {
		return fault.New(fault.KindInvalidArgument, "agent_id is required")
	}
	return f.updateRegistry(ctx, func(reg *models.FleetRegistry) error {
		for i := range reg.Agents {
			if reg.Agents[i].AgentID == agentID {
				reg.Agents[i].Archived = true
				return nil
			}
		}
		return fault.Newf(fault.KindNotFound, "agent %q not registered", agentID)
	})
}

func (f *Fleet) updateRegistry(ctx context.Context, fn func(*models.FleetRegistry) error) error {
	path := f.res.RegistryPath()
	ctx, cancel := withDeadline(ctx)
	defer cancel()
	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		var reg models.FleetRegistry
		if err := fsjson.ReadJSON(path, &reg); err != nil {
			return err
		}
		if reg.Agents == nil {
			reg.Agents = []models.RegistryEntry{}
		}
		if err := fn(&reg); err != nil {
			return err
		}
		if err := fsjson.WriteJSON(path, &reg); err != nil {
			return err
		}
		// Publish before the lock drops so subscribers see registry events
		// in commit order.
		if f.bus != nil {
			f.bus.Publish(models.Event{Type: models.EventRegistryUpdate})
		}
		return nil
	})
}

// ── Heartbeat ───────────────────────────────────────────────

// ReadHeartbeat reads a project's heartbeat sidecar. Missing file yields a
// zero heartbeat, which is never fresh.
func (f *Fleet) ReadHeartbeat(project string) (models.Heartbeat, error) {
	var hb models.Heartbeat
	err := fsjson.ReadJSON(f.res.HeartbeatPath(project), &hb)
	return hb, err
}

// WriteHeartbeat stamps updated_at and writes the sidecar atomically.
func (f *Fleet) WriteHeartbeat(ctx context.Context, project string, hb models.Heartbeat) error {
	if hb.LoopState == "" {
		hb.LoopState = models.LoopIdle
	}
	switch hb.LoopState {
	case models.LoopIdle, models.LoopComputing, models.LoopBlocked:
	default:
		return fault.Newf(fault.KindInvalidArgument, "loop_state must be idle, computing or blocked, got %q", hb.LoopState)
	}
	hb.UpdatedAt = f.now().UTC().Format(time.RFC3339)

	path := f.res.HeartbeatPath(project)
	ctx, cancel := withDeadline(ctx)
	defer cancel()
	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		if err := fsjson.WriteJSON(path, &hb); err != nil {
			return err
		}
		if f.bus != nil {
			f.bus.Publish(models.Event{Type: models.EventHeartbeat, Project: project})
		}
		return nil
	})
}

// Fresh reports whether hb's updated_at falls within ttl of now. An
// unparseable or absent timestamp is stale.
func Fresh(hb models.Heartbeat, now time.Time, ttl time.Duration) bool {
	if hb.UpdatedAt == "" {
		return false
	}
	at, err := time.Parse(time.RFC3339, hb.UpdatedAt)
	if err != nil {
		return false
	}
	return now.Sub(at) <= ttl
}

// NodeStatus builds the command-center row for one registry entry. Stale or
// missing heartbeats fall back to an idle, not-fresh row whose summary names
// the gap.
func (f *Fleet) NodeStatus(entry models.RegistryEntry) models.NodeStatus {
	st := models.NodeStatus{
		AgentID:     entry.AgentID,
		DisplayName: entry.DisplayName,
		ProjectSlug: entry.ProjectSlug,
		LoopState:   models.LoopIdle,
	}
	if entry.ProjectSlug == "" {
		st.Summary = "No project store attached"
		return st
	}
	hb, err := f.ReadHeartbeat(entry.ProjectSlug)
	if err != nil {
		log.Warn().Err(err).Str("project", entry.ProjectSlug).Msg("heartbeat unreadable")
	}
	now := f.now().UTC()
	if Fresh(hb, now, f.ttl) {
		st.LoopState = hb.LoopState
		st.IsFresh = true
		st.Summary = hb.Summary
		st.LastMessageAt = hb.UpdatedAt
		st.Metrics = hb.Metrics
		return st
	}
	st.LastMessageAt = hb.UpdatedAt
	if at, err := time.Parse(time.RFC3339, hb.UpdatedAt); err == nil {
		st.Summary = fmt.Sprintf("Agent reporting stale; last heartbeat %s ago", now.Sub(at).Round(time.Second))
	} else {
		st.Summary = "Agent reporting stale; no heartbeat recorded"
	}
	return st
}

// Statuses builds rows for every non-archived agent.
func (f *Fleet) Statuses() ([]models.NodeStatus, error) {
	reg, err := f.List()
	if err != nil {
		return nil, err
	}
	out := []models.NodeStatus{}
	for _, a := range reg.Agents {
		if a.Archived {
			continue
		}
		out = append(out, f.NodeStatus(a))
	}
	return out, nil
}

// Authorize enforces the chain of command for cross-store writes: the target
// must be a registered, non-archived project agent and the request must come
// from the command center.
func (f *Fleet) Authorize(targetSlug, source string) error {
	if source != CommandCenterSource {
		return fault.Newf(fault.KindForbidden, "source %q may not write project stores", source)
	}
	reg, err := f.List()
	if err != nil {
		return err
	}
	for _, a := range reg.Agents {
		if a.ProjectSlug != targetSlug {
			continue
		}
		if a.Archived {
			return fault.Newf(fault.KindForbidden, "agent for project %q is archived", targetSlug)
		}
		if a.Role != models.RoleProject {
			return fault.Newf(fault.KindForbidden, "agent for project %q is not a project agent", targetSlug)
		}
		return nil
	}
	return fault.Newf(fault.KindForbidden, "no registered agent for project %q", targetSlug)
}
