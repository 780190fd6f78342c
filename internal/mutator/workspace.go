package mutator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// ListWorkspaces returns every workspace document in a project, sorted by
// directory order (ReadDir is sorted).
func (m *Mutator) ListWorkspaces(project string) ([]models.Workspace, error) {
	entries, err := os.ReadDir(m.res.WorkspacesPath(project))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Workspace{}, nil
		}
		return nil, fault.Wrap(fault.KindInternal, err, "read workspaces dir")
	}
	out := []models.Workspace{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ws, err := m.GetWorkspace(project, e.Name())
		if err != nil {
			if fault.IsKind(err, fault.KindNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}

// GetWorkspace reads and normalizes one workspace document.
func (m *Mutator) GetWorkspace(project, slug string) (models.Workspace, error) {
	var ws models.Workspace
	path := m.res.WorkspacePath(project, slug)
	if !fsjson.Exists(path) {
		return ws, fault.Newf(fault.KindNotFound, "workspace %q not found", slug)
	}
	if err := fsjson.ReadJSON(path, &ws); err != nil {
		return ws, err
	}
	if ws.Slug == "" {
		ws.Slug = slug
	}
	ws.Normalize()
	return ws, nil
}

// CreateOrGetWorkspace returns the workspace for title, creating it when
// absent. The slug is the underscore-normalized title.
func (m *Mutator) CreateOrGetWorkspace(ctx context.Context, project, title, description string) (models.Workspace, bool, error) {
	slug := resolver.ID(title)
	if slug == "" {
		return models.Workspace{}, false, fault.New(fault.KindInvalidArgument, "workspace title is required")
	}

	var out models.Workspace
	created := false
	err := m.updateWorkspace(ctx, project, slug, true, func(ws *models.Workspace) error {
		if ws.CreatedAt == "" {
			created = true
			ws.Slug = slug
			ws.Title = title
			ws.Description = description
			ws.CreatedAt = m.stamp()
		}
		out = *ws
		return nil
	})
	if err != nil {
		return models.Workspace{}, false, err
	}
	if created {
		log.Info().Str("project", project).Str("workspace", slug).Msg("workspace created")
	}
	return out, created, nil
}

// AddPage adds a page (fuzzy-resolved) to the workspace. The returned bool
// reports whether the page was newly added; adding twice is a no-op.
func (m *Mutator) AddPage(ctx context.Context, project, slug, pageToken, description string) (models.Workspace, bool, error) {
	page, err := m.res.ResolvePage(project, pageToken)
	if err != nil {
		return models.Workspace{}, false, err
	}
	var out models.Workspace
	added := false
	err = m.updateWorkspace(ctx, project, slug, false, func(ws *models.Workspace) error {
		if ws.FindPage(page) < 0 {
			ws.Pages = append(ws.Pages, models.WorkspacePage{
				PageName:         page,
				Description:      description,
				SelectedPointers: []string{},
			})
			added = true
		}
		out = *ws
		return nil
	})
	return out, added, err
}

// RemovePage drops a page from the workspace. Removing an absent page is a
// no-op, not an error.
func (m *Mutator) RemovePage(ctx context.Context, project, slug, pageToken string) (models.Workspace, error) {
	page, err := m.res.ResolvePage(project, pageToken)
	if err != nil {
		return models.Workspace{}, err
	}
	var out models.Workspace
	err = m.updateWorkspace(ctx, project, slug, false, func(ws *models.Workspace) error {
		if i := ws.FindPage(page); i >= 0 {
			ws.Pages = append(ws.Pages[:i], ws.Pages[i+1:]...)
		}
		out = *ws
		return nil
	})
	return out, err
}

// SelectPointers unions region ids into the page's selection, preserving
// insertion order. Unknown region ids for that page are rejected.
func (m *Mutator) SelectPointers(ctx context.Context, project, slug, pageToken string, regionIDs []string) (models.Workspace, error) {
	return m.mutatePointers(ctx, project, slug, pageToken, regionIDs, true)
}

// DeselectPointers removes region ids from the page's selection, preserving
// the order of survivors.
func (m *Mutator) DeselectPointers(ctx context.Context, project, slug, pageToken string, regionIDs []string) (models.Workspace, error) {
	return m.mutatePointers(ctx, project, slug, pageToken, regionIDs, false)
}

func (m *Mutator) mutatePointers(ctx context.Context, project, slug, pageToken string, regionIDs []string, add bool) (models.Workspace, error) {
	page, err := m.res.ResolvePage(project, pageToken)
	if err != nil {
		return models.Workspace{}, err
	}
	known, err := m.knownRegions(project, page)
	if err != nil {
		return models.Workspace{}, err
	}
	if add {
		for _, id := range regionIDs {
			if !known[id] {
				return models.Workspace{}, fault.Newf(fault.KindNotFound, "region %q not found on page %s", id, page)
			}
		}
	}

	var out models.Workspace
	err = m.updateWorkspace(ctx, project, slug, false, func(ws *models.Workspace) error {
		i := ws.FindPage(page)
		if i < 0 {
			return fault.Newf(fault.KindNotFound, "page %s is not in workspace %q", page, slug)
		}
		p := &ws.Pages[i]
		if add {
			have := make(map[string]bool, len(p.SelectedPointers))
			for _, id := range p.SelectedPointers {
				have[id] = true
			}
			for _, id := range regionIDs {
				if !have[id] {
					p.SelectedPointers = append(p.SelectedPointers, id)
					have[id] = true
				}
			}
		} else {
			drop := make(map[string]bool, len(regionIDs))
			for _, id := range regionIDs {
				drop[id] = true
			}
			kept := p.SelectedPointers[:0]
			for _, id := range p.SelectedPointers {
				if !drop[id] {
					kept = append(kept, id)
				}
			}
			p.SelectedPointers = kept
		}
		out = *ws
		return nil
	})
	return out, err
}

// SetPageDescription replaces the description of a workspace page.
func (m *Mutator) SetPageDescription(ctx context.Context, project, slug, pageToken, description string) (models.Workspace, error) {
	page, err := m.res.ResolvePage(project, pageToken)
	if err != nil {
		return models.Workspace{}, err
	}
	var out models.Workspace
	err = m.updateWorkspace(ctx, project, slug, false, func(ws *models.Workspace) error {
		i := ws.FindPage(page)
		if i < 0 {
			return fault.Newf(fault.KindNotFound, "page %s is not in workspace %q", page, slug)
		}
		ws.Pages[i].Description = description
		out = *ws
		return nil
	})
	return out, err
}

// AddCustomHighlight appends a user-drawn rectangle to a workspace page.
func (m *Mutator) AddCustomHighlight(ctx context.Context, project, slug, pageToken string, h models.CustomHighlight) (models.Workspace, error) {
	if !h.BBox.Valid() {
		return models.Workspace{}, fault.New(fault.KindInvalidArgument, "highlight bbox must be finite with x0<x1 and y0<y1")
	}
	page, err := m.res.ResolvePage(project, pageToken)
	if err != nil {
		return models.Workspace{}, err
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	var out models.Workspace
	err = m.updateWorkspace(ctx, project, slug, false, func(ws *models.Workspace) error {
		i := ws.FindPage(page)
		if i < 0 {
			return fault.Newf(fault.KindNotFound, "page %s is not in workspace %q", page, slug)
		}
		ws.Pages[i].CustomHighlights = append(ws.Pages[i].CustomHighlights, h)
		out = *ws
		return nil
	})
	return out, err
}

// ClearCustomHighlights removes all custom highlights from a workspace page.
func (m *Mutator) ClearCustomHighlights(ctx context.Context, project, slug, pageToken string) (models.Workspace, error) {
	page, err := m.res.ResolvePage(project, pageToken)
	if err != nil {
		return models.Workspace{}, err
	}
	var out models.Workspace
	err = m.updateWorkspace(ctx, project, slug, false, func(ws *models.Workspace) error {
		i := ws.FindPage(page)
		if i < 0 {
			return fault.Newf(fault.KindNotFound, "page %s is not in workspace %q", page, slug)
		}
		ws.Pages[i].CustomHighlights = nil
		out = *ws
		return nil
	})
	return out, err
}

// RemoveWorkspace deletes the workspace directory, generated images included.
func (m *Mutator) RemoveWorkspace(ctx context.Context, project, slug string) error {
	path := m.res.WorkspacePath(project, slug)
	if !fsjson.Exists(path) {
		return fault.Newf(fault.KindNotFound, "workspace %q not found", slug)
	}
	ctx, cancel := withDeadline(ctx)
	defer cancel()
	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		if err := os.RemoveAll(filepath.Dir(path)); err != nil {
			return fault.Wrap(fault.KindInternal, err, "remove workspace dir")
		}
		m.publish(models.Event{Type: models.EventWorkspaceUpdate, Project: project, Workspace: slug})
		return nil
	})
}

// updateWorkspace is the shared read-modify-write cycle. createIfMissing
// allows CreateOrGet to bootstrap the file; every other op requires it.
func (m *Mutator) updateWorkspace(ctx context.Context, project, slug string, createIfMissing bool, fn func(*models.Workspace) error) error {
	path := m.res.WorkspacePath(project, slug)
	if !createIfMissing && !fsjson.Exists(path) {
		return fault.Newf(fault.KindNotFound, "workspace %q not found", slug)
	}
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		var ws models.Workspace
		if err := fsjson.ReadJSON(path, &ws); err != nil {
			return err
		}
		if ws.Slug == "" {
			ws.Slug = slug
		}
		ws.Normalize()
		if err := fn(&ws); err != nil {
			return err
		}
		ws.Normalize()
		if err := fsjson.WriteJSON(path, &ws); err != nil {
			return err
		}
		// Publish before the lock drops so subscribers see events for this
		// document in commit order.
		m.publish(models.Event{Type: models.EventWorkspaceUpdate, Project: project, Workspace: slug})
		return nil
	})
}

// knownRegions returns the set of region ids declared by a page's pass1 plus
// any pointer directories on disk (pass2 may land before pass1 is rewritten).
func (m *Mutator) knownRegions(project, page string) (map[string]bool, error) {
	known := make(map[string]bool)
	var p1 models.Pass1
	if err := fsjson.ReadJSON(m.res.Pass1Path(project, page), &p1); err != nil {
		return nil, err
	}
	for _, r := range p1.Regions {
		known[r.ID] = true
	}
	entries, err := os.ReadDir(filepath.Join(m.res.PageDir(project, page), resolver.PointersDir))
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				known[e.Name()] = true
			}
		}
	}
	return known, nil
}
