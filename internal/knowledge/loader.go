// Package knowledge reads the ingest-produced knowledge store: projects,
// per-page pass1 documents, per-region pass2 documents, and the derived
// search index. It never writes; the ingest pipeline owns these files.
//
// The index is also rewritten by the runtime's reindex action, so index
// reads take the shared side of its advisory lock. Pass1 and pass2 reads
// are lockless: those files arrive by rename, so any read observes a
// complete document.
package knowledge

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// Loader reads knowledge-store documents through the path resolver.
type Loader struct {
	res *resolver.Store
}

// NewLoader creates a loader over the given store.
func NewLoader(res *resolver.Store) *Loader {
	return &Loader{res: res}
}

// Resolver exposes the underlying path resolver.
func (l *Loader) Resolver() *resolver.Store { return l.res }

// ListProjects returns every valid project under the store root, sorted by name.
func (l *Loader) ListProjects() ([]models.Project, error) {
	slugs, err := l.res.ProjectSlugs()
	if err != nil {
		return nil, err
	}
	projects := make([]models.Project, 0, len(slugs))
	for _, slug := range slugs {
		p, err := l.GetProject(slug)
		if err != nil {
			log.Warn().Err(err).Str("project", slug).Msg("skipping unreadable project")
			continue
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// GetProject loads project.json for slug. A directory without project.json
// is not a project.
func (l *Loader) GetProject(slug string) (models.Project, error) {
	var p models.Project
	path := l.res.ProjectPath(slug)
	if !fsjson.Exists(path) {
		return p, fault.Newf(fault.KindNotFound, "not a project: %s", slug)
	}
	if err := fsjson.ReadJSON(path, &p); err != nil {
		return p, err
	}
	if p.Slug == "" {
		p.Slug = slug
	}
	return p, nil
}

// readLockWait bounds how long an index read waits behind a reindex.
const readLockWait = 5 * time.Second

// LoadIndex reads the project's search index under a shared read lock.
// Missing index means an empty one.
func (l *Loader) LoadIndex(slug string) (models.Index, error) {
	var idx models.Index
	path := l.res.IndexPath(slug)
	if !fsjson.Exists(path) {
		return idx, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), readLockWait)
	defer cancel()
	err := fsjson.WithLock(ctx, path, fsjson.Read, func() error {
		return fsjson.ReadJSON(path, &idx)
	})
	return idx, err
}

// ListPages returns metadata for every page carrying a readable pass1.json,
// optionally filtered by discipline. Pages without pass1 are skipped and
// logged, not failed.
func (l *Loader) ListPages(slug, discipline string) ([]models.PageMeta, error) {
	names, err := l.res.ListPageNames(slug)
	if err != nil {
		return nil, err
	}
	pages := make([]models.PageMeta, 0, len(names))
	for _, name := range names {
		p1, err := l.LoadPass1(slug, name)
		if err != nil {
			if fault.IsKind(err, fault.KindNotFound) {
				log.Warn().Str("project", slug).Str("page", name).Msg("page listed without pass1.json")
				continue
			}
			return nil, err
		}
		if discipline != "" && !strings.EqualFold(p1.Discipline, discipline) {
			continue
		}
		pages = append(pages, models.PageMeta{
			Name:        name,
			Discipline:  p1.Discipline,
			PageType:    p1.PageType,
			RegionCount: len(p1.Regions),
		})
	}
	return pages, nil
}

// LoadPass1 reads the sheet-level analysis for a page token (fuzzy-resolved).
func (l *Loader) LoadPass1(slug, token string) (models.Pass1, error) {
	var p1 models.Pass1
	page, err := l.res.ResolvePage(slug, token)
	if err != nil {
		return p1, err
	}
	path := l.res.Pass1Path(slug, page)
	if !fsjson.Exists(path) {
		return p1, fault.Newf(fault.KindNotFound, "page %s has no pass1.json", page)
	}
	if err := fsjson.ReadJSON(path, &p1); err != nil {
		return p1, err
	}
	if p1.PageName == "" {
		p1.PageName = page
	}
	return p1, nil
}

// ListRegions returns the region stubs declared by a page's pass1.
func (l *Loader) ListRegions(slug, token string) ([]models.RegionStub, error) {
	p1, err := l.LoadPass1(slug, token)
	if err != nil {
		return nil, err
	}
	if p1.Regions == nil {
		return []models.RegionStub{}, nil
	}
	return p1.Regions, nil
}

// LoadPass2 reads the deep-detail document for one region of a page.
func (l *Loader) LoadPass2(slug, token, regionID string) (models.Pass2, error) {
	var p2 models.Pass2
	page, err := l.res.ResolvePage(slug, token)
	if err != nil {
		return p2, err
	}
	path := l.res.Pass2Path(slug, page, regionID)
	if !fsjson.Exists(path) {
		return p2, fault.Newf(fault.KindNotFound, "region %s not found on page %s", regionID, page)
	}
	if err := fsjson.ReadJSON(path, &p2); err != nil {
		return p2, err
	}
	if p2.RegionID == "" {
		p2.RegionID = regionID
	}
	return p2, nil
}

// FindCrossReferences returns the page's outgoing references (from pass1)
// and the incoming ones (every other page whose references resolve to it).
func (l *Loader) FindCrossReferences(slug, token string) (models.CrossReferences, error) {
	refs := models.CrossReferences{Outgoing: []string{}, Incoming: []string{}}
	page, err := l.res.ResolvePage(slug, token)
	if err != nil {
		return refs, err
	}
	p1, err := l.LoadPass1(slug, page)
	if err != nil {
		return refs, err
	}
	if p1.CrossReferences != nil {
		refs.Outgoing = p1.CrossReferences
	}

	names, err := l.res.ListPageNames(slug)
	if err != nil {
		return refs, err
	}
	for _, other := range names {
		if other == page {
			continue
		}
		op1, err := l.LoadPass1(slug, other)
		if err != nil {
			continue
		}
		for _, ref := range op1.CrossReferences {
			if target, err := resolver.ResolveAgainst(names, ref); err == nil && target == page {
				refs.Incoming = append(refs.Incoming, other)
				break
			}
		}
	}
	sort.Strings(refs.Incoming)
	return refs, nil
}

// CountPages returns the number of page directories without loading pass1s.
func (l *Loader) CountPages(slug string) int {
	names, err := l.res.ListPageNames(slug)
	if err != nil {
		return 0
	}
	return len(names)
}

// CountWorkspaces returns the number of workspace directories.
func (l *Loader) CountWorkspaces(slug string) int {
	entries, err := os.ReadDir(l.res.WorkspacesPath(slug))
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && fsjson.Exists(l.res.WorkspacePath(slug, e.Name())) {
			n++
		}
	}
	return n
}
