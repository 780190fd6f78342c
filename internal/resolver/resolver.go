// Package resolver maps (storeRoot, projectSlug, pageToken, regionID) to
// concrete filesystem locations and performs fuzzy page-name resolution.
//
// Resolution is deterministic: the same token against the same page set
// always yields the same page, with lexicographic-first tie-breaking at
// every stage.
package resolver

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// Well-known file and directory names inside a knowledge store.
const (
	ProjectFile    = "project.json"
	IndexFile      = "index.json"
	Pass1File      = "pass1.json"
	Pass2File      = "pass2.json"
	PageImage      = "page.png"
	ThumbImage     = "thumb.png"
	CropImage      = "crop.png"
	PagesDir       = "pages"
	PointersDir    = "pointers"
	WorkspacesDir  = "workspaces"
	WorkspaceFile  = "workspace.json"
	NotesFile      = "notes/project_notes.json"
	ScheduleFile   = "schedule/maestro_schedule.json"
	ControlDir     = ".command_center"
	HeartbeatFile  = "heartbeat.json"
	RegistryFile   = "fleet_registry.json"
	DirectivesFile = "system_directives.json"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripDiacritics(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}

func normalize(s string, sep rune) string {
	s = strings.ToLower(stripDiacritics(s))
	var b strings.Builder
	lastSep := true // swallow leading separators
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep {
			b.WriteRune(sep)
			lastSep = true
		}
	}
	return strings.TrimRight(b.String(), string(sep))
}

// Slug normalizes s to dash form (project slugs).
func Slug(s string) string { return normalize(s, '-') }

// ID normalizes s to underscore form (workspace slugs, note ids,
// schedule item ids, category ids).
func ID(s string) string { return normalize(s, '_') }

// pageKey folds a page name or token for prefix/substring matching:
// lowercase with '.', '-' and spaces collapsed to '_'.
func pageKey(s string) string {
	s = strings.ToLower(stripDiacritics(s))
	repl := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return repl.Replace(s)
}

// Store resolves paths inside one knowledge-store root.
type Store struct {
	Root string
}

// New creates a resolver rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// SingleProject reports whether the root itself is a project directory.
func (s *Store) SingleProject() bool {
	return fsjson.Exists(filepath.Join(s.Root, ProjectFile))
}

// ProjectDir returns the directory for slug, honoring single-project layout.
func (s *Store) ProjectDir(slug string) string {
	if s.SingleProject() {
		return s.Root
	}
	return filepath.Join(s.Root, slug)
}

// ProjectSlugs lists the slugs present under the root, sorted.
func (s *Store) ProjectSlugs() ([]string, error) {
	if s.SingleProject() {
		var p models.Project
		if err := fsjson.ReadJSON(filepath.Join(s.Root, ProjectFile), &p); err != nil {
			return nil, err
		}
		if p.Slug == "" {
			p.Slug = Slug(filepath.Base(s.Root))
		}
		return []string{p.Slug}, nil
	}
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fault.Wrap(fault.KindInternal, err, "read store root")
	}
	var slugs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if fsjson.Exists(filepath.Join(s.Root, e.Name(), ProjectFile)) {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// ActiveProject selects the active project slug: explicit override, then the
// install-state slug, then a name match, then lexicographic-first.
func (s *Store) ActiveProject(override string) (string, error) {
	slugs, err := s.ProjectSlugs()
	if err != nil {
		return "", err
	}
	if len(slugs) == 0 {
		return "", fault.New(fault.KindNotFound, "no projects in store")
	}
	pick := func(want string) string {
		for _, sl := range slugs {
			if sl == want {
				return sl
			}
		}
		return ""
	}
	if override != "" {
		if sl := pick(override); sl != "" {
			return sl, nil
		}
		return "", fault.Newf(fault.KindNotFound, "project %q not in store", override)
	}
	if st, err := LoadInstallState(); err == nil && st.ActiveProjectSlug != "" {
		if sl := pick(st.ActiveProjectSlug); sl != "" {
			return sl, nil
		}
		if st.ActiveProjectName != "" {
			if sl := pick(Slug(st.ActiveProjectName)); sl != "" {
				return sl, nil
			}
		}
	}
	return slugs[0], nil
}

// ── Per-document paths ──────────────────────────────────────

func (s *Store) ProjectPath(slug string) string {
	return filepath.Join(s.ProjectDir(slug), ProjectFile)
}

func (s *Store) IndexPath(slug string) string {
	return filepath.Join(s.ProjectDir(slug), IndexFile)
}

func (s *Store) PagesPath(slug string) string {
	return filepath.Join(s.ProjectDir(slug), PagesDir)
}

func (s *Store) PageDir(slug, page string) string {
	return filepath.Join(s.PagesPath(slug), page)
}

func (s *Store) Pass1Path(slug, page string) string {
	return filepath.Join(s.PageDir(slug, page), Pass1File)
}

func (s *Store) PageImagePath(slug, page string) string {
	return filepath.Join(s.PageDir(slug, page), PageImage)
}

func (s *Store) ThumbPath(slug, page string) string {
	return filepath.Join(s.PageDir(slug, page), ThumbImage)
}

func (s *Store) PointerDir(slug, page, region string) string {
	return filepath.Join(s.PageDir(slug, page), PointersDir, region)
}

func (s *Store) Pass2Path(slug, page, region string) string {
	return filepath.Join(s.PointerDir(slug, page, region), Pass2File)
}

func (s *Store) CropPath(slug, page, region string) string {
	return filepath.Join(s.PointerDir(slug, page, region), CropImage)
}

func (s *Store) WorkspacesPath(slug string) string {
	return filepath.Join(s.ProjectDir(slug), WorkspacesDir)
}

func (s *Store) WorkspacePath(slug, ws string) string {
	return filepath.Join(s.WorkspacesPath(slug), ws, WorkspaceFile)
}

func (s *Store) WorkspaceImagePath(slug, ws, file string) string {
	return filepath.Join(s.WorkspacesPath(slug), ws, "generated_images", file)
}

func (s *Store) NotesPath(slug string) string {
	return filepath.Join(s.ProjectDir(slug), filepath.FromSlash(NotesFile))
}

func (s *Store) SchedulePath(slug string) string {
	return filepath.Join(s.ProjectDir(slug), filepath.FromSlash(ScheduleFile))
}

func (s *Store) HeartbeatPath(slug string) string {
	return filepath.Join(s.ProjectDir(slug), ControlDir, HeartbeatFile)
}

// Fleet-level sidecars live under the store root, which doubles as the
// fleet root.
func (s *Store) RegistryPath() string {
	return filepath.Join(s.Root, ControlDir, RegistryFile)
}

func (s *Store) DirectivesPath() string {
	return filepath.Join(s.Root, ControlDir, DirectivesFile)
}

// ── Page resolution ─────────────────────────────────────────

// ListPageNames returns the sorted page directory names for a project.
func (s *Store) ListPageNames(slug string) ([]string, error) {
	entries, err := os.ReadDir(s.PagesPath(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fault.Wrap(fault.KindInternal, err, "read pages dir")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ResolvePage resolves token against the project's pages: exact match, then
// prefix match on the normalized form, then substring match. The winner is
// always the lexicographic-first candidate, so resolution is idempotent.
// A miss returns NotFound carrying up to five candidate names.
func (s *Store) ResolvePage(slug, token string) (string, error) {
	names, err := s.ListPageNames(slug)
	if err != nil {
		return "", err
	}
	return resolveAgainst(names, token)
}

// ResolveAgainst resolves token against an explicit page list; exported for
// callers that already hold the listing.
func ResolveAgainst(names []string, token string) (string, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return resolveAgainst(sorted, token)
}

func resolveAgainst(sorted []string, token string) (string, error) {
	for _, n := range sorted {
		if n == token {
			return n, nil
		}
	}
	key := pageKey(token)
	if key != "" {
		for _, n := range sorted {
			if strings.HasPrefix(pageKey(n), key) {
				return n, nil
			}
		}
		for _, n := range sorted {
			if strings.Contains(pageKey(n), key) {
				return n, nil
			}
		}
	}
	candidates := sorted
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}
	return "", fault.Newf(fault.KindNotFound, "page %q not found", token).
		WithDetail(map[string]any{"token": token, "candidates": candidates})
}

// ── Install state ───────────────────────────────────────────

// InstallStatePath returns ~/.maestro-solo/install.json.
func InstallStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".maestro-solo", "install.json")
}

// LoadInstallState reads the installer-written state file.
func LoadInstallState() (models.InstallState, error) {
	var st models.InstallState
	p := InstallStatePath()
	if p == "" {
		return st, fault.New(fault.KindNotFound, "no home directory")
	}
	if err := fsjson.ReadJSON(p, &st); err != nil {
		return st, err
	}
	return st, nil
}
