package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/command"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fleet"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/knowledge"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/mutator"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/tools"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Resolver      *resolver.Store
	Loader        *knowledge.Loader
	Mutator       *mutator.Mutator
	Tools         *tools.Registry
	Fleet         *fleet.Fleet
	Aggregator    *command.Aggregator
	Directives    *command.Directives
	Dispatcher    *command.Dispatcher
	Conversations *command.Conversations
	Bus           *bus.Bus
	Version       string
}

// project extracts the {slug} URL param and verifies it names a project.
func (h *Handlers) project(r *http.Request) (string, error) {
	slug := chi.URLParam(r, "slug")
	if _, err := h.Loader.GetProject(slug); err != nil {
		return "", err
	}
	return slug, nil
}

// ── Projects and knowledge ──────────────────────────────────

func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Loader.ListProjects()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Loader.GetProject(chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListPages(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	pages, err := h.Loader.ListPages(slug, r.URL.Query().Get("discipline"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pages)
}

func (h *Handlers) GetPage(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p1, err := h.Loader.LoadPass1(slug, chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p1)
}

func (h *Handlers) ListRegions(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	regions, err := h.Loader.ListRegions(slug, chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, regions)
}

func (h *Handlers) GetRegion(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p2, err := h.Loader.LoadPass2(slug, chi.URLParam(r, "page"), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p2)
}

func (h *Handlers) FindCrossReferences(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	refs, err := h.Loader.FindCrossReferences(slug, chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, refs)
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, r, fault.New(fault.KindInvalidArgument, "query param q is required"))
		return
	}
	results, err := h.Loader.Search(slug, q, queryInt(r, "limit"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// ── Workspaces ──────────────────────────────────────────────

func (h *Handlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	wss, err := h.Mutator.ListWorkspaces(slug)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wss)
}

func (h *Handlers) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ws, err := h.Mutator.GetWorkspace(slug, chi.URLParam(r, "ws"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ws)
}

// ── Tools ───────────────────────────────────────────────────

func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Tools.List())
}

func (h *Handlers) InvokeTool(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var params map[string]any
	if r.ContentLength > 0 {
		if err := decodeBody(r, &params); err != nil {
			respondError(w, r, err)
			return
		}
	}
	if params == nil {
		params = map[string]any{}
	}
	result, err := h.Tools.Invoke(r.Context(), slug, chi.URLParam(r, "op"), params)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
