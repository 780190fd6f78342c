package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/command"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
)

// sourceHeader identifies the caller for chain-of-command checks.
const sourceHeader = "X-Maestro-Source"

// CommandCenterState serves the full awareness snapshot.
func (h *Handlers) CommandCenterState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Aggregator.Snapshot()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Awareness is an alias of the snapshot for agent consumers.
func (h *Handlers) Awareness(w http.ResponseWriter, r *http.Request) {
	h.CommandCenterState(w, r)
}

// CommandCenterProject serves one project's block of the snapshot.
func (h *Handlers) CommandCenterProject(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	snap, err := h.Aggregator.Snapshot()
	if err != nil {
		respondError(w, r, err)
		return
	}
	for _, p := range snap.Projects {
		if p.Slug == slug {
			respondJSON(w, http.StatusOK, p)
			return
		}
	}
	respondError(w, r, fault.Newf(fault.KindNotFound, "project %q not in fleet", slug))
}

// NodeStatus serves the per-agent status row for one project node.
func (h *Handlers) NodeStatus(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	reg, err := h.Fleet.List()
	if err != nil {
		respondError(w, r, err)
		return
	}
	for _, a := range reg.Agents {
		if a.ProjectSlug == slug && !a.Archived {
			respondJSON(w, http.StatusOK, h.Fleet.NodeStatus(a))
			return
		}
	}
	respondError(w, r, fault.Newf(fault.KindNotFound, "no agent for project %q", slug))
}

// FleetRegistry serves the raw registry document.
func (h *Handlers) FleetRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := h.Fleet.List()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reg)
}

// GetConversation serves the in-memory conversation log for a node.
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	respondJSON(w, http.StatusOK, h.Conversations.List(slug, queryInt(r, "limit")))
}

// SendConversation appends a message to a node's conversation. The chain of
// command applies: only the command center may address a project node. The
// caller identifies itself via the source header or the body's source field;
// the message text may arrive as either "text" or "message".
func (h *Handlers) SendConversation(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var body struct {
		Text    string `json:"text"`
		Message string `json:"message"`
		Role    string `json:"role"`
		Source  string `json:"source"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	source := r.Header.Get(sourceHeader)
	if source == "" {
		source = body.Source
	}
	if err := h.Fleet.Authorize(slug, source); err != nil {
		respondError(w, r, err)
		return
	}
	text := body.Text
	if text == "" {
		text = body.Message
	}
	if text == "" {
		respondError(w, r, fault.New(fault.KindInvalidArgument, "message text is required"))
		return
	}
	if body.Role == "" {
		body.Role = "commander"
	}
	msg := h.Conversations.Append(slug, body.Role, text)
	respondJSON(w, http.StatusCreated, msg)
}

// DispatchAction runs one command-center action.
func (h *Handlers) DispatchAction(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Source == "" {
		req.Source = r.Header.Get(sourceHeader)
	}
	result, err := h.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Handle != "" {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}
