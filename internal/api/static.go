package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
)

// Rendered page and crop images are content-addressed by their path and never
// rewritten in place, so far-future caching is safe.
const imageCacheControl = "public, max-age=31536000, immutable"

// serveImage streams an image from disk with range-request support.
func serveImage(w http.ResponseWriter, r *http.Request, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(w, r, fault.Newf(fault.KindNotFound, "image %s not found", filepath.Base(path)))
		return
	}
	w.Header().Set("Cache-Control", imageCacheControl)
	http.ServeFile(w, r, path)
}

func (h *Handlers) PageImage(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.Resolver.ResolvePage(slug, chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	serveImage(w, r, h.Resolver.PageImagePath(slug, page))
}

func (h *Handlers) PageThumb(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.Resolver.ResolvePage(slug, chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	serveImage(w, r, h.Resolver.ThumbPath(slug, page))
}

func (h *Handlers) RegionCrop(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.Resolver.ResolvePage(slug, chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	serveImage(w, r, h.Resolver.CropPath(slug, page, chi.URLParam(r, "id")))
}

// WorkspaceImage serves a generated image owned by a workspace. The filename
// is constrained to a bare base name to keep requests inside the workspace dir.
func (h *Handlers) WorkspaceImage(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	file := chi.URLParam(r, "file")
	if file != filepath.Base(file) || file == "." || file == "" {
		respondError(w, r, fault.New(fault.KindInvalidArgument, "invalid image filename"))
		return
	}
	serveImage(w, r, h.Resolver.WorkspaceImagePath(slug, chi.URLParam(r, "ws"), file))
}
