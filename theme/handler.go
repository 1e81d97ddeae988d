package theme

import (
	"encoding/json"
	"net/http"
)

// Handler serves highlight stylesheets and the style list.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new theme handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager: manager,
	}
}

// HandleCSS serves the stylesheet named by the "style" query parameter.
func (h *Handler) HandleCSS(w http.ResponseWriter, r *http.Request) {
	css, etag, err := h.manager.GetThemeCSS(r.URL.Query().Get("style"))
	if err != nil {
		http.Error(w, "failed to render stylesheet", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(css)
}

// HandleStyles returns the available styles as JSON.
func (h *Handler) HandleStyles(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Default string      `json:"default"`
		Styles  []StyleInfo `json:"styles"`
	}{
		Default: h.manager.Default(),
		Styles:  h.manager.Styles(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode styles", http.StatusInternalServerError)
		return
	}
}
