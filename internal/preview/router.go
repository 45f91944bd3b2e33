package preview

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/novelpress/internal/apperr"
)

// NewRouter mounts the preview routes. assetsDir is served under /assets/;
// events, when non-nil, is mounted at GET /events.
func NewRouter(svc *Service, assetsDir string, events http.Handler, logger *slog.Logger) chi.Router {
	h := &handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/novels/{novel}", h.index)
	r.Get("/novels/{novel}/{slug}", h.chapter)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(assetsDir))))
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}
	return r
}

type handler struct {
	svc    *Service
	logger *slog.Logger
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	novel := chi.URLParam(r, "novel")
	chapters, err := h.svc.Chapters(novel)
	if err != nil {
		h.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, map[string]any{"novel": novel, "chapters": chapters})
		return
	}
	h.render(w, indexTemplate, map[string]any{"Novel": novel, "Chapters": chapters})
}

func (h *handler) chapter(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Chapter(chi.URLParam(r, "novel"), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.render(w, chapterTemplate, page)
}

func (h *handler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.logger.Error("preview: request failed", slog.String("error", err.Error()))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
