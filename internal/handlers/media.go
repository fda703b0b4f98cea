package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/qenty/academy/internal/services"
	"github.com/qenty/academy/internal/storage"
)

// MediaRouter serves course covers from object storage.
func MediaRouter(r chi.Router, web *Web, courses *services.CourseService) {
	r.Get("/media/*", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		body, err := courses.OpenCover(r.Context(), key)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) || errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, services.ErrStorageDisabled) {
				web.notFound(w, r)
				return
			}
			web.serverError(w, r, err)
			return
		}
		defer body.Close()

		if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, body); err != nil {
			web.logger.WithError(err).WithField("key", key).Warn("cover stream interrupted")
		}
	})
}

// HealthRouter registers the liveness probe.
func HealthRouter(r chi.Router, ping func(*http.Request) error) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
}
