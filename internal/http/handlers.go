package http

import (
	"context"
	"net/http"
	"time"

	applog "expenses/internal/log"
)

const readyTimeout = 2 * time.Second

type indexData struct {
	Title        string
	StorageLabel string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}

	data := indexData{
		Title:        "Expense Tracker",
		StorageLabel: s.storageLabel,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err, "template", "index.html")
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports whether the store can be reached and initialized.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ensure(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
			applog.NewFields().WithError(err).WithErrorType(applog.ErrorTypeStorage).ToSlice()...)
		NewResponse().
			Status(http.StatusServiceUnavailable).
			JSON(map[string]string{"status": "unavailable", "error": "store unavailable"}).
			Write(w)
		return
	}

	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}
