package server

import (
	"log/slog"
	"net/http"

	"reportgate/internal/views"
)

// pageData fills the per-request fields every layout needs.
func (s *Server) pageData(r *http.Request, data views.PageData) views.PageData {
	data.User = userFromContext(r.Context())
	if sess := sessionFromContext(r.Context()); sess != nil {
		data.CSRFToken = sess.CSRFToken
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data views.PageData) {
	if err := s.Views.Render(w, status, page, s.pageData(r, data)); err != nil {
		s.Logger.ErrorContext(r.Context(), "render failed", slog.String("page", page), slog.Any("error", err))
		http.Error(w, unexpectedErrorMessage, http.StatusInternalServerError)
	}
}
