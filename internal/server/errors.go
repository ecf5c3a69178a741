package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"reportgate/internal/views"
)

const unexpectedErrorMessage = "An unexpected error has occurred"

// serverError logs err and answers 500: JSON for XHR and non-HTML clients,
// the error page otherwise.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.Logger.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", requestID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)

	if isXHR(r) || !acceptsHTML(r) {
		writeError(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}
	s.render(w, r, http.StatusInternalServerError, views.PageServerError, views.PageData{Title: "Error"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if isXHR(r) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	s.render(w, r, http.StatusNotFound, views.PageNotFound, views.PageData{Title: "Not Found"})
}

// recoverer turns panics into the regular 500 response. Once the handler
// has started its response the panic is only logged.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.Logger.ErrorContext(r.Context(), "panic recovered",
				slog.String("request_id", requestID(r.Context())),
				slog.Int("status_written", ww.Status()),
				slog.String("stack", string(debug.Stack())),
			)
			if ww.Status() != 0 {
				return
			}
			s.serverError(ww, r, fmt.Errorf("panic: %v", rec))
		}()

		next.ServeHTTP(ww, r)
	})
}
