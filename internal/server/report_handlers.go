package server

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"

	"reportgate/internal/reports"
	"reportgate/internal/views"
)

const indexTitle = "QA Playwright Reports"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	list, err := s.Catalog.List()
	if err != nil {
		s.serverError(w, r, fmt.Errorf("list reports: %w", err))
		return
	}
	s.render(w, r, http.StatusOK, views.PageIndex, views.PageData{
		Title:   indexTitle,
		Reports: list,
		Facets:  reports.FacetsOf(list),
	})
}

// handleReport serves /reports/<name>[/<rest>]. The bare report URL
// redirects to its trailing-slash form so relative asset links resolve.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/reports/")
	name, rest, _ := strings.Cut(p, "/")
	trailing := strings.HasSuffix(r.URL.Path, "/")

	res, err := s.Resolver.Resolve(name, rest, trailing)
	if err != nil {
		s.serverError(w, r, fmt.Errorf("resolve report: %w", err))
		return
	}

	switch res.Kind {
	case reports.KindRedirect:
		http.Redirect(w, r, res.Location, http.StatusFound)
	case reports.KindIndex:
		s.serveReportIndex(w, r, res)
	case reports.KindFile:
		f, err := os.Open(res.FilePath)
		if err != nil {
			s.serverError(w, r, fmt.Errorf("open report file: %w", err))
			return
		}
		defer f.Close()
		http.ServeContent(w, r, res.Info.Name(), res.Info.ModTime(), f)
	default:
		s.handleNotFound(w, r)
	}
}

func (s *Server) serveReportIndex(w http.ResponseWriter, r *http.Request, res reports.Resolution) {
	f, err := os.Open(res.FilePath)
	if err != nil {
		s.serverError(w, r, fmt.Errorf("open report index: %w", err))
		return
	}
	defer f.Close()

	data := s.pageData(r, views.PageData{InReport: true})
	var head, header bytes.Buffer
	if err := s.Views.RenderPartial(&head, "head", data); err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := s.Views.RenderPartial(&header, "header", data); err != nil {
		s.serverError(w, r, err)
		return
	}

	out, err := reports.Inject(f, head.Bytes(), header.Bytes(), data.CSRFToken)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
