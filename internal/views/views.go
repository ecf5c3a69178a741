// Package views holds the embedded page templates and static assets.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"reportgate/internal/auth"
	"reportgate/internal/reports"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	PageLogin          = "login"
	PageRegister       = "register"
	PageSetPassword    = "set_password"
	PageForgotPassword = "forgot_password"
	PageIndex          = "index"
	PageForbidden      = "error403"
	PageNotFound       = "error404"
	PageServerError    = "error500"
)

var pages = []string{
	PageLogin,
	PageRegister,
	PageSetPassword,
	PageForgotPassword,
	PageIndex,
	PageForbidden,
	PageNotFound,
	PageServerError,
}

// PageData is the single view model shared by every page. Values holds
// submitted form fields to re-render and Errors maps a field (or "form")
// to its message.
type PageData struct {
	Title     string
	User      *auth.User
	CSRFToken string
	InReport  bool
	Success   bool
	Redirect  string
	Values    map[string]string
	Errors    map[string]string
	Reports   []reports.Report
	Facets    reports.Facets
}

type Renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
}

func NewRenderer() (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), partials: base}
	for _, name := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(templateFS, "templates/pages/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes a full page into a buffer first so a template error never
// leaves a half-written response behind.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderPartial executes "head" or "header" on its own, for embedding into
// documents this package does not own.
func (r *Renderer) RenderPartial(w io.Writer, name string, data PageData) error {
	return r.partials.ExecuteTemplate(w, name, data)
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
