package views

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportgate/internal/auth"
	"reportgate/internal/reports"
)

func TestRenderEveryPage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	for _, page := range pages {
		t.Run(page, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, r.Render(rec, http.StatusOK, page, PageData{Title: "T", CSRFToken: "tok"}))
			body := rec.Body.String()
			assert.Contains(t, body, `<meta name="csrf-token" content="tok">`)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.NotContains(t, body, "<no value>")
			assert.NotContains(t, body, "logout")
		})
	}

	assert.Error(t, r.Render(httptest.NewRecorder(), http.StatusOK, "missing", PageData{}))
}

func TestRenderNavigationForUser(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	user := &auth.User{Email: "qa@example.com", Roles: auth.NewRoleSet(auth.RoleUser)}
	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, http.StatusOK, PageIndex, PageData{Title: "Reports", User: user}))
	assert.Contains(t, rec.Body.String(), `id="logout"`)
	assert.NotContains(t, rec.Body.String(), `href="/register"`)

	user.Roles = auth.NewRoleSet(auth.RoleUser, auth.RoleAdmin)
	rec = httptest.NewRecorder()
	require.NoError(t, r.Render(rec, http.StatusOK, PageIndex, PageData{Title: "Reports", User: user}))
	assert.Contains(t, rec.Body.String(), `href="/register"`)
}

func TestRenderIndexReports(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	list := []reports.Report{{
		Path:        "1626355200000-prod-pass-ci-1-2-PR_1",
		Date:        time.UnixMilli(1626355200000).UTC(),
		Environment: "prod",
		Status:      "pass",
		Workflow:    "ci",
		Number:      "1",
		Attempt:     "2",
		PR:          "PR_1",
	}}
	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, http.StatusOK, PageIndex, PageData{Reports: list, Facets: reports.FacetsOf(list)}))

	body := rec.Body.String()
	assert.Contains(t, body, `href="/reports/1626355200000-prod-pass-ci-1-2-PR_1/"`)
	assert.Contains(t, body, `data-date="1626355200000"`)
	assert.Contains(t, body, `<option value="prod">prod</option>`)
}

func TestRenderEscapesValues(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	data := PageData{
		Values: map[string]string{"email": `"><script>alert(1)</script>`},
		Errors: map[string]string{"email": "Email is required"},
	}
	require.NoError(t, r.Render(rec, http.StatusBadRequest, PageLogin, data))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, rec.Body.String(), "Email is required")
}

func TestRenderPartial(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPartial(&buf, "head", PageData{CSRFToken: "tok", InReport: true}))
	assert.Contains(t, buf.String(), "/static/js/report.js")

	buf.Reset()
	require.NoError(t, r.RenderPartial(&buf, "header", PageData{User: &auth.User{Email: "qa@example.com"}}))
	assert.Contains(t, buf.String(), "<header")
	assert.Contains(t, buf.String(), "qa@example.com")
}

func TestStatic(t *testing.T) {
	srv := httptest.NewServer(http.StripPrefix("/static/", Static()))
	defer srv.Close()

	for _, p := range []string{"css/style.css", "js/nav.js", "js/index.js", "js/report.js"} {
		resp, err := http.Get(srv.URL + "/static/" + p)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
	}
}
