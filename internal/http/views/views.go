// Package views renders the site's HTML pages from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutFile = "templates/layout.html"

// Data is the value handed to a page template.
type Data map[string]any

// Renderer holds one parsed template set per page, each combined with the
// shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"price": func(p float64) string { return fmt.Sprintf("£%.2f", p) },
}

// New parses every page template.
func New() (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		if name == layoutFile {
			continue
		}
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		page := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render executes page into a buffer first so a template failure never
// leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Data) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded stylesheet and other assets.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
