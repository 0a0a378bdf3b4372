package ui

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Regions are the parts of the page pushed to the browser after a change, in push order.
var Regions = []string{"clear", "filters", "results", "summary"}

// Region is one rendered page fragment.
type Region struct {
	Name string
	HTML string
}

// Renderer executes the page templates.
type Renderer struct {
	tmpl     *template.Template
	debounce time.Duration
}

type pageData struct {
	ViewID           string
	SearchDebounceMs int64
	Model            Model
}

// NewRenderer parses the embedded templates.
func NewRenderer(debounce time.Duration) (*Renderer, error) {
	if debounce <= 0 {
		debounce = DefaultSearchDebounce
	}
	tmpl, err := template.New("finder").Funcs(template.FuncMap{"dict": dict}).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, debounce: debounce}, nil
}

// Page writes the full document of v.
func (r *Renderer) Page(w io.Writer, v *View) error {
	return r.tmpl.ExecuteTemplate(w, "page", pageData{
		ViewID:           v.ID,
		SearchDebounceMs: r.debounce.Milliseconds(),
		Model:            v.Page.Model(),
	})
}

// Regions renders every pushed region of m.
func (r *Renderer) Regions(m Model) ([]Region, error) {
	regions := make([]Region, 0, len(Regions))
	var buf bytes.Buffer
	for _, name := range Regions {
		buf.Reset()
		if err := r.tmpl.ExecuteTemplate(&buf, name, m); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		regions = append(regions, Region{Name: name, HTML: buf.String()})
	}
	return regions, nil
}

func dict(pairs ...interface{}) (map[string]interface{}, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict expects key/value pairs")
	}
	m := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}
