package profile

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// PageData is what the page template sees.
type PageData struct {
	Profile     *Profile
	Bio         template.HTML
	Suggestions []string
}

// Renderer renders the portfolio page.
type Renderer struct {
	tmpl *template.Template
	md   goldmark.Markdown
}

// NewRenderer parses the page template named index.html from fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	tmpl, err := template.New("index.html").Funcs(template.FuncMap{
		"initial": initial,
	}).ParseFS(fsys, "index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &Renderer{
		tmpl: tmpl,
		md:   goldmark.New(goldmark.WithExtensions(extension.Linkify)),
	}, nil
}

// Bio converts the markdown background to HTML. goldmark drops raw HTML by
// default, so the result is safe to embed.
func (r *Renderer) Bio(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render bio: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // goldmark output without unsafe mode
}

// Render writes the page for p.
func (r *Renderer) Render(w io.Writer, p *Profile, suggestions []string) error {
	bio, err := r.Bio(p.Background)
	if err != nil {
		return err
	}
	return r.tmpl.Execute(w, PageData{Profile: p, Bio: bio, Suggestions: suggestions})
}

func initial(name string) string {
	for _, r := range name {
		return string(r)
	}
	return "?"
}
