// Package web renders the single-page HTML interface.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"study-companion/internal/models"
	"study-companion/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type PageData struct {
	Snapshot   session.Snapshot
	Token      string
	AidTypes   []models.AidType
	MaxImageMB int64
}

// Busy reports whether the page should keep polling for a result.
func (d PageData) Busy() bool {
	return d.Snapshot.Generating || d.Snapshot.Replying
}

// Settling reports whether a flashcard move is still pending, so the page
// must reload once it lands.
func (d PageData) Settling() bool {
	return d.Snapshot.Flashcards != nil && d.Snapshot.Flashcards.Transitioning
}

type Renderer struct {
	page *template.Template
}

func NewRenderer() (*Renderer, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"slug": func(t models.AidType) string { return t.Slug() },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{page: page}, nil
}

// Render executes into a buffer first so a template error never leaves a
// half-written page.
func (r *Renderer) Render(w io.Writer, data PageData) error {
	var buf bytes.Buffer
	if err := r.page.Execute(&buf, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
