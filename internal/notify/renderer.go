package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/terminwatch/terminwatch/internal/domain"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notification messages from templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":       titleCase,
		"upper":       strings.ToUpper,
		"lower":       strings.ToLower,
		"escapeHTML":  html.EscapeString,
		"displayDate": displayDate,
		"formatTime":  formatTime,
	}

	r := &Renderer{templates: make(map[string]*template.Template)}

	names := []string{"telegram_found"}
	for _, name := range names {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

// RenderFound renders the appointments-found message for Telegram.
func (r *Renderer) RenderFound(payload Payload) (string, error) {
	tmpl, ok := r.templates["telegram_found"]
	if !ok {
		return "", fmt.Errorf("template not found: telegram_found")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("execute template telegram_found: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Template functions

var titleCaser = cases.Title(language.German)

func titleCase(s string) string {
	return titleCaser.String(s)
}

// displayDate turns an ISO slot date back into the DD.MM.YYYY form users
// see on the booking site. Unresolved dates are labeled, never guessed.
func displayDate(d domain.SlotDate) string {
	if !d.Resolved() {
		return "Datum unbekannt"
	}
	t, err := time.Parse("2006-01-02", string(d))
	if err != nil {
		return string(d)
	}
	return t.Format("02.01.2006")
}

func formatTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04 UTC")
}
