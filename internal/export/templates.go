package export

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var intakeTemplate = template.Must(
	template.New("intake.html").Funcs(template.FuncMap{
		"lower": strings.ToLower,
		"day": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
	}).ParseFS(templateFS, "templates/intake.html"),
)

// TemplateData is what the printed intake form shows.
type TemplateData struct {
	Title       string
	ClientName  string
	TrainerName string
	Status      string
	CompletedAt time.Time
	Rows        []TemplateRow
}

// TemplateRow is one question and its rendered answer.
type TemplateRow struct {
	Question string
	Answer   string
}

func RenderIntakeHTML(data TemplateData) (string, error) {
	var b strings.Builder
	if err := intakeTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render intake form: %w", err)
	}
	return b.String(), nil
}
