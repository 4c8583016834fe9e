// README: Embedded HTML templates for the planner pages.
package templates

import (
	"embed"
	"html/template"
)

//go:embed *.tmpl
var files embed.FS

// Index is the name of the single page template.
const Index = "index.tmpl"

// Parse loads every embedded template. html/template escapes all user and backend text.
func Parse() (*template.Template, error) {
	return template.New("").ParseFS(files, "*.tmpl")
}

func Must() *template.Template {
	return template.Must(Parse())
}
