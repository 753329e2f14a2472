package builder

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tkivisto/fieldlog/internal/errors"
)

//go:embed templates/*.html
var templateFiles embed.FS

// renderer bundles the parsed page templates with the Markdown engine for
// post bodies. Both are stateless, so one renderer serves every build.
type renderer struct {
	templates *template.Template
	markdown  goldmark.Markdown
}

func newRenderer() *renderer {
	return &renderer{
		templates: template.Must(template.New("").Funcs(templateFuncs()).ParseFS(templateFiles, "templates/*.html")),
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// titleCase uppercases the first letter of each word. A cases.Caser
// carries transformer state, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// templateFuncs returns the helper functions the page templates use.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"title":     titleCase,
		"date":      formatDate,
		"shortDate": formatShortDate,
		"join":      strings.Join,
		"barWidth":  barWidth,
	}
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

func formatShortDate(t time.Time) string {
	return t.Format("Jan 2")
}

// barWidth scales a chart row to a percentage of the section maximum.
func barWidth(count, maxCount int) int {
	if maxCount <= 0 {
		return 0
	}
	width := (count * 100) / maxCount
	if width > 100 {
		width = 100
	}
	return width
}

// renderMarkdown converts one post body to HTML. The result is trusted
// content: posts are the operator's own files, not visitor input.
func (r *renderer) renderMarkdown(slug, body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(body), &buf); err != nil {
		return "", errors.New(err).
			Component("builder").
			Category(errors.CategoryFileParsing).
			Context("post", slug).
			Build()
	}
	return template.HTML(buf.String()), nil
}
