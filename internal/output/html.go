package output

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/leapstack-labs/modaryn/pkg/core"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// DefaultHTMLFile is where HTML reports go when no output file is given.
const DefaultHTMLFile = "modaryn_report.html"

type reportPage struct {
	Title       string
	Heading     string
	Project     string
	ModelCount  int
	GeneratedAt time.Time
	Statistics  *core.ScoreStatistics
	Table       template.HTML
}

// WriteHTMLReport writes a self-contained HTML page with the scan or score
// table of p.
func WriteHTMLReport(w io.Writer, p *core.Project, scored bool) error {
	page := reportPage{
		Title:       "Modaryn Scan Report",
		Heading:     "Models",
		Project:     p.Name,
		ModelCount:  len(p.Models),
		GeneratedAt: time.Now().UTC(),
	}

	// the table is rendered in text mode so score cells carry no escapes
	r := NewRendererWithTTY(io.Discard, io.Discard, ModeText, false)
	var t string
	if scored {
		page.Title = "Modaryn Score Report"
		page.Heading = "Model Scores"
		page.Statistics = p.Statistics
		t = newTable(scoreHeaders, r.scoreTable(ScoreRows(p), nil)).RenderHTML()
	} else {
		t = newTable(scanHeaders, r.scanTable(ScanRows(p))).RenderHTML()
	}
	page.Table = template.HTML(t) //nolint:gosec // go-pretty escapes cell content

	return templates.ExecuteTemplate(w, "report.html.tmpl", page)
}
