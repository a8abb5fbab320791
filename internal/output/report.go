package output

import (
	"fmt"
	"sort"
	"time"

	"github.com/leapstack-labs/modaryn/pkg/core"
)

// ModelRow is one model in a scan or score report.
type ModelRow struct {
	Rank              int                `json:"rank,omitempty"`
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	FilePath          string             `json:"file_path,omitempty"`
	Score             float64            `json:"score"`
	RawScore          float64            `json:"raw_score"`
	QualityScore      float64            `json:"quality_score"`
	Complexity        core.SQLComplexity `json:"complexity"`
	HasComplexity     bool               `json:"-"`
	DownstreamModels  int                `json:"downstream_models"`
	DownstreamColumns int                `json:"downstream_columns"`
	Columns           int                `json:"columns"`
	Tests             int                `json:"tests"`
}

// Report is the JSON form of a scan or score run.
type Report struct {
	Project     string                `json:"project"`
	GeneratedAt time.Time             `json:"generated_at"`
	Scored      bool                  `json:"scored"`
	Statistics  *core.ScoreStatistics `json:"statistics,omitempty"`
	Models      []ModelRow            `json:"models"`
}

func newRow(p *core.Project, m *core.Model) ModelRow {
	row := ModelRow{
		ID:                m.UniqueID,
		Name:              m.Name,
		FilePath:          m.FilePath,
		Score:             p.DisplayScore(m),
		RawScore:          m.RawScore,
		QualityScore:      m.QualityScore,
		DownstreamModels:  m.DownstreamModelCount(),
		DownstreamColumns: m.DownstreamColumnCount(),
		Columns:           m.ColumnCount(),
		Tests:             m.TestCount,
	}
	if m.Complexity != nil {
		row.Complexity = *m.Complexity
		row.HasComplexity = true
	}
	return row
}

// ScanRows returns the models ordered by downstream model count, most
// depended-on first.
func ScanRows(p *core.Project) []ModelRow {
	rows := make([]ModelRow, 0, len(p.Models))
	for _, id := range p.ModelIDs() {
		rows = append(rows, newRow(p, p.Models[id]))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DownstreamModels != rows[j].DownstreamModels {
			return rows[i].DownstreamModels > rows[j].DownstreamModels
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// ScoreRows returns the models ranked by score, highest first.
func ScoreRows(p *core.Project) []ModelRow {
	sorted := p.SortedByScore()
	rows := make([]ModelRow, len(sorted))
	for i, m := range sorted {
		rows[i] = newRow(p, m)
		rows[i].Rank = i + 1
	}
	return rows
}

// NewReport builds the report of p.
func NewReport(p *core.Project, scored bool) *Report {
	r := &Report{Project: p.Name, GeneratedAt: time.Now().UTC(), Scored: scored}
	if scored {
		r.Statistics = p.Statistics
		r.Models = ScoreRows(p)
	} else {
		r.Models = ScanRows(p)
	}
	return r
}

var (
	scanHeaders  = []string{"Model Name", "JOINs", "CTEs", "Conditionals", "WHEREs", "SQL Chars", "Downstream Models", "Downstream Columns"}
	scoreHeaders = []string{"Rank", "Model Name", "Score", "JOINs", "CTEs", "Conditionals", "WHEREs", "SQL Chars", "Downstream Models", "Downstream Columns", "Quality"}
)

func complexityCells(row ModelRow) []any {
	if !row.HasComplexity {
		return []any{"N/A", "N/A", "N/A", "N/A", "N/A"}
	}
	c := row.Complexity
	return []any{c.JoinCount, c.CTECount, c.ConditionalCount, c.WhereCount, c.SQLCharCount}
}

func (r *Renderer) scanTable(rows []ModelRow) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := []any{row.Name}
		cells = append(cells, complexityCells(row)...)
		out[i] = append(cells, row.DownstreamModels, row.DownstreamColumns)
	}
	return out
}

func (r *Renderer) scoreTable(rows []ModelRow, stats *core.ScoreStatistics) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		score := fmt.Sprintf("%.2f", row.Score)
		if r.Mode() == ModeText && stats != nil {
			mean, stddev := stats.Mean, stats.StdDev
			if stats.ZScoreApplied {
				mean, stddev = 0, 1
			}
			score = r.styles.Score(row.Score, mean, stddev).Render(score)
		}
		cells := []any{row.Rank, row.Name, score}
		cells = append(cells, complexityCells(row)...)
		out[i] = append(cells, row.DownstreamModels, row.DownstreamColumns, fmt.Sprintf("%.2f", row.QualityScore))
	}
	return out
}

// Scan writes the scan report of p: complexity and downstream counts
// without scores.
func (r *Renderer) Scan(p *core.Project) error {
	switch r.Mode() {
	case ModeJSON:
		return r.JSON(NewReport(p, false))
	case ModeHTML:
		return WriteHTMLReport(r.out, p, false)
	case ModeMarkdown:
		r.Printf("# Modaryn Scan Report\n\n")
	default:
		r.Header("scan results")
	}
	return r.Table(scanHeaders, r.scanTable(ScanRows(p)))
}

// Score writes the ranked score report of p.
func (r *Renderer) Score(p *core.Project) error {
	switch r.Mode() {
	case ModeJSON:
		return r.JSON(NewReport(p, true))
	case ModeHTML:
		return WriteHTMLReport(r.out, p, true)
	case ModeMarkdown:
		r.Printf("# Modaryn Score Report\n\n")
	default:
		r.Header("model scores")
	}
	if err := r.Table(scoreHeaders, r.scoreTable(ScoreRows(p), p.Statistics)); err != nil {
		return err
	}
	if s := p.Statistics; s != nil {
		r.Println()
		r.Muted(fmt.Sprintf("mean %.2f, median %.2f, stddev %.2f (raw scores)", s.Mean, s.Median, s.StdDev))
	}
	return nil
}
