package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/modaryn/internal/lineage"
	"github.com/leapstack-labs/modaryn/pkg/core"
)

// ColumnLineage is the traced lineage of one column.
type ColumnLineage struct {
	Model      string              `json:"model"`
	Column     string              `json:"column"`
	Upstream   []lineage.TraceStep `json:"upstream"`
	Downstream []lineage.TraceStep `json:"downstream"`
}

// ModelLineage is the model-level neighborhood of one model.
type ModelLineage struct {
	Model      string   `json:"model"`
	Upstream   []string `json:"upstream"`
	Downstream []string `json:"downstream"`
	// Columns maps each column to its direct upstream references.
	Columns map[string][]core.ColumnReference `json:"columns"`
}

// ColumnLineage writes the upstream and downstream trace of a column.
func (r *Renderer) ColumnLineage(l *ColumnLineage) error {
	if l.Upstream == nil {
		l.Upstream = []lineage.TraceStep{}
	}
	if l.Downstream == nil {
		l.Downstream = []lineage.TraceStep{}
	}
	if r.Mode() == ModeJSON {
		return r.JSON(l)
	}

	r.Header(fmt.Sprintf("lineage for %s.%s", l.Model, l.Column))
	r.traceSection("upstream", l.Upstream)
	r.traceSection("downstream", l.Downstream)
	return nil
}

func (r *Renderer) traceSection(name string, steps []lineage.TraceStep) {
	markdown := r.Mode() == ModeMarkdown
	if markdown {
		r.Printf("### %s (%d)\n\n", r.title.String(name), len(steps))
	} else {
		r.Printf("\n%s (%d):\n", r.title.String(name), len(steps))
	}
	if len(steps) == 0 {
		r.Muted("  (none)")
		return
	}
	for _, s := range steps {
		indent := strings.Repeat("  ", s.Depth)
		ref := r.styles.Model.Render(s.Ref.String())
		if markdown {
			indent = strings.Repeat("  ", s.Depth-1)
			ref = "`" + s.Ref.String() + "`"
			r.Printf("%s- %s\n", indent, ref)
			continue
		}
		r.Printf("%s- %s %s\n", indent, ref, r.styles.Muted.Render("(via "+s.From.String()+")"))
	}
}

// ModelLineage writes the model-level lineage of a model.
func (r *Renderer) ModelLineage(l *ModelLineage) error {
	if l.Upstream == nil {
		l.Upstream = []string{}
	}
	if l.Downstream == nil {
		l.Downstream = []string{}
	}
	if r.Mode() == ModeJSON {
		return r.JSON(l)
	}

	r.Header("lineage for " + l.Model)
	r.Printf("\nUpstream models (%d):\n", len(l.Upstream))
	for _, id := range l.Upstream {
		r.Printf("  - %s\n", id)
	}
	r.Printf("\nDownstream models (%d):\n", len(l.Downstream))
	for _, id := range l.Downstream {
		r.Printf("  - %s\n", id)
	}

	if len(l.Columns) == 0 {
		return nil
	}
	r.Println()
	names := make([]string, 0, len(l.Columns))
	for name := range l.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]any, 0, len(names))
	for _, name := range names {
		refs := make([]string, len(l.Columns[name]))
		for i, ref := range l.Columns[name] {
			refs[i] = ref.String()
		}
		rows = append(rows, []any{name, strings.Join(refs, ", ")})
	}
	return r.Table([]string{"Column", "Upstream"}, rows)
}
