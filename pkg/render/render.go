package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/period"
)

//go:embed templates/*.html
var templateFS embed.FS

type Kind string

const (
	KindPI         Kind = "pi"
	KindTeam       Kind = "team"
	KindSupervisor Kind = "supervisor"
	KindProgram    Kind = "program"
	kindReminder   Kind = "reminder"
)

// Section is one table of a report.
type Section struct {
	Caption string
	Heading string
	Tree    *aggregator.Tree
}

type ReportView struct {
	Title     string
	Audience  string
	Period    period.Period
	ZeroHours bool
	Sections  []Section
}

type ReminderView struct {
	Organization string
	Day          time.Time
}

// Row is a flattened tree node as shown in a report table.
type Row struct {
	Label  string
	Depth  int
	Strong bool
	Total  float64
	Weeks  []float64
}

type Renderer struct {
	templates map[Kind]*template.Template
}

func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"hours":  FormatHours,
		"indent": func(depth int) int { return 8 + depth*20 },
		"rows":   Rows,
		"week": func(tree *aggregator.Tree, number int) float64 {
			return tree.Root.WeekHours(number)
		},
	}
	r := &Renderer{templates: make(map[Kind]*template.Template)}
	for _, kind := range []Kind{KindPI, KindTeam, KindSupervisor, KindProgram, kindReminder} {
		t, err := template.New(string(kind)+".html").
			Funcs(funcs).
			ParseFS(templateFS, "templates/"+string(kind)+".html", "templates/layout.html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", kind, err)
		}
		r.templates[kind] = t
	}
	return r, nil
}

func (r *Renderer) Report(kind Kind, view ReportView) (string, error) {
	t, ok := r.templates[kind]
	if !ok || kind == kindReminder {
		return "", fmt.Errorf("unknown report template %q", kind)
	}
	return execute(t, view)
}

func (r *Renderer) Reminder(view ReminderView) (string, error) {
	return execute(r.templates[kindReminder], view)
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// FormatHours renders hours with two decimals.
func FormatHours(hours float64) string {
	return fmt.Sprintf("%.2f", hours)
}

// Rows flattens the tree depth first. Nodes with children are marked strong.
func Rows(tree *aggregator.Tree) []Row {
	var rows []Row
	tree.Walk(func(node *aggregator.Node, depth int) {
		row := Row{
			Label:  node.Label,
			Depth:  depth,
			Strong: !node.IsLeaf(),
			Total:  node.TotalHours,
		}
		for _, w := range tree.Weeks {
			row.Weeks = append(row.Weeks, node.WeekHours(w.Number))
		}
		rows = append(rows, row)
	})
	return rows
}
