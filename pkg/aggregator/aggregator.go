package aggregator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ndtl/timereport/pkg/period"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidHours = errors.New("invalid hours value")

// Entry is a time entry with user, project and PI already resolved to display
// values. Hours keeps the raw decimal text read from the source.
type Entry struct {
	UserID            int
	UserName          string
	ProjectIdentifier string
	ProjectName       string
	FinancialPI       string
	Comments          string
	ActivityName      string
	Hours             string
	SpentOn           time.Time
}

// ProjectRef places a zero-hour member under a project.
type ProjectRef struct {
	Identifier  string
	Name        string
	FinancialPI string
}

// Member must appear in the tree even without any entries in the period.
type Member struct {
	Name     string
	Projects []ProjectRef
}

type Options struct {
	Scheme Scheme
	// Weeks enables per-week columns. Leave empty for weekly reports.
	Weeks           []period.Week
	ZeroHourMembers []Member
	ProjectLabel    ProjectLabel
}

// Tree is the result of one aggregation. Skipped counts entries with invalid
// hours, Dropped counts entries outside every week bucket.
type Tree struct {
	Root    *Node
	Scheme  Scheme
	Weeks   []period.Week
	Skipped int
	Dropped int
}

// Aggregate folds entries into a tree shaped by opts.Scheme. It never fails:
// entries with invalid hours are logged and skipped.
func Aggregate(entries []Entry, opts Options) *Tree {
	weekNumbers := make([]int, 0, len(opts.Weeks))
	for _, w := range opts.Weeks {
		weekNumbers = append(weekNumbers, w.Number)
	}

	tree := &Tree{
		Root:   newNode("", LevelRoot, weekNumbers),
		Scheme: opts.Scheme,
		Weeks:  opts.Weeks,
	}

	for _, member := range opts.ZeroHourMembers {
		seed(tree.Root, member, opts, weekNumbers)
	}

	for _, entry := range entries {
		hours, err := ParseHours(entry.Hours)
		if err != nil {
			log.WithFields(log.Fields{
				"user":    entry.UserName,
				"project": entry.ProjectIdentifier,
				"spentOn": entry.SpentOn.Format(period.DateLayout),
			}).Warnf("Skipping time entry: %v", err)
			tree.Skipped++
			continue
		}

		week := 0
		if len(opts.Weeks) > 0 {
			week = period.WeekOf(opts.Weeks, entry.SpentOn)
			if week == 0 {
				log.Warnf("Dropping time entry of %s on %s: outside every report week", entry.UserName, entry.SpentOn.Format(period.DateLayout))
				tree.Dropped++
				continue
			}
		}

		node := tree.Root
		node.add(hours, week)
		for _, level := range opts.Scheme.Levels {
			node = node.child(entryLabel(entry, level, opts.ProjectLabel), level, weekNumbers)
			node.add(hours, week)
		}
	}

	tree.Root.sortChildren(opts.Scheme.PersonOrder)
	log.Debugf("Aggregated %d entries into %d top-level %s nodes (skipped %d, dropped %d)",
		len(entries), len(tree.Root.Children), opts.Scheme.Name, tree.Skipped, tree.Dropped)
	return tree
}

// ParseHours reads a decimal hours value. Empty values count as zero;
// negative, NaN and infinite values are rejected.
func ParseHours(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHours, raw)
	}
	return hours, nil
}

func entryLabel(e Entry, level Level, style ProjectLabel) string {
	switch level {
	case LevelFinancialPI:
		return piLabel(e.FinancialPI)
	case LevelProject:
		return ProjectKey(e.ProjectIdentifier, e.ProjectName, style)
	case LevelPerson:
		return personLabel(e.UserName)
	default:
		return ActivityLabel(e.Comments, e.ActivityName)
	}
}

// seed pre-creates the person node of a zero-hour member. When the scheme
// nests persons below other levels the member is seeded under each of its
// projects; members without projects cannot be placed there.
func seed(root *Node, member Member, opts Options, weekNumbers []int) {
	personAt := opts.Scheme.indexOf(LevelPerson)
	if personAt < 0 {
		return
	}
	name := personLabel(member.Name)

	if personAt == 0 {
		root.child(name, LevelPerson, weekNumbers)
		return
	}

	if len(member.Projects) == 0 {
		log.Debugf("Zero-hour member %s has no projects, not seeded", name)
		return
	}
	for _, project := range member.Projects {
		node := root
		for _, level := range opts.Scheme.Levels[:personAt+1] {
			var label string
			switch level {
			case LevelFinancialPI:
				label = piLabel(project.FinancialPI)
			case LevelProject:
				label = ProjectKey(project.Identifier, project.Name, opts.ProjectLabel)
			case LevelPerson:
				label = name
			}
			node = node.child(label, level, weekNumbers)
		}
	}
}

// ColumnTotals returns per-week hours across the whole tree, with every week
// of the period present.
func (t *Tree) ColumnTotals() map[int]float64 {
	totals := make(map[int]float64, len(t.Weeks))
	for _, w := range t.Weeks {
		totals[w.Number] = t.Root.WeekHours(w.Number)
	}
	return totals
}

func (t *Tree) TotalHours() float64 {
	return t.Root.TotalHours
}

// Monthly reports whether the tree carries week columns.
func (t *Tree) Monthly() bool {
	return len(t.Weeks) > 0
}

// Empty reports whether no entry and no zero-hour member made it into the tree.
func (t *Tree) Empty() bool {
	return len(t.Root.Children) == 0
}

// Walk visits every node below the root depth first, in sorted order.
func (t *Tree) Walk(fn func(node *Node, depth int)) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		for _, c := range n.Children {
			fn(c, depth)
			visit(c, depth+1)
		}
	}
	visit(t.Root, 0)
}
