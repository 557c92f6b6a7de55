package aggregator

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/ndtl/timereport/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

func entry(user, project, activity, hours string, spentOn time.Time) Entry {
	return Entry{
		UserName:          user,
		ProjectIdentifier: project,
		ProjectName:       "Project " + project,
		ActivityName:      activity,
		Hours:             hours,
		SpentOn:           spentOn,
	}
}

func labels(nodes []*Node) []string {
	result := make([]string, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n.Label)
	}
	return result
}

func TestAggregate_WeeklyByProject(t *testing.T) {
	// given
	entries := []Entry{
		entry("Alice Lee", "P1", "Design", "3", day(time.January, 6)),
		entry("Alice Lee", "P1", "Design", "2", day(time.January, 8)),
	}

	// when
	tree := Aggregate(entries, Options{Scheme: ByProject})

	// then
	require.NotNil(t, tree.Root.Find("P1"))
	assert.Equal(t, 5.0, tree.Root.Find("P1").TotalHours)
	assert.Equal(t, 5.0, tree.Root.Find("P1", "Alice Lee").TotalHours)
	assert.Equal(t, 5.0, tree.Root.Find("P1", "Alice Lee", "Design").TotalHours)
	assert.Nil(t, tree.Root.Find("P1").Weeks)
	assert.False(t, tree.Monthly())
}

func TestAggregate_MonthlyWeekColumns(t *testing.T) {
	// given
	weeks, err := period.Partition(day(time.January, 6), day(time.January, 19))
	require.NoError(t, err)
	entries := []Entry{entry("Alice Lee", "P1", "Design", "4", day(time.January, 15))}

	// when
	tree := Aggregate(entries, Options{Scheme: ByProject, Weeks: weeks})

	// then
	assert.Equal(t, map[int]float64{1: 0, 2: 4}, tree.ColumnTotals())
	activity := tree.Root.Find("P1", "Alice Lee", "Design")
	require.NotNil(t, activity)
	assert.Equal(t, map[int]float64{1: 0, 2: 4}, activity.Weeks)
	assert.Equal(t, map[int]float64{1: 0, 2: 4}, tree.Root.Find("P1").Weeks)
	assert.True(t, tree.Monthly())
}

func TestAggregate_ZeroHourMembers(t *testing.T) {
	t.Run("person first scheme seeds the member at the top", func(t *testing.T) {
		// given
		entries := []Entry{entry("Alice Lee", "P1", "Design", "2", day(time.January, 8))}

		// when
		tree := Aggregate(entries, Options{
			Scheme:          BySupervisorTeam,
			ZeroHourMembers: []Member{{Name: "Bob Ray"}},
		})

		// then
		bob := tree.Root.Child("Bob Ray")
		require.NotNil(t, bob)
		assert.Equal(t, 0.0, bob.TotalHours)
		assert.Empty(t, bob.Children)
		assert.Equal(t, 2.0, tree.TotalHours())
	})

	t.Run("project first scheme seeds the member under each project", func(t *testing.T) {
		// given
		weeks, err := period.Partition(day(time.January, 6), day(time.January, 19))
		require.NoError(t, err)
		members := []Member{{
			Name: "Bob Ray",
			Projects: []ProjectRef{
				{Identifier: "P1", Name: "Project P1"},
				{Identifier: "P2", Name: "Project P2"},
			},
		}}

		// when
		tree := Aggregate(nil, Options{Scheme: ByProject, Weeks: weeks, ZeroHourMembers: members})

		// then
		assert.Equal(t, []string{"P1", "P2"}, labels(tree.Root.Children))
		for _, project := range []string{"P1", "P2"} {
			bob := tree.Root.Find(project, "Bob Ray")
			require.NotNil(t, bob)
			assert.Equal(t, 0.0, bob.TotalHours)
			assert.Equal(t, map[int]float64{1: 0, 2: 0}, bob.Weeks)
		}
		assert.False(t, tree.Empty())
	})

	t.Run("seeded member keeps entries added later", func(t *testing.T) {
		// given
		entries := []Entry{entry("Bob Ray", "P1", "Testing", "1.5", day(time.January, 8))}

		// when
		tree := Aggregate(entries, Options{
			Scheme:          ByProject,
			ZeroHourMembers: []Member{{Name: "Bob Ray", Projects: []ProjectRef{{Identifier: "P1"}}}},
		})

		// then
		require.Len(t, tree.Root.Find("P1").Children, 1)
		assert.Equal(t, 1.5, tree.Root.Find("P1", "Bob Ray", "Testing").TotalHours)
	})
}

func TestAggregate_LabelFallbacks(t *testing.T) {
	// given
	entries := []Entry{
		{UserName: "Alice Lee", ProjectIdentifier: "P1", Comments: "", ActivityName: "", Hours: "1", SpentOn: day(time.January, 8)},
		{UserName: "Alice Lee", ProjectIdentifier: "P1", Comments: "Wrote report", ActivityName: "Design", Hours: "2", SpentOn: day(time.January, 8)},
		{UserName: "Alice Lee", ProjectIdentifier: "P1", Comments: "   ", ActivityName: "Design", Hours: "3", SpentOn: day(time.January, 8)},
		{UserName: "", ProjectIdentifier: "", Hours: "4", SpentOn: day(time.January, 8)},
	}

	// when
	tree := Aggregate(entries, Options{Scheme: ByProject})

	// then
	assert.Equal(t, 1.0, tree.Root.Find("P1", "Alice Lee", NoActivity).TotalHours)
	assert.Equal(t, 2.0, tree.Root.Find("P1", "Alice Lee", "Wrote report").TotalHours)
	assert.Equal(t, 3.0, tree.Root.Find("P1", "Alice Lee", "Design").TotalHours)
	assert.Equal(t, 4.0, tree.Root.Find(NoProject, UnknownUser, NoActivity).TotalHours)
}

func TestActivityLabel(t *testing.T) {
	tests := []struct {
		comments string
		activity string
		want     string
	}{
		{"", "", NoActivity},
		{"", "Design", "Design"},
		{"Reviewed CAD model", "Design", "Reviewed CAD model"},
		{"  padded  ", "Design", "padded"},
		{"\t", "Design", "Design"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q/%q", tt.comments, tt.activity), func(t *testing.T) {
			assert.Equal(t, tt.want, ActivityLabel(tt.comments, tt.activity))
		})
	}
}

func TestProjectKey(t *testing.T) {
	assert.Equal(t, "P1", ProjectKey("P1", "Turbine", ProjectIdentifier))
	assert.Equal(t, "Turbine (P1)", ProjectKey("P1", "Turbine", ProjectNameAndIdentifier))
	assert.Equal(t, "Turbine", ProjectKey("", "Turbine", ProjectNameAndIdentifier))
	assert.Equal(t, NoProject, ProjectKey("", "", ProjectNameAndIdentifier))
}

func TestAggregate_InvalidHours(t *testing.T) {
	// given
	entries := []Entry{
		entry("Alice Lee", "P1", "Design", "abc", day(time.January, 8)),
		entry("Alice Lee", "P1", "Design", "-1", day(time.January, 8)),
		entry("Alice Lee", "P1", "Design", "NaN", day(time.January, 8)),
		entry("Alice Lee", "P1", "Design", "", day(time.January, 8)),
		entry("Alice Lee", "P1", "Design", " 2.25 ", day(time.January, 8)),
	}

	// when
	tree := Aggregate(entries, Options{Scheme: ByProject})

	// then
	assert.Equal(t, 3, tree.Skipped)
	assert.Equal(t, 2.25, tree.TotalHours())
	assert.Equal(t, 2.25, tree.Root.Find("P1", "Alice Lee", "Design").TotalHours)
}

func TestParseHours(t *testing.T) {
	_, err := ParseHours("eight")
	assert.ErrorIs(t, err, ErrInvalidHours)
	_, err = ParseHours("+Inf")
	assert.ErrorIs(t, err, ErrInvalidHours)

	hours, err := ParseHours("7.50")
	require.NoError(t, err)
	assert.Equal(t, 7.5, hours)
}

func TestAggregate_DropsEntriesOutsideWeeks(t *testing.T) {
	// given
	weeks, err := period.Partition(day(time.January, 6), day(time.January, 12))
	require.NoError(t, err)
	entries := []Entry{
		entry("Alice Lee", "P1", "Design", "3", day(time.January, 8)),
		entry("Alice Lee", "P1", "Design", "5", day(time.January, 20)),
	}

	// when
	tree := Aggregate(entries, Options{Scheme: ByProject, Weeks: weeks})

	// then
	assert.Equal(t, 1, tree.Dropped)
	assert.Equal(t, 3.0, tree.TotalHours())
	assert.Equal(t, map[int]float64{1: 3}, tree.ColumnTotals())
}

func TestAggregate_ByFinancialPI(t *testing.T) {
	// given
	a := entry("Alice Lee", "P1", "Design", "3", day(time.January, 8))
	a.FinancialPI = "Dr. Stone"
	b := entry("Bob Ray", "P2", "Testing", "2", day(time.January, 9))

	// when
	tree := Aggregate([]Entry{a, b}, Options{Scheme: ByFinancialPI})

	// then
	assert.Equal(t, []string{"Dr. Stone", Unassigned}, labels(tree.Root.Children))
	assert.Equal(t, 3.0, tree.Root.Find("Dr. Stone", "P1", "Alice Lee", "Design").TotalHours)
	assert.Equal(t, 2.0, tree.Root.Find(Unassigned, "P2", "Bob Ray", "Testing").TotalHours)
}

func TestAggregate_ProjectTotals(t *testing.T) {
	// given
	entries := []Entry{
		entry("Alice Lee", "P1", "Design", "3", day(time.January, 8)),
		entry("Bob Ray", "P1", "Design", "2", day(time.January, 8)),
		entry("Bob Ray", "P1", "Testing", "1", day(time.January, 9)),
	}

	// when
	tree := Aggregate(entries, Options{Scheme: ProjectTotals, ProjectLabel: ProjectNameAndIdentifier})

	// then
	project := tree.Root.Child("Project P1 (P1)")
	require.NotNil(t, project)
	assert.Equal(t, 6.0, project.TotalHours)
	assert.Equal(t, []string{"Design", "Testing"}, labels(project.Children))
	assert.Equal(t, 5.0, project.Child("Design").TotalHours)
}

func TestAggregate_Ordering(t *testing.T) {
	entries := []Entry{
		entry("carol Dunn", "P2", "Testing", "2", day(time.January, 8)),
		entry("Alice Lee", "P1", "Design", "1", day(time.January, 8)),
		entry("Bob Ray", "P1", "Design", "5", day(time.January, 8)),
		entry("Dave Moss", "P3", "Design", "2", day(time.January, 8)),
		entry("Alice Lee", "P1", "Analysis", "1", day(time.January, 9)),
	}

	t.Run("lexicographic order at every level", func(t *testing.T) {
		// when
		tree := Aggregate(entries, Options{Scheme: ByPerson})

		// then
		assert.Equal(t, []string{"Alice Lee", "Bob Ray", "Dave Moss", "carol Dunn"}, labels(tree.Root.Children))
		assert.Equal(t, []string{"Analysis", "Design"}, labels(tree.Root.Find("Alice Lee", "P1").Children))
	})

	t.Run("persons by hours descending then case-insensitive name", func(t *testing.T) {
		// when
		tree := Aggregate(entries, Options{Scheme: BySupervisorTeam})

		// then
		assert.Equal(t, []string{"Bob Ray", "Alice Lee", "carol Dunn", "Dave Moss"}, labels(tree.Root.Children))
	})

	t.Run("same input yields the same order", func(t *testing.T) {
		// given
		reversed := make([]Entry, len(entries))
		for i, e := range entries {
			reversed[len(entries)-1-i] = e
		}

		// when
		first := Aggregate(entries, Options{Scheme: BySupervisorTeam})
		second := Aggregate(reversed, Options{Scheme: BySupervisorTeam})

		// then
		var firstWalk, secondWalk []string
		first.Walk(func(n *Node, depth int) { firstWalk = append(firstWalk, fmt.Sprintf("%d:%s", depth, n.Label)) })
		second.Walk(func(n *Node, depth int) { secondWalk = append(secondWalk, fmt.Sprintf("%d:%s", depth, n.Label)) })
		assert.Equal(t, firstWalk, secondWalk)
	})
}

func TestAggregate_Conservation(t *testing.T) {
	// given
	random := rand.New(rand.NewSource(42))
	users := []string{"Alice Lee", "Bob Ray", "Carol Dunn", ""}
	projects := []string{"P1", "P2", "P3", ""}
	activities := []string{"Design", "Testing", ""}
	weeks, err := period.Partition(day(time.January, 1), day(time.January, 31))
	require.NoError(t, err)

	var entries []Entry
	sum := 0.0
	for i := 0; i < 500; i++ {
		hours := float64(random.Intn(40)) / 4
		sum += hours
		entries = append(entries, Entry{
			UserName:          users[random.Intn(len(users))],
			ProjectIdentifier: projects[random.Intn(len(projects))],
			ActivityName:      activities[random.Intn(len(activities))],
			Comments:          []string{"", "", "note " + strconv.Itoa(random.Intn(3))}[random.Intn(3)],
			Hours:             strconv.FormatFloat(hours, 'f', 2, 64),
			SpentOn:           day(time.January, 1+random.Intn(31)),
		})
	}

	for _, scheme := range []Scheme{ByProject, ByPerson, ByFinancialPI, BySupervisorTeam, ProjectTotals} {
		t.Run(scheme.Name, func(t *testing.T) {
			// when
			tree := Aggregate(entries, Options{Scheme: scheme, Weeks: weeks})

			// then
			assert.InDelta(t, sum, tree.TotalHours(), 1e-6)
			weekSum := 0.0
			for _, hours := range tree.ColumnTotals() {
				weekSum += hours
			}
			assert.InDelta(t, sum, weekSum, 1e-6)
			assertConserved(t, tree.Root)
		})
	}
}

func assertConserved(t *testing.T, n *Node) {
	t.Helper()
	if n.IsLeaf() {
		return
	}
	childSum := 0.0
	weekSums := map[int]float64{}
	for _, c := range n.Children {
		childSum += c.TotalHours
		for w, h := range c.Weeks {
			weekSums[w] += h
		}
		assertConserved(t, c)
	}
	assert.InDelta(t, n.TotalHours, childSum, 1e-6, "node %q", n.Label)
	for w, h := range n.Weeks {
		assert.InDelta(t, h, weekSums[w], 1e-6, "node %q week %d", n.Label, w)
	}
}
