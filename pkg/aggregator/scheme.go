package aggregator

// Level names one tier of an aggregation tree.
type Level int

const (
	LevelRoot Level = iota
	LevelFinancialPI
	LevelProject
	LevelPerson
	LevelActivity
)

func (l Level) String() string {
	switch l {
	case LevelFinancialPI:
		return "financial_pi"
	case LevelProject:
		return "project"
	case LevelPerson:
		return "person"
	case LevelActivity:
		return "activity"
	default:
		return "root"
	}
}

// PersonOrder decides how person nodes are ordered among their siblings.
type PersonOrder int

const (
	// PersonByName sorts persons lexicographically like every other level.
	PersonByName PersonOrder = iota
	// PersonByHours sorts persons by total hours descending, then by
	// case-insensitive name.
	PersonByHours
)

// Scheme is the grouping hierarchy of a report, top level first. The last
// level is always LevelActivity.
type Scheme struct {
	Name        string
	Levels      []Level
	PersonOrder PersonOrder
}

var (
	ByProject = Scheme{
		Name:   "project",
		Levels: []Level{LevelProject, LevelPerson, LevelActivity},
	}
	ByPerson = Scheme{
		Name:   "person",
		Levels: []Level{LevelPerson, LevelProject, LevelActivity},
	}
	ByFinancialPI = Scheme{
		Name:   "financial_pi",
		Levels: []Level{LevelFinancialPI, LevelProject, LevelPerson, LevelActivity},
	}
	BySupervisorTeam = Scheme{
		Name:        "supervisor_team",
		Levels:      []Level{LevelPerson, LevelProject, LevelActivity},
		PersonOrder: PersonByHours,
	}
	// ProjectTotals collapses persons away; team reports show it below the
	// per-person breakdown.
	ProjectTotals = Scheme{
		Name:   "project_totals",
		Levels: []Level{LevelProject, LevelActivity},
	}
)

func (s Scheme) indexOf(level Level) int {
	for i, l := range s.Levels {
		if l == level {
			return i
		}
	}
	return -1
}
