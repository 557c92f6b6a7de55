package period

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the only accepted format for explicit period boundaries.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidRange      = errors.New("invalid date range")
	// ErrNotDue is returned when a scheduled report is not due today. Callers
	// skip the run silently.
	ErrNotDue = errors.New("report is not due today")
)

type Granularity int

const (
	Weekly Granularity = iota
	Monthly
)

func (g Granularity) String() string {
	if g == Monthly {
		return "Monthly"
	}
	return "Weekly"
}

// Period is an inclusive range of calendar dates. Start and End are midnight
// UTC values.
type Period struct {
	Start       time.Time
	End         time.Time
	Granularity Granularity
}

func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.Start) && !date.After(p.End)
}

// Days returns the number of calendar days covered by the period.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// Label renders the period the way report subjects show it, e.g. "Jan 06 - Jan 12".
func (p Period) Label() string {
	return fmt.Sprintf("%s - %s", p.Start.Format("Jan 02"), p.End.Format("Jan 02"))
}

// Weeks partitions the period into 7 day buckets. Weekly periods yield a
// single bucket covering the whole range.
func (p Period) Weeks() ([]Week, error) {
	return Partition(p.Start, p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("%s %s..%s", p.Granularity, p.Start.Format(DateLayout), p.End.Format(DateLayout))
}

// ParseDate parses a YYYY-MM-DD value into a midnight UTC date.
func ParseDate(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, value)
	}
	return date, nil
}
