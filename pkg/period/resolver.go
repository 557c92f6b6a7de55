package period

import (
	"fmt"
	"time"

	"github.com/ndtl/timereport/internal/utils"
	log "github.com/sirupsen/logrus"
)

// Options describes how a report run asks for its period.
type Options struct {
	Granularity Granularity
	// StartDate and EndDate are explicit YYYY-MM-DD overrides. Both or neither
	// must be set.
	StartDate string
	EndDate   string
	// TestRun disables day-of-week gating (set by --print and --test_email).
	TestRun bool
}

func (o Options) explicit() bool {
	return o.StartDate != "" || o.EndDate != ""
}

// Resolve computes the report period for the given calendar day.
//
// Weekly periods run Saturday through the most recent Friday at or before
// today. Monthly periods run from the day after the previous month's last
// Friday through the current month's last Friday. Outside test runs a weekly
// report is only due on Mondays and a monthly report only on the current
// month's last Friday; otherwise ErrNotDue is returned. Explicit dates are
// used as given and are never gated.
func Resolve(today time.Time, opts Options) (Period, error) {
	today = utils.DateOf(today)

	if opts.explicit() {
		return explicitPeriod(opts)
	}

	switch opts.Granularity {
	case Monthly:
		end := LastFridayOfMonth(today.Year(), today.Month())
		if !opts.TestRun && !today.Equal(end) {
			return Period{}, fmt.Errorf("%w: monthly report runs on %s", ErrNotDue, end.Format(DateLayout))
		}
		previous := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		start := LastFridayOfMonth(previous.Year(), previous.Month()).AddDate(0, 0, 1)
		return Period{Start: start, End: end, Granularity: Monthly}, nil
	default:
		if !opts.TestRun && today.Weekday() != time.Monday {
			return Period{}, fmt.Errorf("%w: weekly report runs on Mondays, today is %s", ErrNotDue, today.Weekday())
		}
		end := MostRecentFriday(today)
		return Period{Start: end.AddDate(0, 0, -6), End: end, Granularity: Weekly}, nil
	}
}

func explicitPeriod(opts Options) (Period, error) {
	if opts.StartDate == "" || opts.EndDate == "" {
		return Period{}, fmt.Errorf("%w: both start and end dates are required", ErrInvalidRange)
	}
	start, err := ParseDate(opts.StartDate)
	if err != nil {
		return Period{}, err
	}
	end, err := ParseDate(opts.EndDate)
	if err != nil {
		return Period{}, err
	}
	if start.After(end) {
		return Period{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, opts.StartDate, opts.EndDate)
	}
	return Period{Start: start, End: end, Granularity: opts.Granularity}, nil
}

// MostRecentFriday returns day itself when it is a Friday, else the Friday before it.
func MostRecentFriday(day time.Time) time.Time {
	back := (int(day.Weekday()) - int(time.Friday) + 7) % 7
	return day.AddDate(0, 0, -back)
}

// LastFridayOfMonth returns the last Friday of the given month.
func LastFridayOfMonth(year int, month time.Month) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return MostRecentFriday(lastDay)
}

// Resolver binds Resolve to a Clock.
type Resolver struct {
	clock utils.Clock
}

func NewResolver(clock utils.Clock) *Resolver {
	return &Resolver{clock: clock}
}

// Today is the current date in the clock's location.
func (r *Resolver) Today() time.Time {
	return utils.Today(r.clock)
}

func (r *Resolver) Resolve(opts Options) (Period, error) {
	p, err := Resolve(utils.Today(r.clock), opts)
	if err != nil {
		return Period{}, err
	}
	log.Debugf("Resolved report period %s", p)
	return p, nil
}
