package period

import (
	"fmt"
	"time"
)

// Week is one bucket of a partitioned period. Number starts at 1.
type Week struct {
	Number int
	Start  time.Time
	End    time.Time
}

func (w Week) Contains(date time.Time) bool {
	return !date.Before(w.Start) && !date.After(w.End)
}

func (w Week) Label() string {
	return fmt.Sprintf("%s - %s", w.Start.Format("Jan 02"), w.End.Format("Jan 02"))
}

// Partition splits [start, end] into consecutive 7 day buckets beginning at
// start. The last bucket is clipped to end.
func Partition(start, end time.Time) ([]Week, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start.Format(DateLayout), end.Format(DateLayout))
	}

	var weeks []Week
	for current, number := start, 1; !current.After(end); current, number = current.AddDate(0, 0, 7), number+1 {
		weekEnd := current.AddDate(0, 0, 6)
		if weekEnd.After(end) {
			weekEnd = end
		}
		weeks = append(weeks, Week{Number: number, Start: current, End: weekEnd})
	}
	return weeks, nil
}

// WeekOf returns the number of the bucket holding date, or 0 when no bucket does.
func WeekOf(weeks []Week, date time.Time) int {
	for _, w := range weeks {
		if w.Contains(date) {
			return w.Number
		}
	}
	return 0
}

// SaturdayWeeks splits [start, end] into Saturday to Friday calendar weeks,
// clipping the first and last one to the range. Used by the project hours
// chart, where weeks must line up with the reporting week rather than with
// the start date.
func SaturdayWeeks(start, end time.Time) ([]Week, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start.Format(DateLayout), end.Format(DateLayout))
	}

	var weeks []Week
	current := start
	for number := 1; !current.After(end); number++ {
		daysToFriday := (int(time.Friday) - int(current.Weekday()) + 7) % 7
		weekEnd := current.AddDate(0, 0, daysToFriday)
		if weekEnd.After(end) {
			weekEnd = end
		}
		weeks = append(weeks, Week{Number: number, Start: current, End: weekEnd})
		current = weekEnd.AddDate(0, 0, 1)
	}
	return weeks, nil
}

// Days splits [start, end] into one bucket per date, for breakdowns by day.
func Days(start, end time.Time) ([]Week, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start.Format(DateLayout), end.Format(DateLayout))
	}

	var days []Week
	for current, number := start, 1; !current.After(end); current, number = current.AddDate(0, 0, 1), number+1 {
		days = append(days, Week{Number: number, Start: current, End: current})
	}
	return days, nil
}
