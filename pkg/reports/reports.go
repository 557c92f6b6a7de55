package reports

import (
	"fmt"
	"strings"

	"github.com/ndtl/timereport/pkg/period"
)

// Options are the command line switches shared by every report job.
type Options struct {
	Granularity period.Granularity
	StartDate   string
	EndDate     string
	// TestEmail redirects every message to one address.
	TestEmail string
	// Print writes messages to the console instead of sending them.
	Print            bool
	IncludeZeroHours bool
	// ManagerLogin limits team reports to the teams of one manager.
	ManagerLogin string
}

func (o Options) testRun() bool {
	return o.TestEmail != "" || o.Print
}

func (o Options) periodOptions() period.Options {
	return period.Options{
		Granularity: o.Granularity,
		StartDate:   o.StartDate,
		EndDate:     o.EndDate,
		TestRun:     o.testRun(),
	}
}

// Summary counts per-recipient outcomes of one run.
type Summary struct {
	Sent    int
	Failed  int
	Skipped int
}

func (s Summary) String() string {
	return fmt.Sprintf("sent %d, failed %d, skipped %d", s.Sent, s.Failed, s.Skipped)
}

// Audience names who a report is written for. It is part of the subject.
type Audience string

const (
	AudiencePI         Audience = "PI"
	AudienceTeam       Audience = "Team"
	AudienceSupervisor Audience = "Supervisor"
)

// Subject renders e.g. "NDTL PI Weekly Time Report (Jan 04 - Jan 10)".
func Subject(organization string, audience Audience, p period.Period, zeroHours bool) string {
	subject := fmt.Sprintf("%s %s %s Time Report (%s)", organization, audience, p.Granularity, p.Label())
	if zeroHours {
		subject += " [Includes Zero Hours]"
	}
	return subject
}

// reportName identifies a run in logs and the delivery log, e.g. "pi-weekly".
func reportName(audience Audience, g period.Granularity, zeroHours bool) string {
	name := fmt.Sprintf("%s-%s", strings.ToLower(string(audience)), strings.ToLower(g.String()))
	if zeroHours {
		name += "-zero-hours"
	}
	return name
}
