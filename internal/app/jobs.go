package app

import (
	"context"

	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/reminder"
	"github.com/ndtl/timereport/pkg/reports"
	"github.com/ndtl/timereport/pkg/scheduler"
	log "github.com/sirupsen/logrus"
)

// ScheduledJobs lists every job the serve scheduler can run, keyed by the
// name used in schedule.jobs.
func ScheduledJobs(deps *Dependencies) map[string]scheduler.Job {
	jobs := map[string]scheduler.Job{
		"reminder": func(ctx context.Context) error {
			summary, err := deps.ReminderService.SendDailyReminder(ctx, reminder.Options{})
			if err == nil {
				log.Infof("Daily reminder: %s", summary)
			}
			return err
		},
		"holidays": func(ctx context.Context) error {
			_, err := deps.HolidayService.LogToday(ctx)
			return err
		},
	}

	reportJobs := map[string]reportFunc{
		"pi":         (*reports.Service).SendPIReports,
		"team":       (*reports.Service).SendTeamReports,
		"supervisor": (*reports.Service).SendSupervisorReports,
	}
	granularities := map[string]period.Granularity{
		"weekly":  period.Weekly,
		"monthly": period.Monthly,
	}
	for audience, send := range reportJobs {
		for suffix, g := range granularities {
			for _, zeroHours := range []bool{false, true} {
				name := audience + "-" + suffix
				if zeroHours {
					name += "-zero-hours"
				}
				opts := reports.Options{Granularity: g, IncludeZeroHours: zeroHours}
				jobs[name] = reportJob(deps.ReportService, name, send, opts)
			}
		}
	}
	return jobs
}

func reportJob(service *reports.Service, name string, send reportFunc, opts reports.Options) scheduler.Job {
	return func(ctx context.Context) error {
		summary, err := send(service, ctx, opts)
		if err == nil {
			log.Infof("Report job %s: %s", name, summary)
		}
		return err
	}
}

func reminderOptions(opts reports.Options) reminder.Options {
	return reminder.Options{TestEmail: opts.TestEmail, Print: opts.Print}
}
