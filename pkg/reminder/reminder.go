package reminder

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ndtl/timereport/internal/utils"
	"github.com/ndtl/timereport/pkg/notification"
	"github.com/ndtl/timereport/pkg/recipient"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/render"
	"github.com/ndtl/timereport/pkg/reports"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	reportName = "daily-reminder"
	Subject    = "Did you log your time in Redmine yesterday?"
)

type Options struct {
	TestEmail string
	Print     bool
}

type Service struct {
	redmine      redmine.Repository
	renderer     *render.Renderer
	mailer       notification.Deliverer
	printer      notification.Deliverer
	clock        utils.Clock
	organization string
}

func NewService(redmineRepo redmine.Repository, renderer *render.Renderer, mailer, printer notification.Deliverer, clock utils.Clock, organization string) *Service {
	return &Service{
		redmine:      redmineRepo,
		renderer:     renderer,
		mailer:       mailer,
		printer:      printer,
		clock:        clock,
		organization: organization,
	}
}

// SendDailyReminder asks every Redmine address to log yesterday's time. With
// a test email only that address receives the reminder.
func (s *Service) SendDailyReminder(ctx context.Context, opts Options) (reports.Summary, error) {
	html, err := s.renderer.Reminder(render.ReminderView{
		Organization: s.organization,
		Day:          utils.Today(s.clock).AddDate(0, 0, -1),
	})
	if err != nil {
		return reports.Summary{}, err
	}

	addresses, err := s.addresses(ctx, opts.TestEmail)
	if err != nil {
		return reports.Summary{}, err
	}

	deliverer := s.mailer
	if opts.Print {
		deliverer = s.printer
	}
	runId := uuid.NewString()
	ctx = notification.WithRunId(ctx, runId)
	log.WithField("run", runId).Infof("Sending daily reminder to %d addresses", len(addresses))

	var summary reports.Summary
	for _, address := range addresses {
		err := deliverer.Deliver(ctx, reportName, notification.Message{
			To:      []string{address},
			Subject: Subject,
			HTML:    html,
		})
		if err != nil {
			log.WithField("recipient", address).Errorf("Reminder failed: %v", err)
			summary.Failed++
			continue
		}
		summary.Sent++
	}
	log.Infof("Finished daily reminder: %s", summary)
	return summary, nil
}

func (s *Service) addresses(ctx context.Context, testEmail string) ([]string, error) {
	if testEmail != "" {
		return []string{testEmail}, nil
	}
	all, err := s.redmine.GetAllEmailAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load email addresses: %w", err)
	}
	valid := lo.Filter(all, func(address string, _ int) bool {
		if !recipient.Valid(address) {
			log.Warnf("Skipping invalid address %q", address)
			return false
		}
		return true
	})
	return lo.UniqBy(valid, strings.ToLower), nil
}
