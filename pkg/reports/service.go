package reports

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"github.com/ndtl/timereport/internal/config"
	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/notification"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/recipient"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/render"
	"github.com/ndtl/timereport/pkg/team"
	log "github.com/sirupsen/logrus"
)

// errNothingToReport marks a recipient skipped because the report would be empty.
var errNothingToReport = errors.New("nothing to report")

// Teams is the part of the team service report jobs read.
type Teams interface {
	ListTeams(ctx context.Context) ([]team.Team, error)
	FindByManagerIds(ctx context.Context, managerIds []int) ([]team.Team, error)
}

type Service struct {
	redmine      redmine.Repository
	teams        Teams
	resolver     *period.Resolver
	renderer     *render.Renderer
	mailer       notification.Deliverer
	printer      notification.Deliverer
	organization string
	attachXlsx   bool
}

func NewService(
	redmineRepo redmine.Repository,
	teams Teams,
	resolver *period.Resolver,
	renderer *render.Renderer,
	mailer notification.Deliverer,
	printer notification.Deliverer,
	cfg config.Report,
) *Service {
	return &Service{
		redmine:      redmineRepo,
		teams:        teams,
		resolver:     resolver,
		renderer:     renderer,
		mailer:       mailer,
		printer:      printer,
		organization: cfg.Organization,
		attachXlsx:   cfg.AttachXlsx,
	}
}

// run holds what every recipient of one report invocation shares.
type run struct {
	name      string
	audience  Audience
	kind      render.Kind
	period    period.Period
	weeks     []period.Week
	opts      Options
	deliverer notification.Deliverer
	summary   Summary
}

func (s *Service) startRun(ctx context.Context, audience Audience, kind render.Kind, opts Options) (context.Context, *run, error) {
	p, err := s.resolver.Resolve(opts.periodOptions())
	if err != nil {
		return ctx, nil, err
	}
	r := &run{
		name:      reportName(audience, p.Granularity, opts.IncludeZeroHours),
		audience:  audience,
		kind:      kind,
		period:    p,
		opts:      opts,
		deliverer: s.mailer,
	}
	if opts.Print {
		r.deliverer = s.printer
	}
	if p.Granularity == period.Monthly {
		if r.weeks, err = p.Weeks(); err != nil {
			return ctx, nil, err
		}
	}
	runId := uuid.NewString()
	log.WithField("run", runId).Infof("Starting %s report for %s", r.name, p)
	return notification.WithRunId(ctx, runId), r, nil
}

// each runs one recipient's work. Failures are logged and counted so the
// remaining recipients are still processed.
func (r *run) each(recipientKey string, fn func() error) {
	logger := log.WithFields(log.Fields{"report": r.name, "recipient": recipientKey})
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
			}
		}()
		return fn()
	}()

	switch {
	case err == nil:
		r.summary.Sent++
	case errors.Is(err, errNothingToReport):
		logger.Infof("Skipping: %v", err)
		r.summary.Skipped++
	case errors.Is(err, recipient.ErrRecipientResolution):
		logger.Warnf("Skipping: %v", err)
		r.summary.Skipped++
	default:
		logger.Errorf("Report failed: %v", err)
		r.summary.Failed++
	}
}

func (r *run) finish() Summary {
	log.Infof("Finished %s report: %s", r.name, r.summary)
	return r.summary
}

func (s *Service) deliver(ctx context.Context, r *run, to []string, title string, audienceName string, sections []render.Section) error {
	subject := Subject(s.organization, r.audience, r.period, r.opts.IncludeZeroHours)
	html, err := s.renderer.Report(r.kind, render.ReportView{
		Title:     subject,
		Audience:  audienceName,
		Period:    r.period,
		ZeroHours: r.opts.IncludeZeroHours,
		Sections:  sections,
	})
	if err != nil {
		return err
	}

	msg := notification.Message{To: to, Subject: subject, HTML: html}
	if s.attachXlsx && r.period.Granularity == period.Monthly && len(sections) > 0 {
		data, err := render.XLSX(title, sections)
		if err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, notification.Attachment{
			Name:        fmt.Sprintf("%s-%s.xlsx", r.name, r.period.End.Format(period.DateLayout)),
			ContentType: render.XLSXContentType,
			Data:        data,
		})
	}
	return r.deliverer.Deliver(ctx, r.name, msg)
}

// recipients resolves raw for delivery. Printed runs never send mail, so an
// unresolvable value is shown as is instead of skipping the report.
func (r *run) recipients(raw string) ([]string, error) {
	to, err := recipient.Resolve(raw, r.opts.TestEmail)
	if err == nil || !r.opts.Print {
		return to, err
	}
	log.Warnf("Printing report for unresolved recipient %q: %v", raw, err)
	if raw = strings.TrimSpace(raw); raw == "" {
		return nil, nil
	}
	return []string{raw}, nil
}

func (s *Service) entries(ctx context.Context, r *run, filter redmine.EntryFilter) ([]aggregator.Entry, error) {
	filter.From = r.period.Start
	filter.To = r.period.End
	entries, err := s.redmine.GetEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time entries: %w", err)
	}
	return entries, nil
}

func (r *run) projectLabel() aggregator.ProjectLabel {
	if r.period.Granularity == period.Monthly {
		return aggregator.ProjectIdentifier
	}
	return aggregator.ProjectNameAndIdentifier
}
