package reports

import (
	"context"
	"fmt"

	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/render"
)

// SendSupervisorReports sends the hours of supervised users to each
// "Supervisor Notification Emails" value.
func (s *Service) SendSupervisorReports(ctx context.Context, opts Options) (Summary, error) {
	ctx, r, err := s.startRun(ctx, AudienceSupervisor, render.KindSupervisor, opts)
	if err != nil {
		return Summary{}, err
	}

	supervisors, err := s.redmine.GetSupervisorEmails(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load supervisors: %w", err)
	}

	for _, emails := range supervisors {
		r.each(emails, func() error {
			return s.sendSupervisorReport(ctx, r, emails)
		})
	}
	return r.finish(), nil
}

func (s *Service) sendSupervisorReport(ctx context.Context, r *run, emails string) error {
	to, err := r.recipients(emails)
	if err != nil {
		return err
	}
	ids, err := s.redmine.GetSupervisedUserIds(ctx, emails)
	if err != nil {
		return fmt.Errorf("failed to load supervised users: %w", err)
	}
	entries, members, err := s.peopleEntries(ctx, r, ids)
	if err != nil {
		return err
	}

	tree := aggregator.Aggregate(entries, aggregator.Options{
		Scheme:          aggregator.BySupervisorTeam,
		Weeks:           r.weeks,
		ZeroHourMembers: members,
		ProjectLabel:    r.projectLabel(),
	})
	return s.deliver(ctx, r, to, "Person", emails, []render.Section{
		{Heading: "Person", Tree: tree},
	})
}
