package reports

import (
	"context"
	"fmt"

	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/render"
	log "github.com/sirupsen/logrus"
)

// SendPIReports sends each Financial PI the hours logged on their projects.
func (s *Service) SendPIReports(ctx context.Context, opts Options) (Summary, error) {
	ctx, r, err := s.startRun(ctx, AudiencePI, render.KindPI, opts)
	if err != nil {
		return Summary{}, err
	}

	assignments, err := s.redmine.GetFinancialPIAssignments(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load financial PI assignments: %w", err)
	}
	log.Debugf("Found %d financial PI assignments", len(assignments))

	for _, assignment := range assignments {
		r.each(assignment.Emails, func() error {
			return s.sendPIReport(ctx, r, assignment)
		})
	}
	return r.finish(), nil
}

func (s *Service) sendPIReport(ctx context.Context, r *run, assignment redmine.PIAssignment) error {
	to, err := r.recipients(assignment.Emails)
	if err != nil {
		return err
	}

	var members []aggregator.Member
	if r.opts.IncludeZeroHours {
		users, err := s.redmine.GetActiveProjectUsers(ctx, assignment.ProjectIdentifiers)
		if err != nil {
			return fmt.Errorf("failed to load project users: %w", err)
		}
		if len(users) == 0 {
			return fmt.Errorf("%w: no active users on %v", errNothingToReport, assignment.ProjectIdentifiers)
		}
		members = projectMembers(users)
	}

	entries, err := s.entries(ctx, r, redmine.EntryFilter{ProjectIdentifiers: assignment.ProjectIdentifiers})
	if err != nil {
		return err
	}
	if !r.opts.IncludeZeroHours && len(entries) == 0 {
		return fmt.Errorf("%w: no time logged on %v", errNothingToReport, assignment.ProjectIdentifiers)
	}

	tree := aggregator.Aggregate(entries, aggregator.Options{
		Scheme:          aggregator.ByProject,
		Weeks:           r.weeks,
		ZeroHourMembers: members,
		ProjectLabel:    r.projectLabel(),
	})
	return s.deliver(ctx, r, to, "Project", assignment.Emails, []render.Section{
		{Heading: "Project", Tree: tree},
	})
}

// projectMembers merges per-project user rows into one member per user.
func projectMembers(users []redmine.ProjectUser) []aggregator.Member {
	byUser := make(map[int]int)
	var members []aggregator.Member
	for _, u := range users {
		ref := aggregator.ProjectRef{Identifier: u.ProjectIdentifier, Name: u.ProjectName}
		if i, ok := byUser[u.UserId]; ok {
			members[i].Projects = append(members[i].Projects, ref)
			continue
		}
		byUser[u.UserId] = len(members)
		members = append(members, aggregator.Member{Name: u.FullName(), Projects: []aggregator.ProjectRef{ref}})
	}
	return members
}
