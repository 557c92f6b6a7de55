package reports

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/recipient"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/render"
	"github.com/ndtl/timereport/pkg/team"
	log "github.com/sirupsen/logrus"
)

// SendTeamReports sends every team manager the hours of their active members.
func (s *Service) SendTeamReports(ctx context.Context, opts Options) (Summary, error) {
	ctx, r, err := s.startRun(ctx, AudienceTeam, render.KindTeam, opts)
	if err != nil {
		return Summary{}, err
	}

	teams, err := s.teamsFor(ctx, opts.ManagerLogin)
	if err != nil {
		return Summary{}, err
	}

	for _, t := range teams {
		r.each(t.Name, func() error {
			return s.sendTeamReport(ctx, r, t)
		})
	}
	return r.finish(), nil
}

func (s *Service) teamsFor(ctx context.Context, managerLogin string) ([]team.Team, error) {
	if managerLogin == "" {
		teams, err := s.teams.ListTeams(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list teams: %w", err)
		}
		return teams, nil
	}
	manager, err := s.redmine.GetUserByLogin(ctx, managerLogin)
	if err != nil {
		return nil, fmt.Errorf("failed to find manager %q: %w", managerLogin, err)
	}
	teams, err := s.teams.FindByManagerIds(ctx, []int{manager.Id})
	if err != nil {
		return nil, fmt.Errorf("failed to find teams of %q: %w", managerLogin, err)
	}
	return teams, nil
}

func (s *Service) sendTeamReport(ctx context.Context, r *run, t team.Team) error {
	address, err := s.redmine.GetDefaultEmail(ctx, t.ManagerId)
	switch {
	case errors.Is(err, redmine.ErrEmailNotFound) && !r.opts.testRun():
		return fmt.Errorf("%w: manager %d of team %q: %w", recipient.ErrRecipientResolution, t.ManagerId, t.Name, err)
	case errors.Is(err, redmine.ErrEmailNotFound):
		log.Warnf("Manager %d of team %q has no email address", t.ManagerId, t.Name)
	case err != nil:
		return err
	}
	to, err := r.recipients(address)
	if err != nil {
		return err
	}

	entries, members, err := s.peopleEntries(ctx, r, t.MemberIds)
	if err != nil {
		return err
	}

	byPerson := aggregator.Aggregate(entries, aggregator.Options{
		Scheme:          aggregator.BySupervisorTeam,
		Weeks:           r.weeks,
		ZeroHourMembers: members,
		ProjectLabel:    r.projectLabel(),
	})
	totals := aggregator.Aggregate(entries, aggregator.Options{
		Scheme:       aggregator.ProjectTotals,
		Weeks:        r.weeks,
		ProjectLabel: r.projectLabel(),
	})
	return s.deliver(ctx, r, to, t.Name, t.Name, []render.Section{
		{Caption: "Hours by person", Heading: "Person", Tree: byPerson},
		{Caption: "Project totals", Heading: "Project", Tree: totals},
	})
}

// peopleEntries loads the entries of the active users among ids. With zero
// hours enabled every active user is returned as a member to seed.
func (s *Service) peopleEntries(ctx context.Context, r *run, ids []int) ([]aggregator.Entry, []aggregator.Member, error) {
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("%w: no members", errNothingToReport)
	}
	users, err := s.redmine.GetActiveUsers(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load users: %w", err)
	}
	if len(users) == 0 {
		return nil, nil, fmt.Errorf("%w: no active members", errNothingToReport)
	}

	activeIds := make([]int, 0, len(users))
	var members []aggregator.Member
	for _, u := range users {
		activeIds = append(activeIds, u.Id)
		if r.opts.IncludeZeroHours {
			name := u.FullName()
			if name == "" {
				name = strconv.Itoa(u.Id)
			}
			members = append(members, aggregator.Member{Name: name})
		}
	}

	entries, err := s.entries(ctx, r, redmine.EntryFilter{UserIds: activeIds})
	if err != nil {
		return nil, nil, err
	}
	if !r.opts.IncludeZeroHours && len(entries) == 0 {
		return nil, nil, fmt.Errorf("%w: no time logged", errNothingToReport)
	}
	return entries, members, nil
}
