package reports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/team"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// overviewDays is how far back the team overview reaches without a start date.
const overviewDays = 30

// TeamHours is one team's section of the team overview. The tree has one
// week bucket per day of the range.
type TeamHours struct {
	Team    team.Team
	Manager string
	Tree    *aggregator.Tree
}

// OverviewRange fills in the default range of the team overview: the last
// 30 days up to today, or up to end when only end is given.
func (s *Service) OverviewRange(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = s.resolver.Today()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -overviewDays)
	}
	return from, to
}

// TeamOverview breaks down each team's hours by person, project, activity and
// day. Managers are left out of their own team and teams without hours are
// omitted.
func (s *Service) TeamOverview(ctx context.Context, from, to time.Time) ([]TeamHours, []period.Week, error) {
	days, err := period.Days(from, to)
	if err != nil {
		return nil, nil, err
	}
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list teams: %w", err)
	}

	var result []TeamHours
	for _, t := range teams {
		memberIds := lo.Without(t.MemberIds, t.ManagerId)
		if len(memberIds) == 0 {
			continue
		}
		entries, err := s.redmine.GetEntries(ctx, redmine.EntryFilter{UserIds: memberIds, From: from, To: to})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch time entries of team %q: %w", t.Name, err)
		}
		if len(entries) == 0 {
			log.Debugf("Team %q has no hours between %s and %s", t.Name, from.Format(period.DateLayout), to.Format(period.DateLayout))
			continue
		}

		manager, err := s.managerLabel(ctx, t.ManagerId)
		if err != nil {
			return nil, nil, err
		}
		result = append(result, TeamHours{
			Team:    t,
			Manager: manager,
			Tree: aggregator.Aggregate(entries, aggregator.Options{
				Scheme:       aggregator.BySupervisorTeam,
				Weeks:        days,
				ProjectLabel: aggregator.ProjectIdentifier,
			}),
		})
	}
	return result, days, nil
}

// managerLabel is "First Last (email)", falling back to the login when the
// manager has no default address.
func (s *Service) managerLabel(ctx context.Context, managerId int) (string, error) {
	users, err := s.redmine.GetActiveUsers(ctx, []int{managerId})
	if err != nil {
		return "", fmt.Errorf("failed to load manager %d: %w", managerId, err)
	}
	if len(users) == 0 {
		return strconv.Itoa(managerId), nil
	}
	manager := users[0]

	contact, err := s.redmine.GetDefaultEmail(ctx, managerId)
	if errors.Is(err, redmine.ErrEmailNotFound) {
		contact = manager.Login
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s)", manager.FullName(), contact), nil
}

// Distribution lists projects or programmers with logged time, those active
// in the range first.
func (s *Service) Distribution(ctx context.Context, kind redmine.DistributionKind, from, to time.Time) ([]redmine.DistributionItem, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: start is after end", period.ErrInvalidRange)
	}
	return s.redmine.ListDistribution(ctx, kind, from, to)
}
