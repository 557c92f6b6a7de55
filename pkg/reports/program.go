package reports

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/redmine"
)

// ProgramReport groups every positive entry of the range by Financial PI.
func (s *Service) ProgramReport(ctx context.Context, from, to time.Time) (*aggregator.Tree, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: start is after end", period.ErrInvalidRange)
	}
	entries, err := s.redmine.GetEntries(ctx, redmine.EntryFilter{From: from, To: to, PositiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time entries: %w", err)
	}
	return aggregator.Aggregate(entries, aggregator.Options{
		Scheme:       aggregator.ByFinancialPI,
		ProjectLabel: aggregator.ProjectNameAndIdentifier,
	}), nil
}

// UserHours is one user's series of the project hours chart.
type UserHours struct {
	Name  string
	Hours []float64
	Total float64
}

// ProjectHours sums a project's hours per user and Saturday to Friday week.
// Users listed in userIds appear even without hours; an empty userIds keeps
// every user with hours.
func (s *Service) ProjectHours(ctx context.Context, projectId int, userIds []int, from, to time.Time) ([]period.Week, []UserHours, error) {
	weeks, err := period.SaturdayWeeks(from, to)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.redmine.GetEntries(ctx, redmine.EntryFilter{
		ProjectIds:   []int{projectId},
		UserIds:      userIds,
		From:         from,
		To:           to,
		PositiveOnly: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch time entries: %w", err)
	}

	var members []aggregator.Member
	if len(userIds) > 0 {
		users, err := s.redmine.ListProjectUsers(ctx, projectId)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list project users: %w", err)
		}
		for _, u := range users {
			if slices.Contains(userIds, u.Id) {
				members = append(members, aggregator.Member{Name: u.FullName()})
			}
		}
	}

	tree := aggregator.Aggregate(entries, aggregator.Options{
		Scheme:          aggregator.ByPerson,
		Weeks:           weeks,
		ZeroHourMembers: members,
	})
	series := make([]UserHours, 0, len(tree.Root.Children))
	for _, person := range tree.Root.Children {
		hours := make([]float64, 0, len(weeks))
		for _, w := range weeks {
			hours = append(hours, person.WeekHours(w.Number))
		}
		series = append(series, UserHours{Name: person.Label, Hours: hours, Total: person.TotalHours})
	}
	return weeks, series, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]redmine.Project, error) {
	return s.redmine.ListActiveProjects(ctx)
}

func (s *Service) ListProjectUsers(ctx context.Context, projectId int) ([]redmine.User, error) {
	return s.redmine.ListProjectUsers(ctx, projectId)
}
