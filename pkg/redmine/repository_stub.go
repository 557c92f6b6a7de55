package redmine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/ndtl/timereport/pkg/aggregator"
)

// RepositoryStub is an in-memory Repository for service tests.
type RepositoryStub struct {
	Entries       []aggregator.Entry
	PIAssignments []PIAssignment
	ProjectUsers  []ProjectUser
	Users         []User
	Emails        map[int]string
	Supervisors   map[string][]int
	Addresses     []string
	Projects      []Project
	Members       map[int][]int
	Inserted      []NewTimeEntry
	// EntriesErr, when set, is returned by GetEntries.
	EntriesErr error
	Distribution  map[DistributionKind][]DistributionItem
	// InsertErr fails InsertTimeEntry for the given user ids.
	InsertErr map[int]error
	// Commits counts transactions that completed without error.
	Commits int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		Emails:      map[int]string{},
		Supervisors: map[string][]int{},
		Members:     map[int][]int{},
	}
}

// WithTransaction discards entries inserted by fn when it fails.
func (s *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	inserted := slices.Clone(s.Inserted)
	if err := fn(s); err != nil {
		s.Inserted = inserted
		return err
	}
	s.Commits++
	return nil
}

func (s *RepositoryStub) GetEntries(ctx context.Context, filter EntryFilter) ([]aggregator.Entry, error) {
	if s.EntriesErr != nil {
		return nil, s.EntriesErr
	}
	var result []aggregator.Entry
	for _, e := range s.Entries {
		if e.SpentOn.Before(filter.From) || e.SpentOn.After(filter.To) {
			continue
		}
		if len(filter.ProjectIdentifiers) > 0 && !slices.Contains(filter.ProjectIdentifiers, e.ProjectIdentifier) {
			continue
		}
		if len(filter.UserIds) > 0 && !slices.Contains(filter.UserIds, e.UserID) {
			continue
		}
		if filter.PositiveOnly {
			if hours, err := aggregator.ParseHours(e.Hours); err != nil || hours <= 0 {
				continue
			}
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *RepositoryStub) GetFinancialPIAssignments(ctx context.Context) ([]PIAssignment, error) {
	return s.PIAssignments, nil
}

func (s *RepositoryStub) GetActiveProjectUsers(ctx context.Context, projectIdentifiers []string) ([]ProjectUser, error) {
	var result []ProjectUser
	for _, u := range s.ProjectUsers {
		if slices.Contains(projectIdentifiers, u.ProjectIdentifier) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (s *RepositoryStub) GetActiveUsers(ctx context.Context, ids []int) ([]User, error) {
	var result []User
	for _, u := range s.Users {
		if u.Status == StatusActive && slices.Contains(ids, u.Id) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (s *RepositoryStub) GetUserByLogin(ctx context.Context, login string) (User, error) {
	for _, u := range s.Users {
		if u.Login == login {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, login)
}

func (s *RepositoryStub) GetDefaultEmail(ctx context.Context, userId int) (string, error) {
	if address, ok := s.Emails[userId]; ok {
		return address, nil
	}
	return "", fmt.Errorf("%w: user %d", ErrEmailNotFound, userId)
}

func (s *RepositoryStub) GetSupervisorEmails(ctx context.Context) ([]string, error) {
	values := make([]string, 0, len(s.Supervisors))
	for value := range s.Supervisors {
		values = append(values, value)
	}
	sort.Strings(values)
	return values, nil
}

func (s *RepositoryStub) GetSupervisedUserIds(ctx context.Context, supervisorEmails string) ([]int, error) {
	return s.Supervisors[supervisorEmails], nil
}

func (s *RepositoryStub) GetAllEmailAddresses(ctx context.Context) ([]string, error) {
	return s.Addresses, nil
}

func (s *RepositoryStub) GetProjectByName(ctx context.Context, name string) (Project, error) {
	for _, p := range s.Projects {
		if p.Name == name {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
}

func (s *RepositoryStub) GetProjectMemberIds(ctx context.Context, projectId int) ([]int, error) {
	return s.Members[projectId], nil
}

func (s *RepositoryStub) ListActiveProjects(ctx context.Context) ([]Project, error) {
	var result []Project
	for _, p := range s.Projects {
		if p.Status == StatusActive {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *RepositoryStub) ListProjectUsers(ctx context.Context, projectId int) ([]User, error) {
	return s.Users, nil
}

func (s *RepositoryStub) ListDistribution(ctx context.Context, kind DistributionKind, from, to time.Time) ([]DistributionItem, error) {
	if _, err := ParseDistributionKind(string(kind)); err != nil {
		return nil, err
	}
	return s.Distribution[kind], nil
}

func (s *RepositoryStub) HasTimeEntry(ctx context.Context, entry NewTimeEntry) (bool, error) {
	return slices.ContainsFunc(s.Inserted, func(e NewTimeEntry) bool {
		return e.ProjectId == entry.ProjectId && e.UserId == entry.UserId &&
			e.ActivityId == entry.ActivityId && e.SpentOn.Equal(entry.SpentOn)
	}), nil
}

func (s *RepositoryStub) InsertTimeEntry(ctx context.Context, entry NewTimeEntry) error {
	if err, ok := s.InsertErr[entry.UserId]; ok {
		return err
	}
	s.Inserted = append(s.Inserted, entry)
	return nil
}
