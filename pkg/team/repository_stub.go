package team

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu     sync.Mutex
	teams  map[int]Team
	nextId int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		teams:  make(map[int]Team),
		nextId: 1,
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.mu.Lock()
	snapshot := make(map[int]Team, len(r.teams))
	for k, v := range r.teams {
		v.MemberIds = slices.Clone(v.MemberIds)
		snapshot[k] = v
	}
	nextId := r.nextId
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.teams = snapshot
		r.nextId = nextId
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *RepositoryStub) ListTeams(ctx context.Context) ([]Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(Team) bool { return true }), nil
}

func (r *RepositoryStub) GetTeam(ctx context.Context, id int) (Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return Team{}, fmt.Errorf("%w: %d", ErrTeamNotFound, id)
	}
	t.MemberIds = slices.Clone(t.MemberIds)
	return t, nil
}

func (r *RepositoryStub) FindByManagerIds(ctx context.Context, managerIds []int) ([]Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(t Team) bool { return slices.Contains(managerIds, t.ManagerId) }), nil
}

func (r *RepositoryStub) CreateTeam(ctx context.Context, team Team) (Team, error) {
	r.mu.Lock()
	team.Id = r.nextId
	r.nextId++
	team.CreatedAt = time.Now()
	members := team.MemberIds
	team.MemberIds = []int{}
	r.teams[team.Id] = team
	r.mu.Unlock()

	for _, memberId := range members {
		if err := r.AddMember(ctx, team.Id, memberId); err != nil {
			return Team{}, err
		}
	}
	return r.GetTeam(ctx, team.Id)
}

func (r *RepositoryStub) DeleteTeam(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return fmt.Errorf("%w: %d", ErrTeamNotFound, id)
	}
	delete(r.teams, id)
	return nil
}

func (r *RepositoryStub) AddMember(ctx context.Context, teamId int, memberId int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamId]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTeamNotFound, teamId)
	}
	if slices.Contains(t.MemberIds, memberId) {
		return fmt.Errorf("%w: user %d, team %d", ErrMemberAlreadyExists, memberId, teamId)
	}
	t.MemberIds = append(t.MemberIds, memberId)
	slices.Sort(t.MemberIds)
	r.teams[teamId] = t
	return nil
}

func (r *RepositoryStub) RemoveMember(ctx context.Context, teamId int, memberId int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamId]
	if !ok || !slices.Contains(t.MemberIds, memberId) {
		return fmt.Errorf("%w: user %d, team %d", ErrMemberNotFound, memberId, teamId)
	}
	t.MemberIds = slices.DeleteFunc(t.MemberIds, func(id int) bool { return id == memberId })
	r.teams[teamId] = t
	return nil
}

func (r *RepositoryStub) sorted(keep func(Team) bool) []Team {
	var result []Team
	for _, t := range r.teams {
		if keep(t) {
			t.MemberIds = slices.Clone(t.MemberIds)
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Id < result[j].Id
	})
	return result
}
