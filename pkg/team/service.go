package team

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrInvalidTeam = errors.New("invalid team")

type Service interface {
	ListTeams(ctx context.Context) ([]Team, error)
	GetTeam(ctx context.Context, id int) (Team, error)
	FindByManagerIds(ctx context.Context, managerIds []int) ([]Team, error)
	CreateTeam(ctx context.Context, team Team) (Team, error)
	DeleteTeam(ctx context.Context, id int) error
	AddMember(ctx context.Context, teamId int, memberId int) (Team, error)
	RemoveMember(ctx context.Context, teamId int, memberId int) (Team, error)
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) ListTeams(ctx context.Context) ([]Team, error) {
	return s.repo.ListTeams(ctx)
}

func (s *ServiceImpl) GetTeam(ctx context.Context, id int) (Team, error) {
	return s.repo.GetTeam(ctx, id)
}

func (s *ServiceImpl) FindByManagerIds(ctx context.Context, managerIds []int) ([]Team, error) {
	if len(managerIds) == 0 {
		return nil, nil
	}
	return s.repo.FindByManagerIds(ctx, managerIds)
}

func (s *ServiceImpl) CreateTeam(ctx context.Context, team Team) (Team, error) {
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" {
		return Team{}, fmt.Errorf("%w: name is required", ErrInvalidTeam)
	}
	if team.ManagerId <= 0 {
		return Team{}, fmt.Errorf("%w: manager is required", ErrInvalidTeam)
	}

	var created Team
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		var err error
		created, err = repo.CreateTeam(ctx, team)
		return err
	})
	if err != nil {
		return Team{}, err
	}
	log.Infof("Created team %q (id %d) for manager %d with %d members", created.Name, created.Id, created.ManagerId, len(created.MemberIds))
	return created, nil
}

func (s *ServiceImpl) DeleteTeam(ctx context.Context, id int) error {
	return s.repo.DeleteTeam(ctx, id)
}

func (s *ServiceImpl) AddMember(ctx context.Context, teamId int, memberId int) (Team, error) {
	if err := s.repo.AddMember(ctx, teamId, memberId); err != nil {
		return Team{}, err
	}
	return s.repo.GetTeam(ctx, teamId)
}

func (s *ServiceImpl) RemoveMember(ctx context.Context, teamId int, memberId int) (Team, error) {
	if err := s.repo.RemoveMember(ctx, teamId, memberId); err != nil {
		return Team{}, err
	}
	return s.repo.GetTeam(ctx, teamId)
}
