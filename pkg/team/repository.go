package team

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of the team")
	ErrMemberNotFound      = errors.New("user is not a member of the team")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	ListTeams(ctx context.Context) ([]Team, error)
	GetTeam(ctx context.Context, id int) (Team, error)
	FindByManagerIds(ctx context.Context, managerIds []int) ([]Team, error)
	CreateTeam(ctx context.Context, team Team) (Team, error)
	DeleteTeam(ctx context.Context, id int) error
	AddMember(ctx context.Context, teamId int, memberId int) error
	RemoveMember(ctx context.Context, teamId int, memberId int) error
}

type repositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepo(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *repositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&repositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const teamSelect = `SELECT t.id, t.manager_id, t.name, t.created_at,
		COALESCE(array_agg(m.member_id ORDER BY m.member_id) FILTER (WHERE m.member_id IS NOT NULL), '{}')
	FROM team t
	LEFT JOIN team_member m ON m.team_id = t.id`

func (r *repositoryImpl) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := r.getQueryer().Query(ctx, teamSelect+` GROUP BY t.id ORDER BY t.name, t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return scanTeams(rows)
}

func (r *repositoryImpl) GetTeam(ctx context.Context, id int) (Team, error) {
	rows, err := r.getQueryer().Query(ctx, teamSelect+` WHERE t.id = $1 GROUP BY t.id`, id)
	if err != nil {
		return Team{}, fmt.Errorf("failed to get team %d: %w", id, err)
	}
	teams, err := scanTeams(rows)
	if err != nil {
		return Team{}, err
	}
	if len(teams) == 0 {
		return Team{}, fmt.Errorf("%w: %d", ErrTeamNotFound, id)
	}
	return teams[0], nil
}

func (r *repositoryImpl) FindByManagerIds(ctx context.Context, managerIds []int) ([]Team, error) {
	rows, err := r.getQueryer().Query(ctx, teamSelect+` WHERE t.manager_id = ANY($1) GROUP BY t.id ORDER BY t.name, t.id`, managerIds)
	if err != nil {
		return nil, fmt.Errorf("failed to find teams by manager: %w", err)
	}
	return scanTeams(rows)
}

func scanTeams(rows pgx.Rows) ([]Team, error) {
	defer rows.Close()
	var teams []Team
	for rows.Next() {
		var t Team
		var memberIds []int32
		if err := rows.Scan(&t.Id, &t.ManagerId, &t.Name, &t.CreatedAt, &memberIds); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		t.MemberIds = make([]int, 0, len(memberIds))
		for _, id := range memberIds {
			t.MemberIds = append(t.MemberIds, int(id))
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *repositoryImpl) CreateTeam(ctx context.Context, team Team) (Team, error) {
	query := `INSERT INTO team (manager_id, name) VALUES ($1, $2) RETURNING id, created_at`
	err := r.getQueryer().QueryRow(ctx, query, team.ManagerId, team.Name).Scan(&team.Id, &team.CreatedAt)
	if err != nil {
		return Team{}, fmt.Errorf("failed to create team: %w", err)
	}
	for _, memberId := range team.MemberIds {
		if err := r.AddMember(ctx, team.Id, memberId); err != nil {
			return Team{}, err
		}
	}
	if team.MemberIds == nil {
		team.MemberIds = []int{}
	}
	return team, nil
}

func (r *repositoryImpl) DeleteTeam(ctx context.Context, id int) error {
	tag, err := r.getQueryer().Exec(ctx, `DELETE FROM team WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrTeamNotFound, id)
	}
	return nil
}

func (r *repositoryImpl) AddMember(ctx context.Context, teamId int, memberId int) error {
	_, err := r.getQueryer().Exec(ctx, `INSERT INTO team_member (team_id, member_id) VALUES ($1, $2)`, teamId, memberId)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: user %d, team %d", ErrMemberAlreadyExists, memberId, teamId)
		case foreignKeyViolation:
			return fmt.Errorf("%w: %d", ErrTeamNotFound, teamId)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to add member %d to team %d: %w", memberId, teamId, err)
	}
	return nil
}

func (r *repositoryImpl) RemoveMember(ctx context.Context, teamId int, memberId int) error {
	tag, err := r.getQueryer().Exec(ctx, `DELETE FROM team_member WHERE team_id = $1 AND member_id = $2`, teamId, memberId)
	if err != nil {
		return fmt.Errorf("failed to remove member %d from team %d: %w", memberId, teamId, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d, team %d", ErrMemberNotFound, memberId, teamId)
	}
	return nil
}
