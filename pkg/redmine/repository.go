package redmine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ndtl/timereport/pkg/aggregator"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUserNotFound    = errors.New("redmine user not found")
	ErrEmailNotFound   = errors.New("redmine user has no default email address")
	ErrProjectNotFound = errors.New("redmine project not found")
)

// Repository reads the Redmine schema. The only write is InsertTimeEntry.
type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	GetEntries(ctx context.Context, filter EntryFilter) ([]aggregator.Entry, error)
	GetFinancialPIAssignments(ctx context.Context) ([]PIAssignment, error)
	// GetActiveProjectUsers lists active users that ever logged time on any of the projects.
	GetActiveProjectUsers(ctx context.Context, projectIdentifiers []string) ([]ProjectUser, error)
	GetActiveUsers(ctx context.Context, ids []int) ([]User, error)
	GetUserByLogin(ctx context.Context, login string) (User, error)
	GetDefaultEmail(ctx context.Context, userId int) (string, error)
	GetSupervisorEmails(ctx context.Context) ([]string, error)
	GetSupervisedUserIds(ctx context.Context, supervisorEmails string) ([]int, error)
	GetAllEmailAddresses(ctx context.Context) ([]string, error)
	GetProjectByName(ctx context.Context, name string) (Project, error)
	GetProjectMemberIds(ctx context.Context, projectId int) ([]int, error)
	ListActiveProjects(ctx context.Context) ([]Project, error)
	ListProjectUsers(ctx context.Context, projectId int) ([]User, error)
	// ListDistribution lists the projects or users with time entries, those
	// active between from and to first.
	ListDistribution(ctx context.Context, kind DistributionKind, from, to time.Time) ([]DistributionItem, error)
	// HasTimeEntry reports whether the user already logged the activity on
	// the project that day.
	HasTimeEntry(ctx context.Context, entry NewTimeEntry) (bool, error)
	InsertTimeEntry(ctx context.Context, entry NewTimeEntry) error
}

type repositoryImpl struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

func NewRepo(db *sqlx.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) getQueryer() interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// WithTransaction runs fn against a repository bound to one transaction.
// Nested calls reuse the open transaction.
func (r *repositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&repositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const entriesQuery = `SELECT
		te.user_id,
		u.firstname,
		u.lastname,
		p.identifier AS project_identifier,
		p.name AS project_name,
		pi.value AS financial_pi,
		te.comments,
		e.name AS activity_name,
		te.hours::text AS hours,
		te.spent_on
	FROM time_entries te
	JOIN users u ON u.id = te.user_id
	LEFT JOIN projects p ON p.id = te.project_id
	LEFT JOIN enumerations e ON e.id = te.activity_id
	LEFT JOIN custom_values pi ON pi.customized_type = 'Project'
		AND pi.customized_id = te.project_id
		AND pi.custom_field_id = (SELECT id FROM custom_fields WHERE name = 'Financial PI' LIMIT 1)
	WHERE te.spent_on BETWEEN ? AND ?`

func (r *repositoryImpl) GetEntries(ctx context.Context, filter EntryFilter) ([]aggregator.Entry, error) {
	query := entriesQuery
	args := []any{filter.From, filter.To}
	if len(filter.ProjectIdentifiers) > 0 {
		query += " AND p.identifier IN (?)"
		args = append(args, filter.ProjectIdentifiers)
	}
	if len(filter.ProjectIds) > 0 {
		query += " AND te.project_id IN (?)"
		args = append(args, filter.ProjectIds)
	}
	if len(filter.UserIds) > 0 {
		query += " AND te.user_id IN (?)"
		args = append(args, filter.UserIds)
	}
	if filter.PositiveOnly {
		query += " AND te.hours > 0"
	}
	query += " ORDER BY te.spent_on, te.id"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand entries query: %w", err)
	}

	var rows []timeEntryRow
	if err := r.getQueryer().SelectContext(ctx, &rows, r.getQueryer().Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}

	entries := make([]aggregator.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	log.Debugf("Loaded %d time entries between %s and %s", len(entries), filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"))
	return entries, nil
}

func (r *repositoryImpl) GetFinancialPIAssignments(ctx context.Context) ([]PIAssignment, error) {
	query := `SELECT cv.value AS emails, string_agg(p.identifier, ',' ORDER BY p.identifier) AS identifiers
		FROM projects p
		JOIN custom_values cv ON cv.customized_id = p.id AND cv.customized_type = 'Project'
		JOIN custom_fields cf ON cf.id = cv.custom_field_id
		WHERE cf.name = $1 AND p.status = $2 AND cv.value IS NOT NULL AND cv.value <> ''
		GROUP BY cv.value
		ORDER BY cv.value`

	var rows []struct {
		Emails      string `db:"emails"`
		Identifiers string `db:"identifiers"`
	}
	if err := r.getQueryer().SelectContext(ctx, &rows, query, FinancialPIField, StatusActive); err != nil {
		return nil, fmt.Errorf("failed to query financial PI assignments: %w", err)
	}

	assignments := make([]PIAssignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, PIAssignment{
			Emails:             row.Emails,
			ProjectIdentifiers: strings.Split(row.Identifiers, ","),
		})
	}
	return assignments, nil
}

func (r *repositoryImpl) GetActiveProjectUsers(ctx context.Context, projectIdentifiers []string) ([]ProjectUser, error) {
	if len(projectIdentifiers) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT DISTINCT u.id AS user_id, u.firstname, u.lastname,
			p.identifier AS project_identifier, p.name AS project_name
		FROM time_entries te
		JOIN users u ON u.id = te.user_id
		JOIN projects p ON p.id = te.project_id
		WHERE p.identifier IN (?) AND u.status = ?
		ORDER BY p.identifier, u.firstname, u.lastname`, projectIdentifiers, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to expand project users query: %w", err)
	}

	var users []ProjectUser
	if err := r.getQueryer().SelectContext(ctx, &users, r.getQueryer().Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query project users: %w", err)
	}
	return users, nil
}

func (r *repositoryImpl) GetActiveUsers(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, login, firstname, lastname, status
		FROM users
		WHERE id IN (?) AND status = ?
		ORDER BY firstname, lastname`, ids, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to expand users query: %w", err)
	}

	var users []User
	if err := r.getQueryer().SelectContext(ctx, &users, r.getQueryer().Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

func (r *repositoryImpl) GetUserByLogin(ctx context.Context, login string) (User, error) {
	var u User
	err := r.getQueryer().GetContext(ctx, &u, `SELECT id, login, firstname, lastname, status FROM users WHERE login = $1`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, login)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user %s: %w", login, err)
	}
	return u, nil
}

func (r *repositoryImpl) GetDefaultEmail(ctx context.Context, userId int) (string, error) {
	var address string
	err := r.getQueryer().GetContext(ctx, &address,
		`SELECT address FROM email_addresses WHERE user_id = $1 AND is_default = true LIMIT 1`, userId)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: user %d", ErrEmailNotFound, userId)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query email of user %d: %w", userId, err)
	}
	return address, nil
}

func (r *repositoryImpl) GetSupervisorEmails(ctx context.Context) ([]string, error) {
	var values []string
	err := r.getQueryer().SelectContext(ctx, &values, `SELECT DISTINCT cv.value
		FROM custom_values cv
		JOIN custom_fields cf ON cf.id = cv.custom_field_id
		WHERE cf.name = $1 AND cv.value IS NOT NULL AND cv.value <> ''
		ORDER BY cv.value`, SupervisorField)
	if err != nil {
		return nil, fmt.Errorf("failed to query supervisors: %w", err)
	}
	return values, nil
}

func (r *repositoryImpl) GetSupervisedUserIds(ctx context.Context, supervisorEmails string) ([]int, error) {
	var ids []int
	err := r.getQueryer().SelectContext(ctx, &ids, `SELECT u.id
		FROM users u
		JOIN custom_values cv ON cv.customized_id = u.id AND cv.customized_type = 'Principal'
		JOIN custom_fields cf ON cf.id = cv.custom_field_id
		WHERE cf.name = $1 AND cv.value = $2
		ORDER BY u.id`, SupervisorField, supervisorEmails)
	if err != nil {
		return nil, fmt.Errorf("failed to query users supervised by %s: %w", supervisorEmails, err)
	}
	return ids, nil
}

func (r *repositoryImpl) GetAllEmailAddresses(ctx context.Context) ([]string, error) {
	var addresses []string
	if err := r.getQueryer().SelectContext(ctx, &addresses, `SELECT address FROM email_addresses ORDER BY address`); err != nil {
		return nil, fmt.Errorf("failed to query email addresses: %w", err)
	}
	return addresses, nil
}

func (r *repositoryImpl) GetProjectByName(ctx context.Context, name string) (Project, error) {
	var p Project
	err := r.getQueryer().GetContext(ctx, &p, `SELECT id, identifier, name, status FROM projects WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if err != nil {
		return Project{}, fmt.Errorf("failed to query project %s: %w", name, err)
	}
	return p, nil
}

func (r *repositoryImpl) GetProjectMemberIds(ctx context.Context, projectId int) ([]int, error) {
	var ids []int
	if err := r.getQueryer().SelectContext(ctx, &ids, `SELECT user_id FROM members WHERE project_id = $1 ORDER BY user_id`, projectId); err != nil {
		return nil, fmt.Errorf("failed to query members of project %d: %w", projectId, err)
	}
	return ids, nil
}

func (r *repositoryImpl) ListActiveProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := r.getQueryer().SelectContext(ctx, &projects,
		`SELECT id, identifier, name, status FROM projects WHERE status = $1 ORDER BY name`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	return projects, nil
}

func (r *repositoryImpl) ListProjectUsers(ctx context.Context, projectId int) ([]User, error) {
	var users []User
	err := r.getQueryer().SelectContext(ctx, &users, `SELECT DISTINCT u.id, u.login, u.firstname, u.lastname, u.status
		FROM users u
		JOIN time_entries te ON te.user_id = u.id
		WHERE te.project_id = $1
		ORDER BY u.firstname, u.lastname, u.id`, projectId)
	if err != nil {
		return nil, fmt.Errorf("failed to query users of project %d: %w", projectId, err)
	}
	return users, nil
}

const (
	projectDistributionQuery = `SELECT p.id, p.name, bool_or(te.spent_on BETWEEN $1 AND $2) AS active
		FROM projects p
		JOIN time_entries te ON te.project_id = p.id
		GROUP BY p.id, p.name
		ORDER BY active DESC, p.name, p.id`
	programmerDistributionQuery = `SELECT u.id, trim(concat_ws(' ', u.firstname, u.lastname)) AS name,
			bool_or(te.spent_on BETWEEN $1 AND $2) AS active
		FROM users u
		JOIN time_entries te ON te.user_id = u.id
		GROUP BY u.id, u.firstname, u.lastname
		ORDER BY active DESC, u.firstname, u.lastname, u.id`
)

func (r *repositoryImpl) ListDistribution(ctx context.Context, kind DistributionKind, from, to time.Time) ([]DistributionItem, error) {
	var query string
	switch kind {
	case DistributionProject:
		query = projectDistributionQuery
	case DistributionProgrammer:
		query = programmerDistributionQuery
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistribution, kind)
	}

	var items []DistributionItem
	if err := r.getQueryer().SelectContext(ctx, &items, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query %s distribution: %w", kind, err)
	}
	return items, nil
}

func (r *repositoryImpl) HasTimeEntry(ctx context.Context, entry NewTimeEntry) (bool, error) {
	var exists bool
	err := r.getQueryer().GetContext(ctx, &exists, `SELECT EXISTS (
			SELECT 1 FROM time_entries
			WHERE project_id = $1 AND user_id = $2 AND activity_id = $3 AND spent_on = $4
		)`, entry.ProjectId, entry.UserId, entry.ActivityId, entry.SpentOn)
	if err != nil {
		return false, fmt.Errorf("failed to check time entry of user %d: %w", entry.UserId, err)
	}
	return exists, nil
}

// InsertTimeEntry writes an entry the way Redmine itself fills the derived
// tyear, tmonth and tweek columns (tweek is the ISO week).
func (r *repositoryImpl) InsertTimeEntry(ctx context.Context, entry NewTimeEntry) error {
	_, week := entry.SpentOn.ISOWeek()
	params := map[string]any{
		"project_id":  entry.ProjectId,
		"user_id":     entry.UserId,
		"author_id":   entry.UserId,
		"activity_id": entry.ActivityId,
		"hours":       entry.Hours,
		"comments":    entry.Comments,
		"spent_on":    entry.SpentOn,
		"tyear":       entry.SpentOn.Year(),
		"tmonth":      int(entry.SpentOn.Month()),
		"tweek":       week,
	}
	_, err := r.getQueryer().NamedExecContext(ctx, `INSERT INTO time_entries
		(project_id, user_id, author_id, activity_id, hours, comments, spent_on, tyear, tmonth, tweek, created_on, updated_on)
		VALUES (:project_id, :user_id, :author_id, :activity_id, :hours, :comments, :spent_on, :tyear, :tmonth, :tweek, now(), now())`, params)
	if err != nil {
		return fmt.Errorf("failed to insert time entry for user %d: %w", entry.UserId, err)
	}
	return nil
}
