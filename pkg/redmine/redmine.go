package redmine

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ndtl/timereport/pkg/aggregator"
)

// Redmine status values shared by users and projects.
const (
	StatusActive = 1
	StatusLocked = 3
)

const (
	FinancialPIField = "Financial PI"
	SupervisorField  = "Supervisor Notification Emails"
)

type User struct {
	Id        int    `db:"id" json:"id"`
	Login     string `db:"login" json:"login"`
	FirstName string `db:"firstname" json:"firstName"`
	LastName  string `db:"lastname" json:"lastName"`
	Status    int    `db:"status" json:"status"`
}

func (u User) FullName() string {
	return fullName(u.FirstName, u.LastName)
}

type Project struct {
	Id         int    `db:"id" json:"id"`
	Identifier string `db:"identifier" json:"identifier"`
	Name       string `db:"name" json:"name"`
	Status     int    `db:"status" json:"status"`
}

// PIAssignment groups the active projects sharing one "Financial PI" value.
// Emails is the raw custom field value, usually a comma separated list.
type PIAssignment struct {
	Emails             string
	ProjectIdentifiers []string
}

// ProjectUser is a user who logged time on a project at least once.
type ProjectUser struct {
	UserId            int    `db:"user_id"`
	FirstName         string `db:"firstname"`
	LastName          string `db:"lastname"`
	ProjectIdentifier string `db:"project_identifier"`
	ProjectName       string `db:"project_name"`
}

func (u ProjectUser) FullName() string {
	return fullName(u.FirstName, u.LastName)
}

var ErrUnknownDistribution = errors.New("unknown distribution type")

// DistributionKind selects what ListDistribution lists.
type DistributionKind string

const (
	DistributionProject    DistributionKind = "project"
	DistributionProgrammer DistributionKind = "programmer"
)

func ParseDistributionKind(value string) (DistributionKind, error) {
	switch kind := DistributionKind(value); kind {
	case DistributionProject, DistributionProgrammer:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q, expected project or programmer", ErrUnknownDistribution, value)
}

// DistributionItem is a project or user that ever logged time. Active is set
// when some of that time falls in the requested range.
type DistributionItem struct {
	Id     int    `db:"id"`
	Name   string `db:"name"`
	Active bool   `db:"active"`
}

// EntryFilter narrows GetEntries. Empty slices mean no restriction.
type EntryFilter struct {
	ProjectIdentifiers []string
	ProjectIds         []int
	UserIds            []int
	From               time.Time
	To                 time.Time
	PositiveOnly       bool
}

// NewTimeEntry is a time entry written by the holiday autolog.
type NewTimeEntry struct {
	ProjectId  int       `db:"project_id"`
	UserId     int       `db:"user_id"`
	ActivityId int       `db:"activity_id"`
	Hours      float64   `db:"hours"`
	Comments   string    `db:"comments"`
	SpentOn    time.Time `db:"spent_on"`
}

type timeEntryRow struct {
	UserId            int            `db:"user_id"`
	FirstName         sql.NullString `db:"firstname"`
	LastName          sql.NullString `db:"lastname"`
	ProjectIdentifier sql.NullString `db:"project_identifier"`
	ProjectName       sql.NullString `db:"project_name"`
	FinancialPI       sql.NullString `db:"financial_pi"`
	Comments          sql.NullString `db:"comments"`
	ActivityName      sql.NullString `db:"activity_name"`
	Hours             sql.NullString `db:"hours"`
	SpentOn           time.Time      `db:"spent_on"`
}

func (r timeEntryRow) toEntry() aggregator.Entry {
	y, m, d := r.SpentOn.Date()
	return aggregator.Entry{
		UserID:            r.UserId,
		UserName:          fullName(r.FirstName.String, r.LastName.String),
		ProjectIdentifier: r.ProjectIdentifier.String,
		ProjectName:       r.ProjectName.String,
		FinancialPI:       r.FinancialPI.String,
		Comments:          r.Comments.String,
		ActivityName:      r.ActivityName.String,
		Hours:             r.Hours.String,
		SpentOn:           time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
