package reports

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ndtl/timereport/internal/config"
	"github.com/ndtl/timereport/internal/utils"
	"github.com/ndtl/timereport/pkg/aggregator"
	"github.com/ndtl/timereport/pkg/notification"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/render"
	"github.com/ndtl/timereport/pkg/team"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// 2025-01-13 is a Monday; its weekly period is Jan 04 - Jan 10.
var monday = time.Date(2025, time.January, 13, 7, 0, 0, 0, time.UTC)

type fixture struct {
	service *Service
	redmine *redmine.RepositoryStub
	teams   *team.ServiceImpl
	mailer  *notification.DelivererStub
	printer *notification.DelivererStub
	clock   *utils.MockClock
}

func setupService(t *testing.T, cfg config.Report) *fixture {
	t.Helper()
	renderer, err := render.New()
	require.NoError(t, err)
	if cfg.Organization == "" {
		cfg.Organization = "NDTL"
	}
	f := &fixture{
		redmine: redmine.NewRepositoryStub(),
		teams:   team.NewService(team.NewRepositoryStub()),
		mailer:  &notification.DelivererStub{},
		printer: &notification.DelivererStub{},
		clock:   &utils.MockClock{FixedNow: monday},
	}
	f.service = NewService(f.redmine, f.teams, period.NewResolver(f.clock), renderer, f.mailer, f.printer, cfg)
	return f
}

func date(value string) time.Time {
	d, _ := time.Parse(period.DateLayout, value)
	return d
}

func entry(userId int, name, project, hours, spentOn string) aggregator.Entry {
	return aggregator.Entry{
		UserID:            userId,
		UserName:          name,
		ProjectIdentifier: project,
		ProjectName:       project + " project",
		ActivityName:      "Development",
		Hours:             hours,
		SpentOn:           date(spentOn),
	}
}

func TestService_SendPIReports(t *testing.T) {
	t.Run("should send one report per PI and skip unresolvable ones", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.redmine.PIAssignments = []redmine.PIAssignment{
			{Emails: "pi@example.edu, second@example.edu", ProjectIdentifiers: []string{"neuro"}},
			{Emails: "not-an-address", ProjectIdentifiers: []string{"imaging"}},
			{Emails: "idle@example.edu", ProjectIdentifiers: []string{"idle"}},
		}
		f.redmine.Entries = []aggregator.Entry{
			entry(1, "Ada Lovelace", "neuro", "4.5", "2025-01-06"),
			entry(1, "Ada Lovelace", "imaging", "2", "2025-01-06"),
			entry(1, "Ada Lovelace", "neuro", "8", "2025-01-13"),
		}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1, Skipped: 2}, summary)
		require.Len(t, f.mailer.Delivered, 1)
		delivered := f.mailer.Delivered[0]
		assert.Equal(t, "pi-weekly", delivered.Report)
		assert.NotEmpty(t, delivered.RunId)
		assert.Equal(t, []string{"pi@example.edu", "second@example.edu"}, delivered.Message.To)
		assert.Equal(t, "NDTL PI Weekly Time Report (Jan 04 - Jan 10)", delivered.Message.Subject)
		assert.Contains(t, delivered.Message.HTML, "neuro project (neuro)")
		assert.Contains(t, delivered.Message.HTML, "4.50")
		assert.NotContains(t, delivered.Message.HTML, "12.50")
		assert.Empty(t, f.printer.Delivered)
	})

	t.Run("should not run weekly reports outside Mondays", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.clock.SetNow(monday.AddDate(0, 0, 1))
		f.redmine.PIAssignments = []redmine.PIAssignment{{Emails: "pi@example.edu", ProjectIdentifiers: []string{"neuro"}}}

		// when
		_, err := f.service.SendPIReports(context.Background(), Options{})

		// then
		assert.ErrorIs(t, err, period.ErrNotDue)
		assert.Empty(t, f.mailer.Delivered)
	})

	t.Run("should redirect to test email on any day", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.clock.SetNow(monday.AddDate(0, 0, 2))
		f.redmine.PIAssignments = []redmine.PIAssignment{{Emails: "pi@example.edu", ProjectIdentifiers: []string{"neuro"}}}
		f.redmine.Entries = []aggregator.Entry{entry(1, "Ada Lovelace", "neuro", "1", "2025-01-10")}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{TestEmail: "me@example.edu"})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Sent)
		require.Len(t, f.mailer.Delivered, 1)
		assert.Equal(t, []string{"me@example.edu"}, f.mailer.Delivered[0].Message.To)
	})

	t.Run("should print instead of sending", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.redmine.PIAssignments = []redmine.PIAssignment{{Emails: "pi@example.edu", ProjectIdentifiers: []string{"neuro"}}}
		f.redmine.Entries = []aggregator.Entry{entry(1, "Ada Lovelace", "neuro", "1", "2025-01-06")}

		// when
		_, err := f.service.SendPIReports(context.Background(), Options{Print: true})

		// then
		require.NoError(t, err)
		assert.Empty(t, f.mailer.Delivered)
		assert.Len(t, f.printer.Delivered, 1)
	})

	t.Run("should print reports for unresolvable recipients", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.redmine.PIAssignments = []redmine.PIAssignment{{Emails: "Dr. Stone", ProjectIdentifiers: []string{"neuro"}}}
		f.redmine.Entries = []aggregator.Entry{entry(1, "Ada Lovelace", "neuro", "1", "2025-01-06")}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{Print: true})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1}, summary)
		require.Len(t, f.printer.Delivered, 1)
		assert.Equal(t, []string{"Dr. Stone"}, f.printer.Delivered[0].Message.To)
	})

	t.Run("should send to test email for a PI value that is not an address", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.redmine.PIAssignments = []redmine.PIAssignment{{Emails: "Dr. Stone", ProjectIdentifiers: []string{"neuro"}}}
		f.redmine.Entries = []aggregator.Entry{entry(1, "Ada Lovelace", "neuro", "1", "2025-01-06")}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{TestEmail: "me@example.edu"})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1}, summary)
		require.Len(t, f.mailer.Delivered, 1)
		assert.Equal(t, []string{"me@example.edu"}, f.mailer.Delivered[0].Message.To)
	})

	t.Run("should include zero hour members", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.redmine.PIAssignments = []redmine.PIAssignment{
			{Emails: "pi@example.edu", ProjectIdentifiers: []string{"neuro"}},
			{Emails: "nobody@example.edu", ProjectIdentifiers: []string{"empty"}},
		}
		f.redmine.ProjectUsers = []redmine.ProjectUser{
			{UserId: 1, FirstName: "Ada", LastName: "Lovelace", ProjectIdentifier: "neuro", ProjectName: "neuro project"},
			{UserId: 2, FirstName: "Bob", LastName: "Builder", ProjectIdentifier: "neuro", ProjectName: "neuro project"},
		}
		f.redmine.Entries = []aggregator.Entry{entry(1, "Ada Lovelace", "neuro", "3", "2025-01-06")}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{IncludeZeroHours: true})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1, Skipped: 1}, summary)
		msg := f.mailer.Delivered[0].Message
		assert.Equal(t, "NDTL PI Weekly Time Report (Jan 04 - Jan 10) [Includes Zero Hours]", msg.Subject)
		assert.Contains(t, msg.HTML, "Bob Builder")
		assert.Equal(t, "pi-weekly-zero-hours", f.mailer.Delivered[0].Report)
	})

	t.Run("should attach xlsx to monthly reports", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{AttachXlsx: true})
		f.clock.SetNow(time.Date(2025, time.January, 31, 7, 0, 0, 0, time.UTC))
		f.redmine.PIAssignments = []redmine.PIAssignment{{Emails: "pi@example.edu", ProjectIdentifiers: []string{"neuro"}}}
		f.redmine.Entries = []aggregator.Entry{
			entry(1, "Ada Lovelace", "neuro", "2", "2024-12-28"),
			entry(1, "Ada Lovelace", "neuro", "3", "2025-01-31"),
		}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{Granularity: period.Monthly})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Sent)
		msg := f.mailer.Delivered[0].Message
		assert.Equal(t, "NDTL PI Monthly Time Report (Dec 28 - Jan 31)", msg.Subject)
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "pi-monthly-2025-01-31.xlsx", msg.Attachments[0].Name)
		assert.Equal(t, render.XLSXContentType, msg.Attachments[0].ContentType)
		assert.NotEmpty(t, msg.Attachments[0].Data)
		assert.Contains(t, msg.HTML, "Week 5")
	})

	t.Run("should keep going after a failed delivery", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.mailer.FailFor = map[string]error{"first@example.edu": errors.New("smtp down")}
		f.redmine.PIAssignments = []redmine.PIAssignment{
			{Emails: "first@example.edu", ProjectIdentifiers: []string{"neuro"}},
			{Emails: "second@example.edu", ProjectIdentifiers: []string{"neuro"}},
		}
		f.redmine.Entries = []aggregator.Entry{entry(1, "Ada Lovelace", "neuro", "1", "2025-01-06")}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1, Failed: 1}, summary)
		require.Len(t, f.mailer.Delivered, 1)
		assert.Equal(t, []string{"second@example.edu"}, f.mailer.Delivered[0].Message.To)
	})

	t.Run("should count source errors as failures", func(t *testing.T) {
		// given
		f := setupService(t, config.Report{})
		f.redmine.EntriesErr = errors.New("connection reset")
		f.redmine.PIAssignments = []redmine.PIAssignment{{Emails: "pi@example.edu", ProjectIdentifiers: []string{"neuro"}}}

		// when
		summary, err := f.service.SendPIReports(context.Background(), Options{})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Failed: 1}, summary)
	})
}

func TestService_SendTeamReports(t *testing.T) {
	setupTeams := func(t *testing.T) *fixture {
		f := setupService(t, config.Report{})
		ctx := context.Background()
		_, err := f.teams.CreateTeam(ctx, team.Team{ManagerId: 100, Name: "Imaging", MemberIds: []int{1, 2, 3}})
		require.NoError(t, err)
		_, err = f.teams.CreateTeam(ctx, team.Team{ManagerId: 200, Name: "Orphans", MemberIds: []int{1}})
		require.NoError(t, err)
		f.redmine.Users = []redmine.User{
			{Id: 1, Login: "ada", FirstName: "Ada", LastName: "Lovelace", Status: redmine.StatusActive},
			{Id: 2, Login: "bob", FirstName: "Bob", LastName: "Builder", Status: redmine.StatusActive},
			{Id: 3, Login: "carl", FirstName: "Carl", LastName: "Locked", Status: redmine.StatusLocked},
			{Id: 100, Login: "boss", FirstName: "The", LastName: "Boss", Status: redmine.StatusActive},
			{Id: 200, Login: "other", FirstName: "Other", LastName: "Boss", Status: redmine.StatusActive},
		}
		f.redmine.Emails[100] = "boss@example.edu"
		f.redmine.Entries = []aggregator.Entry{
			entry(1, "Ada Lovelace", "neuro", "2", "2025-01-06"),
			entry(2, "Bob Builder", "neuro", "5", "2025-01-07"),
			entry(3, "Carl Locked", "neuro", "9", "2025-01-07"),
		}
		return f
	}

	t.Run("should send to managers and skip managers without address", func(t *testing.T) {
		// given
		f := setupTeams(t)

		// when
		summary, err := f.service.SendTeamReports(context.Background(), Options{})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1, Skipped: 1}, summary)
		msg := f.mailer.Delivered[0].Message
		assert.Equal(t, []string{"boss@example.edu"}, msg.To)
		assert.Equal(t, "NDTL Team Weekly Time Report (Jan 04 - Jan 10)", msg.Subject)
		assert.Contains(t, msg.HTML, "Bob Builder")
		assert.Contains(t, msg.HTML, "Project totals")
		assert.NotContains(t, msg.HTML, "Carl Locked")
		assert.Contains(t, msg.HTML, "7.00")
	})

	t.Run("should restrict to one manager", func(t *testing.T) {
		// given
		f := setupTeams(t)
		f.redmine.Emails[200] = "other@example.edu"

		// when
		summary, err := f.service.SendTeamReports(context.Background(), Options{ManagerLogin: "other"})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1}, summary)
		assert.Equal(t, []string{"other@example.edu"}, f.mailer.Delivered[0].Message.To)
	})

	t.Run("should print teams whose manager has no address", func(t *testing.T) {
		// given
		f := setupTeams(t)

		// when
		summary, err := f.service.SendTeamReports(context.Background(), Options{Print: true})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 2}, summary)
		assert.Empty(t, f.mailer.Delivered)
		require.Len(t, f.printer.Delivered, 2)
		recipients := []string{f.printer.Delivered[0].Message.Recipients(), f.printer.Delivered[1].Message.Recipients()}
		assert.ElementsMatch(t, []string{"boss@example.edu", ""}, recipients)
	})

	t.Run("should send to test email when the manager has no address", func(t *testing.T) {
		// given
		f := setupTeams(t)

		// when
		summary, err := f.service.SendTeamReports(context.Background(), Options{TestEmail: "me@example.edu"})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 2}, summary)
		require.Len(t, f.mailer.Delivered, 2)
		for _, d := range f.mailer.Delivered {
			assert.Equal(t, []string{"me@example.edu"}, d.Message.To)
		}
	})

	t.Run("should attach every section to monthly reports", func(t *testing.T) {
		// given
		f := setupTeams(t)
		f.service.attachXlsx = true
		f.clock.SetNow(time.Date(2025, time.January, 31, 7, 0, 0, 0, time.UTC))

		// when
		summary, err := f.service.SendTeamReports(context.Background(), Options{Granularity: period.Monthly})

		// then
		require.NoError(t, err)
		assert.Equal(t, Summary{Sent: 1, Skipped: 1}, summary)
		msg := f.mailer.Delivered[0].Message
		require.Len(t, msg.Attachments, 1)
		workbook, err := excelize.OpenReader(bytes.NewReader(msg.Attachments[0].Data))
		require.NoError(t, err)
		defer workbook.Close()
		assert.Equal(t, []string{"Hours by person", "Project totals"}, workbook.GetSheetList())
	})

	t.Run("should fail for unknown manager login", func(t *testing.T) {
		// given
		f := setupTeams(t)

		// when
		_, err := f.service.SendTeamReports(context.Background(), Options{ManagerLogin: "ghost"})

		// then
		assert.ErrorIs(t, err, redmine.ErrUserNotFound)
	})
}

func TestService_SendSupervisorReports(t *testing.T) {
	// given
	f := setupService(t, config.Report{})
	f.redmine.Users = []redmine.User{
		{Id: 1, FirstName: "Ada", LastName: "Lovelace", Status: redmine.StatusActive},
		{Id: 2, FirstName: "Bob", LastName: "Builder", Status: redmine.StatusActive},
	}
	f.redmine.Supervisors["sup@example.edu"] = []int{1, 2}
	f.redmine.Supervisors["quiet@example.edu"] = []int{}
	f.redmine.Entries = []aggregator.Entry{
		entry(1, "Ada Lovelace", "neuro", "2", "2025-01-06"),
		entry(2, "Bob Builder", "neuro", "5", "2025-01-07"),
	}

	// when
	summary, err := f.service.SendSupervisorReports(context.Background(), Options{})

	// then
	require.NoError(t, err)
	assert.Equal(t, Summary{Sent: 1, Skipped: 1}, summary)
	msg := f.mailer.Delivered[0].Message
	assert.Equal(t, "NDTL Supervisor Weekly Time Report (Jan 04 - Jan 10)", msg.Subject)
	bob := indexOf(msg.HTML, "Bob Builder")
	ada := indexOf(msg.HTML, "Ada Lovelace")
	assert.True(t, bob >= 0 && ada >= 0 && bob < ada, "persons with more hours come first")
}

func TestService_ProgramReport(t *testing.T) {
	// given
	f := setupService(t, config.Report{})
	withPI := entry(1, "Ada Lovelace", "neuro", "2", "2025-01-06")
	withPI.FinancialPI = "pi@example.edu"
	f.redmine.Entries = []aggregator.Entry{
		withPI,
		entry(2, "Bob Builder", "imaging", "3", "2025-01-07"),
		entry(2, "Bob Builder", "imaging", "0", "2025-01-07"),
	}

	// when
	tree, err := f.service.ProgramReport(context.Background(), date("2025-01-01"), date("2025-01-31"))

	// then
	require.NoError(t, err)
	assert.Equal(t, 5.0, tree.TotalHours())
	require.NotNil(t, tree.Root.Find("pi@example.edu", "neuro project (neuro)", "Ada Lovelace"))
	unassigned := tree.Root.Find(aggregator.Unassigned)
	require.NotNil(t, unassigned)
	assert.Equal(t, 3.0, unassigned.TotalHours)

	_, err = f.service.ProgramReport(context.Background(), date("2025-02-01"), date("2025-01-31"))
	assert.ErrorIs(t, err, period.ErrInvalidRange)
}

func TestService_ProjectHours(t *testing.T) {
	// given
	f := setupService(t, config.Report{})
	f.redmine.Users = []redmine.User{
		{Id: 1, FirstName: "Ada", LastName: "Lovelace", Status: redmine.StatusActive},
		{Id: 2, FirstName: "Bob", LastName: "Builder", Status: redmine.StatusActive},
	}
	f.redmine.Entries = []aggregator.Entry{
		entry(1, "Ada Lovelace", "neuro", "2", "2025-01-02"),
		entry(1, "Ada Lovelace", "neuro", "3", "2025-01-06"),
	}

	// when
	weeks, series, err := f.service.ProjectHours(context.Background(), 7, []int{1, 2}, date("2025-01-01"), date("2025-01-14"))

	// then
	require.NoError(t, err)
	require.Len(t, weeks, 3)
	assert.Equal(t, date("2025-01-03"), weeks[0].End)
	assert.Equal(t, date("2025-01-04"), weeks[1].Start)
	require.Len(t, series, 2)
	assert.Equal(t, "Ada Lovelace", series[0].Name)
	assert.Equal(t, []float64{2, 3, 0}, series[0].Hours)
	assert.Equal(t, 5.0, series[0].Total)
	assert.Equal(t, "Bob Builder", series[1].Name)
	assert.Equal(t, []float64{0, 0, 0}, series[1].Hours)
}

func TestSubject(t *testing.T) {
	p := period.Period{Start: date("2025-01-04"), End: date("2025-01-10"), Granularity: period.Weekly}

	assert.Equal(t, "NDTL Team Weekly Time Report (Jan 04 - Jan 10)", Subject("NDTL", AudienceTeam, p, false))
	assert.Equal(t, "NDTL Team Weekly Time Report (Jan 04 - Jan 10) [Includes Zero Hours]", Subject("NDTL", AudienceTeam, p, true))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
