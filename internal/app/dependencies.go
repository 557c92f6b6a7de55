package app

import (
	"context"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/ndtl/timereport/internal/config"
	"github.com/ndtl/timereport/internal/event_bus"
	"github.com/ndtl/timereport/internal/utils"
	"github.com/ndtl/timereport/pkg/delivery"
	"github.com/ndtl/timereport/pkg/holiday"
	"github.com/ndtl/timereport/pkg/notification"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/ndtl/timereport/pkg/reminder"
	"github.com/ndtl/timereport/pkg/render"
	"github.com/ndtl/timereport/pkg/reports"
	"github.com/ndtl/timereport/pkg/scheduler"
	"github.com/ndtl/timereport/pkg/team"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	AppDB     *pgxpool.Pool
	RedmineDB *sqlx.DB

	RedmineRepo redmine.Repository

	TeamRepo    team.Repository
	TeamService *team.ServiceImpl
	TeamHandler *team.Handler

	DeliveryRepo    delivery.Repository
	DeliveryHandler *delivery.Handler

	ScheduledRuns scheduler.RunStore

	Renderer   *render.Renderer
	Sender     notification.Sender
	Dispatcher *notification.Dispatcher
	Printer    *notification.Dispatcher

	ReportService   *reports.Service
	ReportHandler   *reports.Handler
	ReminderService *reminder.Service
	HolidayService  *holiday.Service
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, appDb *pgxpool.Pool, redmineDb *sqlx.DB, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{AppDB: appDb, RedmineDB: redmineDb}

	deps.Clock = utils.SystemClock{Location: cfg.Report.Location()}
	deps.EventBus = event_bus.NewEventBus()

	deps.RedmineRepo = redmine.NewRepo(redmineDb)

	deps.TeamRepo = team.NewRepo(appDb)
	deps.TeamService = team.NewService(deps.TeamRepo)
	deps.TeamHandler = team.NewHandler(deps.TeamService)

	deps.DeliveryRepo = delivery.NewRepo(appDb)
	deps.DeliveryHandler = delivery.NewHandler(deps.DeliveryRepo)
	delivery.Subscribe(deps.EventBus, deps.DeliveryRepo)

	deps.ScheduledRuns = scheduler.NewRepo(appDb)

	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	deps.Renderer = renderer

	sender, err := notification.NewSender(ctx, cfg.Mail)
	if err != nil {
		return nil, err
	}
	deps.Sender = sender
	deps.Dispatcher = notification.NewDispatcher(sender, deps.EventBus, notification.PolicyFrom(cfg.Mail))
	deps.Printer = notification.NewConsoleDispatcher(os.Stdout)

	deps.ReportService = reports.NewService(
		deps.RedmineRepo,
		deps.TeamService,
		period.NewResolver(deps.Clock),
		deps.Renderer,
		deps.Dispatcher,
		deps.Printer,
		cfg.Report,
	)
	deps.ReportHandler = reports.NewHandler(deps.ReportService)
	deps.ReminderService = reminder.NewService(deps.RedmineRepo, deps.Renderer, deps.Dispatcher, deps.Printer, deps.Clock, cfg.Report.Organization)

	holidays, err := holiday.FromConfig(cfg.Holidays)
	if err != nil {
		return nil, err
	}
	deps.HolidayService = holiday.NewService(deps.RedmineRepo, holidays, deps.Clock)

	return deps, nil
}

// Close releases connections held by the dependencies.
func (d *Dependencies) Close() {
	if closer, ok := d.Sender.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warnf("failed to close mail transport: %v", err)
		}
	}
	if d.RedmineDB != nil {
		if err := d.RedmineDB.Close(); err != nil {
			log.Warnf("failed to close redmine database: %v", err)
		}
	}
	if d.AppDB != nil {
		d.AppDB.Close()
	}
}
