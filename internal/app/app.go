package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/ndtl/timereport/internal/config"
	"github.com/ndtl/timereport/internal/database"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/recipient"
	"github.com/ndtl/timereport/pkg/reports"
	"github.com/ndtl/timereport/pkg/scheduler"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	defaultConfigPath = "./config/application.yaml"
	schedulerInterval = time.Minute
	shutdownTimeout   = 15 * time.Second
)

// Application wires configuration, databases, services and the command line.
type Application struct {
	cfg  config.Application
	deps *Dependencies
}

// NewCLI builds the timereport command line. Every command except migrate
// opens both databases and builds the full dependency graph.
func NewCLI() *cli.App {
	a := &Application{}
	return &cli.App{
		Name:  "timereport",
		Usage: "Redmine time entry reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   defaultConfigPath,
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"TIMEREPORT_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		After: func(c *cli.Context) error {
			if a.deps != nil {
				a.deps.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "pi-reports",
				Usage:  "send project hours to every financial PI",
				Flags:  reportFlags(),
				Action: a.reportAction((*reports.Service).SendPIReports),
			},
			{
				Name:  "team-reports",
				Usage: "send member hours to every team manager",
				Flags: append(reportFlags(), &cli.StringFlag{
					Name:  "manager_email",
					Usage: "only report the teams of the manager with this Redmine login",
				}),
				Action: a.reportAction((*reports.Service).SendTeamReports),
			},
			{
				Name:   "supervisor-reports",
				Usage:  "send supervised users' hours to every supervisor",
				Flags:  reportFlags(),
				Action: a.reportAction((*reports.Service).SendSupervisorReports),
			},
			{
				Name:  "daily-reminder",
				Usage: "remind every user to log yesterday's time",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "test_email", Usage: "send only to this address"},
					&cli.BoolFlag{Name: "print", Usage: "print messages instead of sending them"},
				},
				Action: a.reminderAction,
			},
			{
				Name:      "autolog-holidays",
				Usage:     "log holiday hours for every member of the holidays project",
				ArgsUsage: "[holiday name]",
				Action:    a.holidayAction,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations to the application database",
				Action: a.migrateAction,
			},
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the daily scheduler",
				Action: a.serveAction,
			},
		},
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "test_email", Usage: "send every report to this address"},
		&cli.BoolFlag{Name: "print", Usage: "print reports instead of sending them"},
		&cli.BoolFlag{Name: "monthly", Usage: "report the monthly period instead of the weekly one"},
		&cli.StringFlag{Name: "start_date", Usage: "explicit period start (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end_date", Usage: "explicit period end (YYYY-MM-DD)"},
		&cli.BoolFlag{Name: "zero_hours", Usage: "include users without logged hours"},
	}
}

// reportOptions maps command line flags onto report options.
func reportOptions(c *cli.Context) (reports.Options, error) {
	opts := reports.Options{
		Granularity:      period.Weekly,
		StartDate:        c.String("start_date"),
		EndDate:          c.String("end_date"),
		TestEmail:        c.String("test_email"),
		Print:            c.Bool("print"),
		IncludeZeroHours: c.Bool("zero_hours"),
		ManagerLogin:     c.String("manager_email"),
	}
	if c.Bool("monthly") {
		opts.Granularity = period.Monthly
	}
	if opts.TestEmail != "" && !recipient.Valid(opts.TestEmail) {
		return reports.Options{}, fmt.Errorf("%w: invalid --test_email %q", recipient.ErrRecipientResolution, opts.TestEmail)
	}
	if (opts.StartDate == "") != (opts.EndDate == "") {
		return reports.Options{}, fmt.Errorf("%w: --start_date and --end_date must be given together", period.ErrInvalidRange)
	}
	return opts, nil
}

func (a *Application) init(ctx context.Context) error {
	appDb, err := database.Open(a.cfg.Database)
	if err != nil {
		return err
	}
	redmineDb, err := database.OpenRedmine(a.cfg.Redmine)
	if err != nil {
		appDb.Close()
		return err
	}
	deps, err := BuildDependencies(ctx, appDb, redmineDb, a.cfg)
	if err != nil {
		redmineDb.Close()
		appDb.Close()
		return err
	}
	a.deps = deps
	return nil
}

type reportFunc func(s *reports.Service, ctx context.Context, opts reports.Options) (reports.Summary, error)

func (a *Application) reportAction(send reportFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		opts, err := reportOptions(c)
		if err != nil {
			return err
		}
		if err := a.init(c.Context); err != nil {
			return err
		}
		summary, err := send(a.deps.ReportService, c.Context, opts)
		if errors.Is(err, period.ErrNotDue) {
			log.Infof("%s: %v", c.Command.Name, err)
			return nil
		}
		if err != nil {
			return err
		}
		log.Infof("%s finished: %s", c.Command.Name, summary)
		return nil
	}
}

func (a *Application) reminderAction(c *cli.Context) error {
	opts, err := reportOptions(c)
	if err != nil {
		return err
	}
	if err := a.init(c.Context); err != nil {
		return err
	}
	summary, err := a.deps.ReminderService.SendDailyReminder(c.Context, reminderOptions(opts))
	if err != nil {
		return err
	}
	log.Infof("daily-reminder finished: %s", summary)
	return nil
}

func (a *Application) holidayAction(c *cli.Context) error {
	if err := a.init(c.Context); err != nil {
		return err
	}
	var (
		logged int
		err    error
	)
	if name := c.Args().First(); name != "" {
		logged, err = a.deps.HolidayService.LogByName(c.Context, name)
	} else {
		logged, err = a.deps.HolidayService.LogToday(c.Context)
	}
	if err != nil {
		return err
	}
	log.Infof("autolog-holidays finished: %d entries logged", logged)
	return nil
}

func (a *Application) migrateAction(c *cli.Context) error {
	if err := database.Migrate(a.cfg.Database); err != nil {
		return err
	}
	log.Infof("Database %s is up to date", a.cfg.Database.Name)
	return nil
}

func (a *Application) serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(a.cfg.Database); err != nil {
		return err
	}
	if err := a.init(ctx); err != nil {
		return err
	}

	r := mux.NewRouter()
	SetupMiddleware(r)
	RegisterRoutes(r, a.deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         a.cfg.Http.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if a.cfg.Schedule.Enabled {
		sched := scheduler.New(a.deps.Clock, a.cfg.Schedule.Hour, schedulerInterval, a.deps.ScheduledRuns)
		if err := sched.Select(a.cfg.Schedule.Jobs, ScheduledJobs(a.deps)); err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
