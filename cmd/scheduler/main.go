package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/auth"
	"github.com/Lowii-3dy/campus-sched/internal/calendar"
	"github.com/Lowii-3dy/campus-sched/internal/config"
	"github.com/Lowii-3dy/campus-sched/internal/events"
	httptransport "github.com/Lowii-3dy/campus-sched/internal/http"
	"github.com/Lowii-3dy/campus-sched/internal/jobs"
	"github.com/Lowii-3dy/campus-sched/internal/persistence/sqlite"
	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		slog.Error("scheduler failed", "error", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:           "campus-sched",
		Usage:          "Campus event scheduling service",
		Writer:         out,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"SCHEDULER_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			tokenCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Apply migrations and run the HTTP API with its maintenance jobs.",
		Action: func(c *cli.Context) error {
			logger := newLogger(c.App.Writer, c.String("log-level"))
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return serve(c.Context, cfg, logger)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations and exit.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "status", Usage: "Only report applied and pending migrations."},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c.App.Writer, c.String("log-level"))
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return runMigrations(c.Context, cfg.SQLiteDSN, c.Bool("status"), c.App.Writer, logger)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a bearer token for a campus user.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: "User identifier carried by the token."},
			&cli.StringFlag{Name: "role", Value: string(approval.RoleStudent), Usage: "student, teacher or admin"},
			&cli.BoolFlag{Name: "can-create-schedules", Usage: "Allow the user to create schedules."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			tokens, err := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL, time.Now)
			if err != nil {
				return err
			}
			token, expiresAt, err := tokens.GenerateToken(application.Principal{
				UserID:             strings.TrimSpace(c.String("user")),
				Role:               approval.ParseRole(c.String("role")),
				CanCreateSchedules: c.Bool("can-create-schedules"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			fmt.Fprintf(c.App.Writer, "expires_at: %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func runMigrations(ctx context.Context, dsn string, statusOnly bool, out io.Writer, logger *slog.Logger) error {
	storage, err := sqlite.OpenWithLogger(dsn, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if !statusOnly {
		if err := storage.Migrate(ctx); err != nil {
			return err
		}
	}
	status, err := storage.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}
	current := status.CurrentVersion
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(out, "current version: %s\n", current)
	for _, pending := range status.Pending {
		fmt.Fprintf(out, "pending: %s %s\n", pending.Version, pending.Description)
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	storage, err := sqlite.OpenWithLogger(cfg.SQLiteDSN, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		return err
	}

	var publisher application.EventPublisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer nats.Close()
		publisher = nats
	} else {
		logger.Info("SCHEDULER_NATS_URL not set, domain events are not published")
	}

	svc, err := newService(cfg, storage, publisher, time.Now, logger)
	if err != nil {
		return err
	}
	if err := svc.facilities.Refresh(ctx); err != nil {
		logger.Warn("initial facility index build failed", "error", err)
	}
	svc.jobs.Start(ctx)
	defer svc.jobs.Stop()

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening", "addr", server.Addr, "timezone", cfg.Timezone)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// service holds the wired application. Storage and the publisher stay owned
// by the caller.
type service struct {
	handler       http.Handler
	jobs          *jobs.Runner
	facilities    *application.FacilityCache
	notifications *application.NotificationService
}

func newService(cfg config.Config, storage *sqlite.Storage, publisher application.EventPublisher, now func() time.Time, logger *slog.Logger) (*service, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	engineCfg := cfg.Engine
	engineCfg.Normalize()

	tokens, err := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL, now)
	if err != nil {
		return nil, err
	}

	idGenerator := uuid.NewString
	schedules := newScheduleRepositoryAdapter(storage)
	eventStore := newEventRepositoryAdapter(storage, now)
	approvals := newApprovalStoreAdapter(storage)
	notificationRepo := newNotificationRepositoryAdapter(storage)

	engine := recurrence.NewEngine(loc, engineCfg.MaxOccurrences)
	suggester := scheduler.NewSuggester(scheduler.SuggestConfig{
		Step:         engineCfg.Suggestions.Step,
		HorizonDays:  engineCfg.Suggestions.HorizonDays,
		Limit:        engineCfg.Suggestions.Limit,
		DayStartHour: engineCfg.Suggestions.DayStartHour,
		DayEndHour:   engineCfg.Suggestions.DayEndHour,
	}, loc)
	facilities := application.NewFacilityCache(eventStore, engineCfg.FacilityCacheTTL, now)

	scheduleService := application.NewScheduleServiceWithLogger(schedules, facilities, idGenerator, now, logger)
	eventService := application.NewEventService(application.EventServiceConfig{
		Schedules:   schedules,
		Events:      eventStore,
		Source:      eventStore,
		Intervals:   eventStore,
		Publisher:   publisher,
		Facilities:  facilities,
		Suggester:   suggester,
		Recurrence:  engine,
		Location:    loc,
		IDGenerator: idGenerator,
		Now:         now,
		Logger:      logger,
	})
	schedulingService := application.NewSchedulingService(application.SchedulingServiceConfig{
		Schedules:  schedules,
		Events:     eventStore,
		Source:     eventStore,
		Facilities: facilities,
		Suggester:  suggester,
		Recurrence: engine,
		Location:   loc,
		Logger:     logger,
	})
	notificationService := application.NewNotificationService(notificationRepo, now, logger)
	approvalService := application.NewApprovalService(application.ApprovalServiceConfig{
		Schedules:   schedules,
		Events:      eventStore,
		Approvals:   approvals,
		Source:      eventStore,
		Notifier:    notificationService,
		Publisher:   publisher,
		Facilities:  facilities,
		Suggester:   suggester,
		IDGenerator: idGenerator,
		Now:         now,
		Logger:      logger,
	})
	calendarService := calendar.NewService(scheduleService, eventService, engine, loc, now, logger)

	runner := jobs.NewRunner(logger, loc)
	if err := runner.Add(jobs.FacilityRefreshJob(engineCfg.Jobs.FacilityRefresh, facilities)); err != nil {
		return nil, err
	}
	if err := runner.Add(jobs.NotificationPurgeJob(engineCfg.Jobs.NotificationPurge, notificationService, engineCfg.Jobs.NotificationRetention)); err != nil {
		return nil, err
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules:     httptransport.NewScheduleHandler(scheduleService, logger),
		Events:        httptransport.NewEventHandler(eventService, logger),
		Scheduling:    httptransport.NewSchedulingHandler(schedulingService, logger),
		Approvals:     httptransport.NewApprovalHandler(approvalService, logger),
		Notifications: httptransport.NewNotificationHandler(notificationService, logger),
		Calendar:      httptransport.NewCalendarHandler(calendarService, logger),
		Session:       httptransport.RequireSession(tokens, logger),
		Health:        storage.Ping,
		Middleware:    []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &service{
		handler:       handler,
		jobs:          runner,
		facilities:    facilities,
		notifications: notificationService,
	}, nil
}
