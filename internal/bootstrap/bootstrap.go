// Package bootstrap assembles stores, services and workers from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

const sweepLockKey = "helpdesk:sla:sweep"

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Postgres *persistence.Postgres
	SQLite   *persistence.SQLite
	Redis    *persistence.Redis
	Repos    repository.Set

	Registry   *prometheus.Registry
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher

	Tickets  *service.TicketService
	Users    *service.UserService
	Sweeper  *service.BreachSweeper
	Stats    *service.StatsService
	Activity *service.ActivityService
	Tokens   *auth.TokenManager
}

// New opens the configured store and builds every service on top of it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	if err := app.openStore(ctx); err != nil {
		return nil, err
	}
	app.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = observability.NewMetrics(app.Registry)
	app.Dispatcher = events.NewInMemoryDispatcher()

	app.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:   app.Repos.Tickets,
		CommentRepo:  app.Repos.Comments,
		HistoryRepo:  app.Repos.History,
		UserRepo:     app.Repos.Users,
		Dispatcher:   app.Dispatcher,
		Metrics:      app.Metrics,
		Logger:       logger.Named("tickets"),
		DefaultLimit: cfg.List.DefaultLimit,
		MaxLimit:     cfg.List.MaxLimit,
	})
	app.Users = service.NewUserService(app.Repos.Users, logger.Named("users"))
	app.Sweeper = service.NewBreachSweeper(service.SweepDependencies{
		TicketRepo:  app.Repos.Tickets,
		HistoryRepo: app.Repos.History,
		Dispatcher:  app.Dispatcher,
		Metrics:     app.Metrics,
		Logger:      logger.Named("sla"),
	})
	app.Stats = service.NewStatsService(app.Repos.Tickets, logger.Named("stats"))
	app.Activity = service.NewActivityService(app.Dispatcher, app.Metrics, logger.Named("activity"))
	app.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	worker.StartActivityWorker(app.Activity)
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, a.Config.Postgres, a.Logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if a.Config.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), a.Config.Postgres.MigrationsDir, a.Logger); err != nil {
				pg.Close()
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		a.Postgres = pg
		a.Repos = repository.NewPostgresSet(pg.PoolHandle())
	case config.DriverSQLite:
		db, err := persistence.OpenSQLite(ctx, a.Config.SQLite.Path, a.Logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.SQLite = db
		a.Repos = repository.NewSQLiteSet(db.DB)
	default:
		return fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
	return nil
}

// HealthDependencies lists what readiness should ping. Redis is only listed
// when configured.
func (a *App) HealthDependencies() []handlers.Dependency {
	var deps []handlers.Dependency
	if a.Postgres != nil {
		deps = append(deps, handlers.Dependency{Name: "postgres", Pinger: a.Postgres})
	}
	if a.SQLite != nil {
		deps = append(deps, handlers.Dependency{Name: "sqlite", Pinger: a.SQLite})
	}
	if a.Redis.Enabled() {
		deps = append(deps, handlers.Dependency{Name: "redis", Pinger: a.Redis})
	}
	return deps
}

// MetricsHandler serves the registry in the Prometheus text format.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}

// SweepWorker builds the periodic sweep loop, locked through Redis when it
// is configured.
func (a *App) SweepWorker() *worker.SweepWorker {
	lock := persistence.NewRedisLock(a.Redis, sweepLockKey, a.Config.SLA.SweepLockTTL())
	return worker.NewSweepWorker(a.Sweeper, lock, a.Config.SLA.SweepInterval(), a.Logger)
}

// Close releases every store handle.
func (a *App) Close() {
	a.Redis.Close()
	a.Postgres.Close()
	a.SQLite.Close()
}
