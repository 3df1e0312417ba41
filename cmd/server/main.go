// Package main is the entry point for the housing draw service.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: the membership engine and the group/user/draw models
// - Application: use case orchestration (Commands/Queries/event handlers)
// - Infrastructure: postgres persistence, redis cache, event bus, scheduler
// - Interface: the REST API
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meonBot/master-vesta-2/config"
	"github.com/meonBot/master-vesta-2/internal/application/command"
	"github.com/meonBot/master-vesta-2/internal/application/eventhandler"
	"github.com/meonBot/master-vesta-2/internal/application/query"
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/infrastructure/messaging"
	"github.com/meonBot/master-vesta-2/internal/infrastructure/persistence/postgres"
	"github.com/meonBot/master-vesta-2/internal/infrastructure/persistence/redis"
	"github.com/meonBot/master-vesta-2/internal/infrastructure/scheduler"
	"github.com/meonBot/master-vesta-2/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/meonBot/master-vesta-2/internal/interface/http"
	"github.com/meonBot/master-vesta-2/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.Default()
	logger.Info("starting",
		"app", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Postgres ────────────────────────────────────────────────────────────

	var conn *postgres.Connection
	if cfg.DatabaseURL != "" {
		conn, err = postgres.NewConnectionFromURL(ctx, cfg.DatabaseURL)
	} else {
		conn, err = postgres.NewConnection(ctx, cfg.Database)
	}
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// ── Redis (optional) ────────────────────────────────────────────────────

	var rosterCache group.Cache
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCache, err = redis.NewCache(cfg.Redis.Config)
		if err != nil {
			// The service runs without the cache; rosters just always
			// come from postgres.
			logger.Warn("redis unavailable, roster cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			rosterCache = redis.NewRosterCache(redisCache)
		}
	}

	// ── Event bus ───────────────────────────────────────────────────────────

	// The default registry already carries the Go and process collectors,
	// and promhttp.Handler serves it.
	registry := prometheus.DefaultRegisterer

	busCfg := messaging.DefaultConfig()
	busCfg.Logger = logging.Component("eventbus")
	busCfg.Registerer = registry
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer bus.Close()

	if rosterCache != nil {
		h := eventhandler.NewOnGroupChangedHandler(rosterCache, logging.Component("eventhandler"))
		if err := h.Register(bus); err != nil {
			return fmt.Errorf("registering cache invalidation handler: %w", err)
		}
	}
	audit := eventhandler.NewOnMembershipDestroyedHandler(logging.Component("audit"))
	if err := audit.Register(bus); err != nil {
		return fmt.Errorf("registering audit handler: %w", err)
	}

	// ── Domain and application layers ───────────────────────────────────────

	store := postgres.NewMembershipStore(conn, logging.Component("store"))
	engine := membership.NewEngine(store, membership.DefaultCleanup, logging.Component("engine"))

	groupRepo := postgres.NewGroupRepository(conn)
	userRepo := postgres.NewUserRepository(conn)
	drawRepo := postgres.NewDrawRepository(conn)

	deps := httpserver.Dependencies{
		CreateDraw:        command.NewCreateDrawHandler(drawRepo),
		AdvanceDraw:       command.NewAdvanceDrawHandler(drawRepo),
		RegisterUser:      command.NewRegisterUserHandler(drawRepo, userRepo),
		CreateGroup:       command.NewCreateGroupHandler(engine, groupRepo, bus),
		RequestMembership: command.NewRequestMembershipHandler(engine, bus),
		InviteMember:      command.NewInviteMemberHandler(engine, groupRepo, bus),
		AcceptMembership:  command.NewAcceptMembershipHandler(engine, groupRepo, store, bus),
		LeaveGroup:        command.NewLeaveGroupHandler(engine, groupRepo, bus),
		LockMembership:    command.NewLockMembershipHandler(engine, bus),
		BeginFinalizing:   command.NewBeginFinalizingHandler(engine, groupRepo, bus),
		AssignSuite:       command.NewAssignSuiteHandler(groupRepo),
		TeardownDraw:      command.NewTeardownDrawHandler(engine, groupRepo, drawRepo, bus, logging.Component("teardown")),

		GetGroup:           query.NewGetGroupHandler(groupRepo, userRepo, store, rosterCache, logging.Component("query")),
		GetUserMemberships: query.NewGetUserMembershipsHandler(userRepo, groupRepo, store),

		HealthChecks: healthChecks(conn, redisCache),
		Logger:       logging.Component("http"),
		Registerer:   registry,
	}

	// ── Scheduler ───────────────────────────────────────────────────────────

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(logging.Component("scheduler"))

		sweep := jobs.NewDisbandStaleGroupsJob(
			drawRepo, groupRepo, engine, bus,
			cfg.Scheduler.StaleGroupMaxAge,
			logging.Component("jobs"),
		)
		if err := sched.Register(sweep, scheduler.NewIntervalSchedule(cfg.Scheduler.StaleSweepInterval)); err != nil {
			return fmt.Errorf("registering stale sweep: %w", err)
		}

		reconcile := jobs.NewReconcileCountersJob(
			drawRepo, groupRepo, store, store,
			logging.Component("jobs"),
		)
		if err := sched.Register(reconcile, scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)); err != nil {
			return fmt.Errorf("registering counter reconciliation: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Warn("scheduler stop failed", "error", err)
			}
		}()
	}

	// ── HTTP server ─────────────────────────────────────────────────────────

	server := httpserver.NewServer(cfg.HTTP, deps)
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func healthChecks(conn *postgres.Connection, cache *redis.Cache) map[string]httpserver.HealthCheckFunc {
	checks := map[string]httpserver.HealthCheckFunc{
		"postgres": conn.Ping,
	}
	if cache != nil {
		checks["redis"] = cache.Ping
	}
	return checks
}
