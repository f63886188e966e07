package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-service/internal/api/http"
	"github.com/spec-kit/maintenance-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/config"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/scheduler"
	"github.com/spec-kit/maintenance-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	flags := persistence.NewRuntimeFlags(redis)
	cache := persistence.NewCache(redis)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	reportRepo := repository.NewReportRepository(pool)
	memberRepo := repository.NewTeamMemberRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	machineRepo := repository.NewMachineRepository(pool)
	partRepo := repository.NewPartRepository(pool)

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		ReportRepo:     reportRepo,
		MemberRepo:     memberRepo,
		UserRepo:       userRepo,
		StatsRepo:      statsRepo,
		Dispatcher:     dispatcher,
		StrictCapacity: cfg.Team.StrictCapacity,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		StatsRepo: statsRepo,
		Cache:     cache,
		Logger:    logger,
	})
	reportService := service.NewReportService(service.ReportDependencies{
		ReportRepo:  reportRepo,
		MachineRepo: machineRepo,
		UserRepo:    userRepo,
		Assignments: assignmentService,
		Stats:       statsService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		ReportRepo: reportRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(userRepo, tokenManager, cfg.Auth.BcryptCost)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, userRepo)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	orchestrator := scheduler.NewOrchestrator(cfg.Jobs.RunTimeout, logger, metrics)
	scheduler.RegisterJobs(orchestrator, scheduler.JobDependencies{
		Escalations: escalationService,
		Stats:       statsService,
		Reports:     reportService,
		ReportRepo:  reportRepo,
		PartRepo:    partRepo,
		Dispatcher:  dispatcher,
		Postgres:    pg,
		Redis:       redis,
		JobsCfg:     cfg.Jobs,
		ArchiveCfg:  cfg.Archive,
		Logger:      logger,
	})
	orchestrator.Start()
	defer orchestrator.Stop()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, flags, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Reports:        handlers.NewReportsHandler(reportService, assignmentService),
		Stats:          handlers.NewStatsHandler(statsService, assignmentService),
		Jobs:           handlers.NewJobsHandler(orchestrator, flags),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
