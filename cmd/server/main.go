package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	internalserver "github.com/costline/costline/internal/server"
	"github.com/costline/costline/modules/estimation/domain/importjob"
	"github.com/costline/costline/modules/estimation/domain/wbs"
	"github.com/costline/costline/modules/estimation/infrastructure/persistence"
	"github.com/costline/costline/modules/estimation/infrastructure/taskjson"
	"github.com/costline/costline/modules/estimation/presentation/controllers"
	"github.com/costline/costline/modules/estimation/services"
	"github.com/costline/costline/pkg/composables"
	"github.com/costline/costline/pkg/configuration"
	"github.com/costline/costline/pkg/eventbus"
	"github.com/costline/costline/pkg/metrics"
	"github.com/costline/costline/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if err := runMigrations(conf); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	poolCtx, cancelPool := context.WithTimeout(context.Background(), time.Second*5)
	defer cancelPool()
	pool, err := pgxpool.New(poolCtx, conf.Database.ConnectionString())
	if err != nil {
		logger.WithError(err).Fatal("failed to create database pool")
	}
	defer pool.Close()

	publisher := eventbus.NewEventPublisher(logger)
	registerEventLogging(publisher, logger)

	projectRepo := persistence.NewProjectRepository()
	wbsRepo := persistence.NewWBSRepository()
	assignmentRepo := persistence.NewAssignmentRepository()
	riskRepo := persistence.NewRiskRepository()
	rollupRepo := persistence.NewRollupRepository()
	auditRepo := persistence.NewAuditRepository()
	jobRepo := persistence.NewImportJobRepository()

	rollupService := services.NewRollupService(
		wbsRepo, projectRepo, rollupRepo, assignmentRepo, riskRepo, conf.Estimate.ZScore,
	)
	projectService := services.NewProjectService(projectRepo, publisher)
	assignmentService := services.NewAssignmentService(assignmentRepo, wbsRepo, rollupService, publisher)
	riskService := services.NewRiskService(riskRepo, wbsRepo, rollupService, publisher)
	approvalService := services.NewApprovalService(wbsRepo, assignmentRepo, auditRepo, publisher)

	// Import workers outlive their originating request; they operate on a
	// background context that carries the pool.
	workerCtx := composables.WithPool(context.Background(), pool)
	importService := services.NewImportService(
		jobRepo, projectRepo, wbsRepo, assignmentRepo, rollupService,
		taskjson.New(), publisher, workerCtx, logger,
		services.ImportConfig{
			UploadsPath:   conf.UploadsPath,
			MaxUploadSize: conf.Import.MaxUploadSize,
			MaxDropRatio:  conf.Import.MaxDropRatio,
			Workers:       conf.Import.Workers,
		},
	)

	controllerList := []server.Controller{
		controllers.NewHealthController(pool),
		controllers.NewProjectController(projectService, rollupService),
		controllers.NewWBSController(rollupService, assignmentService, riskService, approvalService),
		controllers.NewImportController(importService, conf.Import.MaxUploadSize),
	}
	if conf.Prometheus.Enabled {
		controllerList = append(controllerList, metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	serverInstance, err := internalserver.Default(&internalserver.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Pool:          pool,
		Controllers:   controllerList,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create server")
	}

	httpServer := &http.Server{
		Addr:    conf.SocketAddress,
		Handler: serverInstance.Handler(),
	}

	go func() {
		logger.Infof("listening on %s", conf.SocketAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Second*30)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown failed")
	}
	importService.Shutdown()
	configuration.Use().Unload()
}

// registerEventLogging keeps an audit trail of domain events in the
// application log even when nothing else subscribes.
func registerEventLogging(bus eventbus.EventBus, logger *logrus.Logger) {
	bus.Subscribe(func(e *importjob.CreatedEvent) {
		logger.WithField("job_id", e.Result.ID).Info("import job created")
	})
	bus.Subscribe(func(e *importjob.CompletedEvent) {
		logger.WithField("job_id", e.Result.ID).Info("import job completed")
	})
	bus.Subscribe(func(e *importjob.FailedEvent) {
		logger.WithField("job_id", e.Result.ID).Warn("import job failed")
	})
	bus.Subscribe(func(e *importjob.CancelledEvent) {
		logger.WithField("job_id", e.Result.ID).Info("import job cancelled")
	})
	bus.Subscribe(func(e *wbs.TreeReplacedEvent) {
		logger.WithFields(logrus.Fields{"project_id": e.ProjectID, "nodes": e.NodeCount}).Info("wbs tree replaced")
	})
	bus.Subscribe(func(e *wbs.ApprovalTransitionedEvent) {
		logger.WithFields(logrus.Fields{
			"wbs_id": e.Node.ID,
			"action": e.Action,
			"from":   e.FromStatus,
			"to":     e.Node.ApprovalStatus,
		}).Info("approval transition")
	})
}

func runMigrations(conf *configuration.Configuration) error {
	db, err := sql.Open("postgres", conf.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, conf.MigrationsDir)
}
