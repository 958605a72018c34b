package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tramites-gateway/api/swagger"
	"github.com/noah-isme/tramites-gateway/internal/backend"
	"github.com/noah-isme/tramites-gateway/internal/handler"
	internalmiddleware "github.com/noah-isme/tramites-gateway/internal/middleware"
	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/repository"
	"github.com/noah-isme/tramites-gateway/internal/service"
	"github.com/noah-isme/tramites-gateway/pkg/cache"
	"github.com/noah-isme/tramites-gateway/pkg/config"
	"github.com/noah-isme/tramites-gateway/pkg/database"
	"github.com/noah-isme/tramites-gateway/pkg/export"
	"github.com/noah-isme/tramites-gateway/pkg/jobs"
	"github.com/noah-isme/tramites-gateway/pkg/logger"
	corsmiddleware "github.com/noah-isme/tramites-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tramites-gateway/pkg/middleware/requestid"
	"github.com/noah-isme/tramites-gateway/pkg/storage"
)

// @title Trámites Gateway API
// @version 1.0.0
// @description Workflow gateway between the trámites dashboard and the authoritative backend.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	checks := map[string]handler.Pinger{}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			checks["redis"] = redisPinger(redisClient)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.CatalogTTL, logr, cfg.Cache.Enabled)

	journal, closeJournal := openJournal(cfg, logr, checks)
	defer closeJournal()

	loc := cfg.SLA.Location()
	client := backend.NewClient(cfg.Backend,
		backend.WithLogger(logr),
		backend.WithObserver(metricsSvc),
		backend.WithLocation(loc),
	)

	worklist := repository.NewWorklistRepository(repository.WithSessionIdleTTL(cfg.Worklist.SessionIdleTTL))
	policy := service.NewTransitionPolicy(cfg.Workflow)
	slaCalc := service.NewSlaCalculator(cfg.SLA)
	catalogSvc := service.NewCatalogService(client, cacheSvc, cfg.Cache.CatalogTTL, logr)

	var reconciler *service.ReconciliationService
	reconcileOpts := []service.ReconciliationOption{service.WithReconcileMetrics(metricsSvc)}
	var reconcileQueue *jobs.Queue
	if !cfg.Reconcile.Sync {
		reconcileQueue = jobs.NewQueue("reconcile-assigned-by", func(ctx context.Context, job jobs.Job) error {
			return reconciler.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Reconcile.Workers,
			BufferSize: cfg.Reconcile.BufferSize,
			Logger:     logr,
		})
		reconcileOpts = append(reconcileOpts, service.WithReconcileQueue(reconcileQueue))
	}
	reconciler = service.NewReconciliationService(client, worklist, logr, reconcileOpts...)

	tramiteSvc := service.NewTramiteService(client, worklist, policy, slaCalc, catalogSvc, logr,
		service.WithTramiteReconciler(reconciler),
		service.WithTramiteMetrics(metricsSvc),
		service.WithDebtLockAfterEvidence(cfg.Workflow.LockDebtAfterEvidence),
	)
	assignmentSvc := service.NewAssignmentService(client, worklist, journal, catalogSvc, tramiteSvc, policy, logr,
		service.WithAssignmentMetrics(metricsSvc),
	)
	finalizationSvc := service.NewFinalizationService(client, worklist, tramiteSvc, policy, cfg.Evidence, metricsSvc, logr)
	evidenceSvc := service.NewEvidenceService(client, storage.NewHandleSigner(cfg.Evidence.SigningSecret, cfg.Evidence.HandleTTL), metricsSvc, logr)
	defer evidenceSvc.Close()
	exportSvc := service.NewExportService(tramiteSvc, service.ExportConfig{
		MaxRows:  cfg.Export.MaxRows,
		PDFTitle: cfg.Export.PDFTitle,
		Location: loc,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter("Tramites"))
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Leeway: 30 * time.Second})

	validate := validator.New()
	tramiteHandler := handler.NewTramiteHandler(tramiteSvc, exportSvc, validate)
	workflowHandler := handler.NewWorkflowHandler(assignmentSvc, finalizationSvc, validate)
	evidenceHandler := handler.NewEvidenceHandler(evidenceSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	sessionHandler := handler.NewSessionHandler(reconciler, tramiteSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Evidence.MaxFileSizeBytes + 1<<20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	leaders := internalmiddleware.RequireRoles(models.RoleLeader, models.RoleAdmin)
	workers := internalmiddleware.RequireRoles(models.RoleLeader, models.RoleAdmin, models.RoleAnalyst)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(authSvc), internalmiddleware.WithResponseMeta())
	{
		api.GET("/tramites", tramiteHandler.Search)
		api.GET("/tramites/export", leaders, tramiteHandler.Export)
		api.GET("/tramites/:folio", tramiteHandler.Detail)
		api.PATCH("/tramites/:folio/type", leaders, tramiteHandler.ChangeType)
		api.PATCH("/tramites/:folio/status", tramiteHandler.ChangeStatus)
		api.PATCH("/tramites/:folio/debt", workers, tramiteHandler.EditDebt)
		api.POST("/tramites/:folio/assign", leaders, workflowHandler.Assign)
		api.GET("/tramites/:folio/assignment", leaders, workflowHandler.AssignmentStatus)
		api.POST("/tramites/:folio/assignment/revert", leaders, workflowHandler.RevertAssignment)
		api.POST("/tramites/:folio/finalize", workers, workflowHandler.Finalize)
		api.POST("/tramites/:folio/evidence", evidenceHandler.Open)
		api.GET("/evidence/:token", evidenceHandler.Download)
		api.GET("/catalogs/types", catalogHandler.Types)
		api.GET("/catalogs/analysts", leaders, catalogHandler.Analysts)
		api.POST("/catalogs/refresh", internalmiddleware.RequireRoles(models.RoleAdmin), catalogHandler.Refresh)
		api.DELETE("/session", sessionHandler.End)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if reconcileQueue != nil {
		reconcileQueue.Start(ctx)
		defer reconcileQueue.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
	logr.Info("server stopped")
}

// openJournal uses postgres when enabled and reachable, the in-memory journal otherwise.
func openJournal(cfg *config.Config, logr *zap.Logger, checks map[string]handler.Pinger) (service.AssignmentJournal, func()) {
	if !cfg.Database.Enabled {
		return repository.NewMemoryAssignmentJournal(), func() {}
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Warn("journal database unavailable, using in-memory journal", zap.Error(err))
		return repository.NewMemoryAssignmentJournal(), func() {}
	}
	checks["journal"] = dbPinger(db)
	return repository.NewAssignmentOperationRepository(db), func() { _ = db.Close() }
}

func redisPinger(client *redis.Client) handler.Pinger {
	return pingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
}

func dbPinger(db *sqlx.DB) handler.Pinger {
	return pingFunc(db.PingContext)
}
