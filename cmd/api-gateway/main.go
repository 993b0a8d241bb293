package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
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

	_ "github.com/noah-isme/sma-timetable/api/swagger"
	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/migrations"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Greedy timetable allocation for groups, subjects, teachers, rooms and time slots.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Pinger{}
	metrics := service.NewMetricsService()
	validate := validator.New()

	var db *sqlx.DB
	if cfg.Scheduler.Source == config.SourcePostgres || cfg.Scheduler.Persist {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("postgres unavailable", zap.Error(err))
		}
		defer db.Close()
		checks["postgres"] = db.PingContext
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db, migrations.FS, logr); err != nil {
				logr.Fatal("schema migration failed", zap.Error(err))
			}
		}
	}

	var source service.CatalogSource = repository.NewCSVCatalogRepository(cfg.Scheduler.DataDir)
	if cfg.Scheduler.Source == config.SourcePostgres {
		source = repository.NewCatalogRepository(db)
	}

	var runs service.RunRepository
	if db != nil {
		runs = repository.NewTimetableRepository(db)
	}

	var resultCache service.ResultCache
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, result cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
			cacheRepo := repository.NewCacheRepository(redis.Cmdable(client), logr)
			resultCache = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
		}
	}

	timetableSvc := service.NewTimetableService(source, runs, resultCache, metrics, validate, logr, service.TimetableServiceConfig{
		Enabled:        cfg.Scheduler.Enabled,
		Source:         cfg.Scheduler.Source,
		Seed:           cfg.Scheduler.Seed,
		ResultTTL:      cfg.Scheduler.ResultTTL,
		TeachingPolicy: scheduler.ParseTeachingPolicy(cfg.Scheduler.TeachingPolicy),
		Persist:        cfg.Scheduler.Persist,
	})

	mux := jobs.NewMux()
	mux.Handle(service.JobTypeTimetableRun, timetableSvc.HandleJob)
	queue := jobs.NewQueue("timetable", mux.Dispatch, jobs.QueueConfig{
		Workers: cfg.Scheduler.Workers,
		Logger:  logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	timetableSvc.AttachQueue(queue)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage unavailable", zap.Error(err))
	}
	exportSvc := service.NewExportService(timetableSvc, exportStore, logr)

	go sweep(ctx, logr, cfg.Scheduler.ResultTTL, timetableSvc, exportSvc)

	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})

	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc, logr)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", metricsHandler.Summary)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/catalog/summary", timetableHandler.CatalogSummary)
	secured.GET("/timetables", timetableHandler.List)
	secured.POST("/timetables", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), timetableHandler.Generate)
	secured.GET("/timetables/:id", timetableHandler.Get)
	secured.GET("/timetables/:id/rows", timetableHandler.Rows)
	secured.GET("/timetables/:id/grid", timetableHandler.Grid)
	secured.GET("/timetables/:id/export", timetableHandler.Export)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("source", cfg.Scheduler.Source))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// sweep drops expired in-memory results and stale export files.
func sweep(ctx context.Context, logr *zap.Logger, ttl time.Duration, timetables *service.TimetableService, exports *service.ExportService) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := timetables.PruneExpired(); n > 0 {
				logr.Debug("expired timetable results dropped", zap.Int("count", n))
			}
			if removed, err := exports.Cleanup(ttl); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			} else if len(removed) > 0 {
				logr.Debug("stale exports removed", zap.Strings("files", removed))
			}
		}
	}
}
