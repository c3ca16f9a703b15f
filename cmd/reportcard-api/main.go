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

	"github.com/edubase/reportcard-api/internal/handler"
	"github.com/edubase/reportcard-api/internal/models"
	"github.com/edubase/reportcard-api/internal/repository"
	"github.com/edubase/reportcard-api/internal/service"
	"github.com/edubase/reportcard-api/pkg/cache"
	"github.com/edubase/reportcard-api/pkg/config"
	"github.com/edubase/reportcard-api/pkg/database"
	"github.com/edubase/reportcard-api/pkg/jobs"
	"github.com/edubase/reportcard-api/pkg/logger"
	corsmiddleware "github.com/edubase/reportcard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edubase/reportcard-api/pkg/middleware/requestid"
)

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	reportCardRepo := repository.NewReportCardRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	termRepo := repository.NewTermRepository(db)
	examRepo := repository.NewExamRepository(db)
	classSubjectRepo := repository.NewClassSubjectRepository(db)
	studentSubjectRepo := repository.NewStudentSubjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	resolver := service.NewSubjectResolverService(classSubjectRepo, studentSubjectRepo, studentRepo, classRepo, logr)
	ranker := service.NewRankingService(reportCardRepo, models.RankingBasis(cfg.Grading.RankingBasis), metrics, logr)

	weights := models.SystemWeights{}
	if cfg.Grading.TestWeight > 0 {
		weights.TestWeight = &cfg.Grading.TestWeight
	}
	if cfg.Grading.ExamWeight > 0 {
		weights.ExamWeight = &cfg.Grading.ExamWeight
	}

	reportCards := service.NewReportCardService(
		reportCardRepo,
		examRepo,
		studentRepo,
		classRepo,
		termRepo,
		userRepo,
		resolver,
		ranker,
		auditRepo,
		cacheSvc,
		metrics,
		weights,
		cfg.Grading.DefaultScale,
		validate,
		logr,
	)
	maintenance := service.NewMaintenanceService(reportCardRepo, examRepo, reportCards, ranker, termRepo, logr)
	exports := service.NewExportService(reportCards, logr)

	worker := service.NewMaintenanceWorker(maintenance, logr)
	queue := jobs.NewQueue("maintenance", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Maintenance.Workers,
		BufferSize: cfg.Maintenance.BufferSize,
		MaxRetries: cfg.Maintenance.MaxRetries,
		RetryDelay: cfg.Maintenance.RetryDelay,
		Logger:     logr,
	})
	scheduler := service.NewMaintenanceScheduler(queue, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		ReportCards:   handler.NewReportCardHandler(reportCards, exports),
		Maintenance:   handler.NewMaintenanceHandler(maintenance, scheduler),
		ClassSubjects: handler.NewClassSubjectHandler(resolver, scheduler),
		Metrics:       handler.NewMetricsHandler(metrics),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown", "error", err)
	}
}
