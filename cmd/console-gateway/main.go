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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-console/api/swagger"
	"github.com/noah-isme/sma-console/internal/admission"
	"github.com/noah-isme/sma-console/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-console/internal/middleware"
	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/repository"
	"github.com/noah-isme/sma-console/internal/service"
	"github.com/noah-isme/sma-console/internal/upstream"
	"github.com/noah-isme/sma-console/pkg/cache"
	"github.com/noah-isme/sma-console/pkg/config"
	"github.com/noah-isme/sma-console/pkg/database"
	"github.com/noah-isme/sma-console/pkg/jobs"
	"github.com/noah-isme/sma-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-console/pkg/middleware/requestid"
)

// @title SMA Console Gateway
// @version 1.0.0
// @description Server-side state for the school administration console list screens and admission wizard.
// @BasePath /api/v1
// @schemes http https
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

	metricsSvc := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, profiles will not be cached", zap.Error(err))
	}
	profileRepo := repository.NewProfileRepository(redisClient, logr)
	defer profileRepo.Close() //nolint:errcheck
	var profileStore service.ProfileStore
	if redisClient != nil {
		profileStore = profileRepo
		checks["redis"] = profileRepo.Ping
	}

	var db *sqlx.DB
	if cfg.Audit.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect audit database", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		checks["postgres"] = db.PingContext
	}

	var auditWriter service.AuditWriter
	var auditQueue *jobs.Queue
	if db != nil {
		auditRepo := repository.NewAuditRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logr.Fatal("failed to prepare audit schema", zap.Error(err))
		}
		auditWriter = auditRepo
	}
	auditSvc := service.NewAuditService(auditWriter, metricsSvc, logr, cfg.Audit.Enabled)
	if auditSvc.Enabled() {
		auditQueue = jobs.NewQueue("audit", auditSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Audit.Workers,
			BufferSize: cfg.Audit.BufferSize,
			MaxRetries: cfg.Audit.MaxRetries,
			Logger:     logr,
		})
		auditSvc.UseQueue(auditQueue)
		// workers outlive the signal context so Stop can drain buffered entries
		auditQueue.Start(context.Background())
	}

	registry := models.NewEntityRegistry(models.DefaultEntities(), cfg.Upstream.LegacyDelete)
	client := upstream.New(upstream.Options{
		BaseURL:     cfg.Upstream.BaseURL,
		Timeout:     cfg.Upstream.Timeout,
		CSRFEnabled: cfg.Upstream.CSRFEnabled,
		Logger:      logr,
		Observer:    metricsSvc,
	})

	profileSvc := service.NewProfileService(cfg.JWT.Secret, profileStore, cfg.Console.ProfileTTL, metricsSvc, logr)
	sessionSvc := service.NewSessionService(registry, client, profileSvc, auditSvc, metricsSvc, service.SessionConfig{
		PageSize:       cfg.Console.PageSize,
		NoticeTTL:      cfg.Console.NoticeTTL,
		IdleTTL:        cfg.Console.SessionTTL,
		SweepInterval:  cfg.Console.SweepInterval,
		LookupDebounce: cfg.Console.LookupDebounce,
	}, logr)
	go sessionSvc.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	listingHandler := handler.NewListingHandler(logr)
	resolveHandler := handler.NewResolveHandler(registry)
	noticeHandler := handler.NewNoticeHandler(admission.NewValidator())
	admissionHandler := handler.NewAdmissionHandler(logr)
	sessionHandler := handler.NewSessionHandler(sessionSvc, auditSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(profileSvc))
	api.GET("/resolve/:entity/:token", resolveHandler.Resolve)

	console := api.Group("")
	console.Use(internalmiddleware.Session(sessionSvc))

	lists := console.Group("/lists/:entity")
	lists.GET("", listingHandler.Show)
	lists.PUT("/search", listingHandler.SetSearch)
	lists.POST("/search/commit", listingHandler.CommitSearch)
	lists.POST("/filters/open", listingHandler.OpenFilters)
	lists.PUT("/filters/draft", listingHandler.SetFilter)
	lists.POST("/filters/apply", listingHandler.ApplyFilters)
	lists.POST("/filters/close", listingHandler.CloseFilters)
	lists.POST("/filters/reset", listingHandler.ResetFilters)
	lists.POST("/pages/:page", listingHandler.GoToPage)
	lists.POST("/refresh", listingHandler.Refresh)
	lists.POST("/rows/:id/delete", listingHandler.RequestDelete)
	lists.POST("/delete/confirm", listingHandler.ConfirmDelete)
	lists.POST("/delete/cancel", listingHandler.CancelDelete)
	lists.GET("/export.csv", listingHandler.Export)

	console.POST("/navigation", noticeHandler.Navigate)
	console.GET("/notice", noticeHandler.Current)
	console.DELETE("/notice", noticeHandler.Dismiss)

	wizard := console.Group("/admissions")
	wizard.GET("/wizard", admissionHandler.Show)
	wizard.PUT("/wizard/steps/:step", admissionHandler.SaveStep)
	wizard.POST("/wizard/back", admissionHandler.Back)
	wizard.POST("/wizard/goto/:step", admissionHandler.GoTo)
	wizard.GET("/wizard/preview.pdf", admissionHandler.Preview)
	wizard.POST("/wizard/submit", admissionHandler.Submit)
	wizard.GET("/parents", admissionHandler.Parents)

	console.GET("/session", sessionHandler.Me)
	console.DELETE("/session", sessionHandler.End)
	console.GET("/session/deletions", sessionHandler.Deletions)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL, "audit", auditSvc.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	sessionSvc.Shutdown()
	if auditQueue != nil {
		auditQueue.Stop()
	}
}
