package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edupay/institute-ledger-api/api/swagger"
	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/events"
	"github.com/edupay/institute-ledger-api/internal/handler"
	"github.com/edupay/institute-ledger-api/internal/middleware"
	"github.com/edupay/institute-ledger-api/internal/models"
	"github.com/edupay/institute-ledger-api/internal/repository"
	"github.com/edupay/institute-ledger-api/internal/service"
	"github.com/edupay/institute-ledger-api/pkg/cache"
	"github.com/edupay/institute-ledger-api/pkg/config"
	"github.com/edupay/institute-ledger-api/pkg/database"
	"github.com/edupay/institute-ledger-api/pkg/logger"
	corsmiddleware "github.com/edupay/institute-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edupay/institute-ledger-api/pkg/middleware/requestid"
	"github.com/edupay/institute-ledger-api/pkg/storage"
)

// @title Institute Ledger API
// @version 1.0.0
// @description Institute management ledger: courses, students, enrollments and financial grants
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, cache and events disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	instituteRepo := repository.NewInstituteRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	grantRepo := repository.NewGrantRepository(db)

	// Event sink: Redis pub/sub behind an async queue, or a no-op.
	var sink events.Sink = events.NopSink{}
	var asyncSink *events.AsyncSink
	if cfg.Events.Enabled && redisClient != nil {
		asyncSink = events.NewAsyncSink(events.NewRedisSink(redisClient, cfg.Events.Channel), events.AsyncConfig{
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.BufferSize,
			Logger:     logr,
		})
		asyncSink.Start(ctx)
		defer asyncSink.Stop()
		sink = asyncSink
	}

	// Services.
	metricsSvc := service.NewMetricsService()
	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Summary.CacheTTL, logr, cfg.Summary.Enabled)
	}

	policy := authz.Default()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	instituteSvc := service.NewInstituteService(instituteRepo, policy, cacheSvc, sink, nil, logr)
	courseSvc := service.NewCourseService(courseRepo, instituteRepo, policy, sink, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, sink, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, instituteRepo, policy, metricsSvc, sink, nil, logr)
	grantSvc := service.NewGrantService(grantRepo, studentRepo, instituteRepo, policy, metricsSvc, sink, nil, logr)
	statementSvc := service.NewStatementService(enrollmentRepo, grantRepo, instituteRepo, instituteRepo, policy, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		archive, err := storage.NewArchive(cfg.Exports.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export archive", "error", err)
		}
		exportSvc = service.NewExportService(statementSvc, archive, storage.NewTokenSigner(cfg.JWT.Secret, cfg.Exports.URLTTL), logr)
		go exportSvc.SweepLoop(ctx, cfg.Exports.URLTTL, time.Hour)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	instituteHandler := handler.NewInstituteHandler(instituteSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	grantHandler := handler.NewGrantHandler(grantSvc)
	statementHandler := handler.NewStatementHandler(statementSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	students := api.Group("/students")
	{
		students.GET("/:id", studentHandler.Get)
		students.POST("", middleware.JWT(authSvc), studentHandler.Create)
		students.GET("", middleware.JWT(authSvc), middleware.RBAC(models.RoleAdmin), studentHandler.List)
		students.POST("/:id/deposits", middleware.JWT(authSvc), studentHandler.Fund)
	}

	institutes := api.Group("/institutes")
	{
		institutes.POST("", middleware.JWT(authSvc), instituteHandler.Create)
		institutes.GET("/:id", instituteHandler.Get)

		// Privileged routes accept either a bearer token or the
		// institute capability header; the services decide.
		privileged := institutes.Group("", middleware.OptionalJWT(authSvc))
		{
			privileged.GET("/:id/summary", instituteHandler.Summary)
			privileged.POST("/:id/admins", instituteHandler.AddAdmin)
			privileged.GET("/:id/admins", instituteHandler.ListAdmins)
			privileged.POST("/:id/withdrawals", instituteHandler.Withdraw)
			privileged.GET("/:id/withdrawals", instituteHandler.ListWithdrawals)

			privileged.POST("/:id/courses", courseHandler.Create)
			privileged.GET("/:id/courses", courseHandler.List)
			privileged.GET("/:id/courses/:courseID", courseHandler.Get)
			privileged.PUT("/:id/courses/:courseID", courseHandler.Update)
			privileged.DELETE("/:id/courses/:courseID", courseHandler.Delete)

			privileged.GET("/:id/enrollment-requests", enrollmentHandler.ListRequests)
			privileged.DELETE("/:id/enrollment-requests/:requestID", enrollmentHandler.PruneRequest)
			privileged.GET("/:id/enrollments", enrollmentHandler.List)

			privileged.GET("/:id/grants", grantHandler.ListRequests)
			privileged.GET("/:id/grants/:grantID", grantHandler.GetRequest)
			privileged.POST("/:id/grants/:grantID/approval", grantHandler.Approve)
			privileged.GET("/:id/grant-approvals", grantHandler.ListApprovals)

			privileged.GET("/:id/statement", statementHandler.Entries)
			if cfg.Exports.Enabled {
				privileged.GET("/:id/statement/export", statementHandler.Export)
				privileged.POST("/:id/statement/exports", statementHandler.CreateExport)
			}
		}

		institutes.POST("/:id/enrollment-requests", middleware.JWT(authSvc), enrollmentHandler.Request)
		institutes.POST("/:id/enrollments", middleware.JWT(authSvc), enrollmentHandler.Enroll)
		institutes.POST("/:id/grants", middleware.JWT(authSvc), grantHandler.CreateRequest)
	}

	if cfg.Exports.Enabled {
		api.GET("/exports/:token", statementHandler.DownloadExport)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down")
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
