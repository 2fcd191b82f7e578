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
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendease-api/api/swagger"
	"github.com/noah-isme/attendease-api/internal/handler"
	"github.com/noah-isme/attendease-api/internal/middleware"
	"github.com/noah-isme/attendease-api/internal/repository"
	"github.com/noah-isme/attendease-api/internal/service"
	"github.com/noah-isme/attendease-api/pkg/cache"
	"github.com/noah-isme/attendease-api/pkg/config"
	"github.com/noah-isme/attendease-api/pkg/database"
	"github.com/noah-isme/attendease-api/pkg/jobs"
	"github.com/noah-isme/attendease-api/pkg/logger"
	"github.com/noah-isme/attendease-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/attendease-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendease-api/pkg/middleware/requestid"
)

const (
	timetableCacheTTL = time.Hour
	sessionSweepEvery = 15 * time.Minute
	shutdownTimeout   = 15 * time.Second
)

// @title AttendEase API
// @version 1.0.0
// @description Student attendance tracking with per-subject statistics and admin reports
// @BasePath /api
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db, logr); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}
	validate := service.NewValidator()
	loc := cfg.Attendance.Location()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	otpRepo := repository.NewOTPRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Attendance.StatsCacheTTL, logr, true)

	mailSvc := service.NewMailService(mailer.New(cfg.Mail, logr), jobs.QueueConfig{
		Workers:    cfg.Mailer.Workers,
		BufferSize: cfg.Mailer.BufferSize,
		MaxRetries: cfg.Mailer.MaxRetries,
		RetryDelay: cfg.Mailer.RetryDelay,
		Logger:     logr,
	}, metricsSvc, logr)
	mailSvc.Start(ctx)

	otpSvc := service.NewOTPService(otpRepo, mailSvc, metricsSvc, logr, service.OTPConfig{
		Length:      cfg.OTP.Length,
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Secret:      cfg.JWT.Secret,
	})
	authSvc := service.NewAuthService(userRepo, sessionRepo, otpSvc, mailSvc, validate, metricsSvc, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		SessionTTL:        cfg.JWT.Expiration,
		AdminEmail:        cfg.Admin.Email,
		AdminPassword:     cfg.Admin.Password,
		AdminPasswordHash: cfg.Admin.PasswordHash,
	})
	timetableSvc := service.NewTimetableService(timetableRepo, cacheSvc, validate, logr, timetableCacheTTL)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, userRepo, timetableSvc, cacheSvc, metricsSvc, validate, logr, service.AttendanceConfig{
		Threshold:     cfg.Attendance.Threshold,
		StatsCacheTTL: cfg.Attendance.StatsCacheTTL,
		CalendarDays:  cfg.Attendance.CalendarDays,
		Location:      loc,
	})
	adminSvc := service.NewAdminService(userRepo, attendanceRepo, logr, cfg.Attendance.Threshold)
	reportSvc := service.NewReportService(userRepo, attendanceRepo, logr, cfg.Attendance.Threshold)

	go sweepSessions(ctx, authSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	var otpLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		otpLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	registerRoutes(r, cfg, routeDeps{
		auth:       handler.NewAuthHandler(authSvc),
		attendance: handler.NewAttendanceHandler(attendanceSvc),
		timetable:  handler.NewTimetableHandler(timetableSvc, loc),
		admin:      handler.NewAdminHandler(adminSvc, reportSvc),
		system: handler.NewMetricsHandler(metricsSvc, mailSvc, map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}),
		authenticator: authSvc,
		otpLimiter:    otpLimiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	if err := mailSvc.Stop(shutdownCtx); err != nil {
		logr.Warn("mail queue did not drain", zap.Error(err))
	}
}

// sweepSessions deletes expired session rows until ctx is cancelled.
func sweepSessions(ctx context.Context, auth *service.AuthService, logr *zap.Logger) {
	ticker := time.NewTicker(sessionSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpiredSessions(ctx)
			if err != nil {
				logr.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logr.Info("expired sessions purged", zap.Int64("count", n))
			}
		}
	}
}
