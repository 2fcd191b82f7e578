package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/attendease-api/internal/handler"
	"github.com/noah-isme/attendease-api/internal/middleware"
	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/pkg/config"
)

type routeDeps struct {
	auth          *handler.AuthHandler
	attendance    *handler.AttendanceHandler
	timetable     *handler.TimetableHandler
	admin         *handler.AdminHandler
	system        *handler.MetricsHandler
	authenticator middleware.Authenticator
	otpLimiter    *middleware.RateLimiter
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/metrics", d.system.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/health", d.system.Health)

	api.POST("/register", d.auth.Register)
	api.POST("/login", d.auth.Login)
	api.POST("/admin/login", d.auth.AdminLogin)

	otp := api.Group("")
	if d.otpLimiter != nil {
		otp.Use(d.otpLimiter.Middleware())
	}
	otp.POST("/send-otp", d.auth.SendOTP)
	otp.POST("/verify-otp", d.auth.VerifyOTP)
	otp.POST("/forgot-password", d.auth.ForgotPassword)
	otp.POST("/reset-password", d.auth.ResetPassword)

	secured := api.Group("")
	secured.Use(middleware.Auth(d.authenticator))
	secured.POST("/logout", d.auth.Logout)
	secured.GET("/profile", d.auth.Profile)
	secured.GET("/timetable/:batch", d.timetable.Week)
	secured.GET("/timetable/:batch/day", d.timetable.Day)

	// the operator account has no attendance records of its own
	student := secured.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.POST("/attendance", d.attendance.Mark)
	student.GET("/attendance", d.attendance.List)
	student.GET("/attendance/stats", d.attendance.Stats)
	student.GET("/attendance/calendar", d.attendance.Calendar)
	student.GET("/dashboard", d.attendance.Dashboard)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", d.admin.ListUsers)
	admin.GET("/users/:id/attendance", d.admin.StudentAttendance)
	admin.GET("/reports/attendance", d.admin.ExportReport)
	admin.PUT("/timetable/:batch", d.timetable.Replace)
	admin.GET("/system/metrics", d.system.System)
}
