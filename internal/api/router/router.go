package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/config"
	"github.com/sujith-eag/timetable-builder/internal/api/handler"
	"github.com/sujith-eag/timetable-builder/internal/api/middleware"
	"github.com/sujith-eag/timetable-builder/pkg/jwt"
	"github.com/sujith-eag/timetable-builder/pkg/redis"
)

// Pinger 健康检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 路由依赖；Redis 与 DB 为 nil 时对应功能降级
type Deps struct {
	JWT    *jwt.Manager
	Redis  *redis.Client
	DB     Pinger
	Logger *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, deps Deps) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", health(deps))

	// Redis 不可用时不做吊销检查与限流
	var revoked middleware.RevocationChecker
	var limiter middleware.RateLimiter
	if deps.Redis != nil {
		revoked = deps.Redis
		limiter = deps.Redis
	}
	solveLimit := middleware.RateLimit(limiter, cfg.Server.RateLimit, time.Minute)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(deps.JWT, revoked))
	{
		auth := v1.Group("/auth")
		{
			auth.GET("/me", h.Auth.Me)
			auth.POST("/revoke", h.Auth.Revoke)
		}

		// 排课：求解 / 校验 / 富化
		timetables := v1.Group("/timetables", middleware.RoleAuth(jwt.RolePlanner))
		{
			timetables.POST("/solve", solveLimit, h.Timetable.Solve)
			timetables.POST("/validate", h.Timetable.Validate)
			timetables.POST("/enrich", h.Timetable.Enrich)
		}

		// 运行记录：查询与导出
		runs := v1.Group("/runs", middleware.RoleAuth(jwt.RolePlanner, jwt.RoleViewer))
		{
			runs.GET("", h.Run.ListRuns)
			runs.GET("/:id", h.Run.GetRun)
			runs.GET("/:id/export", h.Export.ExportRun)
			runs.GET("/:id/calendar/:resource_id", h.Calendar.ExportResourceCalendar)
		}

		// 资源不可用时间导入
		v1.POST("/availability/import", middleware.RoleAuth(jwt.RolePlanner), h.Calendar.ImportAvailability)
	}

	return r
}

func health(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "db": "disabled", "redis": "disabled"}
		code := http.StatusOK
		if deps.DB != nil {
			status["db"] = "ok"
			if err := deps.DB.Ping(ctx); err != nil {
				status["db"], status["status"], code = "down", "degraded", http.StatusServiceUnavailable
			}
		}
		if deps.Redis != nil {
			status["redis"] = "ok"
			if err := deps.Redis.Ping(ctx); err != nil {
				status["redis"], status["status"] = "down", "degraded"
			}
		}
		c.JSON(code, status)
	}
}
