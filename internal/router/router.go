package router

import (
	"context"
	"net/http"
	"time"

	"github.com/eksporyuk-migrate/internal/cache"
	"github.com/eksporyuk-migrate/internal/config"
	adminhandlers "github.com/eksporyuk-migrate/internal/http/handlers/admin"
	"github.com/eksporyuk-migrate/internal/http/response"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	r.Use(c.Metrics.Middleware())

	r.GET("/healthz", healthHandler(c))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")
	admin := apiV1.Group("/admin")
	admin.Use(AdminAuthMiddleware(c.AdminTokenService))
	admin.Use(AdminPermissionMiddleware(c.Authz))
	admin.Use(RateLimitMiddleware(cache.Client(), AdminRateLimitRule(*cfg), KeyByAdminSubject))
	{
		admin.POST("/imports", adminHandler.CreateImport)
		admin.GET("/imports", adminHandler.ListImports)
		admin.GET("/imports/:run_id", adminHandler.GetImport)

		admin.POST("/conversions/sync", adminHandler.SyncConversions)

		admin.POST("/reconciliation", adminHandler.RunReconcile)
		admin.GET("/reconciliation/last", adminHandler.GetLastReport)
		admin.GET("/reconciliation/last/export", adminHandler.ExportLastReport)

		admin.GET("/reviews", adminHandler.ListReviews)
		admin.POST("/reviews/:id/resolve", adminHandler.ResolveReview)

		admin.GET("/me", adminHandler.GetAccess)

		admin.GET("/rules", adminHandler.GetRules)
		admin.POST("/rules/preview", adminHandler.PreviewRules)
	}

	return r
}

func healthHandler(c *provider.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"database": "ok", "redis": "disabled", "rules_version": c.Rules.Version()}
		healthy := true
		if sqlDB, err := c.DB.DB(); err != nil || sqlDB.PingContext(checkCtx) != nil {
			status["database"] = "down"
			healthy = false
		}
		if cache.Enabled() {
			status["redis"] = "ok"
			if err := cache.Ping(checkCtx); err != nil {
				status["redis"] = "down"
				healthy = false
			}
		}
		if !healthy {
			ctx.JSON(http.StatusServiceUnavailable, response.Response{StatusCode: response.CodeUnavailable, Msg: "unhealthy", Data: status})
			return
		}
		response.Success(ctx, status)
	}
}
