package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutripal/internal/api/handlers/chat"
	"nutripal/internal/api/handlers/health"
	"nutripal/internal/api/middleware"
	"nutripal/internal/infrastructure/config"
	"nutripal/internal/pkg/common"
)

const cleanupInterval = time.Minute

// Services 路由需要的服務
type Services struct {
	Turns    chat.TurnHandler
	Sessions chat.Sessions
	Health   *health.Handler
}

// Router gin 引擎與背景清理的停止函式
type Router struct {
	*gin.Engine
	stops []func()
}

// Close 停止限流與去重的背景清理
func (r *Router) Close() {
	for _, stop := range r.stops {
		stop()
	}
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, svc Services) *Router {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	r := &Router{Engine: engine}

	engine.Use(requestid.New())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(cfg.Server.AllowOrigins),
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	engine.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	engine.GET("/health", svc.Health.HealthCheck)
	engine.GET("/ready", svc.Health.ReadinessCheck)
	engine.GET("/live", svc.Health.LivenessCheck)

	api := engine.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		r.stops = append(r.stops, limiter.StartPruning(cleanupInterval))
		api.Use(middleware.RateLimit(limiter))
	}
	dedup := middleware.NewDeduplicator(cfg.DedupWindow)
	r.stops = append(r.stops, dedup.StartCleanup(cleanupInterval))

	h := chat.NewHandler(svc.Turns, svc.Sessions)
	{
		api.POST("/chat", middleware.Deduplication(dedup), h.HandleChat)
		api.GET("/session", h.GetSession)
		api.POST("/session/clear", h.ClearSession)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("dedup_window", cfg.DedupWindow),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}
