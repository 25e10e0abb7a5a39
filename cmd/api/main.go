package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"nutripal/internal/api"
	"nutripal/internal/api/handlers/health"
	"nutripal/internal/core/ai/cache"
	"nutripal/internal/core/ai/intent"
	"nutripal/internal/core/ai/lookup"
	"nutripal/internal/core/ai/openrouter"
	"nutripal/internal/core/ai/provider"
	"nutripal/internal/core/ai/service"
	"nutripal/internal/core/analytics"
	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/orchestrator"
	"nutripal/internal/core/session"
	"nutripal/internal/core/store"
	"nutripal/internal/infrastructure/config"
	"nutripal/internal/infrastructure/sqlite"
	"nutripal/internal/infrastructure/supabase"
	"nutripal/internal/pkg/common"
)

func main() {
	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("session_driver", cfg.Session.Driver),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	var checks []health.Check

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			common.LogFatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer redisClient.Close()
		checks = append(checks, health.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	var db *sqlite.DB
	if cfg.UsesSQLite() {
		db, err = sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			common.LogFatal("Failed to open sqlite database", zap.String("path", cfg.Storage.SQLitePath), zap.Error(err))
		}
		checks = append(checks, health.Check{Name: "sqlite", Fn: func(context.Context) error {
			return db.Ping()
		}})
	}

	records, err := newStore(cfg, db)
	if err != nil {
		common.LogFatal("Failed to initialize store", zap.Error(err))
	}

	sessions := session.NewManager(newSessionRepository(cfg, redisClient, db))

	// 回應快取
	var responseCache cache.Cache
	var cacheManager *cache.Manager
	if cfg.Cache.Enabled {
		switch cfg.Cache.Driver {
		case "redis":
			responseCache = cache.NewRedisCache(redisClient, cfg.Cache.TTL)
		default:
			cacheManager = cache.NewManager(cache.Config{
				MaxSize:         cfg.Cache.MaxSize,
				TTL:             cfg.Cache.TTL,
				CleanupInterval: cfg.Cache.CleanupInterval,
			})
			responseCache = cacheManager
		}
	}

	client := openrouter.NewClient(provider.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		Model:       cfg.OpenRouter.Model,
		Timeout:     cfg.OpenRouter.Timeout,
		MaxRetries:  cfg.OpenRouter.MaxRetries,
		BaseURL:     cfg.OpenRouter.BaseURL,
		Referer:     cfg.OpenRouter.Referer,
		Title:       cfg.OpenRouter.Title,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
		Temperature: cfg.OpenRouter.Temperature,
	})
	ai := service.NewService(client, responseCache, cfg.AI.CapabilityTimeout)

	// 驗證失敗紀錄
	var recorder *analytics.Recorder
	var failures nutrition.FailureRecorder
	var analyticsStatus func() analytics.Status
	if cfg.Analytics.Enabled {
		recorder = analytics.NewRecorder(records, analytics.Config{
			Workers:      cfg.Analytics.Workers,
			QueueSize:    cfg.Analytics.QueueSize,
			WriteTimeout: cfg.Analytics.WriteTimeout,
		})
		failures = recorder
		analyticsStatus = recorder.Status
	}

	orch := orchestrator.New(orchestrator.Deps{
		Sessions:          sessions,
		Store:             records,
		Extractor:         intent.NewExtractor(ai),
		Lookup:            lookup.NewAnalyzer(ai),
		Validator:         nutrition.NewValidator(failures),
		CapabilityTimeout: cfg.AI.CapabilityTimeout,
	})

	// 設置路由
	router := api.SetupRouter(cfg, api.Services{
		Turns:    orch,
		Sessions: sessions,
		Health:   health.NewHandler(cfg.App.Version, checks, analyticsStatus),
	})

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("name", cfg.App.Name),
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	// 先停止接收請求，再排空分析佇列，最後關閉儲存
	router.Close()
	if recorder != nil {
		recorder.Close()
	}
	if cacheManager != nil {
		_ = cacheManager.Close()
	}
	if err := ai.Close(); err != nil {
		common.LogWarn("Failed to close AI service", zap.Error(err))
	}
	if err := sessions.Close(); err != nil {
		common.LogWarn("Failed to close session repository", zap.Error(err))
	}
	if err := records.Close(); err != nil {
		common.LogWarn("Failed to close store", zap.Error(err))
	}
	if db != nil {
		if err := db.Close(); err != nil {
			common.LogWarn("Failed to close sqlite database", zap.Error(err))
		}
	}

	common.LogInfo("Server exited")
}

// newStore 依 storage.driver 建立紀錄儲存
func newStore(cfg *config.Config, db *sqlite.DB) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return sqlite.NewStore(db), nil
	case "supabase":
		return supabase.New(supabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.APIKey,
		})
	default:
		return store.NewMemoryStore(), nil
	}
}

// newSessionRepository 依 session.driver 建立對話狀態儲存
func newSessionRepository(cfg *config.Config, client *redis.Client, db *sqlite.DB) session.Repository {
	switch cfg.Session.Driver {
	case "redis":
		return session.NewRedisRepository(client, cfg.Session.TTL)
	case "sqlite":
		return sqlite.NewSessionRepository(db)
	default:
		return session.NewMemoryRepository()
	}
}
