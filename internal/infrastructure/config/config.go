package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	AI          AIConfig         `mapstructure:"ai"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Session     SessionConfig    `mapstructure:"session"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Supabase    SupabaseConfig   `mapstructure:"supabase"`
	Analytics   AnalyticsConfig  `mapstructure:"analytics"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Referer     string        `mapstructure:"referer"`
	Title       string        `mapstructure:"title"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// AIConfig 能力呼叫設定
type AIConfig struct {
	// CapabilityTimeout 單次意圖擷取或營養查詢的上限
	CapabilityTimeout time.Duration `mapstructure:"capability_timeout"`
}

// CacheConfig 回應快取配置，driver 為 memory 或 redis
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig Redis 連線
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig 對話狀態儲存，driver 為 memory、redis 或 sqlite
type SessionConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// StorageConfig 紀錄儲存，driver 為 memory、sqlite 或 supabase
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SupabaseConfig Supabase 連線
type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// AnalyticsConfig 驗證失敗紀錄
type AnalyticsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

var (
	sessionDrivers = map[string]bool{"memory": true, "redis": true, "sqlite": true}
	storageDrivers = map[string]bool{"memory": true, "sqlite": true, "supabase": true}
	cacheDrivers   = map[string]bool{"memory": true, "redis": true}
)

// LoadConfig 載入設定：.env（可選）→ 環境變數 → 預設值
func LoadConfig() (*Config, error) {
	// .env 不存在時只使用環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, map[string]string{
		"openrouter.api_key":    "OPENROUTER_API_KEY",
		"openrouter.model":      "OPENROUTER_MODEL",
		"openrouter.base_url":   "OPENROUTER_BASE_URL",
		"openrouter.max_tokens": "MODEL_MAX_TOKENS",
		"cache.enabled":         "CACHE_ENABLED",
		"cache.driver":          "CACHE_DRIVER",
		"redis.addr":            "REDIS_ADDR",
		"redis.password":        "REDIS_PASSWORD",
		"redis.db":              "REDIS_DB",
		"session.driver":        "SESSION_DRIVER",
		"session.ttl":           "SESSION_TTL",
		"storage.driver":        "STORAGE_DRIVER",
		"storage.sqlite_path":   "SQLITE_PATH",
		"supabase.url":          "SUPABASE_URL",
		"supabase.api_key":      "SUPABASE_KEY",
		"analytics.enabled":     "ANALYTICS_ENABLED",
		"rate_limit.enabled":    "RATE_LIMIT_ENABLED",
		"rate_limit.requests":   "RATE_LIMIT_REQUESTS",
		"rate_limit.window":     "RATE_LIMIT_WINDOW",
		"dedup_window":          "DEDUP_WINDOW",
		"log_level":             "LOG_LEVEL",
		"server.port":           "PORT",
	})

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration", "openrouter_api_key:", MaskAPIKey(v.GetString("openrouter.api_key")),
		"openrouter_model:", v.GetString("openrouter.model"),
		"session_driver:", v.GetString("session.driver"),
		"storage_driver:", v.GetString("storage.driver"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func bindEnv(v *viper.Viper, keys map[string]string) {
	for key, env := range keys {
		_ = v.BindEnv(key, env)
	}
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "nutripal")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "55s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.allow_origins", []string{"*"})

	// OpenRouter 設定
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.referer", "https://nutripal.app")
	v.SetDefault("openrouter.title", "NutriPal")
	v.SetDefault("openrouter.max_tokens", 1000)
	v.SetDefault("openrouter.temperature", 0.2)
	v.SetDefault("openrouter.timeout", "30s")
	v.SetDefault("openrouter.max_retries", 1)

	v.SetDefault("ai.capability_timeout", "20s")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.ttl", "72h")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "data/nutripal.db")

	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.workers", 2)
	v.SetDefault("analytics.queue_size", 100)
	v.SetDefault("analytics.write_timeout", "5s")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}
	if config.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter api key is required (OPENROUTER_API_KEY)")
	}
	if config.AI.CapabilityTimeout <= 0 {
		return fmt.Errorf("invalid ai capability timeout")
	}

	if config.Cache.Enabled {
		if !cacheDrivers[config.Cache.Driver] {
			return fmt.Errorf("unknown cache driver %q", config.Cache.Driver)
		}
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	if !sessionDrivers[config.Session.Driver] {
		return fmt.Errorf("unknown session driver %q", config.Session.Driver)
	}
	if !storageDrivers[config.Storage.Driver] {
		return fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}
	if config.UsesRedis() && config.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if config.UsesSQLite() && config.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if config.Storage.Driver == "supabase" && (config.Supabase.URL == "" || config.Supabase.APIKey == "") {
		return fmt.Errorf("supabase url and api key are required")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit")
	}

	return nil
}

// UsesRedis 是否有任何元件使用 Redis
func (c *Config) UsesRedis() bool {
	return c.Session.Driver == "redis" || (c.Cache.Enabled && c.Cache.Driver == "redis")
}

// UsesSQLite 是否有任何元件使用 SQLite
func (c *Config) UsesSQLite() bool {
	return c.Session.Driver == "sqlite" || c.Storage.Driver == "sqlite"
}
