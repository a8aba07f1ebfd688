package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// TokenTTL is the fixed trust window of an issued bearer credential.
const TokenTTL = 7 * 24 * time.Hour

// AppConfig holds environment driven configuration values.
// Secrets have no defaults in code and must come from config/config.json or the environment.
type AppConfig struct {
	AppPort        string   `env:"APP_PORT"`
	JWTSecret      string   `env:"JWT_SECRET"`
	AdminRegCode   string   `env:"ADMIN_REG_CODE"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// Gin framework configuration
	GinMode string `env:"GIN_MODE"`
	GinPath string `env:"GIN_PATH"`
	// Database: "mysql" in production, "sqlite" for local runs
	DBDriver    string `env:"DB_DRIVER"`
	DatabaseURI string `env:"DATABASE_URI"`
	DBHost      string `env:"DB_HOST"`
	DBPort      string `env:"DB_PORT"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME"`
	// Redis is optional; when disabled every redis-backed helper falls back to memory
	RedisEnabled  bool   `env:"REDIS_ENABLED"`
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	// SMTP for password reset codes
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPTLS      bool   `env:"SMTP_TLS"`
	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL"`
	LogPath       string `env:"LOG_PATH"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `env:"LOG_COMPRESS"`
	// Limits
	RateLimitPerMinute    int `env:"RATE_LIMIT_PER_MINUTE"`
	CommentLimitPerMinute int `env:"COMMENT_LIMIT_PER_MINUTE"`
	AILimitPerMinute      int `env:"AI_LIMIT_PER_MINUTE"`
	FeedCacheSeconds      int `env:"FEED_CACHE_SECONDS"`
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort        string   `json:"AppPort"`
		JWTSecret      string   `json:"JWTSecret"`
		AdminRegCode   string   `json:"AdminRegCode"`
		AllowedOrigins []string `json:"AllowedOrigins"`
	} `json:"app"`
	Database struct {
		Driver      string `json:"Driver"`
		DatabaseURI string `json:"DatabaseURI"`
		DBHost      string `json:"DBHost"`
		DBPort      string `json:"DBPort"`
		DBUser      string `json:"DBUser"`
		DBPassword  string `json:"DBPassword"`
		DBName      string `json:"DBName"`
	} `json:"database"`
	Redis struct {
		Enabled       bool   `json:"Enabled"`
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
	} `json:"redis"`
	SMTP struct {
		SMTPHost     string `json:"SMTPHost"`
		SMTPPort     int    `json:"SMTPPort"`
		SMTPUsername string `json:"SMTPUsername"`
		SMTPPassword string `json:"SMTPPassword"`
		SMTPFrom     string `json:"SMTPFrom"`
		SMTPFromName string `json:"SMTPFromName"`
		SMTPTLS      bool   `json:"SMTPTLS"`
	} `json:"smtp"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		GinMode    string `json:"GinMode"`
		GinPath    string `json:"GinPath"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
	Limits struct {
		RateLimitPerMinute    int `json:"RateLimitPerMinute"`
		CommentLimitPerMinute int `json:"CommentLimitPerMinute"`
		AILimitPerMinute      int `json:"AILimitPerMinute"`
		FeedCacheSeconds      int `json:"FeedCacheSeconds"`
	} `json:"limits"`
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	var c AppConfig
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &c); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}
	applyDefaults(&c)
	if err := env.Parse(&c); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}

	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in config/config.json or the environment")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()
	return Load()
}

// Override installs c as the active configuration after filling defaults.
// Used by tests and tools that do not read config.json.
func Override(c AppConfig) AppConfig {
	applyDefaults(&c)
	mu.Lock()
	cfg = c
	loaded = true
	mu.Unlock()
	return c
}

// loadJSONConfig reads the grouped JSON file into out if present. A missing file is not an error.
func loadJSONConfig(path string, out *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return err
	}

	out.AppPort = fc.App.AppPort
	out.JWTSecret = fc.App.JWTSecret
	out.AdminRegCode = fc.App.AdminRegCode
	out.AllowedOrigins = trimList(fc.App.AllowedOrigins)

	out.DBDriver = fc.Database.Driver
	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName

	out.RedisEnabled = fc.Redis.Enabled
	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword

	out.SMTPHost = fc.SMTP.SMTPHost
	out.SMTPPort = fc.SMTP.SMTPPort
	out.SMTPUsername = fc.SMTP.SMTPUsername
	out.SMTPPassword = fc.SMTP.SMTPPassword
	out.SMTPFrom = fc.SMTP.SMTPFrom
	out.SMTPFromName = fc.SMTP.SMTPFromName
	out.SMTPTLS = fc.SMTP.SMTPTLS

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.GinMode = fc.Log.GinMode
	out.GinPath = fc.Log.GinPath
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress

	out.RateLimitPerMinute = fc.Limits.RateLimitPerMinute
	out.CommentLimitPerMinute = fc.Limits.CommentLimitPerMinute
	out.AILimitPerMinute = fc.Limits.AILimitPerMinute
	out.FeedCacheSeconds = fc.Limits.FeedCacheSeconds
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "5000"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "diaries"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.CommentLimitPerMinute == 0 {
		c.CommentLimitPerMinute = 20
	}
	if c.AILimitPerMinute == 0 {
		c.AILimitPerMinute = 20
	}
	if c.FeedCacheSeconds == 0 {
		c.FeedCacheSeconds = 30
	}
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
