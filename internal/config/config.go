package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Storage      StorageConfig
	Redis        RedisConfig
	Payment      PaymentConfig      `mapstructure:"payment"`
	Affiliate    AffiliateConfig    `mapstructure:"affiliate"`
	Notification NotificationConfig `mapstructure:"notification"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type ServerConfig struct {
	Port        string
	Mode        string
	FrontendURL string `mapstructure:"frontend_url"`
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PaymentConfig 移动支付网关（deposit API）配置
type PaymentConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIToken        string        `mapstructure:"api_token"`
	Currency        string        `mapstructure:"currency"`
	Country         string        `mapstructure:"country"`
	PollInterval    time.Duration `mapstructure:"poll_interval_ms"`
	MaxInitAttempts int           `mapstructure:"max_init_attempts"`
}

type AffiliateConfig struct {
	PlatformFeePercent float64 `mapstructure:"platform_fee_percent"`
	CodeLength         int     `mapstructure:"code_length"`
}

type NotificationConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LMS")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")
	viper.BindEnv("server.frontend_url", "FRONTEND_URL")

	// Payment gateway
	viper.BindEnv("payment.base_url", "PAYMENT_BASE_URL")
	viper.BindEnv("payment.api_token", "PAYMENT_API_TOKEN")
	viper.BindEnv("payment.currency", "PAYMENT_CURRENCY")
	viper.BindEnv("payment.country", "PAYMENT_COUNTRY")

	// Notification
	viper.BindEnv("notification.endpoint", "NOTIFICATION_ENDPOINT")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.Payment.PollInterval = cfg.Payment.PollInterval * time.Millisecond

	// 未配置项的默认值
	if cfg.Payment.PollInterval <= 0 {
		cfg.Payment.PollInterval = 1500 * time.Millisecond
	}
	if cfg.Payment.MaxInitAttempts <= 0 {
		cfg.Payment.MaxInitAttempts = 3
	}
	if cfg.Affiliate.PlatformFeePercent <= 0 {
		cfg.Affiliate.PlatformFeePercent = 10
	}
	if cfg.Affiliate.CodeLength <= 0 {
		cfg.Affiliate.CodeLength = 8
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
