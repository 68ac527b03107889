package config

import (
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Data      DataConfig      `mapstructure:"data"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DataConfig locates the curriculum and offerings reference files. The
// local backend reads them from disk; the minio backend fetches the same
// object names from a bucket.
type DataConfig struct {
	Type            string `mapstructure:"type"`
	LocalPath       string `mapstructure:"local_path"`
	MinioEndpoint   string `mapstructure:"minio_endpoint"`
	MinioAccessID   string `mapstructure:"minio_access_key"`
	MinioSecret     string `mapstructure:"minio_secret_key"`
	MinioBucket     string `mapstructure:"minio_bucket"`
	MinioUseSSL     bool   `mapstructure:"minio_use_ssl"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
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

	viper.SetEnvPrefix("COURSEWISE")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Reference data
	viper.BindEnv("data.type", "DATA_TYPE")
	viper.BindEnv("data.local_path", "DATA_LOCAL_PATH")
	viper.BindEnv("data.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("data.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("data.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("data.minio_bucket", "MINIO_BUCKET")

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

	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}

	if cfg.Data.Type == "" {
		cfg.Data.Type = "local"
	}
	if cfg.Data.Type == "local" {
		if _, err := os.Stat(cfg.Data.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Data.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
