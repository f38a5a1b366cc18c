package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"story-relay/internal/infra/setup"
)

// Config 存储从 .env 文件或环境变量加载的配置
type Config struct {
	AppEnv   string
	LogLevel string

	ServerPort string

	DBDriver    string
	DBUser      string
	DBPassword  string
	DBHost      string
	DBPort      string
	DBName      string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	GoogleClientID   string

	CORSAllowedOrigins []string
	CookieDomain       string

	RateLimitMax      int
	RateLimitWindow   time.Duration
	TurnSweepInterval time.Duration
}

// IsProduction 报告是否运行在生产环境
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DSN 返回数据库连接串，DATABASE_URL 优先
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == setup.DriverPostgres {
		return setup.PostgresDSN(c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
	return setup.MySQLDSN(c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)，忽略错误，允许只使用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:           envOr("APP_ENV", "development"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		ServerPort:       envOr("SERVER_PORT", "4000"),
		DBDriver:         envOr("DB_DRIVER", setup.DriverMySQL),
		DBUser:           os.Getenv("DB_USER"),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBHost:           envOr("DB_HOST", "localhost"),
		DBPort:           os.Getenv("DB_PORT"),
		DBName:           os.Getenv("DB_NAME"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:        envOr("REDIS_KEY_PREFIX", "sr:"),
		JWTAccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		GoogleClientID:   os.Getenv("GOOGLE_CLIENT_ID"),
		CookieDomain:     os.Getenv("COOKIE_DOMAIN"),
	}

	if cfg.DBDriver != setup.DriverMySQL && cfg.DBDriver != setup.DriverPostgres {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", cfg.DBDriver, setup.DriverMySQL, setup.DriverPostgres)
	}
	if cfg.DBPort == "" {
		cfg.DBPort = "3306"
		if cfg.DBDriver == setup.DriverPostgres {
			cfg.DBPort = "5432"
		}
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("environment variables JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MAX %d: must be positive", cfg.RateLimitMax)
	}
	if cfg.AccessTokenTTL, err = envDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = envDuration("REFRESH_TOKEN_TTL", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", time.Second); err != nil {
		return nil, err
	}
	if cfg.TurnSweepInterval, err = envDuration("TURN_SWEEP_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}
