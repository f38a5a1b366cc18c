package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "story-relay/internal/handler/http"
	"story-relay/internal/infra/google"
	gormpersistence "story-relay/internal/infra/persistence/gorm"
	"story-relay/internal/infra/setup"
	redisstate "story-relay/internal/infra/state/redis"
	"story-relay/internal/service"
	"story-relay/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Worker      *worker.WorkerServer
	HttpServer  *http.Server
}

// NewLogger 配置 logrus 标准 logger，service 层直接使用包级函数记录日志
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s, Env: %s)", log.GetLevel(), cfg.AppEnv)

	// 3. 初始化基础设施
	db, err := setup.InitDB(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized and migrated")

	initCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	redisClient, err := setup.InitRedis(initCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	// 4. 初始化 Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	docRepo := gormpersistence.NewGormDocumentRepository(db)
	roomState := redisstate.NewRedisRoomState(redisClient, cfg.KeyPrefix)

	// 5. 初始化 Services
	var verifier service.GoogleVerifier
	if cfg.GoogleClientID != "" {
		v, err := google.NewVerifier(cfg.GoogleClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google verifier: %w", err)
		}
		verifier = v
	} else {
		log.Warn("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
	}
	authService, err := service.NewAuthService(userRepo, service.AuthConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	roomService := service.NewRoomService(roomRepo, roomState)
	turnService := service.NewTurnService(roomRepo, roomState)
	docService := service.NewDocumentService(docRepo)
	log.Info("Services initialized")

	// 6. 初始化 Worker Server (回合超时扫描)
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	workerServer := worker.NewWorkerServer(redisClientOpt, turnService, cfg.TurnSweepInterval, log)

	// 7. 初始化 Gin Engine 和路由
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := NewRouter(cfg, log, Handlers{
		Auth: httpHandler.NewAuthHandler(authService, httpHandler.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.IsProduction(),
			MaxAge: cfg.RefreshTokenTTL,
		}),
		Room:     httpHandler.NewRoomHandler(roomService, turnService),
		Public:   httpHandler.NewPublicHandler(roomService),
		Document: httpHandler.NewDocumentHandler(docService),
	}, roomState)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("Application assembled successfully")
	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		Worker:      workerServer,
		HttpServer:  httpServer,
	}, nil
}

// Start 启动 Worker、调度器和 HTTP 服务器，均在后台 goroutine 中运行
func (a *App) Start() {
	go func() {
		if err := a.Worker.Start(); err != nil {
			a.Log.Fatalf("Worker server failed: %v", err)
		}
	}()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用：先停止接收请求，再停止扫描，最后释放连接
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.Worker != nil {
		a.Worker.Shutdown()
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			} else {
				a.Log.Info("Database connection closed.")
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}
