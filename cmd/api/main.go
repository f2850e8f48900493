package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/config"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/repository"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/handler"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/llm"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/middleware"
	pgRepo "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/repository/postgres"
	redisRepo "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/repository/redis"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/scraper"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/service"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/database"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/logger"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/monitoring"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/tracing"
)

func main() {
	config.LoadDotEnv()

	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		log.Printf("Failed to init logger: %v", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	// Создаем контекст с отменой для корректного завершения работы
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем подключение к базе
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Применяем миграции
	if cfg.Database.AutoMigrate {
		if err := database.MigrateDB(db, cfg.Database, zapLogger); err != nil {
			zapLogger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Redis необязателен: без него кеши отключены, а rate limit считается в памяти
	var redisClient redis.UniversalClient
	var cacheRepo repository.CacheRepository
	redisClient, err = database.NewCacheClient(ctx, cfg.Redis)
	if err != nil {
		zapLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		repo, err := redisRepo.NewCacheRepo(redisClient, cfg.Redis.KeyPrefix)
		if err != nil {
			zapLogger.Fatal("Failed to initialize CacheRepo", zap.Error(err))
		}
		cacheRepo = repo
		zapLogger.Info("Successfully connected to Redis", zap.String("mode", cfg.Redis.Mode))
	}

	// Клиент модели. Без ключа сервис стартует, а генерация возвращает generation_error.
	var healthLLM llm.Client
	llmClient := llm.Unconfigured(cfg.LLM.Provider)
	if !cfg.LLM.HasAPIKey() {
		zapLogger.Error("LLM API key is not configured; quiz generation will fail until it is set",
			zap.String("provider", cfg.LLM.Provider))
	} else {
		client, err := llm.New(ctx, llm.Config{
			Provider:    cfg.LLM.Provider,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			zapLogger.Error("Failed to initialize LLM client", zap.Error(err))
		} else {
			llmClient = client
			healthLLM = client
			zapLogger.Info("LLM client initialized", zap.String("provider", client.Provider()), zap.String("model", client.Model()))
		}
	}

	if healthLLM != nil && cfg.LLM.VerifyOnStartup {
		verifyCtx, verifyCancel := context.WithTimeout(ctx, 20*time.Second)
		if err := llm.Ping(verifyCtx, healthLLM); err != nil {
			zapLogger.Warn("LLM connection test failed", zap.Error(err))
		} else {
			zapLogger.Info("LLM connection test passed")
		}
		verifyCancel()
	}

	// Метрики и трассировка
	if cfg.Metrics.Enabled {
		monitoring.Init()
	}
	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			zapLogger.Warn("Failed to init tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Warn("Tracer shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	// Инициализируем сервисы
	quizRepo := pgRepo.NewQuizRepo(db)
	fetcher := scraper.NewHTTPFetcher(scraper.FetcherConfig{
		Timeout:      cfg.Scraper.Timeout,
		UserAgent:    cfg.Scraper.UserAgent,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
	})
	generator := service.NewGenerator(llmClient, service.GeneratorConfig{
		MaxArticleChars: cfg.Scraper.MaxArticleChars,
		Timeout:         cfg.LLM.Timeout,
	}, zapLogger)
	quizService := service.NewQuizService(
		fetcher,
		scraper.NewExtractor(),
		generator,
		quizRepo,
		cacheRepo,
		service.QuizServiceConfig{
			QueryTimeout:    cfg.Database.QueryTimeout,
			QuizCacheTTL:    cfg.Redis.QuizTTL,
			ArticleCacheTTL: cfg.Redis.ArticleTTL,
		},
		zapLogger,
	)

	// Инициализируем обработчики
	quizHandler := handler.NewQuizHandler(quizService, zapLogger)
	wsHandler := handler.NewWSHandler(quizService, cfg.CORS.AllowedOrigins, zapLogger)
	healthHandler := handler.NewHealthHandler(quizService, healthLLM, cfg.LLM.ProbeOnHealth, zapLogger)
	rateLimiter := middleware.NewRateLimiter(redisClient, zapLogger)

	generateLimit := middleware.RateLimitConfig{}
	if cfg.RateLimit.Enabled {
		generateLimit = middleware.DefaultGenerateRateLimitConfig()
		generateLimit.MaxRequests = cfg.RateLimit.MaxRequests
		generateLimit.Window = cfg.RateLimit.Window
	}

	// Инициализируем роутер Gin
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), logger.GinMiddleware(zapLogger))
	if cfg.Metrics.Enabled {
		router.Use(monitoring.MetricsMiddleware())
	}
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			zapLogger.Warn("failed to set trusted proxies", zap.Error(err))
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			zapLogger.Warn("failed to set trusted proxies", zap.Error(err))
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", healthHandler.Root)
	router.GET("/health", healthHandler.Health)
	router.GET("/stats", healthHandler.Stats)
	if cfg.Metrics.Enabled {
		router.GET("/metrics", monitoring.PrometheusHandler())
	}

	api := router.Group("/api")
	{
		api.POST("/generate-quiz", rateLimiter.Limit(generateLimit), quizHandler.GenerateQuiz)
		api.GET("/history", quizHandler.GetHistory)
		api.POST("/submit-answers", quizHandler.SubmitAnswers)

		quizWithID := api.Group("/quiz/:id")
		quizWithID.Use(middleware.ExtractUintParam("id", "quizID"))
		{
			quizWithID.GET("", quizHandler.GetQuiz)
			quizWithID.GET("/export", quizHandler.ExportQuiz)
		}
	}

	// WebSocket маршрут
	router.GET("/ws/generate", rateLimiter.Limit(generateLimit), wsHandler.HandleGenerate)

	// Настраиваем HTTP сервер; WriteTimeout покрывает генерацию (до llm.timeout)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		zapLogger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	cancel()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("Error closing Redis client", zap.Error(err))
		}
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		sqlDB.Close()
	}

	zapLogger.Info("Server exited properly")
}
