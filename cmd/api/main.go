// @title Quiz Forge API
// @version 1.0
// @description Generates quizzes from text or PDF documents and serves, edits and shares them.
// @host localhost:8090
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize.
package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "quiz-forge/cmd/api/docs"
	"quiz-forge/internal/adapter"
	"quiz-forge/internal/adapter/llm"
	"quiz-forge/internal/cache"
	"quiz-forge/internal/config"
	"quiz-forge/internal/database"
	"quiz-forge/internal/handler"
	"quiz-forge/internal/logger"
	"quiz-forge/internal/middleware"
	"quiz-forge/internal/quizgen"
	"quiz-forge/internal/repository"
	"quiz-forge/internal/service"
	"quiz-forge/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.NewSQLXOracleDB(ctx, cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		migrator, err := database.NewEmbeddedMigrator(db.DB)
		if err != nil {
			appLogger.Fatal("Failed to load migrations", zap.Error(err))
		}
		applied, err := migrator.Up(ctx)
		migrator.Close()
		if err != nil {
			appLogger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		appLogger.Info("Migrations applied", zap.Int("count", applied))
	}

	quizRepository := repository.NewQuizDatabaseAdapter(db)
	txManager := repository.NewTransactionManagerAdapter(db)

	// Redis
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Successfully connected to Redis")
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)
	locker := adapter.NewRedisLocker(redisClient)

	// Model backend
	model, err := llm.NewModel(ctx, cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err), zap.String("provider", cfg.LLM.Provider))
	}
	caller := llm.NewLangchainCaller(model, cfg.LLM.Temperature, cfg.LLM.Timeout)
	modelClient := quizgen.NewModelClient(caller, cfg.Generation.MaxAttemptsPerModel, cfg.Generation.BackoffBase)
	pipeline := quizgen.NewPipeline(modelClient, quizgen.Options{
		MaxDirectChars: cfg.Generation.MaxDirectChars,
		ChunkSize:      cfg.Generation.ChunkSize,
		ChunkOverlap:   cfg.Generation.ChunkOverlap,
		MaxBullets:     cfg.Generation.MaxBullets,
		DefaultModel:   cfg.LLM.DefaultModel,
		FallbackModels: cfg.LLM.FallbackModels,
	})
	appLogger.Info("Generation pipeline initialized",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("default_model", cfg.LLM.DefaultModel),
		zap.Strings("fallback_models", cfg.LLM.FallbackModels),
	)

	// Background generation
	queue := worker.NewQueue(worker.Options{
		Concurrency: cfg.Worker.Concurrency,
		Size:        cfg.Worker.QueueSize,
		LockTTL:     cfg.Worker.LockTTL,
		LockKey:     cache.GenerationLockKey,
	}, locker)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	queue.Start(workerCtx)

	reaper := worker.NewReaper(quizRepository, cfg.Worker.StaleAfter, cfg.Worker.ReapInterval)
	go reaper.Run(workerCtx)

	// Services
	authService, err := service.NewAuthService(cfg.JWT)
	if err != nil {
		appLogger.Fatal("Failed to create AuthService", zap.Error(err))
	}
	quizService := service.NewQuizService(quizRepository, txManager, cacheAdapter, cfg.Cache.QuizTTL)
	generationService := service.NewGenerationService(quizRepository, txManager, pipeline, queue, cacheAdapter)

	// Handlers
	quizHandler := handler.NewQuizHandler(quizService)
	generationHandler := handler.NewGenerationHandler(generationService, quizService)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization",
		ExposeHeaders: "Location,Retry-After",
		MaxAge:        300,
	}))
	app.Use(recover.New())

	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := cacheAdapter.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "redis": err.Error()})
		}
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok", "queued": queue.Len()})
	})

	handler.RegisterRoutes(app.Group("/api"), authService, quizHandler, generationHandler)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Generation queue did not drain cleanly", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
