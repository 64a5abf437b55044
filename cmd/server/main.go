package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	config "github.com/AureliusIvan/threads-scheduler/configs"
	"github.com/AureliusIvan/threads-scheduler/internal/api/handlers"
	"github.com/AureliusIvan/threads-scheduler/internal/api/middleware"
	"github.com/AureliusIvan/threads-scheduler/internal/database"
	job "github.com/AureliusIvan/threads-scheduler/internal/jobs"
	"github.com/AureliusIvan/threads-scheduler/internal/queue"
	"github.com/AureliusIvan/threads-scheduler/internal/repository"
	"github.com/AureliusIvan/threads-scheduler/internal/service"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/AureliusIvan/threads-scheduler/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat))

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	postRepo := repository.NewPostRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	threadsAccountRepo := repository.NewThreadsAccountRepository(db)

	threadsClient := threads.NewClient(
		threads.WithBaseURL(cfg.Threads.APIURL),
		threads.WithTimeout(cfg.Threads.RequestTimeout),
		threads.WithContainerPolling(cfg.Threads.ContainerPollInterval, cfg.Threads.ContainerMaxPolls),
	)

	r2Service, err := service.NewR2Service(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to configure R2: %v", err)
	}

	tokenCipher, err := utils.NewTokenCipher(cfg.SecretKey)
	if err != nil {
		log.Fatalf("Invalid secret key: %v", err)
	}

	tokenService := service.NewTokenService(tokenCipher, threadsAccountRepo, threadsClient)
	postService := service.NewPostService(db, postRepo, queueRepo, nil)
	mediaService := service.NewMediaService(r2Service, cfg.R2.PublicURL)
	analyticsService := service.NewAnalyticsService(analyticsRepo, postService, tokenService, threadsClient, nil)

	dispatcher := queue.NewDispatcher(queueRepo, postRepo, analyticsRepo, tokenService, threadsClient,
		queue.WithRetryPolicy(queue.RetryPolicy{Backoff: cfg.Scheduler.RetryBackoff}),
		queue.WithBatchSize(cfg.Scheduler.BatchSize),
		queue.WithHeartbeat(cfg.Scheduler.StuckTimeout/3),
		queue.WithClock(func() time.Time { return time.Now().UTC() }),
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("unhandled request error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	api := app.Group("/api")

	queueHandler := handlers.NewQueueHandler(dispatcher, nil)
	api.Post("/queue/process", authMiddleware.CronSecret(), queueHandler.ProcessQueue)

	protected := api.Group("", authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, analyticsService)
	protected.Post("/posts/create", post.CreatePost)
	protected.Get("/posts", post.ListPosts)
	protected.Get("/posts/info", post.PostInfo)
	protected.Post("/posts/update", post.UpdatePost)
	protected.Post("/posts/remove", post.RemovePost)
	protected.Get("/posts/analytics", post.PostAnalytics)

	media := handlers.NewMediaHandler(mediaService)
	protected.Post("/media/upload", media.Upload)

	// cron jobs
	dispatchJob := job.NewDispatchJob(client, cfg.Scheduler.DispatchInterval, cfg.Scheduler.BatchSize)
	stuckEntryJob := job.NewStuckEntryJob(queueRepo, postRepo, cfg.Scheduler.StuckTimeout)
	refreshTokenJob := job.NewTokenRefreshJob(threadsAccountRepo, tokenService, job.DefaultRefreshWindow)
	insightsSyncJob := job.NewInsightsSyncJob(analyticsService)

	c := cron.New()
	mustSchedule(c, cfg.Scheduler.DispatchInterval, dispatchJob.EnqueueDispatch)
	mustSchedule(c, cfg.Scheduler.StuckTimeout, stuckEntryJob.ReclaimStuckEntries)
	mustSchedule(c, cfg.Scheduler.TokenRefreshInterval, refreshTokenJob.RefreshTokens)
	mustSchedule(c, cfg.Scheduler.InsightsSyncInterval, insightsSyncJob.SyncInsights)
	c.Start()
	defer c.Stop()

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 1,
		Logger:      asynqLogger{},
	})

	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeProcessQueue, dispatcher.HandleProcessQueueTask)

		slog.Info("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("Server is running", "port", cfg.Port)

	gracefulShutdown(app, server)
}

func mustSchedule(c *cron.Cron, every time.Duration, fn func()) {
	if err := c.AddFunc(fmt.Sprintf("@every %s", every), fn); err != nil {
		log.Fatalf("Failed to schedule job every %s: %v", every, err)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { slog.Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { slog.Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { slog.Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { slog.Error(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { log.Fatal(args...) }

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	slog.Info("Server shutdown complete.")
}
