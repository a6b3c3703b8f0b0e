package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"project-hub/internal/access"
	"project-hub/internal/ai"
	"project-hub/internal/auth"
	"project-hub/internal/config"
	"project-hub/internal/db"
	"project-hub/internal/execution"
	"project-hub/internal/files"
	grpchealth "project-hub/internal/grpc"
	"project-hub/internal/handlers"
	"project-hub/internal/logger"
	"project-hub/internal/middleware"
	"project-hub/internal/observability"
	"project-hub/internal/rabbitmq"
	"project-hub/internal/repositories"
	"project-hub/internal/services"
	"project-hub/internal/telemetry"
	"project-hub/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.OTLPEndpoint, cfg.Tracing.ServiceName)
	if err != nil {
		logger.Fatalf("failed to init tracing: %v", err)
	}

	chatRepo, checker := openStores(ctx, cfg)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, observability.RoutingKeyAudit, cfg.Tracing.ServiceName, cfg.Env)

	fileSvc := files.NewService(openFileStore(ctx, cfg))

	hub := ws.NewHub()
	chatSvc := services.NewChatService(chatRepo, checker, hub, audit)

	generator, err := ai.NewGenerator(cfg.AI)
	if err != nil {
		logger.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("[AI] generator unavailable, replies will explain the outage")
	}
	orchestrator := ai.NewOrchestrator(generator, fileSvc, chatSvc, audit, cfg.AI.Timeout())
	broadcaster := ws.NewBroadcaster(hub, chatSvc, orchestrator)

	validator := auth.NewValidator(cfg.JWT.Secret)
	wsHandler := ws.NewHandler(hub, broadcaster, validator, cfg.Server.AllowedOrigins)

	runner := execution.NewRunner(execution.NewJudge0Client(cfg.Judge0.BaseURL, cfg.Judge0.APIKey, cfg.Judge0.Host))
	queue := execution.NewQueue(cfg.Redis, runner)
	var worker *execution.Worker
	if queue.IsAsync() {
		worker = execution.NewWorker(cfg.Redis, runner)
		if err := worker.Start(); err != nil {
			logger.Fatalf("failed to start execution worker: %v", err)
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(logger.GinRecovery(), logger.GinLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"rooms":     hub.Rooms(),
			"clients":   hub.Clients(),
			"ai":        generatorName(generator),
			"amqp":      rabbitmq.PublisherMode(publisher),
			"asyncExec": queue.IsAsync(),
		})
	})
	router.GET("/ws", wsHandler.Handle)

	api := router.Group("/api", middleware.AuthMiddleware(validator))
	handlers.NewChatHandler(chatSvc, orchestrator).Register(api.Group("/chat"))
	handlers.NewFileHandler(fileSvc, chatSvc).Register(api.Group("/files"))
	api.POST("/ask-ai", handlers.NewAIHandler(orchestrator, chatSvc).AskAI)
	handlers.NewCodeHandler(runner, queue).Register(api.Group("/code"))
	handlers.RegisterDebugRoutes(router, audit, hub, cfg.Server.Mode == gin.DebugMode)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("project-hub listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	var health *grpchealth.HealthServer
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Fatalf("failed to listen on %s: %v", cfg.Server.GRPCAddr, err)
		}
		health = grpchealth.NewHealthServer()
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error().Err(err).Msg("[gRPC] health server stopped")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if health != nil {
		health.SetServing(false)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	if n := hub.CloseAll(); n > 0 {
		logger.Info().Int("clients", n).Msg("[WS] closed connections")
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending ai requests abandoned")
	}
	if worker != nil {
		worker.Stop()
	}
	if err := queue.Close(); err != nil {
		logger.Warn().Err(err).Msg("execution queue close failed")
	}
	if health != nil {
		health.Stop(shutdownCtx)
	}
	if err := publisher.Close(); err != nil {
		logger.Warn().Err(err).Msg("publisher close failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown failed")
	}
}

// openStores connects chat history and project access. Postgres backs both;
// sqlite is a single-node development mode with in-memory history, and
// "none" skips the project database entirely.
func openStores(ctx context.Context, cfg *config.Config) (repositories.ChatRepository, access.Checker) {
	if cfg.Database.Driver == "none" {
		logger.Warn().Msg("[Access] no project database, every user may join every project")
		return repositories.NewMemoryChatRepo(), access.AllowAll{}
	}

	gdb, err := access.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("failed to open project database: %v", err)
	}
	if err := access.Migrate(gdb); err != nil {
		logger.Fatalf("failed to migrate project database: %v", err)
	}
	checker := access.NewRepo(gdb)

	if cfg.Database.Driver != "postgres" {
		logger.Warn().Str("driver", cfg.Database.Driver).Msg("[Chat] history kept in memory")
		return repositories.NewMemoryChatRepo(), checker
	}
	database, err := db.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("failed to connect to db: %v", err)
	}
	return repositories.NewChatRepo(database), checker
}

func openFileStore(ctx context.Context, cfg *config.Config) files.Store {
	if cfg.Files.Backend != "redis" {
		return files.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatalf("failed to reach redis for file store: %v", err)
	}
	logger.Infof("[Files] redis store on %s", cfg.Redis.Addr)
	return files.NewRedisStore(client, cfg.Tracing.ServiceName)
}

func generatorName(g ai.Generator) string {
	if g == nil {
		return "none"
	}
	return g.Name()
}
