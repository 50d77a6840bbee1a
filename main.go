package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/chatsync"
	"chat-client/internal/config"
	"chat-client/internal/handlers"
	"chat-client/internal/logging"
	"chat-client/internal/middleware"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/repositories"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

const (
	serviceName     = "chat-client"
	auditRoutingKey = "audit.chat-client"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(getEnv("CHAT_CONFIG", ""))
	if err != nil {
		slog.Error("failed to load config", logging.Err(err))
		os.Exit(1)
	}

	logger := logging.NewLogger(serviceName, cfg.Logging.Level)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", logging.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", logging.Err(err))
		os.Exit(1)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.Info("event publisher ready", slog.String("mode", rabbitmq.PublisherMode(publisher)), slog.String("reason", rabbitmq.PublisherNoopReason(publisher)))
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, serviceName, cfg.Session.Environment, cfg.Session.TenantCode)

	repo, err := repositories.NewChatRepo(cfg.API.BaseURL, repositories.StaticToken(cfg.API.Token), cfg.API.Timeout)
	if err != nil {
		logger.Error("failed to build api client", logging.Err(err))
		os.Exit(1)
	}

	selfID := cfg.Session.SelfUserID
	coord := chatsync.NewCoordinator(selfID, cfg.Session.TenantCode, chatsync.Deps{Repo: repo, Logger: logger})

	header := http.Header{}
	if cfg.API.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.API.Token)
	}
	client := ws.NewClient(ws.Options{
		URL:          cfg.WebSocket.URL,
		Header:       header,
		PingInterval: cfg.WebSocket.PingInterval,
		Backoff: ws.BackoffOptions{
			InitialInterval: cfg.WebSocket.Backoff.InitialInterval,
			MaxInterval:     cfg.WebSocket.Backoff.MaxInterval,
			Multiplier:      cfg.WebSocket.Backoff.Multiplier,
			Jitter:          cfg.WebSocket.Backoff.Jitter,
			MaxRetries:      cfg.WebSocket.Backoff.MaxRetries,
		},
		Logger: logger,
	}, coord.Handlers())
	coord.AttachSocket(client)

	if err := client.Connect(ctx, selfID); err != nil {
		logger.Error("failed to start websocket session", logging.Err(err))
		os.Exit(1)
	}

	if !cfg.Bridge.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestLogger(logger))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chatHandler := handlers.NewChatHandler(coord, audit)
	notificationHandler := handlers.NewNotificationHandler(coord.Notifications())
	connectionHandler := handlers.NewConnectionHandler(client)

	api := router.Group("/", middleware.AuthMiddleware(cfg.Bridge.Token))
	api.GET("/chats", chatHandler.ListChats)
	api.GET("/chats/watch", chatHandler.WatchChats)
	api.POST("/chats/refresh", chatHandler.RefreshChats)
	api.GET("/chats/:chat_id/messages", chatHandler.GetChatMessages)
	api.POST("/conversations/:user_id/open", chatHandler.OpenConversation)
	api.DELETE("/conversations/focus", chatHandler.CloseConversation)
	api.POST("/messages", chatHandler.PostMessage)
	api.GET("/users", chatHandler.ListUsers)
	api.POST("/session/reset", chatHandler.ResetSession)
	api.GET("/notifications/next", notificationHandler.Next)
	api.GET("/connection", connectionHandler.Get)
	handlers.RegisterDebugRoutes(api, audit, selfID, cfg.Bridge.Debug)

	srv := &http.Server{Addr: cfg.Bridge.Addr, Handler: router}
	go func() {
		logger.Info("bridge listening", slog.String("addr", cfg.Bridge.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("bridge server error", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("bridge shutdown", logging.Err(err))
	}
	coord.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", logging.Err(err))
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
