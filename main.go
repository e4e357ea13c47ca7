package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/readstate"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	configPath := flag.String("c", "", "comma-separated list of config files")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	} else {
		cfg = config.FromEnv()
	}

	log, err := buildLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		log.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	defer rdb.Close()

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.Env, cfg.Otel.Endpoint)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	publisher := notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	defer publisher.Close()
	log.Info("rabbitmq publisher ready",
		zap.String("mode", notify.PublisherMode(publisher)),
		zap.String("noop_reason", notify.PublisherNoopReason(publisher)))

	eventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		log.Warn("events publisher disabled", zap.Error(err))
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	dispatcher := notify.NewAMQPDispatcher(publisher, cfg.AMQP.PushRoutingKey)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditKey, serviceName, cfg.Env, log)

	chatRepo := repositories.NewChatRepo(database)
	memberRepo := repositories.NewMemberRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)
	eventRepo := repositories.NewEventRepo(database)
	attachmentRepo := repositories.NewAttachmentRepo(database)
	systemRepo := repositories.NewSystemMessageRepo(database, messageRepo)

	engine := readstate.NewEngine(messageRepo, memberRepo)
	sessions := auth.NewSessionStore(rdb, cfg.Redis.SessionPrefix)

	hub := ws.NewHub(log)
	fanout := ws.NewFanout(hub, memberRepo, systemRepo, dispatcher, log)
	userWS := ws.NewUserWebSocketHandler(hub, sessions, memberRepo, userRepo, engine, fanout, log)

	chatHandler := handlers.NewChatHandler(chatRepo, memberRepo, messageRepo, userRepo,
		eventRepo, systemRepo, engine, fanout, audit, log)
	memberHandler := handlers.NewMemberHandler(chatRepo, memberRepo, userRepo, systemRepo, fanout, audit, log)
	messageHandler := handlers.NewMessageHandler(memberRepo, messageRepo, attachmentRepo,
		eventRepo, systemRepo, engine, fanout, log)
	attachmentHandler := handlers.NewAttachmentHandler(memberRepo, attachmentRepo)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	authMiddleware := middleware.AuthMiddleware(sessions)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats/direct", authMiddleware, chatHandler.CreateDirectChat)
	router.POST("/chats/group", authMiddleware, chatHandler.CreateGroupChat)
	router.POST("/chats/event", authMiddleware, chatHandler.CreateEventChat)
	router.GET("/chats/:chat_id", authMiddleware, chatHandler.GetChat)
	router.PATCH("/chats/:chat_id", authMiddleware, chatHandler.UpdateGroupChat)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.DeleteChat)
	router.POST("/chats/:chat_id/truncate", authMiddleware, chatHandler.TruncateChat)
	router.POST("/chats/:chat_id/actions", authMiddleware, chatHandler.ChatAction)

	router.POST("/chats/:chat_id/join", authMiddleware, memberHandler.Join)
	router.POST("/chats/:chat_id/leave", authMiddleware, memberHandler.Leave)
	router.POST("/chats/:chat_id/invite", authMiddleware, memberHandler.Invite)
	router.GET("/chats/:chat_id/members", authMiddleware, memberHandler.ListMembers)
	router.DELETE("/chats/:chat_id/members/:member_id", authMiddleware, memberHandler.Kick)
	router.PATCH("/chats/:chat_id/members/:member_id/role", authMiddleware, memberHandler.ChangeRole)

	router.POST("/chats/:chat_id/messages", authMiddleware, messageHandler.Send)
	router.GET("/chats/:chat_id/messages", authMiddleware, messageHandler.List)
	router.POST("/chats/:chat_id/messages/:message_id/pin", authMiddleware, messageHandler.Pin)
	router.DELETE("/chats/:chat_id/messages/:message_id/pin", authMiddleware, messageHandler.Unpin)
	router.POST("/chats/:chat_id/read", authMiddleware, messageHandler.MarkRead)
	router.DELETE("/chats/:chat_id/messages/:message_id/all", authMiddleware, messageHandler.DeleteForAll)
	router.DELETE("/chats/:chat_id/messages/:message_id/me", authMiddleware, messageHandler.DeleteForMe)

	router.GET("/chats/:chat_id/media", authMiddleware, attachmentHandler.ListMedia)
	router.GET("/chats/:chat_id/links", authMiddleware, attachmentHandler.ListLinks)

	router.GET("/ws", userWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.Debug)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		WriteTimeout: cfg.WriteTimeout,
	}
	log.Info("starting server",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("env", cfg.Env))
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "dev" || cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
