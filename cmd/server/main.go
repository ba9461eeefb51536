package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/am4rknvl/chatcore/config"
	"github.com/am4rknvl/chatcore/internal/auth"
	"github.com/am4rknvl/chatcore/internal/database"
	"github.com/am4rknvl/chatcore/internal/handlers"
	"github.com/am4rknvl/chatcore/internal/middleware"
	"github.com/am4rknvl/chatcore/internal/realtime"
	"github.com/am4rknvl/chatcore/internal/repository"
	"github.com/am4rknvl/chatcore/internal/services"
	"github.com/am4rknvl/chatcore/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := database.RunMigrations(db.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	store, err := session.NewStore(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis session store")
	}
	defer store.Close()
	store.SetOfflineQueueCap(cfg.Realtime.OfflineQueueCap)
	bus := session.NewBus(store.Client())

	jwtService := auth.NewJWTServiceWithRefresh(cfg.JWT.Secret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	userRepo := repository.NewUserRepository(db)
	chatRoomRepo := repository.NewChatRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	messageService := services.NewMessageService(messageRepo, deliveryRepo, chatRoomRepo)

	registry := realtime.NewRegistry()
	deliveryEngine := realtime.NewDeliveryEngine(registry, store, messageService)
	listener := realtime.NewListener(bus, deliveryEngine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	connCfg := realtime.ConnectionConfig{
		PingInterval:    cfg.Realtime.PingInterval,
		MaxMissedPongs:  cfg.Realtime.MaxMissedPongs,
		RateLimitMax:    cfg.Realtime.RateLimitMaxMsgs,
		RateLimitWindow: cfg.Realtime.RateLimitWindow,
	}
	realtimeHandler := realtime.NewHandler(registry, jwtService, store, bus, messageService, chatRoomRepo, connCfg, cfg.CORS.AllowedOrigins)

	authHandler := handlers.NewAuthHandler(userRepo, jwtService, store)
	chatRoomHandler := handlers.NewChatRoomHandler(chatRoomRepo, store)
	messageHandler := handlers.NewMessageHandler(messageService, bus)

	rateLimiter := middleware.NewRateLimiter(int(cfg.Realtime.RateLimitMaxMsgs))
	rateLimiter.Cleanup()

	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	router.GET("/ws", realtimeHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		api.GET("/me", authHandler.GetMe)

		api.GET("/chatrooms", chatRoomHandler.ListChatRooms)
		api.POST("/chatrooms", chatRoomHandler.CreateChatRoom)
		api.GET("/chatrooms/:id", chatRoomHandler.GetChatRoom)
		api.POST("/chatrooms/:id/participants", chatRoomHandler.AddParticipants)
		api.DELETE("/chatrooms/:id/participants/:user_id", chatRoomHandler.RemoveParticipant)

		api.GET("/messages", messageHandler.GetMessages)
		api.POST("/messages", middleware.RateLimitMiddleware(rateLimiter), messageHandler.SendMessage)
		api.PUT("/messages/read", messageHandler.MarkMessagesAsRead)
		api.DELETE("/messages/:id", messageHandler.DeleteMessage)
		api.PUT("/messages/:id", messageHandler.EditMessage)

		api.GET("/online-users", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"online": registry.Online()})
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("starting chatcore server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Realtime.PingInterval)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
