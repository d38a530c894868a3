package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"giveaway-bot-backend/internal/common/config"
	"giveaway-bot-backend/internal/common/logger"
	"giveaway-bot-backend/internal/common/middleware"
	communityhttp "giveaway-bot-backend/internal/features/community/delivery/http"
	communityrepo "giveaway-bot-backend/internal/features/community/repository"
	communityredis "giveaway-bot-backend/internal/features/community/repository/redis"
	communitysqlite "giveaway-bot-backend/internal/features/community/repository/sqlite"
	communityservice "giveaway-bot-backend/internal/features/community/service"
	giveawayhttp "giveaway-bot-backend/internal/features/giveaway/delivery/http"
	giveawayrepo "giveaway-bot-backend/internal/features/giveaway/repository"
	giveawayredis "giveaway-bot-backend/internal/features/giveaway/repository/redis"
	giveawaysqlite "giveaway-bot-backend/internal/features/giveaway/repository/sqlite"
	giveawayservice "giveaway-bot-backend/internal/features/giveaway/service"
	"giveaway-bot-backend/internal/notifications"
	redisplatform "giveaway-bot-backend/internal/platform/redis"
	sqliteplatform "giveaway-bot-backend/internal/platform/sqlite"
)

func main() {
	cfg := config.Load()
	logger.Init("giveaway-bot-backend", cfg.Debug)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		giveawayRepository  giveawayrepo.GiveawayRepository
		communityRepository communityrepo.ConfigRepository
		db                  *sql.DB
	)

	switch cfg.Storage.Driver {
	case "redis":
		client, err := redisplatform.Open(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()
		giveawayRepository = giveawayredis.NewRepository(client)
		communityRepository = communityredis.NewRepository(client)
		logger.Info().Msg("Redis storage initialized")
	case "sqlite":
		var err error
		db, err = sqliteplatform.Open(cfg.Storage.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Storage.SQLitePath).Msg("Failed to open database")
		}
		defer db.Close()
		giveawayRepository = giveawaysqlite.NewRepository(db)
		communityRepository = communitysqlite.NewRepository(db)
		logger.Info().Str("path", cfg.Storage.SQLitePath).Msg("Database initialized")
	default:
		logger.Fatal().Str("driver", cfg.Storage.Driver).Msg("Unknown storage driver")
	}

	giveawaySvc := giveawayservice.NewGiveawayService(giveawayRepository)
	communitySvc := communityservice.NewConfigService(communityRepository)
	notifier := notifications.NewService(notifications.NewLogSender())

	scheduler := giveawayservice.NewScheduler(giveawayRepository, giveawaySvc, notifier, cfg.Scheduler.Interval)
	scheduler.Start()

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.Origin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		AllowCredentials: true,
	}))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		if db != nil {
			if err := db.Ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	giveawayhttp.NewGiveawayHandler(giveawaySvc, notifier).RegisterRoutes(api)
	communityhttp.NewConfigHandler(communitySvc).RegisterRoutes(api)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Forced shutdown")
	}
	scheduler.Stop()
	logger.Info().Msg("Server stopped")
}
