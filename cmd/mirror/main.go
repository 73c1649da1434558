package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/guildmirror/internal/api"
	"github.com/lalith-99/guildmirror/internal/config"
	"github.com/lalith-99/guildmirror/internal/db"
	"github.com/lalith-99/guildmirror/internal/gateway"
	"github.com/lalith-99/guildmirror/internal/middleware"
	"github.com/lalith-99/guildmirror/internal/mirror"
	"github.com/lalith-99/guildmirror/internal/observ"
	"github.com/lalith-99/guildmirror/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	categoryRepo := postgres.NewCategoryStore(pool)
	channelRepo := postgres.NewChannelStore(pool)
	userRepo := postgres.NewUserStore(pool, logger)
	messageRepo := postgres.NewMessageStore(pool)

	filters := mirror.Filters{
		GuildID:          cfg.GuildID,
		StaffRoleID:      cfg.StaffRoleID,
		IgnoreCategories: cfg.IgnoreCategories,
		StaffCategories:  cfg.StaffCategories,
	}

	// The two readiness gates are shared, explicit objects: topology sync
	// clears/sets the first on every run, roster bootstrap sets the second
	// exactly once. Handlers receive them through their components.
	topologyGate := mirror.NewGate()
	rosterGate := mirror.NewGate()

	topology := mirror.NewTopologySync(categoryRepo, channelRepo, filters, topologyGate, logger)
	members := mirror.NewMemberSync(userRepo, filters, rosterGate, cfg.UserChunkSize, logger)
	messages := mirror.NewMessageRecorder(userRepo, channelRepo, messageRepo, filters, topologyGate, logger)
	coordinator := mirror.NewCoordinator(topology, members, messages, cfg.GuildID, logger)

	// Gateway resume state is best-effort; without Redis every restart
	// falls back to a fresh identify.
	sessions, err := gateway.NewSessionStore(cfg.RedisURL)
	if err != nil {
		logger.Warn("gateway session store unavailable", zap.Error(err))
		sessions = nil
	} else {
		defer sessions.Close()
	}

	client := gateway.NewClient(cfg.GatewayURL, cfg.GatewayToken, coordinator, sessions, logger)

	gatewayDone := make(chan error, 1)
	go func() {
		gatewayDone <- client.Run(ctx)
	}()

	srv := newOpsServer(cfg, coordinator, database, logger)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()

	logger.Info("guildmirror is online",
		zap.Int64("guild_id", cfg.GuildID),
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	select {
	case <-ctx.Done():
	case err := <-gatewayDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("gateway client exited", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown", zap.Error(err))
	}

	return nil
}

func newOpsServer(cfg *config.Config, coordinator *mirror.Coordinator, database *db.DB, logger *zap.Logger) *http.Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	ops := api.NewOpsHandler(coordinator, logger)

	// Health is public so load balancers can probe it.
	engine.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	v1.GET("/status", ops.Status)
	v1.POST("/resync", ops.Resync)

	return &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}
}
