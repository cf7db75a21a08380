package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveclass/internal/core/ports"
	"liveclass/internal/core/services"
	httphandlers "liveclass/internal/handlers/http"
	"liveclass/internal/infrastructure/middleware"
	"liveclass/internal/infrastructure/monitoring"
	"liveclass/internal/infrastructure/relay"
	"liveclass/internal/infrastructure/reliability"
	"liveclass/internal/infrastructure/repositories"
	"liveclass/internal/infrastructure/repositories/memory"
	redisrepo "liveclass/internal/infrastructure/repositories/redis"
	"liveclass/pkg/circuitbreaker"
	"liveclass/pkg/config"
	"liveclass/pkg/logger"
	"liveclass/pkg/retry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/liveclass/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize room store
	var roomStore ports.RoomStore
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisrepo.NewRedisClient(
			cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, log)
		if err != nil {
			log.Fatalw("failed to connect to Redis", "error", err)
		}
		defer redisrepo.CloseRedisClient(redisClient)

		// Redis-backed store gets retries, a circuit breaker and a short
		// read cache in front of it.
		guarded := reliability.NewRoomStoreWrapper(
			redisrepo.NewRedisRoomStore(redisClient),
			retry.DefaultConfig(),
			circuitbreaker.DefaultConfig(),
			log,
		)
		roomStore = repositories.NewCachedRoomStore(guarded, 5*time.Second)
	} else {
		roomStore = memory.NewRoomStore()
	}

	tokenService := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JoinTokenTTL)

	// Initialize monitoring
	var collector relay.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	relayServer := relay.NewServer(tokenService, relay.ServerConfig{
		PingInterval:      cfg.Relay.PingInterval,
		PongTimeout:       cfg.Relay.PongTimeout,
		WriteTimeout:      cfg.Relay.WriteTimeout,
		MaxMessageBytes:   cfg.Relay.MaxMessageBytes,
		MaxStudents:       cfg.Rooms.MaxStudents,
		MessagesPerSecond: wsRate(cfg),
		MessageBurst:      cfg.RateLimiting.WebSocket.Burst,
	}, collector, log)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddRoomStoreCheck(roomStore, 2*time.Second)
	if redisClient != nil {
		healthChecker.AddRedisCheck(redisClient, 2*time.Second)
	}

	roomHandler := httphandlers.NewRoomHandler(roomStore, tokenService, cfg.Rooms.CodeLength)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	roomHandler.SetupRoutes(router)

	// Signaling endpoint
	router.GET("/ws", gin.WrapF(relayServer.HandleWebSocket))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"rooms":     relayServer.RoomCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := healthChecker.CheckAll(ctx)
		code := 200
		if status.Status != "healthy" {
			code = 503
		}
		c.JSON(code, status)
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting LiveClass relay on %s", cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down LiveClass relay...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	relayServer.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	log.Info("LiveClass relay stopped")
}

func wsRate(cfg *config.Config) float64 {
	if !cfg.RateLimiting.Enabled {
		return 0
	}
	return cfg.RateLimiting.WebSocket.MessagesPerSecond
}
