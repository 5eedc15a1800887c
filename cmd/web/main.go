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

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"storefront/api"
	"storefront/api/middleware"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logging"
	"storefront/internal/realtime"
	"storefront/internal/services"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}
	if cfg.SeedData {
		if err := database.Seed(db, cfg.SeedCount); err != nil {
			log.WithError(err).Fatal("Failed to seed database")
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Fatal("Failed to get sql handle")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.TokenTTL)
	discountService := services.NewDiscountService(db)

	// The hub's authorizer needs the chat service, which publishes through the hub.
	var chatService *services.ChatService
	hub := realtime.NewHub(func(ctx context.Context, userID, channel string) bool {
		return chatService.Authorize(ctx, userID, channel)
	}, log.WithField("component", "realtime"))

	var publisher realtime.Publisher = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("Invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		broadcaster := realtime.NewRedisBroadcaster(rdb, hub, log.WithField("component", "redis"))
		go func() {
			if err := broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Redis fan-out stopped")
			}
		}()
		publisher = broadcaster
	}
	chatService = services.NewChatService(db, authService, publisher, log.WithField("component", "chat"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log.WithField("component", "ratelimit"))
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	// Setup router
	router := api.NewRouter(api.Deps{
		Auth:                 authService,
		Products:             services.NewProductService(db),
		Carts:                services.NewCartService(db),
		Orders:               services.NewOrderService(db, discountService),
		Discounts:            discountService,
		Discussions:          services.NewDiscussionService(db),
		Chat:                 chatService,
		Hub:                  hub,
		DB:                   sqlDB,
		Registry:             registry,
		RateLimiter:          limiter,
		Log:                  log,
		Release:              cfg.Production(),
		WSInsecureSkipVerify: cfg.WSInsecureSkipVerify,
		WSOriginPatterns:     cfg.OriginPatterns(),
	})

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: websocket connections are long-lived
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Run server in goroutine
	go func() {
		log.WithField("addr", cfg.Addr()).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}
	log.Info("Server shutdown complete")
}
