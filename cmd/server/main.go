package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/config"
	"github.com/alarm-messenger/relay-server-go/internal/database"
	"github.com/alarm-messenger/relay-server-go/internal/handler"
	"github.com/alarm-messenger/relay-server-go/internal/jobs"
	"github.com/alarm-messenger/relay-server-go/internal/middleware"
	"github.com/alarm-messenger/relay-server-go/internal/realtime"
	"github.com/alarm-messenger/relay-server-go/internal/redis"
	"github.com/alarm-messenger/relay-server-go/internal/repository"
	"github.com/alarm-messenger/relay-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	var apiLimiter middleware.Limiter
	if redisClient != nil {
		log.Info().Msg("redis connected, using shared rate limiting")
		apiLimiter = middleware.NewRedisLimiter(redisClient.Client, "api", cfg.RateLimitPerWindow, config.RateLimitWindow)
	} else {
		log.Info().Msg("REDIS_URL not set, using in-process rate limiting")
		apiLimiter = middleware.NewLocalLimiter(cfg.RateLimitPerWindow, config.RateLimitWindow)
	}

	emergencyRepo := repository.NewEmergencyRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)
	groupRepo := repository.NewGroupRepository(db.DB)
	responseRepo := repository.NewResponseRepository(db.DB)

	registry := realtime.NewRegistry(
		realtime.WithHeartbeatInterval(cfg.HeartbeatInterval()),
		realtime.WithRegisterTimeout(config.WSRegisterTimeout),
	)
	dispatcher := realtime.NewDispatcher(registry)

	emergencyService := service.NewEmergencyService(emergencyRepo, service.NewTargetResolver(deviceRepo), dispatcher)
	responseService := service.NewResponseService(responseRepo, emergencyService)
	deviceService := service.NewDeviceService(deviceRepo, groupRepo, registry)
	groupService := service.NewGroupService(groupRepo, deviceRepo, db)

	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(cfg.APISecretKey, cfg.APISecretKeyHash)
	rateLimitMiddleware := middleware.NewIPRateLimitMiddleware(apiLimiter, "api")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	infoHandler := handler.NewInfoHandler(cfg.OrganizationName, cfg.ServerURL, db)
	realtimeHandler := handler.NewRealtimeHandler(registry)
	emergencyHandler := handler.NewEmergencyHandler(emergencyService, responseService, apiKeyMiddleware.Handler)
	deviceHandler := handler.NewDeviceHandler(deviceService, registry, cfg.ServerURL, apiKeyMiddleware.Handler)
	groupHandler := handler.NewGroupHandler(groupService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", infoHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// The socket lives far longer than the request timeout below.
	r.Get("/ws", realtimeHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Use(bodyLimitMiddleware.Handler)

		r.Get("/info", infoHandler.Info)
		r.Mount("/emergencies", emergencyHandler.Routes())
		r.Mount("/devices", deviceHandler.Routes())
		r.Route("/groups", func(r chi.Router) {
			r.Use(apiKeyMiddleware.Handler)
			r.Mount("/", groupHandler.Routes())
		})
	})

	expiryJob := jobs.NewExpiryJob(emergencyRepo, cfg.SweepInterval(), cfg.Retention())
	expiryJob.Start()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	registry.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	expiryJob.Stop()
	emergencyService.Wait()

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
