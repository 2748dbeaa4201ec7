package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grc-portal/archive"
	"grc-portal/config"
	"grc-portal/differ"
	"grc-portal/handlers"
	"grc-portal/logger"
	"grc-portal/metrics"
	"grc-portal/repositories"
	"grc-portal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if envErr != nil {
		log.Debug().Msg("no .env file found")
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database initialization failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, diff results will not be cached")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	describer := differ.NewGuarded(buildGenerator(cfg, redisClient, log), cfg.DiffTimeout, log, m)

	var archiver services.VersionArchiver
	if cfg.ArchiveDir != "" {
		a, err := archive.New(cfg.ArchiveDir)
		if err != nil {
			log.Fatal().Err(err).Msg("archive initialization failed")
		}
		archiver = a
	}

	store := repositories.NewStore(db)
	authService := services.NewAuthService(store, cfg.JWTSecret, cfg.JWTExpiration)
	policyService := services.NewPolicyService(store, describer, archiver, log, m)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.SetupRouter(handlers.RouterConfig{
		AuthService:   authService,
		PolicyService: policyService,
		JWTSecret:     cfg.JWTSecret,
		Log:           log,
		Metrics:       m,
		Gatherer:      registry,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("diff_provider", cfg.DiffProvider).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func connectRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// buildGenerator picks the change description backend. A nil result makes
// every edit use the fallback summary and diff.
func buildGenerator(cfg config.Config, redisClient *redis.Client, log zerolog.Logger) differ.Generator {
	var gen differ.Generator
	switch cfg.DiffProvider {
	case "openai":
		openAI, err := differ.NewOpenAI(differ.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		if err != nil {
			log.Warn().Err(err).Msg("openai generator disabled")
			return nil
		}
		gen = openAI
	case "local":
		gen = differ.NewLocal()
	case "none", "":
		return nil
	default:
		log.Warn().Str("provider", cfg.DiffProvider).Msg("unknown diff provider, using local")
		gen = differ.NewLocal()
	}

	if redisClient != nil {
		return differ.NewCached(gen, redisClient, cfg.DiffCacheTTL, log)
	}
	return gen
}
