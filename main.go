package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigauth/internal/app"
	"gigauth/internal/config"
	"gigauth/internal/metrics"
	"gigauth/internal/models"
	"gigauth/internal/repositories"
	"gigauth/internal/services"
	"gigauth/pkg/logger"
	"gigauth/pkg/rabbitmq"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func main() {
	cfg, err := config.Load(viper.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stores")
	}
	defer stores.close()

	// --- Account events (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Retries: 5, Delay: 2 * time.Second})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize RabbitMQ client")
		}
		defer mqClient.Close()
		publisher = mqClient

		err = mqClient.ConsumeAccountEvents(func(event models.AccountEvent) error {
			metrics.AccountEventsConsumedTotal.WithLabelValues(event.Type).Inc()
			log.Info().
				Str("component", "audit").
				Str("event", event.Type).
				Str("user_id", event.UserID).
				Time("occurred_at", event.OccurredAt).
				Msg("account event")
			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to start account event consumer")
		}
	}

	// --- Services ---
	tokenService := services.NewTokenService(stores.tokens, cfg.JWTSecret, cfg.TokenTTL, log)
	authService := services.NewAuthService(
		stores.users,
		tokenService,
		services.NewBcryptHasher(cfg.BcryptCost),
		publisher,
		log,
	)

	go tokenService.RunSweeper(ctx, cfg.SweepInterval)

	server := app.NewApp(app.Options{
		AuthService: authService,
		Logger:      log,
		RequestLog:  true,
		Checks:      stores.checks,
	})

	go func() {
		log.Info().Str("addr", cfg.AppPort).Msg("starting server")
		if err := server.Listen(cfg.AppPort); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server gracefully stopped")
}

type stores struct {
	users   repositories.UserRepository
	tokens  repositories.TokenRepository
	checks  map[string]func() error
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects only the backends the configuration selects.
func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	s := &stores{checks: map[string]func() error{}}

	if cfg.UsesGORM() {
		db, err := repositories.OpenGORM(cfg.DBDialect, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		s.checks["database"] = sqlDB.Ping
		s.closers = append(s.closers, func() { _ = sqlDB.Close() })
		if cfg.UserStore == "gorm" {
			s.users = repositories.NewGORMUserRepository(db)
		}
		if cfg.TokenStore == "gorm" {
			s.tokens = repositories.NewGORMTokenRepository(db)
		}
		log.Info().Str("dialect", cfg.DBDialect).Msg("database ready")
	}

	if cfg.UsesMongo() {
		client, db, err := repositories.ConnectMongo(ctx, repositories.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB})
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Disconnect(context.Background()) })
		if err := repositories.EnsureMongoIndexes(ctx, db); err != nil {
			s.close()
			return nil, err
		}
		s.checks["mongo"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx, nil)
		}
		if cfg.UserStore == "mongo" {
			s.users = repositories.NewMongoUserRepository(db)
		}
		if cfg.TokenStore == "mongo" {
			s.tokens = repositories.NewMongoTokenRepository(db)
		}
		log.Info().Str("database", cfg.MongoDB).Msg("mongo ready")
	}

	if cfg.TokenStore == "redis" {
		client, err := repositories.ConnectRedis(ctx, repositories.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.checks["redis"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		}
		s.tokens = repositories.NewRedisTokenRepository(client)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis ready")
	}

	if cfg.UserStore == "memory" {
		s.users = repositories.NewMockUserRepository()
	}
	if cfg.TokenStore == "memory" {
		s.tokens = repositories.NewMockTokenRepository()
	}
	return s, nil
}
