package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authgate/auth-service/internal/auth"
	"github.com/authgate/auth-service/internal/config"
	"github.com/authgate/auth-service/internal/crypto"
	"github.com/authgate/auth-service/internal/event"
	handler "github.com/authgate/auth-service/internal/handler/http"
	"github.com/authgate/auth-service/internal/repository/postgres"
	"github.com/authgate/auth-service/internal/service"
	"github.com/authgate/auth-service/migrations"
	"github.com/authgate/auth-service/pkg/database"
	"github.com/authgate/auth-service/pkg/health"
	"github.com/authgate/auth-service/pkg/kafka"
	"github.com/authgate/auth-service/pkg/tracing"
)

const (
	serviceName    = "auth-service"
	serviceVersion = "1.0.0"

	bcryptCost = 12
)

// App holds the wired application and its owned resources.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	producer *kafka.Producer
	server   *http.Server

	shutdownTracer func(context.Context) error
}

// New wires all components: tracing, postgres (with migrations), kafka,
// the token manager and credential codecs, the service layer, and the
// HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)

	encryptionKey, err := cfg.EncryptionKey()
	if err != nil {
		pool.Close()
		return nil, err
	}
	cipher, err := crypto.NewCipher(encryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.RefreshTokenSecret, cfg.AccessTTL())
	hasher := crypto.NewBcryptHasher(bcryptCost)

	users := postgres.NewUserRepository(pool, cfg.UsersTable)
	events := event.NewPublisher(producer, logger)
	authSvc := service.NewAuthService(users, tokens, cipher, hasher, cfg.Scheme(), events, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	router := handler.NewRouter(handler.RouterConfig{
		Auth:           handler.NewAuthHandler(authSvc, logger),
		Data:           handler.NewDataHandler(),
		Health:         healthHandler,
		TokenValidator: authSvc.Authenticate,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		server:         server,
		shutdownTracer: shutdownTracer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. Shutdown is always attempted before returning.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close(context.Background())
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	}
}

// Shutdown drains the HTTP server, then releases resources in reverse
// dependency order.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	a.close(ctx)

	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) close(ctx context.Context) {
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close failed", slog.String("error", err.Error()))
	}
	a.pool.Close()
	if err := a.shutdownTracer(ctx); err != nil {
		a.logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
	}
}
