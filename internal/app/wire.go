package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/cryptowallet/internal/blob/s3"
	"github.com/alanyoungcy/cryptowallet/internal/cache/redis"
	"github.com/alanyoungcy/cryptowallet/internal/config"
	"github.com/alanyoungcy/cryptowallet/internal/domain"
	"github.com/alanyoungcy/cryptowallet/internal/pipeline"
	"github.com/alanyoungcy/cryptowallet/internal/platform/coincap"
	"github.com/alanyoungcy/cryptowallet/internal/server/handler"
	"github.com/alanyoungcy/cryptowallet/internal/service"
	"github.com/alanyoungcy/cryptowallet/internal/store/postgres"
)

// Dependencies bundles every dependency that the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	WalletStore       domain.WalletStore
	AssetStore        domain.AssetStore
	PriceHistoryStore domain.PriceHistoryStore
	AuditStore        domain.AuditStore

	// Upstream
	MarketData domain.MarketData

	// Optional: nil when rate limiting or archiving is disabled.
	RateLimiter domain.RateLimiter
	BlobWriter  domain.BlobWriter
	Archive     domain.Archiver

	// Services
	Wallets   *service.WalletService
	Refresher *pipeline.PriceRefresher
	Archiver  *pipeline.Archiver

	// Health lists the dependencies reported by GET /health.
	Health map[string]handler.Pinger
}

// pingFunc adapts a health probe with a different method name to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Health: map[string]handler.Pinger{}}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Health["postgres"] = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.WalletStore = postgres.NewWalletStore(pool)
	deps.AssetStore = postgres.NewAssetStore(pool)
	historyStore := postgres.NewPriceHistoryStore(pool)
	deps.PriceHistoryStore = historyStore
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Market data ---
	deps.MarketData = coincap.NewClient(coincap.ClientConfig{
		BaseURL: cfg.MarketData.BaseURL,
		APIKey:  cfg.MarketData.APIKey,
		Timeout: cfg.MarketData.Timeout.Duration,
	}, logger)

	// --- Redis (rate limiting only) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Health["redis"] = redisClient
		if cfg.RateLimit.Enabled {
			deps.RateLimiter = redis.NewRateLimiter(redisClient)
		}
	}

	// --- S3 price history archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Health["s3"] = pingFunc(s3Client.Health)
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archive = s3blob.NewPriceHistoryArchive(deps.BlobWriter, historyStore, deps.AuditStore)
		deps.Archiver = pipeline.NewArchiver(deps.Archive, cfg.Archive.RetentionDays,
			logger.With(slog.String("component", "archiver")))
	}

	// --- Services ---
	evaluator := service.NewEvaluator(deps.MarketData, time.Now, logger.With(slog.String("component", "evaluator")))
	deps.Wallets = service.NewWalletService(
		deps.WalletStore,
		deps.AssetStore,
		deps.PriceHistoryStore,
		deps.MarketData,
		evaluator,
		logger.With(slog.String("component", "wallet_service")),
	)

	if cfg.Refresh.Enabled {
		deps.Refresher = pipeline.NewPriceRefresher(
			deps.AssetStore,
			deps.PriceHistoryStore,
			deps.MarketData,
			cfg.Refresh.PoolSize,
			logger.With(slog.String("component", "price_refresher")),
		)
	}

	return deps, cleanup, nil
}
