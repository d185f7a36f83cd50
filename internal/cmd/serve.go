package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bulkops/internal/app/bulkops"
	"bulkops/internal/app/initializer"
	"bulkops/internal/config"
	"bulkops/internal/dispatch"
	"bulkops/internal/domain"
	bulkops_http "bulkops/internal/handler/http/bulkops"
	kafka_handler "bulkops/internal/handler/kafka"
	"bulkops/internal/idempotency"
	"bulkops/internal/infrastructure/database"
	kafka_infra "bulkops/internal/infrastructure/kafka"
	"bulkops/internal/outbox"
	"bulkops/internal/provider"
	"bulkops/internal/provider/catalog"
	"bulkops/internal/provider/search"
	"bulkops/internal/repository/inbox_repo"
	inbox_postgres "bulkops/internal/repository/inbox_repo/postgres"
	inbox_redis "bulkops/internal/repository/inbox_repo/redis"
	"bulkops/internal/repository/outbox_repo"
	outbox_postgres "bulkops/internal/repository/outbox_repo/postgres"
	"bulkops/internal/util"
)

const shutdownTimeout = 15 * time.Second

func NewServeCommand() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the initialize-items consumer and the outbox processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, !skipMigrations, logger)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, runMigrations bool, logger *zap.Logger) error {
	logger.Info("Bulk operations service starting...",
		zap.String("provider", cfg.Provider),
		zap.String("idempotency_store", cfg.Idempotency.Store),
	)

	var db *sql.DB
	if cfg.NeedsDatabase() {
		var err error
		db, err = database.NewPostgresDB(ctx, database.DBConfig{
			DSN:            cfg.GetDBConnectionString(),
			ConnectRetries: 10,
			RetryDelay:     5 * time.Second,
		}, logger.With(zap.String("component", "Database")))
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Error closing database connection", zap.Error(err))
			}
		}()

		if runMigrations {
			if err := database.Migrate(cfg.DB.MigrationsPath, cfg.GetDBMigrationConnectionString(), true, logger); err != nil {
				return err
			}
		}
	}

	topics := cfg.Topics()
	topicCtx, cancelTopics := context.WithTimeout(ctx, 10*time.Second)
	err := kafka_infra.EnsureTopics(topicCtx, cfg.GetKafkaBrokers(),
		[]string{cfg.Kafka.SandboxTopic, cfg.Kafka.InitializeItemsTopic, cfg.Kafka.ProcessTopic},
		logger.With(zap.String("component", "KafkaAdmin")))
	cancelTopics()
	if err != nil {
		return fmt.Errorf("failed to ensure Kafka topics: %w", err)
	}

	producer := kafka_infra.NewProducer(cfg.GetKafkaBrokers(), logger.With(zap.String("component", "KafkaProducer")))
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	var (
		querier    domain.Querier
		outboxRepo outbox_repo.OutboxRepository
		processor  *outbox.Processor
	)
	if cfg.DurableDispatch() {
		querier = db
		outboxRepo = outbox_postgres.NewOutboxRepository()
		processor = outbox.NewProcessor(db, outboxRepo, producer,
			cfg.Outbox.BatchSize, cfg.Outbox.PollInterval, cfg.Outbox.PollTimeout,
			logger.With(zap.String("component", "OutboxProcessor")))
	}
	sender := dispatch.NewSender(cfg.Provider, querier, outboxRepo, producer, dispatch.Topics(topics),
		logger.With(zap.String("component", "Dispatch")))

	inboxRepo, sweeper, closeInbox, err := newInbox(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeInbox()
	guard := idempotency.NewGuard(inboxRepo, logger.With(zap.String("component", "IdempotencyGuard")))

	registry := provider.NewClientRegistry(provider.OAuth2Config{
		TokenURL:     cfg.OAuth2.TokenURL,
		ClientID:     cfg.OAuth2.ClientID,
		ClientSecret: cfg.OAuth2.ClientSecret,
		Scopes:       cfg.OAuth2.Scopes,
	}, cfg.HTTPClientTimeout)

	catalogClient := catalog.NewClient(catalog.Config{
		BulkOperationURI:            cfg.Catalog.BulkOperationURI,
		BulkOperationItemsURI:       cfg.Catalog.BulkOperationItemsURI,
		SupportedBulkOpsURI:         cfg.Catalog.SupportedBulkOpsURI,
		BulkOperationTotalRecordURI: cfg.Catalog.BulkOperationTotalRecordURI,
	}, provider.NewClient(cfg.Catalog.URL, registry.Client(cfg.Catalog.ServiceClient), cfg.Catalog.RateLimit,
		logger.With(zap.String("component", "CatalogClient"))))
	searchClient := search.NewClient(cfg.Search.SearchURI,
		provider.NewClient(cfg.Search.URL, registry.Client(cfg.Search.ServiceClient), cfg.Search.RateLimit,
			logger.With(zap.String("component", "SearchClient"))))

	pipeline, err := initializer.NewPipeline(catalogClient, searchClient, sender, cfg.InitializeItemsBatchSize,
		logger.With(zap.String("component", "InitializeItemsPipeline")))
	if err != nil {
		return err
	}

	service := bulkops.NewBulkOperationService([]bulkops.OperationHandler{
		bulkops.NewCatalogOperationHandler(catalogClient, sender, util.NewULIDGenerator(),
			logger.With(zap.String("component", "CatalogOperationHandler"))),
	}, logger.With(zap.String("component", "BulkOperationService")))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           bulkops_http.NewRouter(service, logger.With(zap.String("component", "HTTP"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	consumer := kafka_infra.NewConsumer(cfg.GetKafkaBrokers(), cfg.Kafka.ConsumerGroup, cfg.Kafka.InitializeItemsTopic,
		logger.With(zap.String("component", "InitializeItemsConsumer")))
	initializeItemsHandler := kafka_handler.InitializeItemsMessageHandler(guard, pipeline,
		logger.With(zap.String("component", "InitializeItemsHandler")))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down application...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
		}
		consumer.Stop()
		return nil
	})
	g.Go(func() error {
		return consumer.Start(gctx, initializeItemsHandler)
	})
	if processor != nil {
		g.Go(func() error { return processor.Start(gctx) })
	}
	if sweeper != nil {
		g.Go(func() error { return sweeper.Start(gctx) })
	}

	err = g.Wait()
	logger.Info("Application shut down.", zap.Error(err))
	return err
}

// newInbox builds the inbox store selected by IDEMPOTENCY_STORE. The sweeper
// is only needed for Postgres; Redis entries expire on their own.
func newInbox(ctx context.Context, cfg *config.Config, db *sql.DB, logger *zap.Logger) (inbox_repo.InboxRepository, *idempotency.Sweeper, func(), error) {
	if cfg.Idempotency.Store == config.StoreRedis {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Idempotency.RedisAddr})
		if err := inbox_redis.Ping(ctx, client); err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error("Error closing redis client", zap.Error(err))
			}
		}
		return inbox_redis.NewInboxRepository(client, cfg.Idempotency.TTL), nil, closeFn, nil
	}

	repo := inbox_postgres.NewInboxRepository(db)
	sweeper, err := idempotency.NewSweeper(repo, cfg.Idempotency.SweepSchedule, cfg.Idempotency.InboxRetention,
		logger.With(zap.String("component", "InboxSweeper")))
	if err != nil {
		return nil, nil, nil, err
	}
	return repo, sweeper, func() {}, nil
}
