package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"login-service/internal/audit"
	"login-service/internal/bucketing"
	"login-service/internal/client"
	"login-service/internal/config"
	"login-service/internal/encryption"
	"login-service/internal/hashing"
	"login-service/internal/metrics"
	"login-service/internal/models"
	"login-service/internal/repository/memory"
	"login-service/internal/repository/postgres"
	redisrepo "login-service/internal/repository/redis"
	"login-service/internal/repository/scylla"
	"login-service/internal/service"
	"login-service/internal/tls"
	"login-service/internal/util"
)

const initTimeout = 30 * time.Second

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager
	metrics    *metrics.Metrics

	// Clients, nil unless enabled
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	postgresPool     *pgxpool.Pool

	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager

	accounts       *memory.AccountRepository
	sessions       service.SessionStore
	sessionCloser  io.Closer
	dispatcher     *audit.Dispatcher
	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads and validates configuration, initializes the global logger and
// builds every dependency.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	return New(ctx, cfg)
}

// New builds the dependency graph for an already validated configuration.
func New(ctx context.Context, cfg *config.Config) (*Factory, error) {
	f := &Factory{
		config:  cfg,
		metrics: metrics.New(),
		closed:  make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewManager(cfg.Server, cfg.IsProduction())
	}

	if err := f.initializeManagers(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	if err := f.initializeClients(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := f.initializeRepositories(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	f.initializeAudit(ctx)

	f.serviceFactory = service.NewServiceFactory(
		f.accounts,
		f.sessions,
		f.hasher,
		f.encryptionManager,
		f.dispatcher,
		f.metrics,
		cfg.TOTP,
	)

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("session_store", cfg.Session.Store),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", f.encryptionManager.UsesKMS()),
	)

	return f, nil
}

// initializeManagers initializes hashing, encryption, and bucketing managers
func (f *Factory) initializeManagers(ctx context.Context) error {
	hasher, err := hashing.NewHasher(f.config.Hashing)
	if err != nil {
		return err
	}
	f.hasher = hasher

	var kmsClient encryption.KMSAPI
	if f.config.KMS.Enabled {
		c, err := encryption.NewKMSClient(ctx, f.config.KMS)
		if err != nil {
			return err
		}
		kmsClient = c
	}
	if f.encryptionManager, err = encryption.NewEncryptionManager(f.config.KMS, kmsClient); err != nil {
		return err
	}

	f.bucketingManager = bucketing.NewBucketingManager(f.config.Bucketing)

	util.Info("Managers initialized successfully",
		util.Int("pepper_version", f.hasher.PepperVersion()),
		util.Bool("kms", f.encryptionManager.UsesKMS()),
		util.Int("event_buckets", f.bucketingManager.EventBuckets()),
	)
	return nil
}

// initializeClients connects to every enabled backend. Outside production a failing
// optional backend is logged and skipped.
func (f *Factory) initializeClients(ctx context.Context) error {
	cfg := f.config
	var initErrors []error

	if cfg.Session.Store == config.SessionStoreRedis {
		if c, err := client.NewRedisClient(ctx, cfg.Redis); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
		} else {
			f.redisClient = c
			util.Info("Redis client initialized and healthy")
		}
	}

	if cfg.Scylla.Enabled {
		if c, err := scylla.NewScyllaClient(cfg.Scylla); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			f.scyllaClient = c
			util.Info("ScyllaDB client initialized")
		}
	}

	if cfg.Kafka.Enabled {
		if p, err := client.NewKafkaProducer(cfg.Kafka); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = p
			util.Info("Kafka producer initialized", util.String("topic", cfg.Kafka.Topic))
		}
	}

	if cfg.Elasticsearch.Enabled {
		if c, err := client.NewElasticsearchClient(ctx, cfg.Elasticsearch, cfg.IsDevelopment()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = c
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	if cfg.Clickhouse.Enabled {
		if c, err := client.NewClickHouseClient(ctx, cfg.Clickhouse, cfg.IsProduction()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = c
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	if cfg.Postgres.Enabled {
		if pool, err := client.NewPostgresPool(ctx, cfg.Postgres); err != nil {
			initErrors = append(initErrors, fmt.Errorf("postgres: %w", err))
		} else {
			f.postgresPool = pool
			util.Info("Postgres pool initialized")
		}
	}

	if len(initErrors) > 0 {
		if cfg.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %w", errors.Join(initErrors...))
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}
	return nil
}

func (f *Factory) initializeRepositories(ctx context.Context) error {
	accounts, err := memory.NewAccountRepository(ctx, f.config.Accounts, f.hasher, f.encryptionManager)
	if err != nil {
		return err
	}
	f.accounts = accounts

	if f.redisClient != nil {
		cache := redisrepo.NewSessionCache(f.redisClient, f.config.Redis.KeyPrefix, f.config.Session.IdleTimeout)
		f.sessions, f.sessionCloser = cache, cache
		return nil
	}
	if f.config.Session.Store == config.SessionStoreRedis {
		util.Warn("Redis unavailable - falling back to in-memory sessions")
	}
	store := memory.NewSessionStore(f.config.Session.IdleTimeout, f.config.Session.SweepInterval)
	f.sessions, f.sessionCloser = store, store
	return nil
}

// initializeAudit fans audit events out to every sink whose backend is up.
func (f *Factory) initializeAudit(ctx context.Context) {
	var sinks audit.MultiSink

	if f.config.Audit.LogEvents {
		sinks = append(sinks, audit.NewLogSink(util.Get()))
	}
	if f.kafkaProducer != nil {
		sinks = append(sinks, audit.NewKafkaSink(f.kafkaProducer))
	}
	if f.esClient != nil {
		sinks = append(sinks, audit.NewElasticsearchSink(f.esClient, f.config.Elasticsearch.Index))
	}
	if f.clickhouseClient != nil {
		s := audit.NewClickHouseSink(f.clickhouseClient, f.config.Clickhouse.Table)
		if err := s.EnsureSchema(ctx); err != nil {
			util.Warn("ClickHouse audit table unavailable", util.ErrorField(err))
		} else {
			sinks = append(sinks, s)
		}
	}
	if f.scyllaClient != nil {
		sinks = append(sinks, scylla.NewSecurityEventRepository(f.scyllaClient))
	}
	if f.postgresPool != nil {
		repo := postgres.NewLoginEventRepository(f.postgresPool)
		if err := repo.EnsureSchema(ctx); err != nil {
			util.Warn("Postgres audit table unavailable", util.ErrorField(err))
		} else {
			sinks = append(sinks, repo)
		}
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}

	var sink audit.Sink = audit.NoOpSink{}
	if len(sinks) > 0 {
		sink = sinks
	}
	f.dispatcher = audit.NewDispatcher(f.config.Audit, sink, f.bucketingManager)
	f.metrics.RegisterAuditCounters(f.dispatcher.Dropped, f.dispatcher.Failed)

	util.Info("Audit dispatcher started", util.Strings("sinks", names))
}

// ==============================
// Health Checks
// ==============================

// HealthCheck reports every configured backend; a nil value means healthy.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	results := map[string]error{"sessions": nil}

	if f.redisClient != nil {
		results["sessions"] = f.redisClient.HealthCheck(ctx)
	} else if f.config.Session.Store == config.SessionStoreRedis {
		results["sessions"] = errors.New("redis client not initialized, using memory")
	}

	if f.scyllaClient != nil {
		results["scylla"] = f.scyllaClient.HealthCheck(ctx)
	} else if f.config.Scylla.Enabled {
		results["scylla"] = errors.New("scylla client not initialized")
	}

	if f.esClient != nil {
		results["elasticsearch"] = f.esClient.HealthCheck(ctx)
	} else if f.config.Elasticsearch.Enabled {
		results["elasticsearch"] = errors.New("elasticsearch client not initialized")
	}

	if f.clickhouseClient != nil {
		results["clickhouse"] = f.clickhouseClient.HealthCheck(ctx)
	} else if f.config.Clickhouse.Enabled {
		results["clickhouse"] = errors.New("clickhouse client not initialized")
	}

	if f.postgresPool != nil {
		results["postgres"] = client.PingPostgres(ctx, f.postgresPool, 2*time.Second)
	} else if f.config.Postgres.Enabled {
		results["postgres"] = errors.New("postgres pool not initialized")
	}

	if f.kafkaProducer != nil {
		results["kafka"] = f.kafkaProducer.HealthCheck(ctx)
	}

	return results
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	for name, err := range f.HealthCheck(ctx) {
		if name != "kafka" && err != nil {
			return false
		}
	}
	return true
}

// Close flushes the audit queue and then releases every client.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.dispatcher != nil {
			f.dispatcher.Close()
			util.Info("Audit dispatcher drained",
				util.Int("dropped", int(f.dispatcher.Dropped())),
				util.Int("failed", int(f.dispatcher.Failed())))
		}

		if f.sessionCloser != nil {
			if err := f.sessionCloser.Close(); err != nil {
				util.Error("Failed to close session store", util.ErrorField(err))
			}
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			_ = f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			_ = f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.postgresPool != nil {
			f.postgresPool.Close()
			util.Info("Postgres pool closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}

func (f *Factory) Metrics() *metrics.Metrics {
	return f.metrics
}

func (f *Factory) LoginService() (*service.LoginService, error) {
	return f.serviceFactory.LoginService()
}

// Accounts lists the seeded accounts for the startup banner.
func (f *Factory) Accounts(ctx context.Context) ([]*models.Account, error) {
	return f.accounts.List(ctx)
}
