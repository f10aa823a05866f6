package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"login-service/internal/totp"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	defaultSessionSecret = "test-secret-key"
	defaultAccounts      = "user1:password1:User One:JBSWY3DPEBLW64TMMQ======;user2:password2:User Two:"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Environment string

	Server        ServerConfig
	Session       SessionConfig
	TOTP          TOTPConfig
	Accounts      []AccountSeed
	Logging       LoggingConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	Scylla        ScyllaConfig
	Postgres      PostgresConfig
	KMS           KMSConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig
	Audit         AuditConfig

	accountsErr error
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string

	EnableTLS   bool
	TLSPort     int
	AutoCert    bool
	Domain      string
	CertFile    string
	KeyFile     string
	AutoCertDir string
	Email       string
}

type SessionConfig struct {
	Store         string
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	CookieName    string
	Secret        string
}

type TOTPConfig struct {
	Period int
	Digits int
	// Skew is the number of adjacent intervals accepted on either side of the current one.
	Skew     int
	LogCodes bool
}

// AccountSeed describes one static account. An empty TOTPSecret disables the second factor.
type AccountSeed struct {
	ID          string
	Credential  string
	DisplayName string
	TOTPSecret  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL       string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Database string
	Table    string
}

type ElasticsearchConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Index    string
}

type ScyllaConfig struct {
	Enabled  bool
	Nodes    []string
	Keyspace string
	Username string
	Password string
	CAPath   string
}

type PostgresConfig struct {
	Enabled  bool
	URL      string
	MaxConns int32
	MinConns int32
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
	// Pepper is the secret every pepper version is derived from. Processes sharing a
	// session store must share it.
	Pepper        string
	PepperVersion int
}

type BucketingConfig struct {
	EventBuckets int
}

type AuditConfig struct {
	BufferSize int
	DropIfFull bool
	LogEvents  bool
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", ""),
			Port:           getEnvInt("PORT", 8888),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvDuration("SERVER_REQUEST_TIMEOUT", 10*time.Second),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8888"}),
			EnableTLS:      getEnvBool("TLS_ENABLED", false),
			TLSPort:        getEnvInt("TLS_PORT", 8443),
			AutoCert:       getEnvBool("TLS_AUTOCERT", false),
			Domain:         getEnv("TLS_DOMAIN", "localhost"),
			CertFile:       getEnv("TLS_CERT_FILE", ""),
			KeyFile:        getEnv("TLS_KEY_FILE", ""),
			AutoCertDir:    getEnv("TLS_AUTOCERT_DIR", "./certs"),
			Email:          getEnv("TLS_EMAIL", ""),
		},
		Session: SessionConfig{
			Store:         strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
			IdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 30*time.Second),
			CookieName:    getEnv("SESSION_COOKIE_NAME", "sid"),
			Secret:        getEnv("SESSION_SECRET", defaultSessionSecret),
		},
		TOTP: TOTPConfig{
			Period:   getEnvInt("TOTP_PERIOD", 30),
			Digits:   getEnvInt("TOTP_DIGITS", 6),
			Skew:     getEnvInt("TOTP_SKEW", 0),
			LogCodes: getEnvBool("TOTP_LOG_CODES", env != "production"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			PoolSize:  getEnvInt("REDIS_POOL_SIZE", 20),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "session_data:"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "login-audit"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:      getEnv("CLICKHOUSE_URL", "http://localhost:9000"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "default"),
			Table:    getEnv("CLICKHOUSE_AUDIT_TABLE", "login_events"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:  getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:      getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username: getEnv("ELASTICSEARCH_USERNAME", ""),
			Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:    getEnv("ELASTICSEARCH_AUDIT_INDEX", "login-events"),
		},
		Scylla: ScyllaConfig{
			Enabled:  getEnvBool("SCYLLA_ENABLED", false),
			Nodes:    getEnvList("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "login"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
			CAPath:   getEnv("SCYLLA_CA_PATH", ""),
		},
		Postgres: PostgresConfig{
			Enabled:  getEnvBool("POSTGRES_ENABLED", false),
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/testresults"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 0)),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("AWS_REGION", "us-east-1"),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_KB", 19*1024),
			Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 2),
			Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 1),
			Pepper:            getEnv("HASH_PEPPER", ""),
			PepperVersion:     getEnvInt("HASH_PEPPER_VERSION", 1),
		},
		Bucketing: BucketingConfig{
			EventBuckets: getEnvInt("EVENT_BUCKETS", 64),
		},
		Audit: AuditConfig{
			BufferSize: getEnvInt("AUDIT_BUFFER_SIZE", 1024),
			DropIfFull: getEnvBool("AUDIT_DROP_IF_FULL", true),
			LogEvents:  getEnvBool("AUDIT_LOG_EVENTS", true),
		},
	}

	cfg.Accounts, cfg.accountsErr = ParseAccounts(getEnv("ACCOUNTS", defaultAccounts))

	if cfg.Hashing.Pepper == "" {
		cfg.Hashing.Pepper = cfg.Session.Secret
	}

	return cfg
}

// ParseAccounts parses "id:credential:Display Name:SECRET" entries separated by ';'.
func ParseAccounts(raw string) ([]AccountSeed, error) {
	var seeds []AccountSeed
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("account entry %q: expected id:credential:name[:secret]", entry)
		}
		seed := AccountSeed{
			ID:          strings.TrimSpace(parts[0]),
			Credential:  parts[1],
			DisplayName: strings.TrimSpace(parts[2]),
		}
		if len(parts) == 4 {
			seed.TOTPSecret = strings.TrimSpace(parts[3])
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("session idle timeout must be positive"))
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis session store requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("session secret must be set"))
	}
	if c.IsProduction() && c.Session.Secret == defaultSessionSecret {
		errs = append(errs, errors.New("SESSION_SECRET must be changed in production"))
	}
	if c.TOTP.Period <= 0 {
		errs = append(errs, errors.New("totp period must be positive"))
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		errs = append(errs, fmt.Errorf("totp digits must be 6..8, got %d", c.TOTP.Digits))
	}
	if c.TOTP.Skew < 0 {
		errs = append(errs, errors.New("totp skew must not be negative"))
	}
	if c.Hashing.Pepper == "" {
		errs = append(errs, errors.New("HASH_PEPPER or SESSION_SECRET must be set"))
	}
	if c.Hashing.PepperVersion < 1 {
		errs = append(errs, fmt.Errorf("pepper version must be at least 1, got %d", c.Hashing.PepperVersion))
	}
	if c.KMS.Enabled && c.KMS.KeyID == "" {
		errs = append(errs, errors.New("KMS_KEY_ID is required when KMS is enabled"))
	}

	if c.accountsErr != nil {
		errs = append(errs, c.accountsErr)
	} else if len(c.Accounts) == 0 {
		errs = append(errs, errors.New("no accounts configured"))
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.ID == "" || a.Credential == "" {
			errs = append(errs, fmt.Errorf("account %q: id and credential are required", a.ID))
			continue
		}
		if _, dup := seen[a.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate account %q", a.ID))
		}
		if a.TOTPSecret != "" {
			if _, err := totp.DecodeSecret(a.TOTPSecret); err != nil {
				errs = append(errs, fmt.Errorf("account %q: %w", a.ID, err))
			}
		}
		seen[a.ID] = struct{}{}
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
