package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Timeouts  TimeoutConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Secrets   SecretsConfig
	NATS      NATSConfig
	Sentry    SentryConfig
}

// AppConfig holds pipeline-level configuration
type AppConfig struct {
	Environment     string
	LogLevel        string
	ServiceName     string
	CSVFilePath     string
	RunTimeout      int // seconds, whole ingestion run
	InsertBatchSize int
	FailedThreshold int // failed-cluster detector default
	TopAgentsLimit  int // top-agents detector default
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int // per-request budget enforced by middleware
	CORSOrigins    string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
	// CredentialsRef points at a secret holding "user"/"password" entries.
	// Resolved through pkg/secrets when a provider is configured.
	CredentialsRef string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Default Redis socket timeouts in seconds.
const (
	DefaultRedisReadTimeout  = 3
	DefaultRedisWriteTimeout = 3
)

// DefaultRedisReadTimeoutDuration returns the default read timeout.
func DefaultRedisReadTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisReadTimeout) * time.Second
}

// DefaultRedisWriteTimeoutDuration returns the default write timeout.
func DefaultRedisWriteTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisWriteTimeout) * time.Second
}

// TimeoutConfig holds per-dependency operation timeouts in seconds. Zero
// values fall back to RedisOperationTimeout, then to the package defaults.
type TimeoutConfig struct {
	RedisReadTimeout      int
	RedisWriteTimeout     int
	RedisOperationTimeout int
}

// RedisReadTimeoutDuration resolves the effective read timeout.
func (c TimeoutConfig) RedisReadTimeoutDuration() time.Duration {
	if c.RedisReadTimeout > 0 {
		return time.Duration(c.RedisReadTimeout) * time.Second
	}
	if c.RedisOperationTimeout > 0 {
		return time.Duration(c.RedisOperationTimeout) * time.Second
	}
	return DefaultRedisReadTimeoutDuration()
}

// RedisWriteTimeoutDuration resolves the effective write timeout.
func (c TimeoutConfig) RedisWriteTimeoutDuration() time.Duration {
	if c.RedisWriteTimeout > 0 {
		return time.Duration(c.RedisWriteTimeout) * time.Second
	}
	if c.RedisOperationTimeout > 0 {
		return time.Duration(c.RedisOperationTimeout) * time.Second
	}
	return DefaultRedisWriteTimeoutDuration()
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool
	WindowSeconds  int
	DefaultLimit   int
	DefaultBurst   int
	AnonymousLimit int
	AnonymousBurst int
	RedisPrefix    string
	// EndpointOverrides tightens or loosens limits for specific routes.
	EndpointOverrides map[string]EndpointRateLimitConfig
}

// EndpointRateLimitConfig overrides rate limits for a single route. Zero
// limits fall back to the top-level defaults and a zero window falls back to
// Window(); bursts apply as given.
type EndpointRateLimitConfig struct {
	AuthenticatedLimit int
	AuthenticatedBurst int
	AnonymousLimit     int
	AnonymousBurst     int
	WindowSeconds      int
}

// Window returns the rate limit window as a duration, defaulting to one
// minute when unset or invalid.
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	Enabled   bool
	JWTSecret string

	// Signing-key rotation. With no key file and no Vault settings the
	// verifier falls back to JWTSecret as a static legacy key.
	KeyFile        string
	RotationHours  int
	GraceHours     int
	VaultPath      string
	VaultAddress   string
	VaultToken     string
	VaultNamespace string
}

// StorageConfig holds object storage configuration for input batches
type StorageConfig struct {
	Provider  string // "s3" or "local"
	Bucket    string
	Region    string
	Endpoint  string // for S3-compatible storage
	AccessKey string
	SecretKey string
	LocalPath string
}

// SecretsConfig selects and configures the secret backend
type SecretsConfig struct {
	Provider        string // "", "vault", "aws", "gcp", "kubernetes"
	CacheTTLSeconds int
	VaultAddress    string
	VaultToken      string
	VaultMountPath  string
	AWSRegion       string
	AWSEndpoint     string
	GCPProjectID    string
	GCPCredentials  string // path to a credentials file
	KubernetesDir   string // mounted secrets directory
}

// NATSConfig holds signal publication configuration
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN        string
	SampleRate float64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Environment:     getEnv("ENVIRONMENT", "development"),
			LogLevel:        getEnv("LOG_LEVEL", ""),
			ServiceName:     serviceName,
			CSVFilePath:     getEnv("CSV_FILE_PATH", ""),
			RunTimeout:      getEnvAsInt("INGESTION_RUN_TIMEOUT", 600),
			InsertBatchSize: getEnvAsInt("INSERT_BATCH_SIZE", 500),
			FailedThreshold: getEnvAsInt("FAILED_CLUSTER_THRESHOLD", 2),
			TopAgentsLimit:  getEnvAsInt("TOP_AGENTS_LIMIT", 50),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 10),
			RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT", 30),
			CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "fraudscreening"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			CredentialsRef: getEnv("DB_CREDENTIALS_REF", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Timeouts: TimeoutConfig{
			RedisReadTimeout:      getEnvAsInt("REDIS_READ_TIMEOUT", 0),
			RedisWriteTimeout:     getEnvAsInt("REDIS_WRITE_TIMEOUT", 0),
			RedisOperationTimeout: getEnvAsInt("REDIS_OPERATION_TIMEOUT", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			DefaultLimit:   getEnvAsInt("RATE_LIMIT_DEFAULT_LIMIT", 100),
			DefaultBurst:   getEnvAsInt("RATE_LIMIT_DEFAULT_BURST", 10),
			AnonymousLimit: getEnvAsInt("RATE_LIMIT_ANONYMOUS_LIMIT", 30),
			AnonymousBurst: getEnvAsInt("RATE_LIMIT_ANONYMOUS_BURST", 5),
			RedisPrefix:    getEnv("RATE_LIMIT_REDIS_PREFIX", "rl"),
			EndpointOverrides: map[string]EndpointRateLimitConfig{
				// Ingestion runs hold a transaction over the whole batch, so
				// they get a far tighter budget than read endpoints.
				"/api/v1/ingestion/runs": {
					AuthenticatedLimit: getEnvAsInt("RATE_LIMIT_INGESTION_LIMIT", 2),
					AuthenticatedBurst: getEnvAsInt("RATE_LIMIT_INGESTION_BURST", 1),
					AnonymousLimit:     getEnvAsInt("RATE_LIMIT_INGESTION_ANON_LIMIT", 1),
					WindowSeconds:      getEnvAsInt("RATE_LIMIT_INGESTION_WINDOW_SECONDS", 300),
				},
			},
		},
		Auth: AuthConfig{
			Enabled:        getEnvAsBool("AUTH_ENABLED", false),
			JWTSecret:      getEnv("JWT_SECRET", ""),
			KeyFile:        getEnv("JWT_KEY_FILE", ""),
			RotationHours:  getEnvAsInt("JWT_ROTATION_HOURS", 0),
			GraceHours:     getEnvAsInt("JWT_GRACE_HOURS", 0),
			VaultPath:      getEnv("JWT_VAULT_PATH", ""),
			VaultAddress:   getEnv("JWT_VAULT_ADDR", getEnv("VAULT_ADDR", "")),
			VaultToken:     getEnv("JWT_VAULT_TOKEN", getEnv("VAULT_TOKEN", "")),
			VaultNamespace: getEnv("JWT_VAULT_NAMESPACE", ""),
		},
		Storage: StorageConfig{
			Provider:  getEnv("STORAGE_PROVIDER", "local"),
			Bucket:    getEnv("STORAGE_BUCKET", ""),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "."),
		},
		Secrets: SecretsConfig{
			Provider:        getEnv("SECRETS_PROVIDER", ""),
			CacheTTLSeconds: getEnvAsInt("SECRETS_CACHE_TTL", 300),
			VaultAddress:    getEnv("VAULT_ADDR", ""),
			VaultToken:      getEnv("VAULT_TOKEN", ""),
			VaultMountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
			AWSRegion:       getEnv("AWS_REGION", ""),
			AWSEndpoint:     getEnv("AWS_SECRETS_ENDPOINT", ""),
			GCPProjectID:    getEnv("GCP_PROJECT_ID", ""),
			GCPCredentials:  getEnv("GCP_CREDENTIALS_FILE", ""),
			KubernetesDir:   getEnv("KUBERNETES_SECRETS_DIR", "/var/run/secrets/app"),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "fraud.signals"),
		},
		Sentry: SentryConfig{
			DSN:        getEnv("SENTRY_DSN", ""),
			SampleRate: getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.App.InsertBatchSize <= 0 {
		return fmt.Errorf("INSERT_BATCH_SIZE must be positive, got %d", c.App.InsertBatchSize)
	}
	if c.App.RunTimeout <= 0 {
		return fmt.Errorf("INGESTION_RUN_TIMEOUT must be positive, got %d", c.App.RunTimeout)
	}
	if c.App.FailedThreshold < 0 {
		return fmt.Errorf("FAILED_CLUSTER_THRESHOLD must not be negative, got %d", c.App.FailedThreshold)
	}
	if c.App.TopAgentsLimit <= 0 {
		return fmt.Errorf("TOP_AGENTS_LIMIT must be positive, got %d", c.App.TopAgentsLimit)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" && c.Auth.KeyFile == "" && c.Auth.VaultPath == "" {
		return fmt.Errorf("AUTH_ENABLED requires JWT_SECRET, JWT_KEY_FILE, or JWT_VAULT_PATH")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// RunTimeoutDuration returns the whole-run deadline as a duration.
func (c *AppConfig) RunTimeoutDuration() time.Duration {
	return time.Duration(c.RunTimeout) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
