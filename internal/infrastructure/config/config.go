package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Legacy    LegacyConfig
	Payment   PaymentConfig
	Images    ImagesConfig
	Sync      SyncConfig
	Checkout  CheckoutConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// InstanceID identifies this process on the sync channel; generated when empty
	InstanceID string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds the optional Kafka transport for product sync signals
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	PublicBaseURL     string // base URL for public object links; derived from endpoint when empty
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	MaxUploadSize     int64
}

// LegacyConfig points at the JSON product export used when the database is unreachable
type LegacyConfig struct {
	Enabled bool
	Key     string // object key of the export inside the storage bucket
}

// PaymentConfig holds the MoMo gateway settings
type PaymentConfig struct {
	BaseURL  string
	APIKey   string
	Currency string
	Timeout  time.Duration
}

// ImagesConfig holds image resolution settings
type ImagesConfig struct {
	ProxyBaseURL       string // optional image proxy prefix, the source URL is appended escaped
	PlaceholderBaseURL string
	PrimaryTimeout     time.Duration
	SecondaryTimeout   time.Duration
	FallbackTimeout    time.Duration
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	CacheSize          int
	CheckRatePerSecond float64
	CheckBurst         int
	Mobile             bool
	RefreshInterval    time.Duration
	RefreshBatchSize   int
	RefreshBatchDelay  time.Duration
	NetworkDebounce    time.Duration
	IdleTTL            time.Duration // tracked images not displayed for this long are dropped
}

// SyncConfig holds product store synchronization settings
type SyncConfig struct {
	Transport      string // memory, redis, kafka
	ReloadDelay    time.Duration
	ListenDebounce time.Duration
	SnapshotKey    string
	SnapshotTTL    time.Duration
}

// CheckoutConfig holds payment polling, pay rate limiting and idle cleanup settings
type CheckoutConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	// PayLimit payment initiations are allowed per client within PayWindow
	PayLimit  int
	PayWindow time.Duration
	// Idle carts and sessions are dropped after these TTLs, checked every PruneInterval
	CartTTL       time.Duration
	SessionTTL    time.Duration
	PruneInterval time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TelemetryConfig holds metrics settings
type TelemetryConfig struct {
	MetricsEnabled  bool
	MetricsPath     string
	Namespace       string
	SlowQueryThresh time.Duration

	// OpenTelemetry tracing, exported over OTLP gRPC
	TracingEnabled    bool
	CollectorEndpoint string
	SamplingRatio     float64
	Insecure          bool
	ServiceName       string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STORE_ prefix (e.g., STORE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("telemetry.sampling_ratio", 1.0)

	cfg := &Config{
		App: AppConfig{
			Name:       v.GetString("app.name"),
			Env:        v.GetString("app.env"),
			Port:       v.GetString("app.port"),
			InstanceID: v.GetString("app.instance_id"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
			GroupID: v.GetString("kafka.group_id"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			PublicBaseURL:     v.GetString("storage.public_base_url"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			MaxUploadSize:     v.GetInt64("storage.max_upload_size"),
		},
		Legacy: LegacyConfig{
			Enabled: v.GetBool("legacy.enabled"),
			Key:     v.GetString("legacy.key"),
		},
		Payment: PaymentConfig{
			BaseURL:  v.GetString("payment.base_url"),
			APIKey:   v.GetString("payment.api_key"),
			Currency: v.GetString("payment.currency"),
			Timeout:  v.GetDuration("payment.timeout"),
		},
		Images: ImagesConfig{
			ProxyBaseURL:       v.GetString("images.proxy_base_url"),
			PlaceholderBaseURL: v.GetString("images.placeholder_base_url"),
			PrimaryTimeout:     v.GetDuration("images.primary_timeout"),
			SecondaryTimeout:   v.GetDuration("images.secondary_timeout"),
			FallbackTimeout:    v.GetDuration("images.fallback_timeout"),
			MaxAttempts:        v.GetInt("images.max_attempts"),
			RetryBaseDelay:     v.GetDuration("images.retry_base_delay"),
			CacheSize:          v.GetInt("images.cache_size"),
			CheckRatePerSecond: v.GetFloat64("images.check_rate_per_second"),
			CheckBurst:         v.GetInt("images.check_burst"),
			Mobile:             v.GetBool("images.mobile"),
			RefreshInterval:    v.GetDuration("images.refresh_interval"),
			RefreshBatchSize:   v.GetInt("images.refresh_batch_size"),
			RefreshBatchDelay:  v.GetDuration("images.refresh_batch_delay"),
			NetworkDebounce:    v.GetDuration("images.network_debounce"),
			IdleTTL:            v.GetDuration("images.idle_ttl"),
		},
		Sync: SyncConfig{
			Transport:      v.GetString("sync.transport"),
			ReloadDelay:    v.GetDuration("sync.reload_delay"),
			ListenDebounce: v.GetDuration("sync.listen_debounce"),
			SnapshotKey:    v.GetString("sync.snapshot_key"),
			SnapshotTTL:    v.GetDuration("sync.snapshot_ttl"),
		},
		Checkout: CheckoutConfig{
			PollInterval:  v.GetDuration("checkout.poll_interval"),
			PollTimeout:   v.GetDuration("checkout.poll_timeout"),
			PayLimit:      v.GetInt("checkout.pay_limit"),
			PayWindow:     v.GetDuration("checkout.pay_window"),
			CartTTL:       v.GetDuration("checkout.cart_ttl"),
			SessionTTL:    v.GetDuration("checkout.session_ttl"),
			PruneInterval: v.GetDuration("checkout.prune_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled:  v.GetBool("telemetry.metrics_enabled"),
			MetricsPath:     v.GetString("telemetry.metrics_path"),
			Namespace:       v.GetString("telemetry.namespace"),
			SlowQueryThresh: v.GetDuration("telemetry.slow_query_threshold"),

			TracingEnabled:    v.GetBool("telemetry.tracing_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ServiceName:       v.GetString("telemetry.service_name"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "gifted-storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storefront"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "products.updated"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = cfg.App.Name
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "product-images"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = time.Hour
	}
	if cfg.Storage.MaxUploadSize == 0 {
		cfg.Storage.MaxUploadSize = 5 << 20 // 5MB
	}
	if cfg.Legacy.Key == "" {
		cfg.Legacy.Key = "exports/products.json"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "ZMW"
	}
	if cfg.Payment.Timeout == 0 {
		cfg.Payment.Timeout = 30 * time.Second
	}
	if cfg.Images.PrimaryTimeout == 0 {
		cfg.Images.PrimaryTimeout = 10 * time.Second
	}
	if cfg.Images.SecondaryTimeout == 0 {
		cfg.Images.SecondaryTimeout = 8 * time.Second
	}
	if cfg.Images.FallbackTimeout == 0 {
		cfg.Images.FallbackTimeout = 5 * time.Second
	}
	if cfg.Images.MaxAttempts == 0 {
		cfg.Images.MaxAttempts = 2
	}
	if cfg.Images.RetryBaseDelay == 0 {
		cfg.Images.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.Images.CacheSize == 0 {
		cfg.Images.CacheSize = 500
	}
	if cfg.Images.CheckRatePerSecond == 0 {
		cfg.Images.CheckRatePerSecond = 20
	}
	if cfg.Images.CheckBurst == 0 {
		cfg.Images.CheckBurst = 10
	}
	if cfg.Images.RefreshInterval == 0 {
		cfg.Images.RefreshInterval = 30 * time.Second
	}
	if cfg.Images.RefreshBatchSize == 0 {
		cfg.Images.RefreshBatchSize = 3
	}
	if cfg.Images.RefreshBatchDelay == 0 {
		cfg.Images.RefreshBatchDelay = 500 * time.Millisecond
	}
	if cfg.Images.NetworkDebounce == 0 {
		cfg.Images.NetworkDebounce = time.Second
	}
	if cfg.Images.IdleTTL == 0 {
		cfg.Images.IdleTTL = 30 * time.Minute
	}
	if cfg.Sync.Transport == "" {
		cfg.Sync.Transport = "memory"
	}
	if cfg.Sync.ReloadDelay == 0 {
		cfg.Sync.ReloadDelay = 2 * time.Second
	}
	if cfg.Sync.ListenDebounce == 0 {
		cfg.Sync.ListenDebounce = 300 * time.Millisecond
	}
	if cfg.Sync.SnapshotKey == "" {
		cfg.Sync.SnapshotKey = "products:snapshot"
	}
	if cfg.Checkout.PollInterval == 0 {
		cfg.Checkout.PollInterval = 3 * time.Second
	}
	if cfg.Checkout.PollTimeout == 0 {
		cfg.Checkout.PollTimeout = 5 * time.Minute
	}
	if cfg.Checkout.PayLimit == 0 {
		cfg.Checkout.PayLimit = 5
	}
	if cfg.Checkout.PayWindow == 0 {
		cfg.Checkout.PayWindow = time.Minute
	}
	if cfg.Checkout.CartTTL == 0 {
		cfg.Checkout.CartTTL = 24 * time.Hour
	}
	if cfg.Checkout.SessionTTL == 0 {
		cfg.Checkout.SessionTTL = 30 * time.Minute
	}
	if cfg.Checkout.PruneInterval == 0 {
		cfg.Checkout.PruneInterval = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = "/metrics"
	}
	if cfg.Telemetry.Namespace == "" {
		cfg.Telemetry.Namespace = "storefront"
	}
	if cfg.Telemetry.SlowQueryThresh == 0 {
		cfg.Telemetry.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Sync.Transport {
	case "memory", "redis", "kafka":
	default:
		return fmt.Errorf("sync.transport must be one of memory, redis, kafka, got %q", c.Sync.Transport)
	}
	if c.Sync.Transport == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("sync.transport=redis requires redis.enabled=true")
	}
	if c.Sync.Transport == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("sync.transport=kafka requires kafka.enabled=true")
	}
	if c.Legacy.Enabled && !c.Storage.Enabled {
		return fmt.Errorf("legacy.enabled requires storage.enabled=true")
	}

	if c.Images.MaxAttempts < 1 {
		return fmt.Errorf("images.max_attempts must be at least 1")
	}
	if c.Images.RefreshBatchSize < 1 {
		return fmt.Errorf("images.refresh_batch_size must be at least 1")
	}
	if c.Images.CacheSize < 1 {
		return fmt.Errorf("images.cache_size must be at least 1")
	}
	if c.Checkout.PollTimeout < c.Checkout.PollInterval {
		return fmt.Errorf("checkout.poll_timeout (%s) cannot be shorter than checkout.poll_interval (%s)",
			c.Checkout.PollTimeout, c.Checkout.PollInterval)
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)
	}

	if c.Checkout.PayLimit < 1 {
		return fmt.Errorf("checkout.pay_limit must be at least 1")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Payment.BaseURL == "" {
			return fmt.Errorf("payment.base_url is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
