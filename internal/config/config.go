package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the risk service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Content   ContentConfig   `mapstructure:"content"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	MetricsPort       int           `mapstructure:"metrics_port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize    string        `mapstructure:"max_request_size"`
	MaxBatchSize      int           `mapstructure:"max_batch_size"`
	MaxScoringLatency time.Duration `mapstructure:"max_scoring_latency"`
	ParallelScoring   int           `mapstructure:"parallel_scoring"`
}

// PolicyConfig holds the scoring policy. Every value here, the demo fixture
// override included, is hot-reloaded from the config file.
type PolicyConfig struct {
	GraphTemporalWeight   float64 `mapstructure:"graph_temporal_weight"`
	ContentAnalysisWeight float64 `mapstructure:"content_analysis_weight"`

	LowRiskThreshold    float64 `mapstructure:"low_risk_threshold"`
	MediumRiskThreshold float64 `mapstructure:"medium_risk_threshold"`
	HighRiskThreshold   float64 `mapstructure:"high_risk_threshold"`

	FraudPatternCap     float64  `mapstructure:"fraud_pattern_cap"`
	SuspiciousReceivers []string `mapstructure:"suspicious_receivers"`
	SuspiciousURLParts  []string `mapstructure:"suspicious_url_parts"`
	RiskyLinkSources    []string `mapstructure:"risky_link_sources"`
	LoginAttemptLimit   int      `mapstructure:"login_attempt_limit"`

	Demo DemoConfig `mapstructure:"demo"`
}

// DemoConfig gates the demo-only scoring paths
type DemoConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	SenderID       string  `mapstructure:"sender_id"`
	HighRiskUserID string  `mapstructure:"high_risk_user_id"`
	HighRiskP95    float64 `mapstructure:"high_risk_p95"`
}

// ContentConfig holds content analyzer configuration
type ContentConfig struct {
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	LegitimateDomains   []string `mapstructure:"legitimate_domains"`
	FlaggedPayees       []string `mapstructure:"flagged_payees"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	HistoryWindow   time.Duration `mapstructure:"history_window"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	PoolSize      int           `mapstructure:"pool_size"`
	MinIdleConns  int           `mapstructure:"min_idle_conns"`
	MaxRetries    int           `mapstructure:"max_retries"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	Brokers          []string `mapstructure:"brokers"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
	AssessmentTopic  string   `mapstructure:"assessment_topic"`
}

// BreakerConfig holds circuit breaker settings for remote profile lookups
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName   string  `mapstructure:"service_name"`
	Environment   string  `mapstructure:"environment"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
	Debug         bool    `mapstructure:"debug"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	JWTSecret      string   `mapstructure:"jwt_secret"`
	JWTIssuer      string   `mapstructure:"jwt_issuer"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load loads configuration from environment and config files
func Load() (*Config, *viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RISK_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/upi-risk-service")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, err
		}
		// Config file not found, use defaults + env
	}

	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Decode unmarshals the current viper state. It is also used on config reloads.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns a viper instance holding only the default values
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.metrics_port", 9095)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_request_size", "1M")
	v.SetDefault("server.max_batch_size", 100)
	v.SetDefault("server.max_scoring_latency", "50ms")
	v.SetDefault("server.parallel_scoring", 8)

	// Policy defaults
	v.SetDefault("policy.graph_temporal_weight", 0.5)
	v.SetDefault("policy.content_analysis_weight", 0.5)
	v.SetDefault("policy.low_risk_threshold", 0.3)
	v.SetDefault("policy.medium_risk_threshold", 0.6)
	v.SetDefault("policy.high_risk_threshold", 0.8)
	v.SetDefault("policy.fraud_pattern_cap", 0.8)
	v.SetDefault("policy.suspicious_receivers", []string{"merchant999", "fakepayee", "merchant456"})
	v.SetDefault("policy.suspicious_url_parts", []string{"example.com"})
	v.SetDefault("policy.risky_link_sources", []string{"whatsapp", "email", "ad"})
	v.SetDefault("policy.login_attempt_limit", 5)
	v.SetDefault("policy.demo.enabled", true)
	v.SetDefault("policy.demo.sender_id", "user123")
	v.SetDefault("policy.demo.high_risk_user_id", "high_risk_user")
	v.SetDefault("policy.demo.high_risk_p95", 500.0)

	// Content analyzer defaults
	v.SetDefault("content.similarity_threshold", 0.85)
	v.SetDefault("content.legitimate_domains", []string{
		"pay.google.com", "paypal.com", "upi.npci.org.in", "payments.amazon.com",
		"phonepe.com", "paytm.com", "bhimupi.npci.org.in",
	})
	v.SetDefault("content.flagged_payees", []string{"fakehacker@fraud"})

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "upi_db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.history_window", "2160h") // 90 days

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 50)
	v.SetDefault("redis.min_idle_conns", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")
	v.SetDefault("redis.stats_cache_ttl", "1h")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "upi-risk-service-group")
	v.SetDefault("kafka.transaction_topic", "payments.upi.transactions")
	v.SetDefault("kafka.assessment_topic", "payments.upi.risk_assessments")

	// Breaker defaults
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.consecutive_failures", 5)

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "upi-risk-service")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.sampling_ratio", 0.1)
	v.SetDefault("telemetry.debug", false)

	// Security defaults
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_issuer", "")
	v.SetDefault("security.allowed_origins", []string{"*"})
}
