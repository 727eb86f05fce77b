package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	LLM            LLMConfig            `mapstructure:"llm"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		UserInteractions string `mapstructure:"user_interactions"`
	} `mapstructure:"topics"`
}

type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CatalogConfig struct {
	Source string `mapstructure:"source"`
}

// RecommendationConfig bounds the pipeline: prompt-size caps, history
// windows, cache TTL. The candidate caps are payload control for the
// model API, not a ranking decision.
type RecommendationConfig struct {
	MaxHistoryInPrompt    int           `mapstructure:"max_history_in_prompt"`
	ContentCandidateCap   int           `mapstructure:"content_candidate_cap"`
	ContentRequestCount   int           `mapstructure:"content_request_count"`
	CollaborativeCap      int           `mapstructure:"collaborative_cap"`
	TrendingCap           int           `mapstructure:"trending_cap"`
	SimilarCap            int           `mapstructure:"similar_cap"`
	PipelineTimeout       time.Duration `mapstructure:"pipeline_timeout"`
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
	LocalHistoryLimit     int           `mapstructure:"local_history_limit"`
	PreferenceReadLimit   int           `mapstructure:"preference_read_limit"`
	TrendingWindow        time.Duration `mapstructure:"trending_window"`
	AnonymousPriceCeiling float64       `mapstructure:"anonymous_price_ceiling"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")

	// Kafka defaults
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.topics.user_interactions", "user-interactions")

	// LLM defaults
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.request_timeout", "20s")
	viper.SetDefault("llm.max_retries", 2)

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "24h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Catalog defaults
	viper.SetDefault("catalog.source", "./config/products.json")

	// Recommendation defaults
	viper.SetDefault("recommendation.max_history_in_prompt", 20)
	viper.SetDefault("recommendation.content_candidate_cap", 50)
	viper.SetDefault("recommendation.content_request_count", 15)
	viper.SetDefault("recommendation.collaborative_cap", 30)
	viper.SetDefault("recommendation.trending_cap", 50)
	viper.SetDefault("recommendation.similar_cap", 30)
	viper.SetDefault("recommendation.pipeline_timeout", "45s")
	viper.SetDefault("recommendation.cache_ttl", "15m")
	viper.SetDefault("recommendation.local_history_limit", 1000)
	viper.SetDefault("recommendation.preference_read_limit", 100)
	viper.SetDefault("recommendation.trending_window", "168h")
	viper.SetDefault("recommendation.anonymous_price_ceiling", 3000)

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})
}
