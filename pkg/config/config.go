// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Model, Parser, Redis, Kafka, Postgres, etc.).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Parser kinds accepted by ParserConfig.Kind.
const (
	ParserBeam   = "beam"
	ParserGreedy = "greedy"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Parser   ParserConfig   `yaml:"parser"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. HandlerTimeout bounds request
// handling and must stay below WriteTimeout so the timeout response can
// still be written.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	HandlerTimeout  time.Duration `yaml:"handlerTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ModelConfig points at the model data directory and the resources loaded
// eagerly at startup.
type ModelConfig struct {
	Dir            string   `yaml:"dir"`
	UserDictionary string   `yaml:"userDictionary"`
	Warm           []string `yaml:"warm"`
}

// ParserConfig selects the dependency parser variant and its search limits.
type ParserConfig struct {
	Kind              string `yaml:"kind"`
	BeamSize          int    `yaml:"beamSize"`
	RootLabel         string `yaml:"rootLabel"`
	MaxSentenceLength int    `yaml:"maxSentenceLength"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ParseRequests string `yaml:"parseRequests"`
	ParseResults  string `yaml:"parseResults"`
}

// RedisConfig holds Redis connection and parse-cache parameters. OpTimeout
// bounds each cache call; after BreakerThreshold consecutive failures the
// cache is bypassed for BreakerReset.
type RedisConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Addr             string        `yaml:"addr"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	PoolSize         int           `yaml:"poolSize"`
	CacheTTL         time.Duration `yaml:"cacheTTL"`
	OpTimeout        time.Duration `yaml:"opTimeout"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads an optional .env file and a YAML config file (if provided), then
// applies environment-variable overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env file: %w", err)
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the parser cannot run with.
func (c *Config) Validate() error {
	switch c.Parser.Kind {
	case ParserBeam, ParserGreedy:
	default:
		return fmt.Errorf("parser.kind %q: must be %q or %q", c.Parser.Kind, ParserBeam, ParserGreedy)
	}
	if c.Parser.BeamSize <= 0 {
		return fmt.Errorf("parser.beamSize must be positive, got %d", c.Parser.BeamSize)
	}
	if c.Parser.MaxSentenceLength <= 0 {
		return fmt.Errorf("parser.maxSentenceLength must be positive, got %d", c.Parser.MaxSentenceLength)
	}
	if c.Model.Dir == "" {
		return errors.New("model.dir is required")
	}
	if c.Server.HandlerTimeout <= 0 {
		return fmt.Errorf("server.handlerTimeout must be positive, got %v", c.Server.HandlerTimeout)
	}
	if c.Server.WriteTimeout > 0 && c.Server.HandlerTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("server.handlerTimeout %v must be below server.writeTimeout %v",
			c.Server.HandlerTimeout, c.Server.WriteTimeout)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Model: ModelConfig{
			Dir:  "data",
			Warm: []string{"dependency_model"},
		},
		Parser: ParserConfig{
			Kind:              ParserBeam,
			BeamSize:          3,
			RootLabel:         "ROOT",
			MaxSentenceLength: 256,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "nlpengine",
			User:            "nlpengine",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "depparse-workers",
			Topics: KafkaTopics{
				ParseRequests: "parse-requests",
				ParseResults:  "parse-results",
			},
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			Password:         "",
			DB:               0,
			PoolSize:         10,
			CacheTTL:         10 * time.Minute,
			OpTimeout:        200 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads NLP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NLP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NLP_SERVER_HANDLER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.HandlerTimeout = d
		}
	}
	if v := os.Getenv("NLP_MODEL_DIR"); v != "" {
		cfg.Model.Dir = v
	}
	if v := os.Getenv("NLP_MODEL_USER_DICTIONARY"); v != "" {
		cfg.Model.UserDictionary = v
	}
	if v := os.Getenv("NLP_MODEL_WARM"); v != "" {
		cfg.Model.Warm = strings.Split(v, ",")
	}
	if v := os.Getenv("NLP_PARSER_KIND"); v != "" {
		cfg.Parser.Kind = v
	}
	if v := os.Getenv("NLP_PARSER_BEAM_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Parser.BeamSize = size
		}
	}
	if v := os.Getenv("NLP_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = v == "true"
	}
	if v := os.Getenv("NLP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("NLP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("NLP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("NLP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("NLP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("NLP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("NLP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true"
	}
	if v := os.Getenv("NLP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NLP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("NLP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NLP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
