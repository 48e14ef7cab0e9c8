package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	MySQLDSN  string `yaml:"mysql_dsn"`
	RedisAddr string `yaml:"redis_addr"`

	Kafka KafkaConfig `yaml:"kafka"`

	// QueueMode selects the sequencer backing the queued strategy:
	// "kafka" or "memory".
	QueueMode string `yaml:"queue_mode"`

	DefaultStrategy string `yaml:"default_strategy"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	Seed []SeedStock `yaml:"seed"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// SeedStock pre-creates durable counters at startup. The shadow counters are
// never seeded; they populate lazily on first queued decrement.
type SeedStock struct {
	ProductKey string `yaml:"product_key"`
	Quantity   int    `yaml:"quantity"`
}

func defaults() Config {
	return Config{
		HTTPAddr:  ":8080",
		MySQLDSN:  "root:root@tcp(localhost:3306)/stockreserve?parseTime=true",
		RedisAddr: "localhost:6379",
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "stock-decrements",
			GroupID: "stock-reserve",
		},
		QueueMode:       "memory",
		DefaultStrategy: "queued",
		LogLevel:        "info",
		LogPretty:       false,
	}
}

// Load reads the YAML file at path (optional) and applies env overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MySQLDSN = getEnv("MYSQL_DSN", cfg.MySQLDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.QueueMode = getEnv("QUEUE_MODE", cfg.QueueMode)
	cfg.DefaultStrategy = getEnv("DEFAULT_STRATEGY", cfg.DefaultStrategy)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	if cfg.QueueMode != "kafka" && cfg.QueueMode != "memory" {
		return Config{}, fmt.Errorf("invalid queue_mode %q", cfg.QueueMode)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
