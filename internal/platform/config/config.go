package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Feed backends.
const (
	FeedLocal = "local"
	FeedRedis = "redis"
	FeedKafka = "kafka"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel slog.Level

	Store    string
	Database DatabaseConfig
	SQLite   SQLiteConfig

	Feed  string
	Redis RedisConfig
	Kafka KafkaConfig

	WebSocket WebSocketConfig
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// SQLiteConfig holds the SQLite data source.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig holds Redis connection settings for the change feed.
type RedisConfig struct {
	URL          string
	Channel      string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds broker settings for the change feed.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// WebSocketConfig tunes the live subscription endpoint.
type WebSocketConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
}

// Client captures notesctl configuration.
type Client struct {
	ServerURL string
	Debounce  time.Duration
}

// DefaultDebounce is the idle interval before a local edit is written back.
const DefaultDebounce = 500 * time.Millisecond

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	hostname, _ := os.Hostname()
	return Server{
		Addr:     envString("NOTES_ADDR", ":8080"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
		Store:    strings.ToLower(envString("NOTES_STORE", StoreMemory)),
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLife:  envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		SQLite: SQLiteConfig{
			DSN: envString("SQLITE_DSN", "notes.db"),
		},
		Feed: strings.ToLower(envString("NOTES_FEED", FeedLocal)),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Channel:      envString("REDIS_CHANNEL", "notes:changes"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", "notes.changes"),
			// Every replica must see every change, so each gets its own group.
			Group: envString("KAFKA_GROUP", "notesync-"+hostname),
		},
		WebSocket: WebSocketConfig{
			PingInterval: envDuration("WS_PING_INTERVAL", 30*time.Second),
			PongWait:     envDuration("WS_PONG_WAIT", 60*time.Second),
		},
	}
}

// ClientFromEnv builds the notesctl config; flags override it.
func ClientFromEnv() Client {
	return Client{
		ServerURL: envString("NOTES_SERVER", "http://localhost:8080"),
		Debounce:  envDuration("NOTES_DEBOUNCE", DefaultDebounce),
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envLevel(key string, fallback slog.Level) slog.Level {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}
	return level
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
