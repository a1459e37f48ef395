package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	PlanningTopic     string
	TableUpdatesTopic string

	// Planning engine
	SeedTablesPath             string
	SeedOnStartup              bool
	DefaultVisitDurationMinute float64
	ProjectionCacheTTL         time.Duration
	CompareMaxWorkers          int
	SessionIdleTTL             time.Duration
	MaxSessions                int

	// Plan archive
	PlanArchiveBucket string
	PlanArchiveRegion string

	// Tracing
	TracingEnabled     bool
	TracingExporter    string
	TracingEndpoint    string
	TracingServiceName string
	TracingSampleRatio float64
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8090"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "planner"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "planner123"),
		PostgresDB:       getEnv("POSTGRES_DB", "capacity_planner"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "capacity-planner"),
		PlanningTopic:     getEnv("PLANNING_EVENTS_TOPIC", "planning-events"),
		TableUpdatesTopic: getEnv("TABLE_UPDATES_TOPIC", "planning-table-updates"),

		SeedTablesPath:             getEnv("SEED_TABLES_PATH", ""),
		SeedOnStartup:              getBoolEnv("SEED_ON_STARTUP", true),
		DefaultVisitDurationMinute: getFloatEnv("DEFAULT_VISIT_DURATION_MINUTES", 20),
		ProjectionCacheTTL:         getDuration("PROJECTION_CACHE_TTL", 10*time.Minute),
		CompareMaxWorkers:          getIntEnv("COMPARE_MAX_WORKERS", 3),
		SessionIdleTTL:             getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		MaxSessions:                getIntEnv("MAX_SESSIONS", 1000),

		PlanArchiveBucket: getEnv("PLAN_ARCHIVE_BUCKET", ""),
		PlanArchiveRegion: getEnv("AWS_REGION", "us-east-1"),

		TracingEnabled:     getBoolEnv("TRACING_ENABLED", false),
		TracingExporter:    strings.ToLower(getEnv("TRACING_EXPORTER", "stdout")),
		TracingEndpoint:    getEnv("OTLP_ENDPOINT", ""),
		TracingServiceName: getEnv("TRACING_SERVICE_NAME", "planner-service"),
		TracingSampleRatio: getFloatEnv("TRACING_SAMPLE_RATIO", 1.0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
