package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

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
	KafkaBrokers   []string
	KafkaGroupID   string
	DoseEventTopic string
	ScoringTopic   string

	// Prediction engine
	PredictionCacheTTL time.Duration
	ForecastSeed       int64

	// Cultural policy
	PolicyFile string

	// Cultural calendar provider
	CalendarBaseURL      string
	CalendarTokenURL     string
	CalendarClientID     string
	CalendarClientSecret string
	CalendarTimeout      time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "sahaya"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "sahaya123"),
		PostgresDB:       getEnv("POSTGRES_DB", "adherence"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:   getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", "adherence-platform"),
		DoseEventTopic: getEnv("DOSE_EVENT_TOPIC", "adherence.dose-events"),
		ScoringTopic:   getEnv("SCORING_TOPIC", "adherence.scoring-results"),

		PredictionCacheTTL: getDuration("PREDICTION_CACHE_TTL", 24*time.Hour),
		ForecastSeed:       int64(getIntEnv("FORECAST_SEED", 0)),

		PolicyFile: getEnv("CULTURAL_POLICY_FILE", ""),

		CalendarBaseURL:      getEnv("CALENDAR_BASE_URL", "http://localhost:8091"),
		CalendarTokenURL:     getEnv("CALENDAR_TOKEN_URL", ""),
		CalendarClientID:     getEnv("CALENDAR_CLIENT_ID", ""),
		CalendarClientSecret: getEnv("CALENDAR_CLIENT_SECRET", ""),
		CalendarTimeout:      getDuration("CALENDAR_TIMEOUT", 10*time.Second),
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

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
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
