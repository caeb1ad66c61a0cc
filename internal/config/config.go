package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DataSourcePostgres = "postgres"
	DataSourceRemote   = "remote"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	DataService DataServiceConfig
	Timeline    TimelineConfig
	Keys        APIKeys
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// DataServiceConfig selects where conversation data comes from.
type DataServiceConfig struct {
	Source  string // "postgres" or "remote"
	BaseURL string
	Token   string
	Timeout time.Duration
}

type TimelineConfig struct {
	PollInterval    time.Duration
	SettleDelay     time.Duration
	TrajectoryLimit int
	ViewTTL         time.Duration
	// AutoRefresh is used when an open request does not choose.
	AutoRefresh bool
}

type APIKeys struct {
	FeedbackTopic string // watermill topic for supervision feedback
	JwtSecret     string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		DataService: DataServiceConfig{
			Source:  getEnv("DATA_SOURCE", DataSourcePostgres),
			BaseURL: getEnv("DATA_SERVICE_URL", "http://localhost:8000/api"),
			Token:   getEnv("DATA_SERVICE_TOKEN", ""),
			Timeout: time.Duration(getEnvAsInt("DATA_SERVICE_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Timeline: TimelineConfig{
			PollInterval:    time.Duration(getEnvAsInt("TIMELINE_POLL_INTERVAL_MS", 3000)) * time.Millisecond,
			SettleDelay:     time.Duration(getEnvAsInt("TIMELINE_SETTLE_DELAY_MS", 500)) * time.Millisecond,
			TrajectoryLimit: getEnvAsInt("TIMELINE_TRAJECTORY_LIMIT", 30),
			ViewTTL:         time.Duration(getEnvAsInt("TIMELINE_VIEW_TTL_MINUTES", 60)) * time.Minute,
			AutoRefresh:     getEnvAsBool("TIMELINE_AUTO_REFRESH", false),
		},
		Keys: APIKeys{
			FeedbackTopic: getEnv("FEEDBACK_TOPIC", "SUPERVISION_FEEDBACK"),
			JwtSecret:     getEnv("JWT_SECRET", ""),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
