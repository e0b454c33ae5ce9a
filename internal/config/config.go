package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	Kafka struct {
		Brokers []string
		Topic   string
		GroupID string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}
	API struct {
		Port     string
		BasePath string
	}
	Rollup struct {
		Interval    time.Duration // refresh cadence
		GraceWindow time.Duration // lag allowing late readings
		TimeBudget  time.Duration // hard cap per refresh run
	}
	Baseline struct {
		MinSamples       int     // below this a cell is "insufficient_data"
		ForgettingFactor float64 // per-observation decay once warm
		OffHoursFloorKWh float64 // near-zero expectation for off-hours cells
	}
	Notifier struct {
		QueueSize       int
		MaxWorkers      int
		PollInterval    time.Duration
		TelegramToken   string
		TelegramChatIDs []int64
		TelegramRate    int // messages per second
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")

	if b := os.Getenv("KAFKA_BROKER"); b != "" {
		cfg.Kafka.Brokers = []string{b}
	}
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.Redis.DB = db
	}
	cfg.Redis.TTL = durationEnv("REDIS_TTL", 5*time.Minute)

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Rollup.Interval = durationEnv("ROLLUP_INTERVAL", time.Hour)
	cfg.Rollup.GraceWindow = durationEnv("ROLLUP_GRACE_WINDOW", 2*time.Hour)
	cfg.Rollup.TimeBudget = durationEnv("ROLLUP_TIME_BUDGET", 10*time.Minute)

	cfg.Baseline.MinSamples = intEnv("BASELINE_MIN_SAMPLES", 20)
	cfg.Baseline.ForgettingFactor = floatEnv("BASELINE_FORGETTING_FACTOR", 0.02)
	cfg.Baseline.OffHoursFloorKWh = floatEnv("OFF_HOURS_FLOOR_KWH", 5.0)

	cfg.Notifier.QueueSize = intEnv("NOTIFIER_QUEUE_SIZE", 500)
	cfg.Notifier.MaxWorkers = intEnv("NOTIFIER_MAX_WORKERS", 4)
	cfg.Notifier.PollInterval = durationEnv("NOTIFIER_POLL_INTERVAL", 30*time.Second)
	cfg.Notifier.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Notifier.TelegramRate = intEnv("TELEGRAM_RATE_LIMIT", 1)
	if raw := os.Getenv("TELEGRAM_CHAT_IDS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				cfg.Notifier.TelegramChatIDs = append(cfg.Notifier.TelegramChatIDs, id)
			}
		}
	}

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		missing = append(missing, "KAFKA_BROKER")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "consumption_readings"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "energy-monitor"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Baseline.ForgettingFactor < 0 || cfg.Baseline.ForgettingFactor >= 1 {
		return Config{}, fmt.Errorf("BASELINE_FORGETTING_FACTOR must be in [0,1), got %v", cfg.Baseline.ForgettingFactor)
	}

	return cfg, nil
}

func intEnv(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func floatEnv(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

