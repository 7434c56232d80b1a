package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort   string
	LogLevel  string
	LogFormat string
	JWTKey    []byte
	JWTExp    time.Duration

	// StoreDriver selects the repository backend: "postgres" or "memory".
	StoreDriver   string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string
	DBAutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Engine EngineConfig
	Judge  JudgeConfig
	Sweep  SweepConfig
}

// EngineConfig describes how to reach the remote execution engine.
// It is handed to the engine client explicitly; nothing reads it globally.
type EngineConfig struct {
	BaseURL        string
	APIKey         string
	APIHost        string
	AuthToken      string
	RequestTimeout time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
}

type JudgeConfig struct {
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	PollMultiplier  float64
	PollJitter      float64
	PollTimeout     time.Duration
	PollMaxAttempts int
	// FailurePolicy is "last" (default) or "first".
	FailurePolicy string
}

type SweepConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	LockKey    string
	LockTTL    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 1)) * time.Hour,
		StoreDriver:   getEnv("STORE_DRIVER", "postgres"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "tle_zone_judge"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		Engine: EngineConfig{
			BaseURL:        getEnv("ENGINE_BASE_URL", "https://judge0-ce.p.rapidapi.com"),
			APIKey:         getEnv("ENGINE_API_KEY", ""),
			APIHost:        getEnv("ENGINE_API_HOST", "judge0-ce.p.rapidapi.com"),
			AuthToken:      getEnv("ENGINE_AUTH_TOKEN", ""),
			RequestTimeout: getEnvAsDuration("ENGINE_REQUEST_TIMEOUT", 10*time.Second),
			RetryCount:     getEnvAsInt("ENGINE_RETRY_COUNT", 2),
			RetryWait:      getEnvAsDuration("ENGINE_RETRY_WAIT", 200*time.Millisecond),
			RetryMaxWait:   getEnvAsDuration("ENGINE_RETRY_MAX_WAIT", 2*time.Second),
		},
		Judge: JudgeConfig{
			PollInterval:    getEnvAsDuration("POLL_INTERVAL", time.Second),
			PollMaxInterval: getEnvAsDuration("POLL_MAX_INTERVAL", 3*time.Second),
			PollMultiplier:  getEnvAsFloat("POLL_MULTIPLIER", 1.0),
			PollJitter:      getEnvAsFloat("POLL_JITTER", 0.1),
			PollTimeout:     getEnvAsDuration("POLL_TIMEOUT", 30*time.Second),
			PollMaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 40),
			FailurePolicy:   getEnv("JUDGE_FAILURE_POLICY", "last"),
		},
		Sweep: SweepConfig{
			Interval:   getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
			StaleAfter: getEnvAsDuration("SWEEP_STALE_AFTER", 5*time.Minute),
			LockKey:    getEnv("SWEEP_LOCK_KEY", "pending_sweeper_lock"),
			LockTTL:    getEnvAsDuration("SWEEP_LOCK_TTL", 30*time.Second),
		},
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("750ms", "30s").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
