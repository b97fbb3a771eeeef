package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the route service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - HTTPPort: The port for the route API.
// - HealthPort: The port for the monitoring server (/healthz, /metrics).
// - Provider: The place-search provider and its credentials.
// - Workers: The number of concurrent workers resolving imported addresses.
// - Namespace: The installation namespace the route is persisted under.
// - AddressSuffix: Text appended to every query (city, country) for more accurate results.
// - CacheEnabled: Whether provider answers are cached in storage.
// - Storage, Redis, Database: Durable storage backend settings.
// - OCRLanguages: Tesseract languages, e.g. "por+eng"; empty disables photo capture.
// - Position: Where the live location comes from.
type Config struct {
	Env           string
	HTTPPort      int
	HealthPort    int
	Provider      ProviderConfig
	Workers       int
	Namespace     string
	AddressSuffix string
	CacheEnabled  bool
	Storage       StorageConfig
	Redis         RedisConfig
	Database      PostgresConfig
	OCRLanguages  string
	Position      PositionConfig
}

// ProviderConfig selects the place-search provider.
type ProviderConfig struct {
	Type      string // Type is google, nominatim or visicom.
	APIKey    string // APIKey is required for google and visicom.
	BaseURL   string // BaseURL points at a self-hosted instance.
	RateLimit int    // RateLimit in requests per second; 0 keeps the provider default.
}

// StorageConfig selects the durable storage backend.
type StorageConfig struct {
	Type string // Type is file, redis, postgres or memory.
	Dir  string // Dir is the data directory for the file backend.
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// PositionConfig selects the positioning source.
type PositionConfig struct {
	Source    string        // Source is push, static or file.
	File      string        // File is the "lat,lng" stream for the file source.
	Interval  time.Duration // Interval between replayed file positions.
	Restart   time.Duration // Restart is the pause before a finished stream is reopened.
	Latitude  float64       // Latitude of the static source.
	Longitude float64       // Longitude of the static source.
}

// Position sources.
const (
	PositionPush   = "push"
	PositionStatic = "static"
	PositionFile   = "file"
)

var defaults = map[string]any{
	"HERMES_ENV":                 "production",
	"HERMES_HTTP_PORT":           "8000",
	"HERMES_HEALTH_PORT":         "8080",
	"HERMES_PROVIDER_TYPE":       "nominatim",
	"HERMES_PROVIDER_KEY":        "",
	"HERMES_PROVIDER_URL":        "",
	"HERMES_PROVIDER_RATE_LIMIT": "0",
	"HERMES_WORKERS":             "4",
	"HERMES_NAMESPACE":           "default",
	"HERMES_ADDRESS_SUFFIX":      "",
	"HERMES_CACHE_ENABLED":       "true",
	"HERMES_STORAGE_TYPE":        "file",
	"HERMES_STORAGE_DIR":         "./data",
	"HERMES_OCR_LANGUAGES":       "por+eng",
	"HERMES_POSITION_SOURCE":     PositionPush,
	"HERMES_POSITION_FILE":       "",
	"HERMES_POSITION_INTERVAL":   "1s",
	"HERMES_POSITION_RESTART":    "5s",
	"HERMES_POSITION_LAT":        "",
	"HERMES_POSITION_LNG":        "",
	"REDIS_ADDR":                 "localhost:6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   "0",
	"DB_HOST":                    "",
	"DB_PORT":                    "5432",
	"DB_USERNAME":                "",
	"DB_PASSWORD":                "",
	"DB_NAME":                    "",
}

// MustLoad loads the configuration from the environment and returns a Config struct.
// A .env file in the working directory is read first; HERMES_CONFIG_FILE may name a YAML file
// whose keys are the environment variable names. Environment variables win over both.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if file := v.GetString("HERMES_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file")
		}
	}

	httpPort, err := strconv.Atoi(v.GetString("HERMES_HTTP_PORT"))
	if err != nil {
		panic("failed to parse port for API server from configuration")
	}

	healthPort, err := strconv.Atoi(v.GetString("HERMES_HEALTH_PORT"))
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	workers, err := strconv.Atoi(v.GetString("HERMES_WORKERS"))
	if err != nil {
		panic("failed to parse workers from configuration, must be an integer types")
	}

	rateLimit, err := strconv.Atoi(v.GetString("HERMES_PROVIDER_RATE_LIMIT"))
	if err != nil {
		panic("failed to parse provider rate limit from configuration")
	}

	cacheEnabled, err := strconv.ParseBool(v.GetString("HERMES_CACHE_ENABLED"))
	if err != nil {
		panic("failed to parse cache flag from configuration")
	}

	redisDB, err := strconv.Atoi(v.GetString("REDIS_DB"))
	if err != nil {
		panic("failed to parse redis database from configuration")
	}

	return &Config{
		Env:        v.GetString("HERMES_ENV"),
		HTTPPort:   httpPort,
		HealthPort: healthPort,
		Provider: ProviderConfig{
			Type:      strings.ToLower(v.GetString("HERMES_PROVIDER_TYPE")),
			APIKey:    v.GetString("HERMES_PROVIDER_KEY"),
			BaseURL:   v.GetString("HERMES_PROVIDER_URL"),
			RateLimit: rateLimit,
		},
		Workers:       workers,
		Namespace:     v.GetString("HERMES_NAMESPACE"),
		AddressSuffix: v.GetString("HERMES_ADDRESS_SUFFIX"),
		CacheEnabled:  cacheEnabled,
		Storage: StorageConfig{
			Type: strings.ToLower(v.GetString("HERMES_STORAGE_TYPE")),
			Dir:  v.GetString("HERMES_STORAGE_DIR"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Database: PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USERNAME"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
		},
		OCRLanguages: v.GetString("HERMES_OCR_LANGUAGES"),
		Position:     mustLoadPosition(v),
	}
}

func mustLoadPosition(v *viper.Viper) PositionConfig {
	interval, err := time.ParseDuration(v.GetString("HERMES_POSITION_INTERVAL"))
	if err != nil {
		panic("failed to parse position interval from configuration")
	}

	restart, err := time.ParseDuration(v.GetString("HERMES_POSITION_RESTART"))
	if err != nil {
		panic("failed to parse position restart delay from configuration")
	}

	position := PositionConfig{
		Source:   strings.ToLower(v.GetString("HERMES_POSITION_SOURCE")),
		File:     v.GetString("HERMES_POSITION_FILE"),
		Interval: interval,
		Restart:  restart,
	}

	switch position.Source {
	case PositionPush:
	case PositionFile:
		if position.File == "" {
			panic("file position source requires HERMES_POSITION_FILE")
		}
	case PositionStatic:
		position.Latitude, err = strconv.ParseFloat(v.GetString("HERMES_POSITION_LAT"), 64)
		if err != nil {
			panic("failed to parse position coordinates from configuration")
		}
		position.Longitude, err = strconv.ParseFloat(v.GetString("HERMES_POSITION_LNG"), 64)
		if err != nil {
			panic("failed to parse position coordinates from configuration")
		}
	default:
		panic("unsupported position source, must be push, static or file")
	}

	return position
}
