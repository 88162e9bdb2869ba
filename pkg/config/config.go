package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Places   PlacesConfig
	Location LocationConfig
	Map      MapConfig
	Widget   WidgetConfig
	OTEL     OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env      string
	LogLevel string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PlacesConfig holds the nearby-search backend configuration
type PlacesConfig struct {
	Provider     string
	APIKey       string
	Category     string
	RadiusMeters float64
}

// LocationConfig holds the position source configuration
type LocationConfig struct {
	Source     string
	GeoIPPath  string
	Timeout    time.Duration
	MaximumAge time.Duration
}

// MapConfig holds the initial map view
type MapConfig struct {
	DefaultLatitude  float64
	DefaultLongitude float64
	Zoom             int
	MapID            string
}

// WidgetConfig holds widget session settings
type WidgetConfig struct {
	IdleTTL time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	mapsKey := getEnv("GOOGLE_MAPS_API_KEY", "")

	cfg := &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "production"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "nearbyfinder"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Places: PlacesConfig{
			Provider:     getEnv("PLACES_PROVIDER", "mock"),
			APIKey:       mapsKey,
			Category:     getEnv("PLACES_CATEGORY", "store"),
			RadiusMeters: getEnvAsFloat("SEARCH_RADIUS_METERS", 1500),
		},
		Location: LocationConfig{
			Source:     getEnv("LOCATION_SOURCE", "client"),
			GeoIPPath:  getEnv("GEOIP_DB_PATH", ""),
			Timeout:    getEnvAsDuration("GEOLOCATION_TIMEOUT", 10*time.Second),
			MaximumAge: getEnvAsDuration("GEOLOCATION_MAX_AGE", 60*time.Second),
		},
		Map: MapConfig{
			DefaultLatitude:  getEnvAsFloat("MAP_DEFAULT_LAT", 40.73061),
			DefaultLongitude: getEnvAsFloat("MAP_DEFAULT_LNG", -73.935242),
			Zoom:             getEnvAsInt("MAP_ZOOM", 14),
			MapID:            getEnv("MAP_ID", "DEMO_MAP_ID"),
		},
		Widget: WidgetConfig{
			IdleTTL: getEnvAsDuration("WIDGET_IDLE_TTL", 30*time.Minute),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "nearbyfinder"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Places.Provider {
	case "google", "mock":
	default:
		return fmt.Errorf("unknown PLACES_PROVIDER %q", c.Places.Provider)
	}
	switch c.Location.Source {
	case "client", "geoip", "mock", "none":
	default:
		return fmt.Errorf("unknown LOCATION_SOURCE %q", c.Location.Source)
	}
	if c.Location.Source == "geoip" && c.Location.GeoIPPath == "" {
		return fmt.Errorf("GEOIP_DB_PATH is required when LOCATION_SOURCE=geoip")
	}
	if c.Map.DefaultLatitude < -90 || c.Map.DefaultLatitude > 90 {
		return fmt.Errorf("MAP_DEFAULT_LAT out of range: %f", c.Map.DefaultLatitude)
	}
	if c.Map.DefaultLongitude < -180 || c.Map.DefaultLongitude > 180 {
		return fmt.Errorf("MAP_DEFAULT_LNG out of range: %f", c.Map.DefaultLongitude)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
