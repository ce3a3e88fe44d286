package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Database types accepted in DB_TYPE.
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

// GPIO drivers accepted in GPIO_DRIVER.
const (
	GPIODriverAuto   = "auto"
	GPIODriverMock   = "mock"
	GPIODriverPeriph = "periph"
)

type Config struct {
	Port string

	// Env is "dev" (default) or "prod".
	Env string

	// DBType selects the store: "sqlite" (default, file at DBPath) or "postgres".
	DBType string
	DBPath string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	// GPIODriver is "auto" (default), "mock" or "periph".
	GPIODriver string

	// ScheduleTimezone is the IANA zone every schedule is evaluated in, independent of the host.
	ScheduleTimezone string

	// MQTTBroker enables state events when set, e.g. tcp://localhost:1883.
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	// JWTSecret protects mutating routes with HS256 bearer tokens when set.
	JWTSecret string

	// RateLimitPerMinute caps mutating requests per client IP (default 120).
	RateLimitPerMinute int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json"; LogLevel is debug, info (default), warn or error.
	LogFormat string
	LogLevel  string

	// CORSAllowedOrigins is set via CORS_ALLOWED_ORIGINS (comma-separated). Empty means same-origin only.
	CORSAllowedOrigins []string

	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory (or the file named by ENV_FILE) is loaded first; variables already
// set in the process environment win.
func Load() Config {
	envFile := getEnv("ENV_FILE", ".env")
	_ = godotenv.Load(envFile)

	return Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "dev"),

		DBType: strings.ToLower(getEnv("DB_TYPE", DBTypeSQLite)),
		DBPath: getEnv("DB_PATH", "aquamarine.db"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "aquamarine"),
		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: getEnv("DB_PASS", "password"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		GPIODriver:       strings.ToLower(getEnv("GPIO_DRIVER", GPIODriverAuto)),
		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", "Asia/Tokyo"),

		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "aquamarine"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		MQTTTopicPrefix: strings.TrimSuffix(getEnv("MQTT_TOPIC_PREFIX", "aquamarine"), "/"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),

		ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// Validate checks values that would otherwise fail late, at first use.
func (c Config) Validate() error {
	switch c.DBType {
	case DBTypeSQLite, DBTypePostgres:
	default:
		return fmt.Errorf("config: unknown DB_TYPE %q (want %s or %s)", c.DBType, DBTypeSQLite, DBTypePostgres)
	}
	switch c.GPIODriver {
	case GPIODriverAuto, GPIODriverMock, GPIODriverPeriph:
	default:
		return fmt.Errorf("config: unknown GPIO_DRIVER %q", c.GPIODriver)
	}
	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		return fmt.Errorf("config: SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
	}
	if c.Env == "prod" && c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required when ENV=prod")
	}
	return nil
}

// PostgresURL returns the DSN for DB_TYPE=postgres.
func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
