package config

import (
	"database/sql"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	// ExpansionEnabled controls whether the background expansion loop
	// runs inside this process.
	ExpansionEnabled bool
	// ExpansionIsolation names the per-batch transaction isolation level
	// used by the expansion job.
	ExpansionIsolation string
}

// ExpansionTxIsolation maps the configured isolation name onto
// database/sql. SQLite deployments leave it at the driver default.
func (c Config) ExpansionTxIsolation() sql.IsolationLevel {
	if strings.EqualFold(c.DBType, "sqlite") {
		return sql.LevelDefault
	}
	switch strings.ToLower(strings.TrimSpace(c.ExpansionIsolation)) {
	case "serializable":
		return sql.LevelSerializable
	case "repeatable_read", "repeatable-read":
		return sql.LevelRepeatableRead
	case "read_committed", "read-committed":
		return sql.LevelReadCommitted
	default:
		return sql.LevelDefault
	}
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "registro"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "registro"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		ExpansionEnabled:   getenvBool("EXPANSION_ENABLED", true),
		ExpansionIsolation: getenv("EXPANSION_TX_ISOLATION", "repeatable_read"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
