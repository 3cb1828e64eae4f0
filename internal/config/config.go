package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool
	AuthCookieName   string
	AuthCookieDomain string

	ClinicName    string
	ClinicAddress string
	ClinicPhone   string

	OTLPEndpoint string

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
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginRateLimit LoginRateLimitConfig

	Bootstrap BootstrapConfig

	Housekeeping HousekeepingConfig
}

type HousekeepingConfig struct {
	Enabled bool
	// Interval between runs, in seconds.
	Interval int
	// SessionRetentionDays keeps expired or revoked sessions this long.
	SessionRetentionDays int
}

type LoginRateLimitConfig struct {
	// Attempts allowed per client within Window.
	Attempts int
	// Window in seconds.
	Window int
}

type BootstrapConfig struct {
	EnsureDefaultAdmin bool
	AdminEmail         string
	AdminPassword      string
	AdminName          string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:          getenv("APP_SERVICE", "dentaldesk"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,
		AuthCookieName:   strings.TrimSpace(getenv("AUTH_COOKIE_NAME", "dentaldesk_sid")),
		AuthCookieDomain: strings.TrimSpace(getenv("AUTH_COOKIE_DOMAIN", "")),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		ClinicName:    getenv("CLINIC_NAME", "DentalDesk"),
		ClinicAddress: getenv("CLINIC_ADDRESS", ""),
		ClinicPhone:   getenv("CLINIC_PHONE", ""),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "dentaldesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		LoginRateLimit: LoginRateLimitConfig{
			Attempts: getenvInt("LOGIN_RATE_LIMIT_ATTEMPTS", 5),
			Window:   getenvInt("LOGIN_RATE_LIMIT_WINDOW", 600),
		},

		Bootstrap: BootstrapConfig{
			EnsureDefaultAdmin: getenvBool("BOOTSTRAP_DEFAULT_ADMIN", true),
			AdminEmail:         strings.TrimSpace(getenv("DEFAULT_ADMIN_EMAIL", "admin@dentaldesk.local")),
			AdminPassword:      getenv("DEFAULT_ADMIN_PASSWORD", "change-me-now"),
			AdminName:          getenv("DEFAULT_ADMIN_NAME", "Administrador"),
		},

		Housekeeping: HousekeepingConfig{
			Enabled:              getenvBool("HOUSEKEEPING_ENABLED", true),
			Interval:             getenvInt("HOUSEKEEPING_INTERVAL", 3600),
			SessionRetentionDays: getenvInt("SESSION_RETENTION_DAYS", 30),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
