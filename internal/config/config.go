package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Payment verifiers.
const (
	PaymentsUnavailable = "unavailable"
	PaymentsOrders      = "orders"
)

// LoadENV loads .env into the environment when GO_ENV is unset or "development".
// A missing .env file is not an error.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

type Config struct {
	GoEnv string
	Port  int

	DBDriver       string
	DatabaseURL    string
	DBMaxOpenConns int
	SQLitePath     string

	JWTSecret string
	JWTIssuer string

	CORSOrigins []string

	PaymentVerifier          string
	StatsIncludeProductSales bool
	AutoEnrollFree           bool

	OtelEnabled     bool
	OtelEndpoint    string
	OtelInsecure    bool
	OtelServiceName string
	OtelSampleRatio float64
}

// Get builds the configuration from the environment, applying defaults.
func Get() (*Config, error) {
	cfg := &Config{
		GoEnv:                    os.Getenv("GO_ENV"),
		Port:                     intEnv("PORT", 8081),
		DBDriver:                 strings.ToLower(stringEnv("DB_DRIVER", DriverMemory)),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:           intEnv("DB_MAX_OPEN_CONNS", 20),
		SQLitePath:               stringEnv("SQLITE_PATH", "commerce.db"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		JWTIssuer:                os.Getenv("JWT_ISSUER"),
		CORSOrigins:              listEnv("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		PaymentVerifier:          strings.ToLower(stringEnv("PAYMENT_VERIFIER", PaymentsUnavailable)),
		StatsIncludeProductSales: boolEnv("STATS_INCLUDE_PRODUCT_SALES"),
		AutoEnrollFree:           boolEnv("AUTO_ENROLL_FREE"),
		OtelEnabled:              boolEnv("OTEL_ENABLED"),
		OtelEndpoint:             os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelInsecure:             boolEnv("OTEL_EXPORTER_OTLP_INSECURE"),
		OtelServiceName:          stringEnv("OTEL_SERVICE_NAME", "api_commerce"),
		OtelSampleRatio:          floatEnv("OTEL_SAMPLER_RATIO", 0.1),
	}

	if cfg.DBDriver == DriverPostgres && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresDSN()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether GO_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.PaymentVerifier {
	case PaymentsUnavailable, PaymentsOrders:
	default:
		return fmt.Errorf("unknown PAYMENT_VERIFIER %q", c.PaymentVerifier)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func postgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		stringEnv("DB_HOST", "localhost"),
		os.Getenv("DB_USER_NAME"),
		os.Getenv("DB_PASSWORD"),
		stringEnv("DB_NAME", "commerce"),
		stringEnv("DB_PORT", "5432"),
		stringEnv("DB_SSL_MODE", "disable"),
	)
}

func stringEnv(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func intEnv(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func floatEnv(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolEnv(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func listEnv(name string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
