package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string
	LogLevel    string

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

	Identity IdentityConfig
	Stripe   StripeConfig
}

// IdentityConfig holds the settings for the external identity provider
// that issues the bearer tokens this service verifies.
type IdentityConfig struct {
	Domain    string
	Issuer    string
	JWKSURL   string
	Algorithm string
	Audience  string

	// EnforceAudience gates audience-claim verification. Upstream tokens
	// are issued without a stable audience, so this defaults to off;
	// enabling it rejects tokens minted for other applications.
	EnforceAudience bool
}

// Configured reports whether enough identity settings are present to
// verify tokens at all.
func (c IdentityConfig) Configured() bool {
	return strings.TrimSpace(c.Domain) != "" || strings.TrimSpace(c.JWKSURL) != ""
}

// StripeConfig holds payment-provider credentials and the static catalog
// mapping of internal product ids to provider product/price ids.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string

	ProductID1 string
	ProductID2 string
	PriceID1   string
	PriceID2   string
}

func (c StripeConfig) Configured() bool {
	return strings.TrimSpace(c.SecretKey) != "" && strings.TrimSpace(c.WebhookSecret) != ""
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "paywall"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		Identity: IdentityConfig{
			Domain:          strings.TrimSpace(getenv("IDP_DOMAIN", "")),
			Issuer:          strings.TrimSpace(getenv("IDP_ISSUER_URL", "")),
			JWKSURL:         strings.TrimSpace(getenv("IDP_JWKS_URL", "")),
			Algorithm:       getenv("JWT_ALGORITHM", "RS256"),
			Audience:        strings.TrimSpace(getenv("JWT_AUDIENCE", "")),
			EnforceAudience: getenvBool("JWT_ENFORCE_AUDIENCE", false),
		},
		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			SuccessURL:    getenv("STRIPE_SUCCESS_URL", "http://localhost:5173/success"),
			CancelURL:     getenv("STRIPE_CANCEL_URL", "http://localhost:5173/cancel"),
			ProductID1:    strings.TrimSpace(getenv("STRIPE_PRODUCT_1", "")),
			ProductID2:    strings.TrimSpace(getenv("STRIPE_PRODUCT_2", "")),
			PriceID1:      strings.TrimSpace(getenv("STRIPE_PRICE_1", "")),
			PriceID2:      strings.TrimSpace(getenv("STRIPE_PRICE_2", "")),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
)
