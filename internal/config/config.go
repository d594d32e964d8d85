package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDecimalEnv returns a decimal environment variable or a default.
func GetDecimalEnv(key, defaultVal string) decimal.Decimal {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultVal)
}

// GetDurationEnv returns a duration environment variable or a default.
func GetDurationEnv(key, defaultVal string) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	d, err := time.ParseDuration(defaultVal)
	if err != nil {
		panic("invalid default duration for " + key + ": " + defaultVal)
	}
	return d
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

// Config is the resolved runtime configuration. Load it once at boot
// and pass it down; services must not read the environment directly.
type Config struct {
	Env  string
	Port string

	DatabaseURL string

	JWTSecret string

	PaystackSecretKey               string
	PaystackBaseURL                 string
	PaystackCallbackURL             string
	MomoAPIKey                      string
	MomoUserID                      string
	MomoSubscriptionKeyCollection   string
	MomoSubscriptionKeyDisbursement string
	MomoBaseURL                     string
	MomoWebhookToken                string
	MomoTargetEnv                   string

	ExchangeRateAPIURL      string
	ExchangeRateAPIKey      string
	ExchangeRefreshInterval time.Duration
	ExchangeMaxStaleness    time.Duration

	DefaultCurrency     string
	SupportedCurrencies []string

	TransferFeePercent   decimal.Decimal
	TransferFeeMin       decimal.Decimal
	TransferFeeMax       decimal.Decimal
	MaxTransferAmount    decimal.Decimal
	DailyTransferLimit   decimal.Decimal
	MonthlyTransferLimit decimal.Decimal
	WithdrawalMinAmount  decimal.Decimal

	AuditIPSalt string
}

// Load reads the environment into a Config.
func Load() *Config {
	return &Config{
		Env:  GetEnv("ENV", "development"),
		Port: GetEnv("PORT", "8080"),

		DatabaseURL: GetEnv("DATABASE_URL", ""),

		JWTSecret: GetEnv("JWT_SECRET", ""),

		PaystackSecretKey:   GetEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:     GetEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackCallbackURL: GetEnv("PAYSTACK_CALLBACK_URL", ""),

		MomoAPIKey:                      GetEnv("MOMO_API_KEY", ""),
		MomoUserID:                      GetEnv("MOMO_USER_ID", ""),
		MomoSubscriptionKeyCollection:   GetEnv("MOMO_SUBSCRIPTION_KEY_COLLECTION", ""),
		MomoSubscriptionKeyDisbursement: GetEnv("MOMO_SUBSCRIPTION_KEY_DISBURSEMENT", ""),
		MomoBaseURL:                     GetEnv("MOMO_BASE_URL", "https://sandbox.momodeveloper.mtn.com"),
		MomoWebhookToken:                GetEnv("MOMO_WEBHOOK_TOKEN", ""),
		MomoTargetEnv:                   GetEnv("MOMO_TARGET_ENV", "sandbox"),

		ExchangeRateAPIURL:      GetEnv("EXCHANGE_RATE_API_URL", ""),
		ExchangeRateAPIKey:      GetEnv("EXCHANGE_RATE_API_KEY", ""),
		ExchangeRefreshInterval: GetDurationEnv("EXCHANGE_REFRESH_INTERVAL", "1h"),
		ExchangeMaxStaleness:    GetDurationEnv("EXCHANGE_MAX_STALENESS", "24h"),

		DefaultCurrency:     GetEnv("DEFAULT_CURRENCY", "USD"),
		SupportedCurrencies: splitCSV(GetEnv("SUPPORTED_CURRENCIES", "USD,XAF,NGN,GHS,KES")),

		TransferFeePercent:   GetDecimalEnv("TRANSFER_FEE_PERCENT", "0.01"),
		TransferFeeMin:       GetDecimalEnv("TRANSFER_FEE_MIN", "10"),
		TransferFeeMax:       GetDecimalEnv("TRANSFER_FEE_MAX", "100"),
		MaxTransferAmount:    GetDecimalEnv("MAX_TRANSFER_AMOUNT", "100000"),
		DailyTransferLimit:   GetDecimalEnv("DAILY_TRANSFER_LIMIT", "500000"),
		MonthlyTransferLimit: GetDecimalEnv("MONTHLY_TRANSFER_LIMIT", "5000000"),
		WithdrawalMinAmount:  GetDecimalEnv("WITHDRAWAL_MIN_AMOUNT", "100"),

		AuditIPSalt: GetEnv("AUDIT_IP_SALT", ""),
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

// Service names accepted by ServiceReady.
const (
	ServiceAuth     = "auth"
	ServicePaystack = "paystack"
	ServiceMomo     = "momo"
	ServiceExchange = "exchange"
)

// ServiceReady reports whether the configuration needed by a gateway
// or subsystem is present. Handlers check this before touching an
// external dependency so a half-configured deployment degrades to 503
// instead of failing mid-operation.
func (c *Config) ServiceReady(service string) bool {
	switch service {
	case ServiceAuth:
		return c.JWTSecret != ""
	case ServicePaystack:
		return c.PaystackSecretKey != ""
	case ServiceMomo:
		return c.MomoAPIKey != "" && c.MomoUserID != "" &&
			(c.MomoSubscriptionKeyCollection != "" || c.MomoSubscriptionKeyDisbursement != "")
	case ServiceExchange:
		return c.ExchangeRateAPIURL != ""
	default:
		return false
	}
}
