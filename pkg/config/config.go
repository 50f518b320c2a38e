// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Workflow WorkflowConfig
	Payment  PaymentConfig
	OTP      OTPConfig
	Session  SessionConfig
	SMTP     SMTPConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    int
	RateWindow   time.Duration
	// CORSOrigins is empty in development, where any origin is reflected.
	CORSOrigins []string
}

// RedisConfig is optional. When URL is empty the rate limiter keeps its
// counters in memory.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// AuthConfig holds the operator credentials for the console login.
// Password is a development fallback hashed at startup when PasswordHash
// is empty; it is refused in production.
type AuthConfig struct {
	Username     string
	Password     string
	PasswordHash string
	Mobile       string
}

// WorkflowConfig holds presentation-tuning timings. None of these are
// business rules.
type WorkflowConfig struct {
	LoaderFloor        time.Duration
	ExistingCheckFloor time.Duration
	MobileOTPTimer     time.Duration
	LoginOTPTimer      time.Duration
	RedirectDelay      time.Duration
	UPIVerifyDelay     time.Duration
	BankLoginDelay     time.Duration
	NetBankingOTPDelay time.Duration
	IssuanceDelay      time.Duration
	StatusAutoResolve  time.Duration
	StatusRefreshDelay time.Duration
	GatewayLatencyMin  time.Duration
	GatewayLatencyMax  time.Duration
	GatewayTimeout     time.Duration
}

type PaymentConfig struct {
	ConvenienceFee decimal.Decimal
	TaxSurcharge   decimal.Decimal
	Tier1Minimum   decimal.Decimal
	Tier2Minimum   decimal.Decimal
}

type OTPConfig struct {
	// Strict requires the last issued code; otherwise any well-formed code
	// is accepted.
	Strict bool
	Secret string
}

// SMTPConfig is optional. Without a host, subscriber emails are only
// logged.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// SessionConfig controls how long idle sessions are kept in memory.
type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RateLimit:    getIntEnv("RATE_LIMIT", 300),
			RateWindow:   getDurationEnv("RATE_WINDOW", time.Minute),
			CORSOrigins:  getListEnv("CORS_ALLOWED_ORIGINS"),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-this-secret"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 8*time.Hour),
		},
		Auth: AuthConfig{
			Username:     getEnv("OPERATOR_USERNAME", "operator"),
			Password:     getEnv("OPERATOR_PASSWORD", ""),
			PasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
			Mobile:       getEnv("OPERATOR_MOBILE", "9000000001"),
		},
		Workflow: DefaultWorkflow().fromEnv(),
		Payment: PaymentConfig{
			ConvenienceFee: getDecimalEnv("PAYMENT_CONVENIENCE_FEE", decimal.RequireFromString("5.90")),
			TaxSurcharge:   getDecimalEnv("PAYMENT_TAX_SURCHARGE", decimal.RequireFromString("1.06")),
			Tier1Minimum:   getDecimalEnv("TIER1_MINIMUM", decimal.NewFromInt(500)),
			Tier2Minimum:   getDecimalEnv("TIER2_MINIMUM", decimal.NewFromInt(1000)),
		},
		OTP: OTPConfig{
			Strict: getBoolEnv("OTP_STRICT", false),
			Secret: getEnv("OTP_SECRET", ""),
		},
		Session: SessionConfig{
			IdleTimeout:   getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getIntEnv("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			UseTLS:   getBoolEnv("SMTP_TLS", false),
		},
	}
}

// DefaultWorkflow returns the reference timings.
func DefaultWorkflow() WorkflowConfig {
	return WorkflowConfig{
		LoaderFloor:        6 * time.Second,
		ExistingCheckFloor: 5 * time.Second,
		MobileOTPTimer:     180 * time.Second,
		LoginOTPTimer:      60 * time.Second,
		RedirectDelay:      time.Second,
		UPIVerifyDelay:     2 * time.Second,
		BankLoginDelay:     1500 * time.Millisecond,
		NetBankingOTPDelay: 2 * time.Second,
		IssuanceDelay:      5 * time.Second,
		StatusAutoResolve:  10 * time.Second,
		StatusRefreshDelay: 3 * time.Second,
		GatewayLatencyMin:  800 * time.Millisecond,
		GatewayLatencyMax:  1200 * time.Millisecond,
		GatewayTimeout:     10 * time.Second,
	}
}

// DefaultPayment returns the reference fee schedule and tier minimums.
func DefaultPayment() PaymentConfig {
	return PaymentConfig{
		ConvenienceFee: decimal.RequireFromString("5.90"),
		TaxSurcharge:   decimal.RequireFromString("1.06"),
		Tier1Minimum:   decimal.NewFromInt(500),
		Tier2Minimum:   decimal.NewFromInt(1000),
	}
}

func (w WorkflowConfig) fromEnv() WorkflowConfig {
	return WorkflowConfig{
		LoaderFloor:        getDurationEnv("WF_LOADER_FLOOR", w.LoaderFloor),
		ExistingCheckFloor: getDurationEnv("WF_EXISTING_CHECK_FLOOR", w.ExistingCheckFloor),
		MobileOTPTimer:     getDurationEnv("WF_MOBILE_OTP_TIMER", w.MobileOTPTimer),
		LoginOTPTimer:      getDurationEnv("WF_LOGIN_OTP_TIMER", w.LoginOTPTimer),
		RedirectDelay:      getDurationEnv("WF_REDIRECT_DELAY", w.RedirectDelay),
		UPIVerifyDelay:     getDurationEnv("WF_UPI_VERIFY_DELAY", w.UPIVerifyDelay),
		BankLoginDelay:     getDurationEnv("WF_BANK_LOGIN_DELAY", w.BankLoginDelay),
		NetBankingOTPDelay: getDurationEnv("WF_NETBANKING_OTP_DELAY", w.NetBankingOTPDelay),
		IssuanceDelay:      getDurationEnv("WF_ISSUANCE_DELAY", w.IssuanceDelay),
		StatusAutoResolve:  getDurationEnv("WF_STATUS_AUTO_RESOLVE", w.StatusAutoResolve),
		StatusRefreshDelay: getDurationEnv("WF_STATUS_REFRESH_DELAY", w.StatusRefreshDelay),
		GatewayLatencyMin:  getDurationEnv("GATEWAY_LATENCY_MIN", w.GatewayLatencyMin),
		GatewayLatencyMax:  getDurationEnv("GATEWAY_LATENCY_MAX", w.GatewayLatencyMax),
		GatewayTimeout:     getDurationEnv("GATEWAY_TIMEOUT", w.GatewayTimeout),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
