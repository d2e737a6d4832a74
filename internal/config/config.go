package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aurachatapp/aurachat-premium/internal/pkg/validate"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"

	// devSecret mirrors the fallback the extension backend always shipped with.
	// Validate refuses it outside development.
	devSecret = "dev_secret"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `validate:"required,numeric"`
	AppEnv   string `validate:"required"`
	LogLevel string

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64  `validate:"gt=0"`
	RateLimitBurst int      `validate:"gt=0"`
	TrustProxy     bool     // key rate limits on X-Forwarded-For; only behind a proxy that overwrites it

	StoreBackend string `validate:"oneof=memory file dynamo redis"`
	StoreFile    string // snapshot path for the file backend

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	JWTSecret         string `validate:"required"`
	ProofSecret       string `validate:"required"`
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	SessionMode       string        `validate:"oneof=jwt opaque"`
	SessionTTL        time.Duration `validate:"gt=0"`

	OTPTTL         time.Duration `validate:"gt=0"`
	OTPMaxAttempts int           `validate:"gte=0"`
	OTPBcryptCost  int           `validate:"gte=4,lte=31"`
	OTPDebugEcho   bool          // echo the plaintext code in /auth/start responses
	OTPBypass      bool          // accept any well-formed code; development and test only
	SweepInterval  time.Duration `validate:"gt=0"`

	MailProvider   string `validate:"oneof=log smtp sendgrid"`
	MailFrom       string
	MailFromName   string
	MailTimeout    time.Duration `validate:"gt=0"`
	SMTPHost       string
	SMTPPort       string
	SMTPUsername   string
	SMTPPassword   string
	SendGridAPIKey string

	StripeSecretKey string
	StripeAPIURL    string        // override for tests and stripe-mock
	BillingTimeout  time.Duration `validate:"gt=0"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	PendingVerifications string
	ConsumedProofs       string
	Sessions             string
	Customers            string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	jwtSecret := getEnv("JWT_SECRET", devSecret)
	// Code shortcuts need APP_ENV named explicitly; the development default is not enough.
	explicitDev := os.Getenv("APP_ENV") == EnvDevelopment || os.Getenv("APP_ENV") == EnvTest
	return &Config{
		AppPort:        getEnv("APP_PORT", getEnv("PORT", "3000")),
		AppEnv:         getEnv("APP_ENV", EnvDevelopment),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "chrome-extension://*,https://*.github.io")),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		StoreBackend:   getEnv("STORE_BACKEND", "memory"),
		StoreFile:      getEnv("STORE_FILE", "./data/store.json"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			PendingVerifications: getEnv("DYNAMO_TABLE_PENDING_VERIFICATIONS", "pending_verifications"),
			ConsumedProofs:       getEnv("DYNAMO_TABLE_CONSUMED_PROOFS", "consumed_proofs"),
			Sessions:             getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Customers:            getEnv("DYNAMO_TABLE_CUSTOMERS", "billing_customers"),
		},
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisPrefix:       getEnv("REDIS_PREFIX", "aurachat"),
		JWTSecret:         jwtSecret,
		ProofSecret:       getEnv("PROOF_SECRET", jwtSecret),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", ""),
		SessionMode:       getEnv("SESSION_MODE", "jwt"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		OTPTTL:            getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPBcryptCost:     getEnvInt("OTP_BCRYPT_COST", 10),
		OTPDebugEcho:      explicitDev && getEnvBool("OTP_DEBUG_ECHO", false),
		OTPBypass:         explicitDev && getEnvBool("OTP_BYPASS", false),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 60*time.Second),
		MailProvider:      getEnv("MAIL_PROVIDER", "log"),
		MailFrom:          getEnv("MAIL_FROM", "noreply@aurachat.app"),
		MailFromName:      getEnv("MAIL_FROM_NAME", "AuraChat"),
		MailTimeout:       getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		StripeSecretKey:   getEnv("STRIPE_SECRET_KEY", ""),
		StripeAPIURL:      getEnv("STRIPE_API_URL", ""),
		BillingTimeout:    getEnvDuration("BILLING_TIMEOUT", 5*time.Second),
	}
}

// IsDevelopment reports whether APP_ENV names a local or test deployment. Any
// other value, including a misspelt one, is treated as a real deployment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment || c.AppEnv == EnvTest
}

// Validate checks field constraints and refuses unsafe settings outside development.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.IsDevelopment() {
		return nil
	}
	var errs []error
	if c.OTPBypass {
		errs = append(errs, fmt.Errorf("OTP_BYPASS is only allowed when APP_ENV is %s or %s", EnvDevelopment, EnvTest))
	}
	if c.OTPDebugEcho {
		errs = append(errs, fmt.Errorf("OTP_DEBUG_ECHO is only allowed when APP_ENV is %s or %s", EnvDevelopment, EnvTest))
	}
	if c.JWTSecret == devSecret || c.ProofSecret == devSecret {
		errs = append(errs, fmt.Errorf("JWT_SECRET and PROOF_SECRET must be set when APP_ENV is %s", c.AppEnv))
	}
	if c.MailProvider == "log" {
		errs = append(errs, fmt.Errorf("MAIL_PROVIDER=log is not allowed when APP_ENV is %s", c.AppEnv))
	}
	if c.StoreBackend == "memory" {
		errs = append(errs, errors.New("STORE_BACKEND=memory loses codes on restart; use file, dynamo or redis"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
