package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	Firebase  FirebaseConfig  `yaml:"firebase"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Booking   BookingConfig   `yaml:"booking"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	Migrate  bool   `yaml:"migrate"`
}

// RedisConfig contains webhook dedup and device token store settings
type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables redis
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"` // empty disables event publishing
	Exchange string `yaml:"exchange"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// BookingConfig contains rental policy settings
type BookingConfig struct {
	DurationUnitHours int    `yaml:"duration_unit_hours"`
	MaxDurationHours  int    `yaml:"max_duration_hours"`
	LateFeePerHour    int64  `yaml:"late_fee_per_hour"`
	Currency          string `yaml:"currency"`
}

// PricingConfig contains quote settings
type PricingConfig struct {
	TierUnitHours         int     `yaml:"tier_unit_hours"`
	DeliveryFlatFee       int64   `yaml:"delivery_flat_fee"`
	MaxDeliveryDistanceKm float64 `yaml:"max_delivery_distance_km"`
	RejectBeyondRadius    bool    `yaml:"reject_beyond_radius"`
}

// PaymentConfig contains gateway credentials and settlement policy
type PaymentConfig struct {
	VerifyTimeoutSeconds int            `yaml:"verify_timeout_seconds"`
	EnforceRefundBound   *bool          `yaml:"enforce_refund_bound"`
	DedupTTLHours        int            `yaml:"dedup_ttl_hours"`
	Stripe               StripeConfig   `yaml:"stripe"`
	Razorpay             RazorpayConfig `yaml:"razorpay"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type RazorpayConfig struct {
	KeyID         string `yaml:"key_id"`
	KeySecret     string `yaml:"key_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcilePendingPayments string `yaml:"reconcile_pending_payments"`
	SendOverdueReminders     string `yaml:"send_overdue_reminders"`
	StalePaymentMinutes      int    `yaml:"stale_payment_minutes"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// .env is optional; values already in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// RabbitMQ
	if val := os.Getenv("RABBITMQ_URL"); val != "" {
		c.RabbitMQ.URL = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// Firebase
	if val := os.Getenv("FIREBASE_CREDENTIALS_FILE"); val != "" {
		c.Firebase.CredentialsFile = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// Payment
	if val := os.Getenv("STRIPE_SECRET_KEY"); val != "" {
		c.Payment.Stripe.SecretKey = val
	}
	if val := os.Getenv("STRIPE_WEBHOOK_SECRET"); val != "" {
		c.Payment.Stripe.WebhookSecret = val
	}
	if val := os.Getenv("RAZORPAY_KEY_ID"); val != "" {
		c.Payment.Razorpay.KeyID = val
	}
	if val := os.Getenv("RAZORPAY_KEY_SECRET"); val != "" {
		c.Payment.Razorpay.KeySecret = val
	}
	if val := os.Getenv("RAZORPAY_WEBHOOK_SECRET"); val != "" {
		c.Payment.Razorpay.WebhookSecret = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Booking
	if val := os.Getenv("LATE_FEE_PER_HOUR"); val != "" {
		fmt.Sscanf(val, "%d", &c.Booking.LateFeePerHour)
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// SendGrid validation
	if c.SendGrid.APIKey != "" && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when an api key is set")
	}

	// Booking defaults
	if c.Booking.DurationUnitHours == 0 {
		c.Booking.DurationUnitHours = 12
	}
	if c.Booking.MaxDurationHours == 0 {
		c.Booking.MaxDurationHours = 720
	}
	if c.Booking.MaxDurationHours%c.Booking.DurationUnitHours != 0 {
		return fmt.Errorf("max_duration_hours must be a multiple of duration_unit_hours")
	}
	if c.Booking.LateFeePerHour < 0 {
		return fmt.Errorf("late_fee_per_hour must not be negative")
	}
	if c.Booking.Currency == "" {
		c.Booking.Currency = "INR"
	}

	// Pricing defaults
	if c.Pricing.TierUnitHours == 0 {
		c.Pricing.TierUnitHours = 24
	}
	if c.Pricing.MaxDeliveryDistanceKm == 0 {
		c.Pricing.MaxDeliveryDistanceKm = 5
	}

	// Payment validation
	if c.Payment.Stripe.SecretKey != "" && c.Payment.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe webhook_secret is required when stripe is enabled")
	}
	if c.Payment.Razorpay.KeyID != "" && c.Payment.Razorpay.KeySecret == "" {
		return fmt.Errorf("razorpay key_secret is required when razorpay is enabled")
	}
	if c.Payment.VerifyTimeoutSeconds == 0 {
		c.Payment.VerifyTimeoutSeconds = 10
	}
	if c.Payment.EnforceRefundBound == nil {
		enforce := true
		c.Payment.EnforceRefundBound = &enforce
	}
	if c.Payment.DedupTTLHours == 0 {
		c.Payment.DedupTTLHours = 72
	}

	// Scheduler defaults
	if c.Scheduler.ReconcilePendingPayments == "" {
		c.Scheduler.ReconcilePendingPayments = "0 */15 * * * *" // every 15 minutes
	}
	if c.Scheduler.SendOverdueReminders == "" {
		c.Scheduler.SendOverdueReminders = "0 0 * * * *" // hourly
	}
	if c.Scheduler.StalePaymentMinutes == 0 {
		c.Scheduler.StalePaymentMinutes = 30
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the health server address, empty when disabled
func (c *Config) GetGRPCAddress() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (c *Config) VerifyTimeout() time.Duration {
	return time.Duration(c.Payment.VerifyTimeoutSeconds) * time.Second
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Payment.DedupTTLHours) * time.Hour
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpiry) * time.Minute
}
