package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`

	// Database Configuration
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSource          string        `mapstructure:"DB_SOURCE"`
	DBAutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Notifications
	NotificationBatchSize int      `mapstructure:"NOTIFICATION_BATCH_SIZE"`
	NotifyChannels        []string `mapstructure:"NOTIFY_CHANNELS"`
	DispatchConcurrency   int      `mapstructure:"DISPATCH_CONCURRENCY"`
	PublicAppURL          string   `mapstructure:"PUBLIC_APP_URL"`

	// Operation log sinks: "db", "elasticsearch" (comma separated)
	OplogSinks []string `mapstructure:"OPLOG_SINKS"`
	// Upper bound on a single operation log write.
	OplogWriteTimeout time.Duration `mapstructure:"OPLOG_WRITE_TIMEOUT_MS"`

	// Cron Jobs
	ReminderJobSchedule string        `mapstructure:"REMINDER_JOB_SCHEDULE"`
	ReminderLeadTime    time.Duration `mapstructure:"REMINDER_LEAD_TIME_MINUTES"`

	// Reorder locking
	ReorderLockTTL time.Duration `mapstructure:"REORDER_LOCK_TTL_SECONDS"`

	// SMS / WhatsApp gateway
	SMSBaseURL      string `mapstructure:"SMS_BASE_URL"`
	SMSAPIKey       string `mapstructure:"SMS_API_KEY"`
	SMSSenderID     string `mapstructure:"SMS_SENDER_ID"`
	WhatsAppBaseURL string `mapstructure:"WHATSAPP_BASE_URL"`
	WhatsAppToken   string `mapstructure:"WHATSAPP_TOKEN"`
	WhatsAppSender  string `mapstructure:"WHATSAPP_SENDER"`

	// SMTP
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// Firebase Configuration
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`

	// Elasticsearch Configuration
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`

	// Redis Configuration. Empty address disables Redis.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.ReminderLeadTime = time.Duration(v.GetInt("REMINDER_LEAD_TIME_MINUTES")) * time.Minute
	cfg.ReorderLockTTL = time.Duration(v.GetInt("REORDER_LOCK_TTL_SECONDS")) * time.Second
	cfg.OplogWriteTimeout = time.Duration(v.GetInt("OPLOG_WRITE_TIMEOUT_MS")) * time.Millisecond

	// Lists arrive from the environment as comma separated strings.
	cfg.NotifyChannels = splitList(v.GetString("NOTIFY_CHANNELS"))
	cfg.OplogSinks = splitList(v.GetString("OPLOG_SINKS"))

	// GORM uses the DSN built from the individual DB_* parameters.
	cfg.DBSource = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, cfg.DBTimezone)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "buildinghub_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("NOTIFICATION_BATCH_SIZE", 500)
	v.SetDefault("NOTIFY_CHANNELS", "sms,whatsapp")
	v.SetDefault("DISPATCH_CONCURRENCY", 8)
	v.SetDefault("PUBLIC_APP_URL", "http://localhost:3000")
	v.SetDefault("OPLOG_SINKS", "db")
	v.SetDefault("OPLOG_WRITE_TIMEOUT_MS", 2000)

	v.SetDefault("REMINDER_JOB_SCHEDULE", "@every 15m")
	v.SetDefault("REMINDER_LEAD_TIME_MINUTES", 24*60)
	v.SetDefault("REORDER_LOCK_TTL_SECONDS", 30)

	v.SetDefault("SMS_BASE_URL", "")
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_SENDER_ID", "BuildingHub")
	v.SetDefault("WHATSAPP_BASE_URL", "")
	v.SetDefault("WHATSAPP_TOKEN", "")
	v.SetDefault("WHATSAPP_SENDER", "")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", "465")
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@buildinghub.local")

	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")

	v.SetDefault("ELASTICSEARCH_URL", "")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
}

func (cfg *Config) validate() error {
	if strings.TrimSpace(cfg.FirebaseServiceAccountKeyPath) == "" {
		return fmt.Errorf("FATAL: FIREBASE_SERVICE_ACCOUNT_KEY_PATH is not set. This is required for Firebase Admin SDK initialization")
	}
	if _, err := os.Stat(cfg.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
		return fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", cfg.FirebaseServiceAccountKeyPath)
	}
	if cfg.NotificationBatchSize <= 0 {
		return fmt.Errorf("NOTIFICATION_BATCH_SIZE must be positive, got %d", cfg.NotificationBatchSize)
	}
	if cfg.DispatchConcurrency <= 0 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive, got %d", cfg.DispatchConcurrency)
	}
	if cfg.OplogWriteTimeout <= 0 {
		return fmt.Errorf("OPLOG_WRITE_TIMEOUT_MS must be positive, got %s", cfg.OplogWriteTimeout)
	}
	for _, sink := range cfg.OplogSinks {
		if sink == "elasticsearch" && cfg.ElasticsearchURL == "" {
			return fmt.Errorf("OPLOG_SINKS includes elasticsearch but ELASTICSEARCH_URL is empty")
		}
	}
	return nil
}

// HasChannel reports whether a delivery channel is enabled.
func (cfg *Config) HasChannel(name string) bool {
	for _, ch := range cfg.NotifyChannels {
		if ch == name {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
