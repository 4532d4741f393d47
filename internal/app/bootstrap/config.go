package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string
	LogLevel  slog.Level

	HTTPPort int
	GRPCPort int

	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string
	KafkaBrokers   []string

	MaxDBConns                     int32
	AutoMigrate                    bool
	KafkaConsumerGroup             string
	KafkaTopicVerificationRecorded string
	KafkaTopicEmailRequested       string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	ConsumerPollInterval time.Duration

	JWTPublicKeyPEM string
	JWTIssuer       string
	JWTAudience     string

	StripeSecretKey string
	StripeCountry   string

	IdempotencyTTL        time.Duration
	EventDedupTTL         time.Duration
	InvitationTTL         time.Duration
	InvitationBaseURL     string
	InvitationBcryptCost  int
	ApplicationRateLimit  int
	ApplicationRateWindow time.Duration
	PaymentLockTTL        time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL                    string   `yaml:"postgres_url"`
		RedisURL                       string   `yaml:"redis_url"`
		RedisKeyPrefix                 string   `yaml:"redis_key_prefix"`
		KafkaBrokers                   []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup             string   `yaml:"kafka_consumer_group"`
		KafkaTopicVerificationRecorded string   `yaml:"kafka_topic_verification_recorded"`
		KafkaTopicEmailRequested       string   `yaml:"kafka_topic_email_requested"`
	} `yaml:"dependencies"`
	Auth struct {
		PublicKeyPEM string `yaml:"public_key_pem"`
		Issuer       string `yaml:"issuer"`
		Audience     string `yaml:"audience"`
	} `yaml:"auth"`
	Payments struct {
		StripeSecretKey string `yaml:"stripe_secret_key"`
		Country         string `yaml:"country"`
	} `yaml:"payments"`
	Lifecycle struct {
		InvitationTTLHours     int    `yaml:"invitation_ttl_hours"`
		InvitationBaseURL      string `yaml:"invitation_base_url"`
		ApplicationRateLimit   int    `yaml:"application_rate_limit"`
		ApplicationRateMinutes int    `yaml:"application_rate_window_minutes"`
	} `yaml:"lifecycle"`
}

// LoadConfig reads path when it exists, then applies environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                      "identity-service",
		LogLevel:                       slog.LevelInfo,
		HTTPPort:                       8080,
		GRPCPort:                       9090,
		RedisKeyPrefix:                 "identity",
		MaxDBConns:                     20,
		AutoMigrate:                    true,
		KafkaConsumerGroup:             "identity-service",
		KafkaTopicVerificationRecorded: "member.verification.recorded",
		KafkaTopicEmailRequested:       "notification.email_requested",
		OutboxPollInterval:             2 * time.Second,
		OutboxBatchSize:                100,
		ConsumerPollInterval:           2 * time.Second,
		StripeCountry:                  "US",
		IdempotencyTTL:                 7 * 24 * time.Hour,
		EventDedupTTL:                  7 * 24 * time.Hour,
		InvitationTTL:                  7 * 24 * time.Hour,
		InvitationBcryptCost:           10,
		ApplicationRateLimit:           5,
		ApplicationRateWindow:          time.Hour,
		PaymentLockTTL:                 2 * time.Minute,
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.LogLevel = parseLevel(envOrDefault("LOG_LEVEL", ""), cfg.LogLevel)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.RedisKeyPrefix = envOrDefault("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicVerificationRecorded = envOrDefault("KAFKA_TOPIC_VERIFICATION_RECORDED", cfg.KafkaTopicVerificationRecorded)
	cfg.KafkaTopicEmailRequested = envOrDefault("KAFKA_TOPIC_EMAIL_REQUESTED", cfg.KafkaTopicEmailRequested)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.StripeSecretKey = envOrDefault("STRIPE_SECRET_KEY", cfg.StripeSecretKey)
	cfg.StripeCountry = envOrDefault("STRIPE_COUNTRY", cfg.StripeCountry)
	cfg.InvitationBaseURL = envOrDefault("INVITATION_BASE_URL", cfg.InvitationBaseURL)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.AutoMigrate = envBool("DB_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.InvitationTTL = time.Duration(envInt("INVITATION_TTL_HOURS", int(cfg.InvitationTTL.Hours()))) * time.Hour
	cfg.InvitationBcryptCost = envInt("INVITATION_BCRYPT_COST", cfg.InvitationBcryptCost)
	cfg.ApplicationRateLimit = envInt("APPLICATION_RATE_LIMIT", cfg.ApplicationRateLimit)
	cfg.ApplicationRateWindow = time.Duration(envInt("APPLICATION_RATE_WINDOW_MINUTES", int(cfg.ApplicationRateWindow.Minutes()))) * time.Minute
	cfg.PaymentLockTTL = time.Duration(envInt("PAYMENT_LOCK_SECONDS", int(cfg.PaymentLockTTL.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	cfg.LogLevel = parseLevel(f.Service.LogLevel, cfg.LogLevel)
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if f.Dependencies.RedisKeyPrefix != "" {
		cfg.RedisKeyPrefix = f.Dependencies.RedisKeyPrefix
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
	}
	if f.Dependencies.KafkaConsumerGroup != "" {
		cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
	}
	if f.Dependencies.KafkaTopicVerificationRecorded != "" {
		cfg.KafkaTopicVerificationRecorded = f.Dependencies.KafkaTopicVerificationRecorded
	}
	if f.Dependencies.KafkaTopicEmailRequested != "" {
		cfg.KafkaTopicEmailRequested = f.Dependencies.KafkaTopicEmailRequested
	}
	cfg.JWTPublicKeyPEM = f.Auth.PublicKeyPEM
	cfg.JWTIssuer = f.Auth.Issuer
	cfg.JWTAudience = f.Auth.Audience
	cfg.StripeSecretKey = f.Payments.StripeSecretKey
	if f.Payments.Country != "" {
		cfg.StripeCountry = f.Payments.Country
	}
	if f.Lifecycle.InvitationTTLHours > 0 {
		cfg.InvitationTTL = time.Duration(f.Lifecycle.InvitationTTLHours) * time.Hour
	}
	cfg.InvitationBaseURL = f.Lifecycle.InvitationBaseURL
	if f.Lifecycle.ApplicationRateLimit > 0 {
		cfg.ApplicationRateLimit = f.Lifecycle.ApplicationRateLimit
	}
	if f.Lifecycle.ApplicationRateMinutes > 0 {
		cfg.ApplicationRateWindow = time.Duration(f.Lifecycle.ApplicationRateMinutes) * time.Minute
	}
}

func parseLevel(raw string, fallback slog.Level) slog.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}
	return level
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
