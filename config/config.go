package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	RabbitMQ          RabbitMQConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Gateway           GatewayConfig
	Billing           BillingConfig
	Webhook           WebhookConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName   string
	APIKey        string
	PublicBaseURL string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

// GatewayConfig holds the payment provider credentials and endpoints.
type GatewayConfig struct {
	BaseURL          string
	APIKey           string
	APISecret        string
	Sandbox          bool
	Timeout          time.Duration
	RequireSignature bool
	BreakerFailures  uint32
	BreakerCooldown  time.Duration
}

type BillingConfig struct {
	IPNPath           string
	SuccessURL        string
	CancelURL         string
	CheckoutAttemptTT time.Duration
}

type WebhookConfig struct {
	RateLimitPerSecond float64
}

type JobsConfig struct {
	ExpirationCheckInterval time.Duration
	NotificationRetryEvery  time.Duration
	NotificationMaxAttempts int
	NotificationBatchSize   int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}
	gatewayURL := os.Getenv("GATEWAY_BASE_URL")
	if gatewayURL == "" {
		return nil, errors.New("GATEWAY_BASE_URL environment variable is required")
	}
	apiKey := os.Getenv("GATEWAY_API_KEY")
	apiSecret := os.Getenv("GATEWAY_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("GATEWAY_API_KEY and GATEWAY_API_SECRET environment variables are required")
	}
	publicBaseURL := strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	if publicBaseURL == "" {
		return nil, errors.New("PUBLIC_BASE_URL environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName:   getEnv("APP_SERVICE_NAME", "billing-service"),
			APIKey:        getEnv("APP_API_KEY", ""),
			PublicBaseURL: publicBaseURL,
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{URL: getEnv("REDIS_URL", "")},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "billing.notifications"),
		},
		Log: LogConfig{Level: getEnv("LOG_LEVEL", "info")},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Gateway: GatewayConfig{
			BaseURL:          strings.TrimRight(gatewayURL, "/"),
			APIKey:           apiKey,
			APISecret:        apiSecret,
			Sandbox:          getBoolEnv("GATEWAY_SANDBOX", true),
			Timeout:          getSecondsEnv("GATEWAY_TIMEOUT_SECONDS", 10*time.Second),
			RequireSignature: getBoolEnv("GATEWAY_REQUIRE_SIGNATURE", true),
			BreakerFailures:  uint32(getIntEnv("GATEWAY_BREAKER_FAILURES", 5)),
			BreakerCooldown:  getSecondsEnv("GATEWAY_BREAKER_COOLDOWN_SECONDS", 30*time.Second),
		},
		Billing: BillingConfig{
			IPNPath:           getEnv("BILLING_IPN_PATH", "/webhooks/payment-notification"),
			SuccessURL:        getEnv("BILLING_SUCCESS_URL", publicBaseURL+"/billing/success"),
			CancelURL:         getEnv("BILLING_CANCEL_URL", publicBaseURL+"/billing/cancel"),
			CheckoutAttemptTT: getDurationEnv("CHECKOUT_ATTEMPT_TTL_MINUTES", 2880*time.Minute),
		},
		Webhook: WebhookConfig{
			RateLimitPerSecond: getFloatEnv("WEBHOOK_RATE_LIMIT_PER_SECOND", 20),
		},
		Jobs: JobsConfig{
			ExpirationCheckInterval: getDurationEnv("EXPIRATION_CHECK_INTERVAL_MINUTES", time.Hour),
			NotificationRetryEvery:  getDurationEnv("NOTIFICATION_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			NotificationMaxAttempts: getIntEnv("NOTIFICATION_MAX_ATTEMPTS", 10),
			NotificationBatchSize:   getIntEnv("NOTIFICATION_BATCH_SIZE", 100),
		},
	}, nil
}

// IPNURL is the absolute address the provider calls back into.
func (c *Config) IPNURL() string {
	path := c.Billing.IPNPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.App.PublicBaseURL + path
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
