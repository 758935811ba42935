package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ServerPort int
	Host       string
	ClientURL  string
	TrustProxy bool
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Storage    StorageConfig
	MQ         MQConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port pair for the Redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds token signing material. Expirations are kept as the raw
// configured strings ("900", "15m", "7d") and parsed by the token codec.
type AuthConfig struct {
	AccessTokenSecret   string
	RefreshTokenSecret  string
	AccessTokenExpires  string
	RefreshTokenExpires string
	CookieSecure        bool
}

type RateLimitConfig struct {
	LoginMaxAttempts   int
	LoginWindowMinutes int
}

type StorageConfig struct {
	// Backend is one of "local", "minio" or "gcs".
	Backend       string
	LocalDir      string
	PublicBaseURL string
	Minio         MinioConfig
	GCS           GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
}

type MQConfig struct {
	// Backend is one of "none", "rabbitmq" or "pubsub".
	Backend  string
	Topic    string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type LogConfig struct {
	Level string
}

func LoadConfig() Config {
	env := getEnv("ENV", "production")
	if env == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvInt("POSTGRES_PORT", 5432),
		User:     getEnv("POSTGRES_USER", "result"),
		Password: getEnv("POSTGRES_PASSWORD", "password"),
		DBName:   getEnv("POSTGRES_DB", "result_system"),
		UseSSL:   getEnvBool("POSTGRES_SSL", false),
	}

	redisConfig := RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	authConfig := AuthConfig{
		AccessTokenSecret:   strings.TrimSpace(getEnv("ACCESS_TOKEN_SECRET_KEY", "")),
		RefreshTokenSecret:  strings.TrimSpace(getEnv("REFRESH_TOKEN_SECRET_KEY", "")),
		AccessTokenExpires:  getEnv("ACCESS_TOKEN_EXPIRES", "15m"),
		RefreshTokenExpires: getEnv("REFRESH_TOKEN_EXPIRES", "7d"),
		CookieSecure:        getEnvBool("COOKIE_SECURE", true),
	}

	storageConfig := StorageConfig{
		Backend:       getEnv("STORAGE_BACKEND", "local"),
		LocalDir:      getEnv("ASSETS_DIR", "assets"),
		PublicBaseURL: getEnv("ASSETS_BASE_URL", "/assets"),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "avatars"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	mqConfig := MQConfig{
		Backend: getEnv("MQ_BACKEND", "none"),
		Topic:   getEnv("MQ_USER_EVENTS_TOPIC", "user-events"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		Env:        env,
		ServerPort: getEnvInt("PORT", 8080),
		Host:       getEnv("HOST", "localhost"),
		ClientURL:  getEnv("CLIENT_URL", ""),
		TrustProxy: getEnvBool("TRUST_PROXY", false),
		Database:   dbConfig,
		Redis:      redisConfig,
		Auth:       authConfig,
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:   getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindowMinutes: getEnvInt("LOGIN_WINDOW_MINUTES", 15),
		},
		Storage: storageConfig,
		MQ:      mqConfig,
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate reports missing settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET_KEY is required"))
	}
	if c.Auth.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET_KEY is required"))
	}
	if c.Auth.AccessTokenExpires == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRES is required"))
	}
	if c.Auth.RefreshTokenExpires == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRES is required"))
	}
	switch c.Storage.Backend {
	case "local", "minio", "gcs":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.MQ.Backend {
	case "none", "rabbitmq", "pubsub":
	default:
		errs = append(errs, fmt.Errorf("unknown MQ_BACKEND %q", c.MQ.Backend))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the server runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}
