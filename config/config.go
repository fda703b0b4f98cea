package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	// BaseURL is the public origin used to build payment callback URLs.
	BaseURL       string
	SessionSecret string
	LogLevel      string
	Database      DatabaseConfig
	Payment       PaymentConfig
	Admin         AdminConfig
	Storage       StorageConfig
	MQ            MQConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type PaymentConfig struct {
	AccessToken string
	APIBaseURL  string
	Currency    string
}

// AdminConfig is the account seeded on first boot.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

type StorageConfig struct {
	// Backend is one of "none", "memory", "minio", "gcs" or "s3".
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
	S3      S3Config
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

type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

type MQConfig struct {
	// Backend is one of "none", "memory", "rabbitmq", "pubsub" or "kafka".
	Backend         string
	PurchaseChannel string
	RabbitMQ        RabbitMQConfig
	PubSub          PubSubConfig
	Kafka           KafkaConfig
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

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "qenty"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "qenty_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	port := getEnvInt("SERVER_PORT", 8080)

	return Config{
		ServerPort:    port,
		BaseURL:       strings.TrimRight(getEnv("BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Database:      dbConfig,
		Payment: PaymentConfig{
			AccessToken: getEnv("MP_ACCESS_TOKEN", ""),
			APIBaseURL:  getEnv("MP_API_BASE_URL", "https://api.mercadopago.com"),
			Currency:    getEnv("PAYMENT_CURRENCY", "ARS"),
		},
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "Administrador"),
			Email:    getEnv("ADMIN_EMAIL", "admin@qenty.com"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "none")),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "qenty"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				Bucket:          getEnv("GCS_BUCKET", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
			S3: S3Config{
				Region:       getEnv("S3_REGION", "us-east-1"),
				AccessKey:    getEnv("S3_ACCESS_KEY", ""),
				SecretKey:    getEnv("S3_SECRET_KEY", ""),
				Bucket:       getEnv("S3_BUCKET", ""),
				BaseEndpoint: getEnv("S3_BASE_ENDPOINT", ""),
			},
		},
		MQ: MQConfig{
			Backend:         strings.ToLower(getEnv("MQ_BACKEND", "none")),
			PurchaseChannel: getEnv("MQ_PURCHASE_CHANNEL", "course-purchases"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
			Kafka: KafkaConfig{
				Brokers: getEnvList("KAFKA_BROKERS"),
				GroupID: getEnv("KAFKA_GROUP_ID", "qenty-receipts"),
			},
		},
	}
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
		default:
			return false
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
