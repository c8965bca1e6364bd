package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string
	CORSOrigins string

	// SendGrid SMTP relay
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	MaxDeliveryAttempts int

	// Base64 encoded ECDSA public key from the provider's signed event webhook settings.
	// Empty disables signature verification.
	WebhookPublicKey string

	Redis RedisConfig
}

// RedisConfig controls the cross-instance live update relay.
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", "secret"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:              getEnv("DB_NAME", "go-campaign"),
		SkipAuth:            getEnvBool("SKIP_AUTH", false),
		Environment:         getEnv("ENVIRONMENT", "development"),
		AppId:               getEnv("APP_ID", "go-campaign"),
		CORSOrigins:         getEnv("CORS_ORIGINS", "http://localhost:3000, http://localhost:5173"),
		SMTPHost:            getEnv("SMTP_HOST", "smtp.sendgrid.net"),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUsername:        getEnv("SMTP_USERNAME", "apikey"),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		MaxDeliveryAttempts: getEnvInt("MAX_DELIVERY_ATTEMPTS", 5),
		WebhookPublicKey:    getEnv("WEBHOOK_PUBLIC_KEY", ""),
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Invalid integer for %s, using %d", key, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}
