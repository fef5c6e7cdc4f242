package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Gateways struct {
		UserDirectoryURL string
		DriverMatcherURL string
		Timeout          time.Duration
	}
	HTTP struct {
		Port int
	}
	JWT struct {
		Secret string
	}
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "triphail_user")
	cfg.Database.Password = getEnv("DB_PASSWORD", "triphail_pass")
	cfg.Database.Name = getEnv("DB_NAME", "triphail_db")

	cfg.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	cfg.RabbitMQ.Port = getEnvInt("RABBITMQ_PORT", 5672)
	cfg.RabbitMQ.User = getEnv("RABBITMQ_USER", "guest")
	cfg.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	cfg.Gateways.UserDirectoryURL = getEnv("USER_DIRECTORY_URL", "http://user-service:3001")
	cfg.Gateways.DriverMatcherURL = getEnv("DRIVER_MATCHER_URL", "http://driver-location-service:3002")
	cfg.Gateways.Timeout = time.Duration(getEnvInt("GATEWAY_TIMEOUT_MS", 3000)) * time.Millisecond

	cfg.HTTP.Port = getEnvInt("TRIP_SERVICE_PORT", 3003)

	cfg.JWT.Secret = getEnv("JWT_SECRET", "super-secret-key")

	return cfg, nil
}

func (c *Config) Print() {
	fmt.Printf("Database: %s@%s:%d/%s\n", c.Database.User, c.Database.Host, c.Database.Port, c.Database.Name)
	fmt.Printf("RabbitMQ: amqp://%s@%s:%d\n", c.RabbitMQ.User, c.RabbitMQ.Host, c.RabbitMQ.Port)
	fmt.Printf("Gateways: user=%s driver=%s timeout=%s\n",
		c.Gateways.UserDirectoryURL, c.Gateways.DriverMatcherURL, c.Gateways.Timeout)
	fmt.Printf("Trip Service port: %d\n", c.HTTP.Port)
}
