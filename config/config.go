package config

import (
	"fmt"
	"os"
)

type Config struct {
	Port             string
	MongoURL         string
	MongoDBName      string
	StripeSecretKey  string
	StripeWebhookKey string
	FrontendURL      string // checkout redirect target and allowed CORS origin
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "3000"),
		MongoURL:         os.Getenv("MONGO_DB_URL"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "zapShiftDB"),
		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.MongoURL == "" || cfg.StripeSecretKey == "" || cfg.StripeWebhookKey == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
