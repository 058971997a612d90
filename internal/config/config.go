// Package config loads the process configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	JWTSecret    string
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	dbName string
	dbUser string
	dbPass string
	dbHost string
	dbPort string
}

// Load reads the environment. A missing .env file is fine; deployments set
// real environment variables.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := Config{
		HTTPAddr:   getenv("HTTP_ADDR", "0.0.0.0:8080"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		KafkaTopic: getenv("KAFKA_TOPIC", "poll-events"),
		dbName:     os.Getenv("POSTGRES_DB"),
		dbUser:     os.Getenv("POSTGRES_USER"),
		dbPass:     os.Getenv("POSTGRES_PASSWORD"),
		dbHost:     os.Getenv("POSTGRES_HOST"),
		dbPort:     os.Getenv("POSTGRES_PORT"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set")
	}
	return cfg
}

// DBConnString builds the postgres connection string from the POSTGRES_* vars.
func (c Config) DBConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.dbUser, c.dbPass, c.dbHost, c.dbPort, c.dbName)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
