package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/services/auth"
	"github.com/flowmail/flowmail/services/gmail"
)

type Config struct {
	AppConfig       *AppConfig
	Logger          *logger.Config
	Tracing         *tracing.JaegerConfig
	DatabaseConfig  *DatabaseConfig
	S3StorageConfig *S3StorageConfig
	OAuthConfig     *gmail.OAuthConfig
	JWTConfig       *auth.JWTConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:       &AppConfig{},
		Logger:          &logger.Config{},
		Tracing:         &tracing.JaegerConfig{},
		DatabaseConfig:  &DatabaseConfig{},
		S3StorageConfig: &S3StorageConfig{},
		OAuthConfig:     &gmail.OAuthConfig{},
		JWTConfig:       &auth.JWTConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading flowmail config: %v", err)
	}

	return config, nil
}
