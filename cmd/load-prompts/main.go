package main

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"sketchbook/internal/config"
	"sketchbook/internal/db"
	"sketchbook/internal/logger"
)

func main() {
	filePath := pflag.StringP("file", "f", "prompts.csv", "path to prompt card csv")
	envFile := pflag.String("env-file", ".env", "dotenv file to load")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Warn().Err(err).Str("path", *envFile).Msg("dotenv_load_failed")
	}
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
	})
	if err != nil {
		log.Error().Err(err).Msg("database_connection_failed")
		os.Exit(1)
	}

	loaded, err := db.LoadPromptCards(conn, *filePath)
	if err != nil {
		log.Error().Err(err).Int("loaded", loaded).Str("file", *filePath).Msg("prompt_load_failed")
		os.Exit(1)
	}
	log.Info().Int("loaded", loaded).Str("file", *filePath).Msg("prompts_loaded")
}
