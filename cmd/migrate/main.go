package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"sketchbook/internal/config"
	"sketchbook/internal/db"
	"sketchbook/internal/logger"
)

func main() {
	dir := pflag.String("dir", "db/migrations", "directory of sql migrations")
	envFile := pflag.String("env-file", ".env", "dotenv file to load")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Warn().Err(err).Str("path", *envFile).Msg("dotenv_load_failed")
	}
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := db.RunMigrations(cfg.DatabaseURL, *dir); err != nil {
		log.Error().Err(err).Msg("database_migration_failed")
		os.Exit(1)
	}
}
