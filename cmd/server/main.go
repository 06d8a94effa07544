package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sketchbook/internal/cache"
	"sketchbook/internal/config"
	"sketchbook/internal/db"
	"sketchbook/internal/game"
	"sketchbook/internal/logger"
	"sketchbook/internal/server"
)

const releaseVersion = "0.1.0"

type flags struct {
	bind       string
	port       int
	envFile    string
	prompts    string
	migrations string
	migrate    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newCmd(&flags{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sketchbook",
		Short:         "Party game where sketches and guesses travel around a room.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(f.envFile); err != nil {
				return fmt.Errorf("load %s: %w", f.envFile, err)
			}
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = f.port
			}
			if cfg.Port < 1 || cfg.Port > 65535 {
				return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", cfg.Port)
			}
			logger.Setup(cfg.LogLevel, cfg.LogPretty)
			return serve(cmd.Context(), f, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&f.bind, "bind", "b", "0.0.0.0", "address to bind to")
	fs.IntVarP(&f.port, "port", "p", 8080, "port to listen on (env: PORT)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	fs.StringVar(&f.prompts, "prompts", "prompts.csv", "prompt card csv used when no database is configured")
	fs.StringVar(&f.migrations, "migrations", "db/migrations", "directory of sql migrations")
	fs.BoolVar(&f.migrate, "migrate", true, "apply sql migrations on startup")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sketchbook v{{.Version}}\n")
	return cmd
}

func serve(ctx context.Context, f *flags, cfg config.Config) error {
	entities, closeStore, err := openEntities(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	books, catalog, journal, err := openBooks(f, cfg)
	if err != nil {
		return err
	}

	hub := server.NewHub()
	manager := game.NewManager(entities, books, catalog,
		game.WithBroadcaster(hub),
		game.WithJournal(journal),
		game.WithPromptSelection(cfg.PromptSelection),
	)
	api := server.New(manager, hub, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort(f.bind, strconv.Itoa(cfg.Port)),
		Handler:           api.Handler(),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", releaseVersion).Msg("server_listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("server_shutting_down")
	return srv.Shutdown(shutdownCtx)
}

// openEntities uses Redis when REDIS_URL is set and an in-process store
// otherwise. Either way entries expire on the configured TTLs.
func openEntities(ctx context.Context, cfg config.Config) (*cache.Repository, func(), error) {
	ttls := cache.TTLs{Room: cfg.RoomTTL, User: cfg.UserTTL, Game: cfg.GameTTL}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set; using in-memory entity store")
		return cache.NewRepository(cache.NewMemoryStore(nil), ttls), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("redis_close_failed")
		}
	}
	return cache.NewRepository(cache.NewRedisStore(client), ttls), closeClient, nil
}

// openBooks uses Postgres when DATABASE_URL is set. Without it books and
// events live in memory and the prompt catalog is read from the csv file.
func openBooks(f *flags, cfg config.Config) (game.Books, game.Catalog, game.Journal, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Str("prompts", f.prompts).Msg("DATABASE_URL not set; using in-memory sketchbooks")
		prompts, err := db.ReadPromptCards(f.prompts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read prompts: %w", err)
		}
		return game.NewMemoryBooks(), game.NewMemoryCatalog(prompts), game.NewMemoryJournal(), nil
	}

	if f.migrate {
		if err := db.RunMigrations(cfg.DatabaseURL, f.migrations); err != nil {
			return nil, nil, nil, fmt.Errorf("database migration failed: %w", err)
		}
	}
	conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if !f.migrate {
		if err := db.Migrate(conn); err != nil {
			return nil, nil, nil, fmt.Errorf("database automigrate failed: %w", err)
		}
	}
	repo := db.NewRepository(conn)
	return repo, repo, repo, nil
}
