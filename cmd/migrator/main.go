package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Applies the goose migrations under db/migrations. Kept separate from the
// API binary so deploys can run schema changes as a one-shot job before
// rolling the server.
func main() {
	command := flag.String("command", "up", "goose command: up, down or status")
	dir := flag.String("dir", "db/migrations", "migration directory")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}

	if err := run(logger, *command, *dir); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
}

func run(logger zerolog.Logger, command, dir string) error {
	dsn, err := dsnFromEnv()
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migration directory %s: %w", dir, err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	logger.Info().Str("command", command).Str("dir", dir).Msg("running migrations")

	switch command {
	case "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", command)
	}
}

func dsnFromEnv() (string, error) {
	user := os.Getenv("PG_USER")
	password := os.Getenv("PG_PASSWORD")
	database := os.Getenv("PG_DATABASE")
	if user == "" || password == "" || database == "" {
		return "", fmt.Errorf("PG_USER, PG_PASSWORD and PG_DATABASE must be set")
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		envOr("PG_HOST", "localhost"),
		envOr("PG_PORT", "5432"),
		user, password, database,
		envOr("PG_SSL_MODE", "disable"),
	), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
