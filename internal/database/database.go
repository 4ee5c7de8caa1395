package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"shooter-sync/internal/config"
	"shooter-sync/internal/constants"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// journalPragmas suit one batch writer appending events while the API reads
// recent rows.
var journalPragmas = []struct {
	name  string
	value string
}{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"wal_autocheckpoint", "1000"},
	{"journal_size_limit", "67108864"},
	{"temp_store", "MEMORY"},
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open connects to the sqlite match journal at path, applies the journal
// pragmas and migrates the schema.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	logger = logger.With().Str("component", "journal_db").Str("path", path).Logger()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach journal database: %w", err)
	}
	if err := applyPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}
	version, err := migrate(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Int64("schema_version", version).Msg("journal database ready")
	return db, nil
}

// migrate brings the journal schema up to date and returns its version.
func migrate(db *sql.DB) (int64, error) {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return 0, fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to read journal schema version: %w", err)
	}
	return version, nil
}

func applyPragmas(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	for _, p := range journalPragmas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", p.name, err)
		}
		logger.Debug().Str("pragma", p.name).Str("value", p.value).Msg("pragma set")
	}
	return nil
}
