package config

import (
	"fmt"
	"os"
	"shooter-sync/internal/constants"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	ServerPort   string
	LogLevel     string
	DBPath       string
	JWTSecret    string
	TeamCount    int
	WinningScore int
	MaxHP        float64
	RespawnDelay time.Duration
	TickRate     int
	ReportURL    string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}
	return FromEnv(logger)
}

// FromEnv reads the configuration from the process environment only.
func FromEnv(logger zerolog.Logger) (*Config, error) {
	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		DBPath:     getEnv("DB_PATH", "shooter.db"),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		ReportURL:  getEnv("REPORT_URL", ""),
	}

	var err error
	if cfg.TeamCount, err = getInt("TEAM_COUNT", constants.DefaultTeamCount); err != nil {
		return nil, err
	}
	if cfg.WinningScore, err = getInt("WINNING_SCORE", constants.DefaultWinningScore); err != nil {
		return nil, err
	}
	if cfg.TickRate, err = getInt("TICK_RATE", constants.DefaultTickRate); err != nil {
		return nil, err
	}
	if cfg.MaxHP, err = getFloat("MAX_HP", constants.DefaultMaxHP); err != nil {
		return nil, err
	}
	if cfg.RespawnDelay, err = getDuration("RESPAWN_DELAY", constants.DefaultRespawnDelay); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("team_count", cfg.TeamCount).
		Int("winning_score", cfg.WinningScore).
		Float64("max_hp", cfg.MaxHP).
		Dur("respawn_delay", cfg.RespawnDelay).
		Int("tick_rate", cfg.TickRate).
		Bool("reporting", cfg.ReportURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TeamCount < 1 {
		return fmt.Errorf("TEAM_COUNT must be at least 1")
	}
	if c.WinningScore < 1 {
		return fmt.Errorf("WINNING_SCORE must be at least 1")
	}
	if !(c.MaxHP > 0) {
		return fmt.Errorf("MAX_HP must be positive")
	}
	if c.RespawnDelay < 0 {
		return fmt.Errorf("RESPAWN_DELAY must not be negative")
	}
	if c.TickRate < 1 {
		return fmt.Errorf("TICK_RATE must be at least 1")
	}
	return nil
}

// TickInterval is the authority loop period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

var Module = fx.Provide(Load)
