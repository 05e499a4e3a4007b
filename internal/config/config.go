// /internal/config/config.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN,required,notEmpty"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	DeveloperID           string   `env:"DEVELOPER_ID"`
	CommandPrefix         string   `env:"COMMAND_PREFIX" envDefault:"."`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	Storage

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	HTTPAddr     string `env:"HTTP_ADDR"` // empty disables the status server
	YouTubeProxy string `env:"YOUTUBE_PROXY"`
}

// Storage selects the settings store backend. Tools that only touch the
// store parse this on its own, without requiring a token.
type Storage struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"json"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, falling back to system environment variables")
	}
	return Parse()
}

// Parse parses the current process environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.CommandPrefix == "" {
		return nil, fmt.Errorf("COMMAND_PREFIX must not be empty")
	}
	return &cfg, nil
}

// LoadStorage reads .env (if present) and parses only the storage settings.
func LoadStorage() (*Storage, error) {
	_ = godotenv.Load()
	var st Storage
	if err := env.Parse(&st); err != nil {
		return nil, fmt.Errorf("failed to parse storage config: %w", err)
	}
	return &st, nil
}

// IsDeveloper reports whether userID is the configured developer.
func (c *Config) IsDeveloper(userID string) bool {
	return c.DeveloperID != "" && userID == c.DeveloperID
}
