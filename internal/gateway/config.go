package gateway

import (
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the process configuration, loaded from the environment
// with a couple of backward-compatible aliases preserved from the
// original implementation this was ported from.
type Config struct {
	DiscordToken string   `env:"DISCORD_TOKEN"`
	PoolID       uint64   `env:"POOL_ID" envDefault:"0"`
	TotalShards  uint64   `env:"TOTAL_SHARDS" envDefault:"1"`
	NATSURLs     []string `env:"-"`
	HTTPPort     string   `env:"HTTP_PORT" envDefault:"9090"`
	LogLevel     string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string   `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadConfig reads Config from the process environment. A .env file in
// the working directory is loaded first, if present, and never overrides
// a variable already set in the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigError{Message: err.Error()}
	}

	if cfg.DiscordToken == "" {
		cfg.DiscordToken = os.Getenv("DISCORD_BOT_TOKEN")
	}

	if cfg.DiscordToken == "" {
		return nil, &ConfigError{Message: "DISCORD_TOKEN (or DISCORD_BOT_TOKEN) is required"}
	}

	if v, ok := os.LookupEnv("SHARD_ID"); ok && os.Getenv("POOL_ID") == "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, &ConfigError{Message: "SHARD_ID: " + err.Error()}
		}

		cfg.PoolID = parsed
	}

	if v, ok := os.LookupEnv("METRICS_PORT"); ok && os.Getenv("HTTP_PORT") == "" {
		cfg.HTTPPort = v
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				cfg.NATSURLs = append(cfg.NATSURLs, part)
			}
		}
	}

	return cfg, nil
}

// Intents returns the fixed gateway intent bitmask this system subscribes
// with. It never requests message content.
func (c *Config) Intents() uint64 {
	const (
		intentGuilds       = 1 << 0
		intentGuildMembers = 1 << 1
	)

	return intentGuilds | intentGuildMembers
}
