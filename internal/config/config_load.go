package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Default returns a Config with the automod and scheduler thresholds set to
// their documented defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Mode:       "postgres",
			SQLitePath: "crosschat.db",
		},
		Automod: AutomodConfig{
			RateLimitCount:       3,
			DuplicateThreshold:   3,
			CapsMinLength:        10,
			CapsRatio:            0.7,
			LinkFilterEnabled:    true,
			InviteFilterEnabled:  true,
			ViolationsPerWarning: 3,
			WarningsPerBan:       3,
			BanDurationSeconds:   20 * 60,
		},
		Scheduler: SchedulerConfig{
			SendTimeoutMillis: 5000,
		},
		HTTP: HTTPConfig{
			Addr: ":8085",
		},
	}
}

// Load reads config from a JSON5 file, then overlays secrets from the
// environment. A missing file is not an error — Load falls back to
// Default() and still applies env overrides, following a "config file
// optional, env always wins" convention.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, cfg.validate()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.validate()
}

// applyEnvOverrides overlays secrets onto the config. Env vars always win.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("CROSSCHAT_DISCORD_TOKEN", &c.Discord.Token)
	envStr("CROSSCHAT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("CROSSCHAT_OWNER_ID", &c.Owner.UserID)
	envStr("CROSSCHAT_STAFF_ROLE_ID", &c.Roles.StaffRoleID)
	envStr("CROSSCHAT_ELITE_ROLE_ID", &c.Roles.EliteRoleID)
	envStr("CROSSCHAT_ARCHITECT_ROLE_ID", &c.Roles.ArchitectRoleID)
	envStr("CROSSCHAT_SUPPORT_SERVER_ID", &c.Roles.SupportServerID)
	envStr("CROSSCHAT_WEBHOOK_SECRET", &c.Webhook.Secret)
}

// validate enforces the "invalid configuration" error kind: missing token or
// missing store DSN is fatal at startup, before any event is accepted.
func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("config: CROSSCHAT_DISCORD_TOKEN is required")
	}
	if c.IsPostgres() && c.Database.PostgresDSN == "" {
		return fmt.Errorf("config: CROSSCHAT_POSTGRES_DSN is required in postgres mode")
	}
	return nil
}
