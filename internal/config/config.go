// Package config loads and validates the CrossChat relay's configuration.
package config

import (
	"encoding/json"
	"fmt"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON config files.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the CrossChat relay.
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Database  DatabaseConfig  `json:"database"`
	Owner     OwnerConfig     `json:"owner"`
	Roles     RolesConfig     `json:"roles"`
	Automod   AutomodConfig   `json:"automod,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Webhook   WebhookConfig   `json:"webhook,omitempty"`
	HTTP      HTTPConfig      `json:"http,omitempty"`
}

// DiscordConfig holds the bot's gateway credentials.
// Token is never read from the config file — only from env (see Load).
type DiscordConfig struct {
	Token string `json:"-"`
}

// DatabaseConfig selects and configures the persistence backend.
// PostgresDSN is a secret and is only ever read from the environment.
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"` // "postgres" (fleet mode, default) or "sqlite" (standalone)
	PostgresDSN string `json:"-"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
}

// OwnerConfig identifies the Founder-tier user.
type OwnerConfig struct {
	UserID string `json:"user_id"`
}

// RolesConfig names the role IDs that the Tier Resolver checks for.
// These are Discord role snowflakes, evaluated across every server the bot
// is a member of.
type RolesConfig struct {
	StaffRoleID     string `json:"staff_role_id,omitempty"`
	EliteRoleID     string `json:"elite_role_id,omitempty"`
	ArchitectRoleID string `json:"architect_role_id,omitempty"`
	SupportServerID string `json:"support_server_id,omitempty"`
}

// AutomodConfig holds the tunable thresholds for the Automod Pipeline.
// Zero values fall back to the stated defaults via Default().
type AutomodConfig struct {
	RateLimitCount     int                 `json:"rate_limit_count,omitempty"`     // default 3 msgs / 10s
	DuplicateThreshold int                 `json:"duplicate_threshold,omitempty"`  // default 3 repeats / 60s
	CapsMinLength      int                 `json:"caps_min_length,omitempty"`      // default 10
	CapsRatio          float64             `json:"caps_ratio,omitempty"`           // default 0.7
	LinkFilterEnabled  bool                `json:"link_filter_enabled,omitempty"`
	InviteFilterEnabled bool               `json:"invite_filter_enabled,omitempty"`
	ViolationsPerWarning int               `json:"violations_per_warning,omitempty"` // default 3
	WarningsPerBan     int                 `json:"warnings_per_ban,omitempty"`        // default 3
	BanDurationSeconds int                 `json:"ban_duration_seconds,omitempty"`    // default 1200 (20m)
	Patterns           FlexibleStringSlice `json:"profanity_patterns,omitempty"`
}

// SchedulerConfig holds the fan-out send timeout. The one timeout applies to
// every tier alike; there is no per-tier setting.
type SchedulerConfig struct {
	SendTimeoutMillis int `json:"send_timeout_millis,omitempty"` // default 5000
}

// WebhookConfig configures the vote webhook receiver.
type WebhookConfig struct {
	Secret string `json:"-"`
}

// HTTPConfig configures the vote webhook's listener.
type HTTPConfig struct {
	Addr string `json:"addr,omitempty"` // default ":8085"
}

// IsPostgres reports whether the configured backend is Postgres (fleet mode).
func (c *Config) IsPostgres() bool {
	return c.Database.Mode != "sqlite"
}
