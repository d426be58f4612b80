package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
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

type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Channels  ChannelsConfig  `json:"channels"`
	Devices   DevicesConfig   `json:"devices"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Poller    PollerConfig    `json:"poller"`
	StateDir  string          `env:"HOMECLAW_STATE_DIR" json:"state_dir"`
}

type GatewayConfig struct {
	Host       string `env:"HOMECLAW_GATEWAY_HOST"        json:"host"`
	Port       int    `env:"HOMECLAW_GATEWAY_PORT"        json:"port"`
	WebhookKey string `env:"HOMECLAW_GATEWAY_WEBHOOK_KEY" json:"webhook_key,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	LINE     LINEConfig     `json:"line"`
	Discord  DiscordConfig  `json:"discord"`
	Slack    SlackConfig    `json:"slack"`
}

type TelegramConfig struct {
	Enabled   bool                `env:"HOMECLAW_CHANNELS_TELEGRAM_ENABLED"    json:"enabled"`
	Token     string              `env:"HOMECLAW_CHANNELS_TELEGRAM_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"HOMECLAW_CHANNELS_TELEGRAM_ALLOW_FROM" json:"allow_from"`
}

type LINEConfig struct {
	Enabled            bool                `env:"HOMECLAW_CHANNELS_LINE_ENABLED"              json:"enabled"`
	ChannelSecret      string              `env:"HOMECLAW_CHANNELS_LINE_CHANNEL_SECRET"       json:"channel_secret"`
	ChannelAccessToken string              `env:"HOMECLAW_CHANNELS_LINE_CHANNEL_ACCESS_TOKEN" json:"channel_access_token"`
	AllowFrom          FlexibleStringSlice `env:"HOMECLAW_CHANNELS_LINE_ALLOW_FROM"           json:"allow_from"`
}

type DiscordConfig struct {
	Enabled   bool                `env:"HOMECLAW_CHANNELS_DISCORD_ENABLED"    json:"enabled"`
	Token     string              `env:"HOMECLAW_CHANNELS_DISCORD_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"HOMECLAW_CHANNELS_DISCORD_ALLOW_FROM" json:"allow_from"`
}

type SlackConfig struct {
	Enabled   bool                `env:"HOMECLAW_CHANNELS_SLACK_ENABLED"    json:"enabled"`
	BotToken  string              `env:"HOMECLAW_CHANNELS_SLACK_BOT_TOKEN"  json:"bot_token"`
	AppToken  string              `env:"HOMECLAW_CHANNELS_SLACK_APP_TOKEN"  json:"app_token"`
	AllowFrom FlexibleStringSlice `env:"HOMECLAW_CHANNELS_SLACK_ALLOW_FROM" json:"allow_from"`
}

// DeviceEntry declares one device of the closed catalog. The catalog is the
// authoritative id set: commands referencing ids outside it are rejected,
// never auto-created.
type DeviceEntry struct {
	ID     string `json:"id"`
	Family string `json:"family"`
	Name   string `json:"name,omitempty"`
}

type DevicesConfig struct {
	Catalog            []DeviceEntry `json:"catalog"`
	ESP32BridgeURL     string        `env:"HOMECLAW_DEVICES_ESP32_BRIDGE_URL"     json:"esp32_bridge_url"`
	Broker             BrokerConfig  `json:"broker"`
	CallTimeoutSeconds int           `env:"HOMECLAW_DEVICES_CALL_TIMEOUT_SECONDS" json:"call_timeout_seconds"`
}

type BrokerConfig struct {
	Host     string `env:"HOMECLAW_DEVICES_BROKER_HOST"      json:"host"`
	Port     int    `env:"HOMECLAW_DEVICES_BROKER_PORT"      json:"port"`
	ClientID string `env:"HOMECLAW_DEVICES_BROKER_CLIENT_ID" json:"client_id"`
	Username string `env:"HOMECLAW_DEVICES_BROKER_USERNAME"  json:"username,omitempty"`
	Password string `env:"HOMECLAW_DEVICES_BROKER_PASSWORD"  json:"password,omitempty"`
}

type BroadcastConfig struct {
	MaxConcurrent      int `env:"HOMECLAW_BROADCAST_MAX_CONCURRENT"       json:"max_concurrent"`
	Retries            int `env:"HOMECLAW_BROADCAST_RETRIES"              json:"retries"`
	SendTimeoutSeconds int `env:"HOMECLAW_BROADCAST_SEND_TIMEOUT_SECONDS" json:"send_timeout_seconds"`
	DeadlineSeconds    int `env:"HOMECLAW_BROADCAST_DEADLINE_SECONDS"     json:"deadline_seconds"`
}

type PollerConfig struct {
	Enabled  bool   `env:"HOMECLAW_POLLER_ENABLED"  json:"enabled"`
	Schedule string `env:"HOMECLAW_POLLER_SCHEDULE" json:"schedule"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	// Pre-scan for a user-provided catalog. Go's JSON decoder merges into
	// existing slice backing-array elements rather than zero-initializing
	// them, so the default catalog must be cleared before decoding a user
	// catalog to avoid mixing entries at the same index.
	var tmp Config
	if err := json.Unmarshal(data, &tmp); err != nil {
		return nil, err
	}
	if len(tmp.Devices.Catalog) > 0 {
		cfg.Devices.Catalog = nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the device catalog for completeness and duplicate ids.
func (c *Config) Validate() error {
	if len(c.Devices.Catalog) == 0 {
		return errors.New("devices.catalog must declare at least one device")
	}
	seen := make(map[string]bool, len(c.Devices.Catalog))
	for i, d := range c.Devices.Catalog {
		if d.ID == "" {
			return fmt.Errorf("devices.catalog[%d]: id is required", i)
		}
		if d.Family == "" {
			return fmt.Errorf("devices.catalog[%d] (%s): family is required", i, d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("devices.catalog: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// StatePath returns a path under the state directory, expanding a leading ~.
func (c *Config) StatePath(elem ...string) string {
	return filepath.Join(append([]string{expandHome(c.StateDir)}, elem...)...)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
