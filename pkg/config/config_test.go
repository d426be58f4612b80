package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.Port != 5000 {
		t.Errorf("port: %d", cfg.Gateway.Port)
	}
	if len(cfg.Devices.Catalog) != 4 {
		t.Errorf("catalog size: %d", len(cfg.Devices.Catalog))
	}
}

func TestLoadConfig_UserCatalogReplacesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"devices": {
			"catalog": [
				{"id": "esp32_light_009", "family": "esp32", "name": "Porch Light"}
			]
		}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Devices.Catalog) != 1 {
		t.Fatalf("catalog must be replaced, not merged: %v", cfg.Devices.Catalog)
	}
	if cfg.Devices.Catalog[0].ID != "esp32_light_009" {
		t.Errorf("catalog: %v", cfg.Devices.Catalog)
	}
	// Untouched sections keep their defaults.
	if cfg.Devices.ESP32BridgeURL != "http://localhost:5002" {
		t.Errorf("bridge url: %s", cfg.Devices.ESP32BridgeURL)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("HOMECLAW_GATEWAY_PORT", "8080")
	t.Setenv("HOMECLAW_CHANNELS_TELEGRAM_TOKEN", "tok-from-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("env port override: %d", cfg.Gateway.Port)
	}
	if cfg.Channels.Telegram.Token != "tok-from-env" {
		t.Errorf("env token override: %s", cfg.Channels.Telegram.Token)
	}
}

func TestValidate_RejectsDuplicatesAndGaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Devices.Catalog = append(cfg.Devices.Catalog, DeviceEntry{ID: "esp32_light_001", Family: "esp32"})
	if err := cfg.Validate(); err == nil {
		t.Error("duplicate id must fail validation")
	}

	cfg = DefaultConfig()
	cfg.Devices.Catalog[0].Family = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing family must fail validation")
	}

	cfg = DefaultConfig()
	cfg.Devices.Catalog = nil
	if err := cfg.Validate(); err == nil {
		t.Error("empty catalog must fail validation")
	}
}

func TestFlexibleStringSlice(t *testing.T) {
	var f FlexibleStringSlice
	if err := json.Unmarshal([]byte(`["123", 456, "alice"]`), &f); err != nil {
		t.Fatal(err)
	}
	if len(f) != 3 || f[0] != "123" || f[1] != "456" || f[2] != "alice" {
		t.Errorf("got %v", f)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Gateway.Port = 6001
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "tok"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Gateway.Port != 6001 || !loaded.Channels.Telegram.Enabled {
		t.Errorf("roundtrip lost fields: %+v", loaded.Gateway)
	}
}

func TestStatePath_ExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	p := cfg.StatePath("bindings.json")
	home, _ := os.UserHomeDir()
	if p != filepath.Join(home, ".homeclaw", "bindings.json") {
		t.Errorf("got %s", p)
	}
}
