package config

// DefaultConfig returns the built-in configuration: the four-device catalog
// the gateway originally shipped with, local device bridges, and broadcast
// tuning safe for low-volume platform rate limits.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Devices: DevicesConfig{
			Catalog: []DeviceEntry{
				{ID: "esp32_light_001", Family: "esp32", Name: "Living Room Light"},
				{ID: "esp32_fan_002", Family: "esp32", Name: "Living Room Fan"},
				{ID: "raspberrypi_light_001", Family: "raspberrypi", Name: "Bedroom Light"},
				{ID: "raspberrypi_fan_002", Family: "raspberrypi", Name: "Bedroom Fan"},
			},
			ESP32BridgeURL: "http://localhost:5002",
			Broker: BrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homeclaw-gateway",
			},
			CallTimeoutSeconds: 10,
		},
		Broadcast: BroadcastConfig{
			MaxConcurrent:      8,
			Retries:            1,
			SendTimeoutSeconds: 10,
			DeadlineSeconds:    30,
		},
		Poller: PollerConfig{
			Enabled:  false,
			Schedule: "*/5 * * * *",
		},
		StateDir: "~/.homeclaw",
	}
}
