package devices

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

func NewDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the device catalog and live states",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return devicesCmd()
		},
	}
}

func devicesCmd() error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	var result struct {
		Devices []registry.Device `json:"devices"`
	}
	client := resty.New().SetBaseURL(internal.GatewayBaseURL(cfg))
	resp, err := client.R().SetResult(&result).Get("/devices")

	if err != nil || resp.IsError() {
		// No running gateway: fall back to the configured catalog.
		fmt.Println("Gateway not reachable, showing configured catalog:")
		for _, d := range cfg.Devices.Catalog {
			fmt.Printf("  %-24s %-12s %s\n", d.ID, d.Family, d.Name)
		}
		return nil
	}

	for _, d := range result.Devices {
		fmt.Printf("  %-24s %-12s %-8s %s\n", d.ID, d.Family, d.State, d.Name)
	}
	return nil
}
