package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal"
	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal/devices"
	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal/gateway"
	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal/onboard"
	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal/send"
	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal/version"
)

func NewHomeclawCommand() *cobra.Command {
	short := fmt.Sprintf("%s homeclaw - Chat-to-IoT gateway v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "homeclaw",
		Short:   short,
		Example: "homeclaw gateway",
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		gateway.NewGatewayCommand(),
		send.NewSendCommand(),
		devices.NewDevicesCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewHomeclawCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
