package send

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal"
	"github.com/tinyland-inc/homeclaw/pkg/dispatch"
)

func NewSendCommand() *cobra.Command {
	var platform string
	var to string
	var group string
	var device string
	var all bool

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send a message through a running gateway",
		Example: `  homeclaw send --platform telegram --to 123456 "hello"
  homeclaw send --device esp32_light_001 "maintenance tonight"
  homeclaw send --all "gateway restarting"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return sendCmd(platform, to, group, device, all, text)
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "telegram", "Platform for direct sends")
	cmd.Flags().StringVar(&to, "to", "", "Recipient chat id")
	cmd.Flags().StringVar(&group, "group", "", "Group chat id")
	cmd.Flags().StringVar(&device, "device", "", "Broadcast to the recipients bound to this device")
	cmd.Flags().BoolVar(&all, "all", false, "Broadcast to every bound recipient")

	return cmd
}

func sendCmd(platform, to, group, device string, all bool, text string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	client := resty.New().SetBaseURL(internal.GatewayBaseURL(cfg))

	var resp dispatch.Response
	req := client.R().SetResult(&resp).SetError(&resp)

	var httpResp *resty.Response
	switch {
	case all:
		httpResp, err = req.SetQueryParam("text", text).Get("/sendAllMsg")
	case device != "":
		httpResp, err = req.
			SetQueryParams(map[string]string{"device_id": device, "text": text}).
			Get("/sendAllMsg")
	case group != "":
		httpResp, err = req.
			SetQueryParams(map[string]string{"platform": platform, "group_id": group, "text": text}).
			Get("/sendGroupMsg")
	case to != "":
		httpResp, err = req.
			SetQueryParams(map[string]string{"platform": platform, "chat_id": to, "text": text}).
			Get("/sendMsg")
	default:
		return errors.New("one of --to, --group, --device or --all is required")
	}
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}

	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
	if httpResp.IsError() || resp.Class == dispatch.ClassInternalError {
		return fmt.Errorf("send failed (%s)", resp.Class)
	}
	if resp.Failed > 0 {
		fmt.Printf("⚠ %d of %d target(s) failed\n", resp.Failed, resp.Total)
	}
	return nil
}
