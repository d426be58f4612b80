package devices

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tinyland-inc/homeclaw/pkg/logger"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

const FamilyESP32 = "esp32"

// bridgeResponse is the ESP32 bridge's wire contract:
// {"status":"success","message":"...","state":"on","device_id":"..."}
type bridgeResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	State    string `json:"state"`
	DeviceID string `json:"device_id"`
}

// ESP32Adapter drives ESP32-family devices through their HTTP bridge.
type ESP32Adapter struct {
	client *resty.Client
}

func NewESP32Adapter(baseURL string, timeout time.Duration) *ESP32Adapter {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0) // retry policy belongs to the dispatch engine
	return &ESP32Adapter{client: client}
}

func (a *ESP32Adapter) Family() string { return FamilyESP32 }

func (a *ESP32Adapter) Enable(ctx context.Context, deviceID string) (registry.State, error) {
	return a.call(ctx, "/Enable", deviceID)
}

func (a *ESP32Adapter) Disable(ctx context.Context, deviceID string) (registry.State, error) {
	return a.call(ctx, "/Disable", deviceID)
}

func (a *ESP32Adapter) Status(ctx context.Context, deviceID string) (registry.State, error) {
	return a.call(ctx, "/GetStatus", deviceID)
}

func (a *ESP32Adapter) call(ctx context.Context, path, deviceID string) (registry.State, error) {
	var out bridgeResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("device_id", deviceID).
		SetResult(&out).
		Get(path)
	if err != nil {
		return registry.StateUnknown, fmt.Errorf("%w: esp32 bridge %s: %v", ErrUnreachable, path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return registry.StateUnknown, fmt.Errorf("%w: bridge does not know %s", ErrRejected, deviceID)
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		return registry.StateUnknown, fmt.Errorf("%w: bridge refused %s (%d)", ErrRejected, path, resp.StatusCode())
	case resp.IsError() || out.Status != "success":
		return registry.StateUnknown, fmt.Errorf("%w: bridge error on %s (%d)", ErrUnreachable, path, resp.StatusCode())
	}

	state := parseState(out.State)
	if state == registry.StateUnknown {
		logger.WarnCF("devices.esp32", "Bridge returned unparseable state", map[string]any{
			"device_id": deviceID,
			"state":     out.State,
		})
	}
	return state, nil
}

func parseState(s string) registry.State {
	switch s {
	case "on", "enabled":
		return registry.StateOn
	case "off", "disabled":
		return registry.StateOff
	}
	return registry.StateUnknown
}
