package devices

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

// fakeBridge mimics the ESP32 HTTP bridge: per-device state, 404 for
// unknown ids.
func fakeBridge(t *testing.T, known map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.URL.Query().Get("device_id")
		state, ok := known[deviceID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "unknown device"})
			return
		}

		switch r.URL.Path {
		case "/Enable":
			state = "on"
		case "/Disable":
			state = "off"
		case "/GetStatus":
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		known[deviceID] = state
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    "success",
			"state":     state,
			"device_id": deviceID,
		})
	}))
}

func TestESP32Adapter_EnableDisableStatus(t *testing.T) {
	bridge := fakeBridge(t, map[string]string{"esp32_light_001": "off"})
	defer bridge.Close()

	a := NewESP32Adapter(bridge.URL, time.Second)

	state, err := a.Enable(context.Background(), "esp32_light_001")
	if err != nil {
		t.Fatal(err)
	}
	if state != registry.StateOn {
		t.Errorf("enable: %s", state)
	}

	state, err = a.Status(context.Background(), "esp32_light_001")
	if err != nil || state != registry.StateOn {
		t.Errorf("status: %s %v", state, err)
	}

	state, err = a.Disable(context.Background(), "esp32_light_001")
	if err != nil || state != registry.StateOff {
		t.Errorf("disable: %s %v", state, err)
	}
}

func TestESP32Adapter_UnknownDeviceIsRejected(t *testing.T) {
	bridge := fakeBridge(t, map[string]string{})
	defer bridge.Close()

	a := NewESP32Adapter(bridge.URL, time.Second)
	_, err := a.Enable(context.Background(), "esp32_light_999")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestESP32Adapter_BridgeErrorIsUnreachable(t *testing.T) {
	bridge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bridge.Close()

	a := NewESP32Adapter(bridge.URL, time.Second)
	_, err := a.Enable(context.Background(), "esp32_light_001")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestESP32Adapter_DownBridgeIsUnreachable(t *testing.T) {
	bridge := httptest.NewServer(nil)
	bridge.Close() // nothing listening anymore

	a := NewESP32Adapter(bridge.URL, 200*time.Millisecond)
	_, err := a.Status(context.Background(), "esp32_light_001")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestVirtualAdapter(t *testing.T) {
	a := NewVirtualAdapter("esp32")

	state, err := a.Status(context.Background(), "esp32_light_001")
	if err != nil || state != registry.StateOff {
		t.Errorf("initial: %s %v", state, err)
	}

	if state, _ = a.Enable(context.Background(), "esp32_light_001"); state != registry.StateOn {
		t.Errorf("enable: %s", state)
	}
	if state, _ = a.Status(context.Background(), "esp32_light_001"); state != registry.StateOn {
		t.Errorf("status: %s", state)
	}
	if state, _ = a.Disable(context.Background(), "esp32_light_001"); state != registry.StateOff {
		t.Errorf("disable: %s", state)
	}
}

func TestSet_FamilyLookup(t *testing.T) {
	set := NewSet(NewVirtualAdapter("esp32"), NewVirtualAdapter("raspberrypi"))

	if _, ok := set.For("esp32"); !ok {
		t.Error("esp32 adapter missing")
	}
	if _, ok := set.For("zigbee"); ok {
		t.Error("unexpected zigbee adapter")
	}
	families := set.Families()
	if len(families) != 2 {
		t.Errorf("families: %v", families)
	}
}
