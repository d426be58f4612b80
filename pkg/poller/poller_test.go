package poller

import (
	"context"
	"fmt"
	"testing"

	"github.com/tinyland-inc/homeclaw/pkg/devices"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

type flakyAdapter struct {
	*devices.VirtualAdapter
	fail bool
}

func (a *flakyAdapter) Status(ctx context.Context, id string) (registry.State, error) {
	if a.fail {
		return registry.StateUnknown, fmt.Errorf("%w: bridge down", devices.ErrUnreachable)
	}
	return a.VirtualAdapter.Status(ctx, id)
}

func TestSweep_RecordsReportedStates(t *testing.T) {
	reg := registry.New([]registry.Seed{
		{ID: "esp32_light_001", Family: "esp32"},
		{ID: "esp32_fan_002", Family: "esp32"},
	})
	adapter := devices.NewVirtualAdapter("esp32")
	if _, err := adapter.Enable(context.Background(), "esp32_light_001"); err != nil {
		t.Fatal(err)
	}

	p := New(reg, devices.NewSet(adapter), "* * * * *", true)
	p.Sweep(context.Background())

	light, _ := reg.Get("esp32_light_001")
	if light.State != registry.StateOn {
		t.Errorf("light: %s", light.State)
	}
	fan, _ := reg.Get("esp32_fan_002")
	if fan.State != registry.StateOff {
		t.Errorf("fan: %s", fan.State)
	}
}

func TestSweep_UnreachableMarksUnknown(t *testing.T) {
	reg := registry.New([]registry.Seed{{ID: "esp32_light_001", Family: "esp32"}})
	if _, err := reg.SetState("esp32_light_001", registry.StateOn); err != nil {
		t.Fatal(err)
	}

	adapter := &flakyAdapter{VirtualAdapter: devices.NewVirtualAdapter("esp32"), fail: true}
	p := New(reg, devices.NewSet(adapter), "* * * * *", true)
	p.Sweep(context.Background())

	dev, _ := reg.Get("esp32_light_001")
	if dev.State != registry.StateUnknown {
		t.Errorf("expected unknown, got %s", dev.State)
	}
}

func TestSweep_SkipsFamiliesWithoutAdapter(t *testing.T) {
	reg := registry.New([]registry.Seed{{ID: "raspberrypi_light_001", Family: "raspberrypi"}})

	p := New(reg, devices.NewSet(), "* * * * *", true)
	p.Sweep(context.Background())

	dev, _ := reg.Get("raspberrypi_light_001")
	if dev.State != registry.StateUnknown {
		t.Errorf("untouched device should stay unknown, got %s", dev.State)
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	reg := registry.New([]registry.Seed{{ID: "esp32_light_001", Family: "esp32"}})
	p := New(reg, devices.NewSet(), "not a schedule", true)
	if err := p.Start(); err == nil {
		t.Fatal("expected schedule validation error")
	}
}

func TestStart_DisabledIsNoop(t *testing.T) {
	reg := registry.New([]registry.Seed{{ID: "esp32_light_001", Family: "esp32"}})
	p := New(reg, devices.NewSet(), "* * * * *", false)
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	p.Stop() // must not block or panic when never started
}
