package command

import (
	"testing"
)

var catalogIDs = []string{
	"esp32_fan_002",
	"esp32_light_001",
	"raspberrypi_fan_002",
	"raspberrypi_light_001",
}

func TestParse_Verbs(t *testing.T) {
	p := NewParser(catalogIDs)

	tests := []struct {
		text   string
		action Action
		device string
	}{
		{"turn on esp32_light_001", ActionEnable, "esp32_light_001"},
		{"turn off esp32_light_001", ActionDisable, "esp32_light_001"},
		{"enable raspberrypi_light_001", ActionEnable, "raspberrypi_light_001"},
		{"disable raspberrypi_fan_002", ActionDisable, "raspberrypi_fan_002"},
		{"get status esp32_fan_002", ActionGetStatus, "esp32_fan_002"},
		{"status esp32_light_001", ActionGetStatus, "esp32_light_001"},
		{"check esp32_light_001", ActionGetStatus, "esp32_light_001"},
		{"/enable esp32_light_001", ActionEnable, "esp32_light_001"},
		{"/disable esp32_light_001", ActionDisable, "esp32_light_001"},
		{"/getstatus esp32_light_001", ActionGetStatus, "esp32_light_001"},
		{"set status on esp32_light_001", ActionEnable, "esp32_light_001"},
		{"set status off esp32_light_001", ActionDisable, "esp32_light_001"},
	}

	for _, tt := range tests {
		result := p.Parse(tt.text)
		if result.Kind != KindMatch {
			t.Errorf("%q: expected match, got kind %d (token %q)", tt.text, result.Kind, result.Token)
			continue
		}
		if result.Command.Action != tt.action {
			t.Errorf("%q: expected action %s, got %s", tt.text, tt.action, result.Command.Action)
		}
		if result.Command.DeviceID != tt.device {
			t.Errorf("%q: expected device %s, got %s", tt.text, tt.device, result.Command.DeviceID)
		}
	}
}

func TestParse_CaseAndSpacing(t *testing.T) {
	p := NewParser(catalogIDs)

	for _, text := range []string{
		"Turn On ESP32_LIGHT_001",
		"  turn on   esp32_light_001  ",
		"turn on the esp32_light_001",
		"turn on esp32 light 001",
		"turn on esp32-light-001",
	} {
		result := p.Parse(text)
		if result.Kind != KindMatch {
			t.Errorf("%q: expected match, got kind %d", text, result.Kind)
			continue
		}
		if result.Command.DeviceID != "esp32_light_001" {
			t.Errorf("%q: resolved to %s", text, result.Command.DeviceID)
		}
	}
}

func TestParse_NoMatch(t *testing.T) {
	p := NewParser(catalogIDs)

	for _, text := range []string{
		"hello there",
		"",
		"   ",
		"what's the weather like",
		"enabled devices are nice",
		"checking in",
		"turnon esp32_light_001",
	} {
		if result := p.Parse(text); result.Kind != KindNoMatch {
			t.Errorf("%q: expected no match, got kind %d", text, result.Kind)
		}
	}
}

func TestParse_UnknownDevice(t *testing.T) {
	p := NewParser(catalogIDs)

	result := p.Parse("turn on kitchen_light")
	if result.Kind != KindUnknownDevice {
		t.Fatalf("expected unknown device, got kind %d", result.Kind)
	}
	if result.Token != "kitchen_light" {
		t.Errorf("expected token kitchen_light, got %q", result.Token)
	}
}

// A verb with nothing after it is ambiguous when several devices exist
// and must be ignored like any other chatter.
func TestParse_BareVerbIsNoMatchWithMultipleDevices(t *testing.T) {
	p := NewParser(catalogIDs)

	for _, text := range []string{
		"turn on",
		"turn off",
		"get status",
		"/enable",
		"check",
	} {
		result := p.Parse(text)
		if result.Kind != KindNoMatch {
			t.Errorf("%q: expected no match, got kind %d (token %q)", text, result.Kind, result.Token)
		}
	}
}

func TestParse_SingleDeviceImplied(t *testing.T) {
	p := NewParser([]string{"esp32_light_001"})

	result := p.Parse("turn on")
	if result.Kind != KindMatch {
		t.Fatalf("expected implied match, got kind %d", result.Kind)
	}
	if result.Command.DeviceID != "esp32_light_001" {
		t.Errorf("resolved to %s", result.Command.DeviceID)
	}
}
