package registry

import (
	"errors"
	"sync"
	"testing"
)

func testSeeds() []Seed {
	return []Seed{
		{ID: "esp32_light_001", Family: "esp32", Name: "Living Room Light"},
		{ID: "raspberrypi_fan_002", Family: "raspberrypi"},
	}
}

func TestNew_ClosedSet(t *testing.T) {
	r := New(testSeeds())

	if _, err := r.Get("esp32_light_001"); err != nil {
		t.Fatalf("known device: %v", err)
	}
	if _, err := r.Get("esp32_light_999"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}

	dev, _ := r.Get("esp32_light_001")
	if dev.State != StateUnknown {
		t.Errorf("initial state: got %s", dev.State)
	}
	if !dev.LastUpdated.IsZero() {
		t.Errorf("initial LastUpdated should be zero")
	}
}

func TestTransition_AppliesStateAndTimestamp(t *testing.T) {
	r := New(testSeeds())

	dev, err := r.Transition("esp32_light_001", func(Device) (State, error) {
		return StateOn, nil
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if dev.State != StateOn {
		t.Errorf("got state %s", dev.State)
	}
	if dev.LastUpdated.IsZero() {
		t.Errorf("LastUpdated not advanced")
	}
}

func TestTransition_ErrorKeepsTimestamp(t *testing.T) {
	r := New(testSeeds())
	if _, err := r.SetState("esp32_light_001", StateOn); err != nil {
		t.Fatal(err)
	}
	before, _ := r.Get("esp32_light_001")

	callErr := errors.New("device said no")
	dev, err := r.Transition("esp32_light_001", func(cur Device) (State, error) {
		return cur.State, callErr
	})
	if !errors.Is(err, callErr) {
		t.Fatalf("expected fn error passed through, got %v", err)
	}
	if dev.State != StateOn {
		t.Errorf("state changed on validation failure: %s", dev.State)
	}
	if !dev.LastUpdated.Equal(before.LastUpdated) {
		t.Errorf("LastUpdated advanced on error")
	}
}

func TestTransition_UnknownDevice(t *testing.T) {
	r := New(testSeeds())
	_, err := r.Transition("nope", func(Device) (State, error) { return StateOn, nil })
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

// Two concurrent transitions on one device must not interleave their
// call/update pairs: every fn sees the state its predecessor wrote.
func TestTransition_Serialized(t *testing.T) {
	r := New(testSeeds())
	if _, err := r.SetState("esp32_light_001", StateOff); err != nil {
		t.Fatal(err)
	}

	const workers = 16
	var wg sync.WaitGroup
	flips := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Transition("esp32_light_001", func(cur Device) (State, error) {
				if cur.State == StateOn {
					return StateOff, nil
				}
				return StateOn, nil
			})
		}()
		flips++
	}
	wg.Wait()

	dev, _ := r.Get("esp32_light_001")
	// Started off; an even number of strict alternations lands back on off.
	want := StateOff
	if flips%2 == 1 {
		want = StateOn
	}
	if dev.State != want {
		t.Errorf("after %d serialized flips from off: got %s, want %s", flips, dev.State, want)
	}
}

func TestMarkUnknown(t *testing.T) {
	r := New(testSeeds())
	if _, err := r.SetState("esp32_light_001", StateOn); err != nil {
		t.Fatal(err)
	}
	before, _ := r.Get("esp32_light_001")

	dev, err := r.MarkUnknown("esp32_light_001")
	if err != nil {
		t.Fatal(err)
	}
	if dev.State != StateUnknown {
		t.Errorf("got %s", dev.State)
	}
	if !dev.LastUpdated.Equal(before.LastUpdated) {
		t.Errorf("MarkUnknown must not touch LastUpdated")
	}
}

func TestListAndIDs_Sorted(t *testing.T) {
	r := New([]Seed{
		{ID: "b", Family: "esp32"},
		{ID: "a", Family: "esp32"},
		{ID: "b", Family: "esp32"}, // duplicate ignored
	})

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids: %v", ids)
	}
	list := r.List()
	if len(list) != 2 || list[0].ID != "a" {
		t.Errorf("list: %v", list)
	}
}
