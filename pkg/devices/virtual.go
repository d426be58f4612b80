package devices

import (
	"context"
	"sync"

	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

// VirtualAdapter simulates a device family in memory: devices start off
// and flip instantly. Used in dev mode when no bridge or broker is
// reachable, and in tests.
type VirtualAdapter struct {
	family string

	mu     sync.Mutex
	states map[string]registry.State
}

func NewVirtualAdapter(family string) *VirtualAdapter {
	return &VirtualAdapter{
		family: family,
		states: make(map[string]registry.State),
	}
}

func (a *VirtualAdapter) Family() string { return a.family }

func (a *VirtualAdapter) Enable(_ context.Context, deviceID string) (registry.State, error) {
	return a.set(deviceID, registry.StateOn), nil
}

func (a *VirtualAdapter) Disable(_ context.Context, deviceID string) (registry.State, error) {
	return a.set(deviceID, registry.StateOff), nil
}

func (a *VirtualAdapter) Status(_ context.Context, deviceID string) (registry.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[deviceID]; ok {
		return s, nil
	}
	return registry.StateOff, nil
}

func (a *VirtualAdapter) set(deviceID string, s registry.State) registry.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[deviceID] = s
	return s
}
