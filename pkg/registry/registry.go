// Package registry holds the canonical catalog of known devices and their
// last confirmed state. The id set is closed at construction: lookups for
// undeclared ids fail with ErrDeviceNotFound and never create a device.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// State is a device's last confirmed power state. StateUnknown is the
// initial state and the state after a communication failure.
type State string

const (
	StateOn      State = "on"
	StateOff     State = "off"
	StateUnknown State = "unknown"
)

// ErrDeviceNotFound is returned for any id outside the closed catalog.
var ErrDeviceNotFound = errors.New("device not found")

type Device struct {
	ID          string    `json:"id"`
	Family      string    `json:"family"`
	Name        string    `json:"name,omitempty"`
	State       State     `json:"state"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

// entry carries the per-device lock. Transitions on one device serialize;
// distinct devices never contend.
type entry struct {
	mu  sync.Mutex
	dev Device
}

type Registry struct {
	devices map[string]*entry
	ids     []string
}

// Seed declares one device of the closed set.
type Seed struct {
	ID     string
	Family string
	Name   string
}

func New(seeds []Seed) *Registry {
	r := &Registry{devices: make(map[string]*entry, len(seeds))}
	for _, s := range seeds {
		if _, dup := r.devices[s.ID]; dup {
			continue
		}
		r.devices[s.ID] = &entry{dev: Device{
			ID:     s.ID,
			Family: s.Family,
			Name:   s.Name,
			State:  StateUnknown,
		}}
		r.ids = append(r.ids, s.ID)
	}
	sort.Strings(r.ids)
	return r
}

// Get returns a snapshot of the device, or ErrDeviceNotFound.
func (r *Registry) Get(id string) (Device, error) {
	e, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev, nil
}

// IDs returns the sorted closed id set.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// List returns a snapshot of every device, ordered by id.
func (r *Registry) List() []Device {
	out := make([]Device, 0, len(r.ids))
	for _, id := range r.ids {
		e := r.devices[id]
		e.mu.Lock()
		out = append(out, e.dev)
		e.mu.Unlock()
	}
	return out
}

// Transition runs fn under the device's lock and applies the state fn
// returns. fn typically wraps a device adapter call, so the lock spans the
// call and the state update: two concurrent transitions on one device
// cannot interleave their call/update pairs. LastUpdated advances only when
// fn succeeds; on error the returned state is still applied (fn returns the
// current state to leave it untouched, or StateUnknown after a
// communication failure). The fn error is passed through.
func (r *Registry) Transition(id string, fn func(cur Device) (State, error)) (Device, error) {
	e, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.dev)
	e.dev.State = next
	if err == nil {
		e.dev.LastUpdated = time.Now()
	}
	return e.dev, err
}

// SetState records an externally confirmed state, e.g. from the status
// poller reconciling against the hardware.
func (r *Registry) SetState(id string, s State) (Device, error) {
	return r.Transition(id, func(Device) (State, error) { return s, nil })
}

// MarkUnknown drops the device to StateUnknown without touching LastUpdated.
func (r *Registry) MarkUnknown(id string) (Device, error) {
	e, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dev.State = StateUnknown
	return e.dev, nil
}
