// Package devices contains the adapters that drive physical hardware, one
// per device family. Every call crosses a network boundary and carries a
// per-call timeout; a timeout is an ordinary failure, not a panic.
package devices

import (
	"context"
	"errors"
	"sort"

	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

// ErrUnreachable classifies communication failures (timeouts, refused
// connections, broker loss). The dispatch engine drops the device to
// StateUnknown on this class.
var ErrUnreachable = errors.New("device unreachable")

// ErrRejected classifies validation failures reported by the device side
// (unknown id at the bridge, malformed command). Registry state is left
// untouched on this class.
var ErrRejected = errors.New("device rejected command")

// Adapter drives one device family.
type Adapter interface {
	Family() string
	Enable(ctx context.Context, deviceID string) (registry.State, error)
	Disable(ctx context.Context, deviceID string) (registry.State, error)
	Status(ctx context.Context, deviceID string) (registry.State, error)
}

// Set maps family names to adapters. The dispatch engine looks adapters up
// here; new families plug in by registering, never by branching inside the
// engine.
type Set struct {
	adapters map[string]Adapter
}

func NewSet(adapters ...Adapter) *Set {
	s := &Set{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		s.Register(a)
	}
	return s
}

func (s *Set) Register(a Adapter) {
	s.adapters[a.Family()] = a
}

func (s *Set) For(family string) (Adapter, bool) {
	a, ok := s.adapters[family]
	return a, ok
}

func (s *Set) Families() []string {
	out := make([]string, 0, len(s.adapters))
	for f := range s.adapters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
