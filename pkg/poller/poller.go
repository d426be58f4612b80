// Package poller periodically reconciles registry state with what the
// devices actually report. Commands are authoritative; the poller only
// corrects drift between sweeps.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/homeclaw/pkg/devices"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

// tickInterval is how often the schedule is checked for dueness. Sweeps
// fire at most once per due minute.
const tickInterval = 30 * time.Second

type Poller struct {
	registry *registry.Registry
	adapters *devices.Set
	schedule string
	enabled  bool

	gron    gronx.Gronx
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(reg *registry.Registry, adapters *devices.Set, schedule string, enabled bool) *Poller {
	return &Poller{
		registry: reg,
		adapters: adapters,
		schedule: schedule,
		enabled:  enabled,
		gron:     *gronx.New(),
	}
}

func (p *Poller) Start() error {
	if !p.enabled {
		logger.InfoC("poller", "Status poller disabled")
		return nil
	}
	if !p.gron.IsValid(p.schedule) {
		return &InvalidScheduleError{Schedule: p.schedule}
	}
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop()

	logger.InfoCF("poller", "Status poller started", map[string]any{"schedule": p.schedule})
	return nil
}

func (p *Poller) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	<-p.doneCh
	logger.InfoC("poller", "Status poller stopped")
}

type InvalidScheduleError struct {
	Schedule string
}

func (e *InvalidScheduleError) Error() string {
	return "invalid poll schedule: " + e.Schedule
}

func (p *Poller) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var lastRun time.Time
	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			due, err := p.gron.IsDue(p.schedule, now)
			if err != nil || !due {
				continue
			}
			// gronx resolves dueness per minute; skip if this minute
			// already swept.
			if now.Truncate(time.Minute).Equal(lastRun) {
				continue
			}
			lastRun = now.Truncate(time.Minute)
			p.Sweep(context.Background())
		}
	}
}

// Sweep queries every device once and records the reported state.
// Unreachable devices are marked unknown rather than left stale.
func (p *Poller) Sweep(ctx context.Context) {
	for _, dev := range p.registry.List() {
		adapter, ok := p.adapters.For(dev.Family)
		if !ok {
			continue
		}

		state, err := adapter.Status(ctx, dev.ID)
		if err != nil {
			logger.WarnCF("poller", "Status query failed", map[string]any{
				"device_id": dev.ID,
				"error":     err.Error(),
			})
			p.registry.MarkUnknown(dev.ID)
			continue
		}

		if state != dev.State {
			logger.InfoCF("poller", "State drift corrected", map[string]any{
				"device_id": dev.ID,
				"was":       string(dev.State),
				"now":       string(state),
			})
		}
		if _, err := p.registry.SetState(dev.ID, state); err != nil {
			logger.WarnCF("poller", "State not recorded", map[string]any{
				"device_id": dev.ID,
				"error":     err.Error(),
			})
		}
	}
}
