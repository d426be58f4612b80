package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/config"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
)

// ErrUnknownPlatform is returned for sends addressed to a platform with no
// enabled channel.
var ErrUnknownPlatform = errors.New("unknown platform")

// Manager owns the enabled platform channels: it constructs them from
// config, starts and stops them together, pumps outbound bus messages to
// the right channel, and exposes synchronous Send for the dispatch
// engine's fan-out path.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

// NewManager constructs every enabled channel. Credential errors surface
// here so a misconfigured gateway fails at startup, not on first send.
func NewManager(cfg *config.Config, b *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.Channels.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Channels.Telegram, b)
		if err != nil {
			return nil, err
		}
		m.channels[ch.Name()] = ch
	}
	if cfg.Channels.LINE.Enabled {
		ch, err := NewLINEChannel(cfg.Channels.LINE, b)
		if err != nil {
			return nil, err
		}
		m.channels[ch.Name()] = ch
	}
	if cfg.Channels.Discord.Enabled {
		ch, err := NewDiscordChannel(cfg.Channels.Discord, b)
		if err != nil {
			return nil, err
		}
		m.channels[ch.Name()] = ch
	}
	if cfg.Channels.Slack.Enabled {
		ch, err := NewSlackChannel(cfg.Channels.Slack, b)
		if err != nil {
			return nil, err
		}
		m.channels[ch.Name()] = ch
	}

	return m, nil
}

// Register adds a channel directly. New platforms plug in here; the
// dispatch engine never branches on platform names.
func (m *Manager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// Enabled returns the names of configured channels, sorted.
func (m *Manager) Enabled() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) StartAll(ctx context.Context) error {
	var errs []error
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channel", "Channel failed to start", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) StopAll(ctx context.Context) {
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channel", "Channel failed to stop cleanly", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// Send delivers one message to one recipient on one platform.
func (m *Manager) Send(ctx context.Context, platform, recipient, text string) error {
	ch, ok := m.channels[platform]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	if !ch.IsRunning() {
		return fmt.Errorf("channel %s is not running", platform)
	}
	return ch.Send(ctx, bus.OutboundMessage{
		Channel: platform,
		ChatID:  recipient,
		Content: text,
	})
}

// Run pumps outbound bus messages to their channels until ctx is done.
// Each delivery gets its own timeout so one stuck platform cannot stall
// the pump.
func (m *Manager) Run(ctx context.Context, sendTimeout time.Duration) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := m.Send(sendCtx, msg.Channel, msg.ChatID, msg.Content)
		cancel()

		if err != nil {
			logger.ErrorCF("channel", "Outbound delivery failed", map[string]any{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

// WebhookHandlers returns the per-platform webhook handlers that the
// gateway HTTP server mounts under /webhook/{platform}.
func (m *Manager) WebhookHandlers() map[string]http.Handler {
	handlers := make(map[string]http.Handler)
	for name, ch := range m.channels {
		if wh, ok := ch.(interface{ WebhookHandler() http.Handler }); ok {
			handlers[strings.ToLower(name)] = wh.WebhookHandler()
		}
	}
	return handlers
}
