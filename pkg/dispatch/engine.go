// Package dispatch is the gateway's orchestrator: it turns parsed commands
// into device adapter calls and registry transitions, implicitly binds
// recipients to the devices they command, and fans broadcasts out across
// platform channels. It is the only component that decides retry policy
// and the only one that aggregates multiple outcomes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinyland-inc/homeclaw/pkg/binding"
	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/command"
	"github.com/tinyland-inc/homeclaw/pkg/devices"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

// Sender delivers one message to one recipient on one platform. The
// channel manager satisfies it; tests substitute fakes.
type Sender interface {
	Send(ctx context.Context, platform, recipient, text string) error
}

// Options tune the broadcast fan-out path.
type Options struct {
	// MaxConcurrent bounds in-flight sends during a fan-out.
	MaxConcurrent int
	// Retries is the number of re-attempts per target after a failed send.
	Retries int
	// SendTimeout bounds each individual send attempt.
	SendTimeout time.Duration
	// Deadline bounds a whole broadcast; targets still pending when it
	// expires are counted as failed.
	Deadline time.Duration
}

func (o *Options) withDefaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 8
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.Deadline <= 0 {
		o.Deadline = 30 * time.Second
	}
}

type Engine struct {
	registry *registry.Registry
	bindings *binding.Store
	parser   *command.Parser
	adapters *devices.Set
	sender   Sender
	bus      *bus.MessageBus
	opts     Options
}

func NewEngine(
	reg *registry.Registry,
	bindings *binding.Store,
	adapters *devices.Set,
	sender Sender,
	msgBus *bus.MessageBus,
	opts Options,
) *Engine {
	opts.withDefaults()
	return &Engine{
		registry: reg,
		bindings: bindings,
		parser:   command.NewParser(reg.IDs()),
		adapters: adapters,
		sender:   sender,
		bus:      msgBus,
		opts:     opts,
	}
}

// Run consumes inbound messages until ctx is done. Each message is handled
// on its own goroutine; per-device serialization happens in the registry,
// so concurrent handlers for different devices never contend.
func (e *Engine) Run(ctx context.Context) {
	for {
		msg, ok := e.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		go e.HandleInbound(ctx, msg)
	}
}

// HandleInbound processes one chat message. Unrecognized text is a normal
// outcome and produces no reply; the webhook transport has already acked.
func (e *Engine) HandleInbound(ctx context.Context, msg bus.InboundMessage) {
	result := e.parser.Parse(msg.Content)

	switch result.Kind {
	case command.KindNoMatch:
		return

	case command.KindUnknownDevice:
		e.reply(ctx, msg, fmt.Sprintf("I don't know a device called %q.", result.Token))
		return

	case command.KindMatch:
		resp := e.Control(ctx, result.Command.Action, result.Command.DeviceID, msg.Channel, msg.ChatID)
		e.reply(ctx, msg, resp.Message)
	}
}

// Control runs the single-command flow: validate against the registry,
// invoke the family adapter under the device's lock, apply the confirmed
// state, and bind the issuing recipient. The flow is strictly sequential;
// a device's state mutation must not race with itself.
func (e *Engine) Control(ctx context.Context, action command.Action, deviceID, platform, recipient string) Response {
	dev, err := e.registry.Get(deviceID)
	if err != nil {
		return notFound(fmt.Sprintf("Device %s not found.", deviceID))
	}

	adapter, ok := e.adapters.For(dev.Family)
	if !ok {
		return internalError(fmt.Sprintf("No adapter for device family %q.", dev.Family))
	}

	updated, err := e.registry.Transition(deviceID, func(cur registry.Device) (registry.State, error) {
		state, callErr := e.invoke(ctx, adapter, action, deviceID)
		if callErr != nil {
			if errors.Is(callErr, devices.ErrUnreachable) {
				// Communication failure: the device may or may not have
				// acted, so the confirmed state is unknown.
				return registry.StateUnknown, callErr
			}
			// Validation failure on the device side leaves state untouched.
			return cur.State, callErr
		}
		return state, nil
	})
	if err != nil {
		logger.ErrorCF("dispatch", "Device adapter call failed", map[string]any{
			"device_id": deviceID,
			"action":    string(action),
			"error":     err.Error(),
		})
		return internalError(fmt.Sprintf("Failed to %s %s.", verbFor(action), displayName(dev)))
	}

	if platform != "" && recipient != "" {
		if bindErr := e.bindings.Bind(deviceID, platform, recipient); bindErr != nil {
			// Binding persistence must not fail the command itself.
			logger.WarnCF("dispatch", "Binding not persisted", map[string]any{
				"device_id": deviceID,
				"platform":  platform,
				"error":     bindErr.Error(),
			})
		}
	}

	return success(resultMessage(action, dev, updated.State))
}

func (e *Engine) invoke(ctx context.Context, adapter devices.Adapter, action command.Action, deviceID string) (registry.State, error) {
	switch action {
	case command.ActionEnable:
		return adapter.Enable(ctx, deviceID)
	case command.ActionDisable:
		return adapter.Disable(ctx, deviceID)
	case command.ActionGetStatus:
		return adapter.Status(ctx, deviceID)
	}
	return registry.StateUnknown, fmt.Errorf("%w: unsupported action %q", devices.ErrRejected, action)
}

// SendDirect delivers a manual single-recipient message with the same
// retry policy as a broadcast target.
func (e *Engine) SendDirect(ctx context.Context, platform, recipient, text string) Response {
	if platform == "" || recipient == "" || text == "" {
		return validationError("platform, recipient and message are required")
	}

	if err := e.sendWithRetry(ctx, binding.Target{Platform: platform, Recipient: recipient}, text); err != nil {
		logger.ErrorCF("dispatch", "Direct send failed", map[string]any{
			"platform":  platform,
			"recipient": recipient,
			"error":     err.Error(),
		})
		return internalError("Failed to send message.")
	}
	return success("Message sent.")
}

func (e *Engine) reply(ctx context.Context, msg bus.InboundMessage, text string) {
	if msg.Channel == "" || msg.ChatID == "" {
		return
	}
	if err := e.bus.ReplyTo(ctx, msg, text); err != nil {
		logger.WarnCF("dispatch", "Reply not published", map[string]any{
			"channel": msg.Channel,
			"error":   err.Error(),
		})
	}
}

func resultMessage(action command.Action, dev registry.Device, state registry.State) string {
	name := displayName(dev)
	switch action {
	case command.ActionEnable:
		return fmt.Sprintf("Turning on %s!", name)
	case command.ActionDisable:
		return fmt.Sprintf("Turning off %s~", name)
	default:
		return fmt.Sprintf("Current status of %s: %s", name, state)
	}
}

func displayName(dev registry.Device) string {
	if dev.Name != "" {
		return dev.Name
	}
	return dev.ID
}

func verbFor(action command.Action) string {
	switch action {
	case command.ActionEnable:
		return "turn on"
	case command.ActionDisable:
		return "turn off"
	default:
		return "query"
	}
}
