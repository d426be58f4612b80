package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tinyland-inc/homeclaw/pkg/config"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

const FamilyRaspberryPi = "raspberrypi"

const connectTimeout = 10 * time.Second

// commandPayload is published on the device's command topic.
type commandPayload struct {
	Command  string `json:"command"`
	DeviceID string `json:"device_id"`
}

// statusPayload arrives on the device's status topic.
type statusPayload struct {
	Status string `json:"status"`
}

// RaspberryPiAdapter drives Raspberry Pi-family devices over MQTT. Each
// call is a request/reply exchange: subscribe to the device's status
// topic, publish the command, and wait for the status report within the
// per-call timeout.
type RaspberryPiAdapter struct {
	client  mqtt.Client
	timeout time.Duration
}

func NewRaspberryPiAdapter(cfg config.BrokerConfig, timeout time.Duration) (*RaspberryPiAdapter, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectRetryInterval(time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.WarnCF("devices.raspberrypi", "Broker connection lost", map[string]any{"error": err.Error()})
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: broker connect timed out", ErrUnreachable)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: broker connect: %v", ErrUnreachable, err)
	}

	return &RaspberryPiAdapter{client: client, timeout: timeout}, nil
}

func (a *RaspberryPiAdapter) Family() string { return FamilyRaspberryPi }

func (a *RaspberryPiAdapter) Enable(ctx context.Context, deviceID string) (registry.State, error) {
	return a.exchange(ctx, deviceID, "on")
}

func (a *RaspberryPiAdapter) Disable(ctx context.Context, deviceID string) (registry.State, error) {
	return a.exchange(ctx, deviceID, "off")
}

func (a *RaspberryPiAdapter) Status(ctx context.Context, deviceID string) (registry.State, error) {
	return a.exchange(ctx, deviceID, "get_status")
}

func (a *RaspberryPiAdapter) Close() {
	a.client.Disconnect(250)
}

func commandTopic(deviceID string) string {
	return fmt.Sprintf("%s/light/%s/message", FamilyRaspberryPi, deviceID)
}

func statusTopic(deviceID string) string {
	return fmt.Sprintf("%s/light/%s/status", FamilyRaspberryPi, deviceID)
}

func (a *RaspberryPiAdapter) exchange(ctx context.Context, deviceID, command string) (registry.State, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	replies := make(chan registry.State, 1)
	topic := statusTopic(deviceID)

	token := a.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var status statusPayload
		if err := json.Unmarshal(msg.Payload(), &status); err != nil {
			logger.WarnCF("devices.raspberrypi", "Unparseable status payload", map[string]any{
				"topic": msg.Topic(),
				"error": err.Error(),
			})
			return
		}
		select {
		case replies <- parseState(status.Status):
		default:
		}
	})
	if !token.WaitTimeout(a.timeout) || token.Error() != nil {
		return registry.StateUnknown, fmt.Errorf("%w: subscribing %s: %v", ErrUnreachable, topic, token.Error())
	}
	defer a.client.Unsubscribe(topic)

	payload, err := json.Marshal(commandPayload{Command: command, DeviceID: deviceID})
	if err != nil {
		return registry.StateUnknown, fmt.Errorf("%w: encoding command: %v", ErrRejected, err)
	}

	pub := a.client.Publish(commandTopic(deviceID), 1, false, payload)
	if !pub.WaitTimeout(a.timeout) || pub.Error() != nil {
		return registry.StateUnknown, fmt.Errorf("%w: publishing command: %v", ErrUnreachable, pub.Error())
	}

	select {
	case state := <-replies:
		return state, nil
	case <-ctx.Done():
		return registry.StateUnknown, fmt.Errorf("%w: no status reply from %s", ErrUnreachable, deviceID)
	}
}
