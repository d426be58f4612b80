package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/tinyland-inc/homeclaw/cmd/homeclaw/internal"
	"github.com/tinyland-inc/homeclaw/pkg/api"
	"github.com/tinyland-inc/homeclaw/pkg/binding"
	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/channels"
	"github.com/tinyland-inc/homeclaw/pkg/config"
	"github.com/tinyland-inc/homeclaw/pkg/devices"
	"github.com/tinyland-inc/homeclaw/pkg/dispatch"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
	"github.com/tinyland-inc/homeclaw/pkg/poller"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

func gatewayCmd(debug, virtual bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := logger.SetLogFile(cfg.StatePath("logs", "homeclaw.log")); err != nil {
		fmt.Printf("Warning: log file unavailable: %v\n", err)
	}

	msgBus := bus.NewMessageBus()

	seeds := make([]registry.Seed, 0, len(cfg.Devices.Catalog))
	for _, d := range cfg.Devices.Catalog {
		seeds = append(seeds, registry.Seed{ID: d.ID, Family: d.Family, Name: d.Name})
	}
	reg := registry.New(seeds)
	fmt.Printf("✓ Device catalog loaded: %s\n", strings.Join(reg.IDs(), ", "))

	bindings, err := binding.NewStore(cfg.StatePath("bindings.json"))
	if err != nil {
		return fmt.Errorf("error loading bindings: %w", err)
	}
	if n := bindings.Count(); n > 0 {
		fmt.Printf("✓ Restored %d binding(s)\n", n)
	}

	adapterSet, piAdapter := buildAdapters(cfg, reg, virtual)

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("error creating channel manager: %w", err)
	}

	engine := dispatch.NewEngine(reg, bindings, adapterSet, channelManager, msgBus, dispatch.Options{
		MaxConcurrent: cfg.Broadcast.MaxConcurrent,
		Retries:       cfg.Broadcast.Retries,
		SendTimeout:   time.Duration(cfg.Broadcast.SendTimeoutSeconds) * time.Second,
		Deadline:      time.Duration(cfg.Broadcast.DeadlineSeconds) * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := channelManager.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
	}
	if enabled := channelManager.Enabled(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}

	go engine.Run(ctx)
	go channelManager.Run(ctx, time.Duration(cfg.Broadcast.SendTimeoutSeconds)*time.Second)

	apiServer := api.NewServer(cfg, engine, reg, channelManager, msgBus)
	apiServer.Start()
	fmt.Printf("✓ Gateway listening on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)

	statusPoller := poller.New(reg, adapterSet, cfg.Poller.Schedule, cfg.Poller.Enabled)
	if err := statusPoller.Start(); err != nil {
		fmt.Printf("Error starting status poller: %v\n", err)
	} else if cfg.Poller.Enabled {
		fmt.Printf("✓ Status poller started (%s)\n", cfg.Poller.Schedule)
	}

	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	statusPoller.Stop()
	apiServer.Stop()
	channelManager.StopAll(context.Background())
	if piAdapter != nil {
		piAdapter.Close()
	}
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")

	return nil
}

// buildAdapters constructs one adapter per family present in the catalog.
// A broker that cannot be reached degrades that family to the virtual
// adapter so the gateway still starts; commands then succeed in memory
// until the broker returns and the process is restarted.
func buildAdapters(cfg *config.Config, reg *registry.Registry, virtual bool) (*devices.Set, *devices.RaspberryPiAdapter) {
	families := make(map[string]bool)
	for _, dev := range reg.List() {
		families[dev.Family] = true
	}

	callTimeout := time.Duration(cfg.Devices.CallTimeoutSeconds) * time.Second
	set := devices.NewSet()
	var piAdapter *devices.RaspberryPiAdapter

	for family := range families {
		if virtual {
			set.Register(devices.NewVirtualAdapter(family))
			continue
		}

		switch family {
		case devices.FamilyESP32:
			set.Register(devices.NewESP32Adapter(cfg.Devices.ESP32BridgeURL, callTimeout))
		case devices.FamilyRaspberryPi:
			adapter, err := devices.NewRaspberryPiAdapter(cfg.Devices.Broker, callTimeout)
			if err != nil {
				fmt.Printf("Warning: broker unreachable, %s devices run virtually: %v\n", family, err)
				set.Register(devices.NewVirtualAdapter(family))
				continue
			}
			piAdapter = adapter
			set.Register(adapter)
		default:
			fmt.Printf("Warning: unknown family %q runs virtually\n", family)
			set.Register(devices.NewVirtualAdapter(family))
		}
	}

	if virtual {
		fmt.Println("✓ Virtual mode: all device families simulated in memory")
	}
	return set, piAdapter
}
