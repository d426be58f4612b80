package dispatch

import (
	"context"
	"testing"
	"time"
)

func broadcastEngine(t *testing.T, sender Sender, opts Options) (*Engine, func()) {
	t.Helper()
	eng, _, store := testEngine(t, newFakeAdapter("esp32"), sender)
	eng.opts = opts
	eng.opts.withDefaults()
	bind := func() {
		_ = store.Bind("esp32_light_001", "telegram", "123")
		_ = store.Bind("esp32_light_001", "telegram", "456")
		_ = store.Bind("esp32_light_001", "line", "U999")
	}
	return eng, bind
}

func TestBroadcastDevice_AllDelivered(t *testing.T) {
	sender := newFakeSender()
	eng, bind := broadcastEngine(t, sender, Options{})
	bind()

	resp := eng.BroadcastDevice(context.Background(), "esp32_light_001", "lights out")
	if resp.Class != ClassSuccess {
		t.Fatalf("%s: %s", resp.Class, resp.Message)
	}
	if resp.Total != 3 || resp.Failed != 0 {
		t.Errorf("total=%d failed=%d", resp.Total, resp.Failed)
	}
	if sender.sentCount() != 3 {
		t.Errorf("sent %d", sender.sentCount())
	}
}

func TestBroadcastDevice_PartialFailure(t *testing.T) {
	sender := newFakeSender()
	sender.failFor["456"] = true
	eng, bind := broadcastEngine(t, sender, Options{})
	bind()

	resp := eng.BroadcastDevice(context.Background(), "esp32_light_001", "lights out")
	if resp.Class != ClassPartialFailure {
		t.Fatalf("expected partial-failure, got %s", resp.Class)
	}
	if resp.Failed != 1 || resp.Total != 3 {
		t.Errorf("failed=%d total=%d", resp.Failed, resp.Total)
	}
	if resp.HTTPStatus() != 200 {
		t.Errorf("partial failure is still an ok transport outcome, got %d", resp.HTTPStatus())
	}
}

func TestBroadcastDevice_TotalFailure(t *testing.T) {
	sender := newFakeSender()
	sender.failFor["123"] = true
	sender.failFor["456"] = true
	sender.failFor["U999"] = true
	eng, bind := broadcastEngine(t, sender, Options{})
	bind()

	resp := eng.BroadcastDevice(context.Background(), "esp32_light_001", "lights out")
	if resp.Class != ClassInternalError {
		t.Fatalf("expected internal-error, got %s", resp.Class)
	}
	if resp.Failed != 3 {
		t.Errorf("failed=%d", resp.Failed)
	}
}

func TestBroadcastDevice_NoBindings(t *testing.T) {
	eng, _ := broadcastEngine(t, newFakeSender(), Options{})

	resp := eng.BroadcastDevice(context.Background(), "esp32_light_001", "anyone there")
	if resp.Class != ClassNotFound {
		t.Fatalf("expected not-found, got %s", resp.Class)
	}
}

func TestBroadcastDevice_UnknownDevice(t *testing.T) {
	eng, _ := broadcastEngine(t, newFakeSender(), Options{})

	resp := eng.BroadcastDevice(context.Background(), "esp32_light_999", "hello")
	if resp.Class != ClassNotFound {
		t.Fatalf("expected not-found, got %s", resp.Class)
	}
}

func TestBroadcastAll_DeduplicatesRecipients(t *testing.T) {
	sender := newFakeSender()
	eng, _, store := testEngine(t, newFakeAdapter("esp32"), sender)

	// One recipient bound to both devices gets the broadcast once.
	_ = store.Bind("esp32_light_001", "telegram", "123")
	_ = store.Bind("esp32_fan_002", "telegram", "123")
	_ = store.Bind("esp32_fan_002", "line", "U999")

	resp := eng.BroadcastAll(context.Background(), "maintenance tonight")
	if resp.Class != ClassSuccess {
		t.Fatalf("%s: %s", resp.Class, resp.Message)
	}
	if resp.Total != 2 {
		t.Errorf("total=%d, want 2", resp.Total)
	}
	if sender.sentCount() != 2 {
		t.Errorf("sent %d", sender.sentCount())
	}
}

func TestBroadcastAll_NoRecipients(t *testing.T) {
	eng, _, _ := testEngine(t, newFakeAdapter("esp32"), newFakeSender())

	resp := eng.BroadcastAll(context.Background(), "hello")
	if resp.Class != ClassNotFound {
		t.Fatalf("expected not-found, got %s", resp.Class)
	}
}

func TestBroadcast_ValidatesInput(t *testing.T) {
	eng, _ := broadcastEngine(t, newFakeSender(), Options{})

	if resp := eng.BroadcastDevice(context.Background(), "", "text"); resp.Class != ClassValidationError {
		t.Errorf("empty device: %s", resp.Class)
	}
	if resp := eng.BroadcastDevice(context.Background(), "esp32_light_001", ""); resp.Class != ClassValidationError {
		t.Errorf("empty text: %s", resp.Class)
	}
	if resp := eng.BroadcastAll(context.Background(), ""); resp.Class != ClassValidationError {
		t.Errorf("empty text: %s", resp.Class)
	}
}

// slowSender blocks until its context expires.
type slowSender struct{}

func (slowSender) Send(ctx context.Context, _, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestBroadcast_DeadlineCountsPendingAsFailed(t *testing.T) {
	eng, bind := broadcastEngine(t, slowSender{}, Options{
		MaxConcurrent: 1,
		SendTimeout:   50 * time.Millisecond,
		Deadline:      120 * time.Millisecond,
	})
	bind()

	start := time.Now()
	resp := eng.BroadcastDevice(context.Background(), "esp32_light_001", "too slow")
	elapsed := time.Since(start)

	if resp.Class != ClassInternalError {
		t.Fatalf("expected internal-error, got %s", resp.Class)
	}
	if resp.Failed != 3 || resp.Total != 3 {
		t.Errorf("failed=%d total=%d", resp.Failed, resp.Total)
	}
	if elapsed > time.Second {
		t.Errorf("broadcast overran its deadline: %s", elapsed)
	}
}

func TestBroadcast_RetryRecoversFlakyTarget(t *testing.T) {
	sender := newFakeSender()
	sender.failodd = true
	eng, bind := broadcastEngine(t, sender, Options{Retries: 1})
	bind()

	resp := eng.BroadcastDevice(context.Background(), "esp32_light_001", "flaky network")
	if resp.Class != ClassSuccess {
		t.Fatalf("retry should recover every target: %s %s", resp.Class, resp.Message)
	}
}
