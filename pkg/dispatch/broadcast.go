package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/homeclaw/pkg/binding"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
)

// BroadcastDevice sends text to every recipient bound to deviceID.
func (e *Engine) BroadcastDevice(ctx context.Context, deviceID, text string) Response {
	if deviceID == "" || text == "" {
		return validationError("device id and message are required")
	}
	if _, err := e.registry.Get(deviceID); err != nil {
		return notFound(fmt.Sprintf("Device %s not found.", deviceID))
	}

	targets := e.bindings.Resolve(deviceID)
	if len(targets) == 0 {
		return notFound(fmt.Sprintf("Device %s has no bound recipients.", deviceID))
	}
	return e.fanOut(ctx, targets, text)
}

// BroadcastAll sends text once to every recipient that ever bound any
// device, across all platforms.
func (e *Engine) BroadcastAll(ctx context.Context, text string) Response {
	if text == "" {
		return validationError("message is required")
	}

	targets := e.bindings.ResolveAll()
	if len(targets) == 0 {
		return notFound("No recipients have bound any device.")
	}
	return e.fanOut(ctx, targets, text)
}

// fanOut delivers text to every target concurrently, bounded by
// MaxConcurrent, each target independently retried. Outcomes land in a
// fixed-size slice with one slot per target; the join is cut off at the
// broadcast deadline and slots still pending then count as failed. The
// aggregate is strictly three-way: all sent, some sent, none sent.
func (e *Engine) fanOut(ctx context.Context, targets []binding.Target, text string) Response {
	broadcastID := uuid.New().String()

	ctx, cancel := context.WithTimeout(ctx, e.opts.Deadline)
	defer cancel()

	type slot struct {
		done bool
		err  error
	}
	var mu sync.Mutex
	results := make([]slot, len(targets))

	g := &errgroup.Group{}
	g.SetLimit(e.opts.MaxConcurrent)
	for i, target := range targets {
		g.Go(func() error {
			err := e.sendWithRetry(ctx, target, text)

			mu.Lock()
			results[i] = slot{done: true, err: err}
			mu.Unlock()
			return nil
		})
	}

	joined := make(chan struct{})
	go func() {
		g.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-ctx.Done():
		// Deadline expired: in-flight sends may still complete, but their
		// results are no longer waited upon.
	}

	sent := 0
	mu.Lock()
	for _, s := range results {
		if s.done && s.err == nil {
			sent++
		}
	}
	mu.Unlock()
	failed := len(targets) - sent

	logger.InfoCF("dispatch", "Broadcast finished", map[string]any{
		"broadcast_id": broadcastID,
		"targets":      len(targets),
		"sent":         sent,
		"failed":       failed,
	})

	switch {
	case failed == 0:
		return Response{
			Class:   ClassSuccess,
			Message: fmt.Sprintf("Message delivered to %d recipient(s).", sent),
			Total:   len(targets),
		}
	case sent == 0:
		return Response{
			Class:   ClassInternalError,
			Message: "Message could not be delivered to any recipient.",
			Failed:  failed,
			Total:   len(targets),
		}
	default:
		return Response{
			Class:   ClassPartialFailure,
			Message: fmt.Sprintf("Message delivered to %d of %d recipient(s); %d failed.", sent, len(targets), failed),
			Failed:  failed,
			Total:   len(targets),
		}
	}
}

// sendWithRetry attempts one target with a fresh per-attempt timeout,
// retrying transient failures up to the configured bound. It never retries
// past the broadcast deadline.
func (e *Engine) sendWithRetry(ctx context.Context, target binding.Target, text string) error {
	var lastErr error
	for attempt := 0; attempt <= e.opts.Retries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.SendTimeout)
		lastErr = e.sender.Send(attemptCtx, target.Platform, target.Recipient, text)
		cancel()

		if lastErr == nil {
			return nil
		}
		logger.WarnCF("dispatch", "Send attempt failed", map[string]any{
			"platform":  target.Platform,
			"recipient": target.Recipient,
			"attempt":   attempt + 1,
			"error":     lastErr.Error(),
		})
	}
	return lastErr
}
