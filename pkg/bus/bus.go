// Package bus carries messages between platform channels and the dispatch
// engine. Channels publish inbound messages; the engine consumes them,
// and replies flow back through the outbound side, addressed to the chat
// the inbound message came from.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed MessageBus.
var ErrBusClosed = errors.New("message bus closed")

const queueDepth = 100

// queue is one direction of the bus. Both ends give up when the bus
// closes or the caller's context ends; a full queue blocks the publisher
// rather than dropping, so backpressure reaches the platform channel.
type queue[T any] struct {
	ch   chan T
	done <-chan struct{}
}

func newQueue[T any](done <-chan struct{}) queue[T] {
	return queue[T]{ch: make(chan T, queueDepth), done: done}
}

func (q queue[T]) put(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-q.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q queue[T]) take(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v, ok := <-q.ch:
		if !ok {
			return zero, false
		}
		return v, true
	case <-q.done:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

type MessageBus struct {
	inbound  queue[InboundMessage]
	outbound queue[OutboundMessage]
	done     chan struct{}
	closed   atomic.Bool
}

func NewMessageBus() *MessageBus {
	done := make(chan struct{})
	return &MessageBus{
		inbound:  newQueue[InboundMessage](done),
		outbound: newQueue[OutboundMessage](done),
		done:     done,
	}
}

func (mb *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	return mb.inbound.put(ctx, msg)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return mb.inbound.take(ctx)
}

func (mb *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	return mb.outbound.put(ctx, msg)
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return mb.outbound.take(ctx)
}

// ReplyTo queues an outbound message addressed back to the chat that the
// inbound message arrived from.
func (mb *MessageBus) ReplyTo(ctx context.Context, in InboundMessage, text string) error {
	return mb.PublishOutbound(ctx, OutboundMessage{
		Channel: in.Channel,
		ChatID:  in.ChatID,
		Content: text,
	})
}

func (mb *MessageBus) Close() {
	if mb.closed.CompareAndSwap(false, true) {
		close(mb.done)
	}
}
