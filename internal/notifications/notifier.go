// Package notifications publishes feed events through Redis and fans them out
// to websocket subscribers.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"charityfeed/internal/middleware"
	"charityfeed/internal/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// FeedChannel is the Redis channel carrying models.FeedEvent payloads.
const FeedChannel = "feed:events"

// Notifier publishes feed events. Without Redis it delivers in-process to
// local subscribers, which is enough for a single API instance.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local []func(payload string)
}

// NewNotifier creates a Notifier over rdb, which may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishFeedEvent serializes ev and publishes it on FeedChannel.
func (n *Notifier) PublishFeedEvent(ctx context.Context, ev models.FeedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if n.rdb == nil {
		n.deliverLocal(string(payload))
		return nil
	}
	return n.rdb.Publish(ctx, FeedChannel, payload).Err()
}

func (n *Notifier) deliverLocal(payload string) {
	n.mu.RLock()
	handlers := append([]func(string){}, n.local...)
	n.mu.RUnlock()
	for _, h := range handlers {
		safeDeliver(h, FeedChannel, payload)
	}
}

// StartFeedSubscriber calls onMessage for every feed event until ctx is done.
func (n *Notifier) StartFeedSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		n.mu.Lock()
		n.local = append(n.local, onMessage)
		n.mu.Unlock()
		return nil
	}

	sub := n.rdb.Subscribe(ctx, FeedChannel)
	// Wait for the subscription to be confirmed so no event published right
	// after this call is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				safeDeliver(onMessage, msg.Channel, msg.Payload)
			}
		}
	}()

	return nil
}

func safeDeliver(onMessage func(string), channel, payload string) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in feed subscriber",
				slog.String("channel", channel),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	onMessage(payload)
}
