// Package notifications publishes moderation events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"cloudysky/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const moderationChannelPrefix = "moderation:"

// ModerationEvent is published after a hide has been written.
type ModerationEvent struct {
	Kind       string    `json:"kind"`
	TargetID   uint      `json:"target_id"`
	ActorID    uint      `json:"actor_id"`
	Actor      string    `json:"actor"`
	ReasonText string    `json:"reason_text,omitempty"`
	HiddenAt   time.Time `json:"hidden_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishModeration sends ev to the channel of its target kind.
func (n *Notifier) PublishModeration(ctx context.Context, ev ModerationEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, ModerationChannel(ev.Kind), string(payload)).Err()
}

// StartModerationSubscriber subscribes to every moderation channel and calls
// onEvent for each decoded event until ctx is cancelled.
func (n *Notifier) StartModerationSubscriber(ctx context.Context, onEvent func(ModerationEvent)) error {
	if n == nil || n.rdb == nil {
		return fmt.Errorf("redis unavailable")
	}
	sub := n.rdb.PSubscribe(ctx, moderationChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
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
				var ev ModerationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					middleware.Logger.Warn("dropping malformed moderation event",
						slog.String("channel", msg.Channel), slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in moderation subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(ev)
				}()
			}
		}
	}()

	return nil
}

// ModerationChannel derives the Redis channel name for a target kind.
func ModerationChannel(kind string) string {
	return moderationChannelPrefix + strings.ToLower(kind)
}
