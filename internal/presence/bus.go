package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey = "online_users"
	publishTimeout = 2 * time.Second
)

// Bus publishes presence transitions on a channel named after the username,
// with payloads "joined"/"left", and maintains a set-valued "online_users"
// key. It is an injectable collaborator — tests substitute an in-memory
// recorder — and every operation is best-effort: a publish failure is
// logged and ignored, never propagated back into the routing path.
type Bus interface {
	Publish(username, event string)
	Close() error
}

// NoopBus is used when no pub/sub backend is configured. Presence
// operations still succeed locally; this just means nothing downstream
// hears about them.
type NoopBus struct{}

func (NoopBus) Publish(string, string) {}
func (NoopBus) Close() error           { return nil }

// RedisBus publishes presence transitions to Redis and keeps the
// online_users set in sync.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish announces username's transition on its own channel and updates
// the online_users set to match. event is "joined" or "left".
func (b *RedisBus) Publish(username, event string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, username, event).Err(); err != nil {
		slog.Warn("presence publish failed", "username", username, "event", event, "error", err)
		return
	}

	switch event {
	case "joined":
		if err := b.client.SAdd(ctx, onlineUsersKey, username).Err(); err != nil {
			slog.Warn("presence online-set add failed", "username", username, "error", err)
		}
	case "left":
		if err := b.client.SRem(ctx, onlineUsersKey, username).Err(); err != nil {
			slog.Warn("presence online-set remove failed", "username", username, "error", err)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
