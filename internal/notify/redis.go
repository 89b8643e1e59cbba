package notify

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seatd/internal/logging"
)

// ChannelPrefix prefixes the Redis pub/sub channel of each showtime.
const ChannelPrefix = "seats:"

// Channel returns the Redis channel carrying a showtime's events.
func Channel(showtimeID string) string { return ChannelPrefix + showtimeID }

// RedisBroadcaster publishes seat changes to Redis so every instance's
// RedisRelay can deliver them to its local subscribers.  If a publish
// fails the event is delivered to the local hub only.
type RedisBroadcaster struct {
	rdb   *redis.Client
	local *Hub
}

// NewRedisBroadcaster returns a broadcaster publishing through rdb.
func NewRedisBroadcaster(rdb *redis.Client, local *Hub) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, local: local}
}

// SeatsChanged implements booking.Notifier.
func (b *RedisBroadcaster) SeatsChanged(ctx context.Context, showtimeID string) error {
	payload, err := json.Marshal(SeatsUpdate(showtimeID))
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, Channel(showtimeID), string(payload)).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("showtime_id", showtimeID).Msg("redis publish failed, delivering locally")
		return b.local.SeatsChanged(ctx, showtimeID)
	}
	return nil
}

// RedisRelay pattern-subscribes to every showtime channel and forwards
// events to the local hub.  It is a suture.Service.
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
}

// NewRedisRelay returns a relay feeding hub.
func NewRedisRelay(rdb *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub}
}

// Serve blocks until ctx is cancelled or the subscription breaks.
func (r *RedisRelay) Serve(ctx context.Context) error {
	log := logging.WithComponent("redis-relay")
	pubsub := r.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription confirmation so errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Info().Str("pattern", ChannelPrefix+"*").Msg("relaying seat events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.Relay(msg.Channel, msg.Payload)
		}
	}
}

// Relay delivers one pub/sub message to the local hub.
func (r *RedisRelay) Relay(channel, payload string) {
	showtimeID := strings.TrimPrefix(channel, ChannelPrefix)
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Type == "" {
		msg = SeatsUpdate(showtimeID)
	}
	if msg.ShowtimeID == "" {
		msg.ShowtimeID = showtimeID
	}
	r.hub.Publish(showtimeID, msg)
}

func (r *RedisRelay) String() string { return "redis-relay" }
