package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const chatChannelPrefix = "chat:"

// Bus is the Redis Pub/Sub fan-out: one channel per chat room, subscribed
// to by pattern so a single listener per instance covers every chat.
type Bus struct {
	client *redis.Client
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func chatChannel(cid uuid.UUID) string {
	return chatChannelPrefix + cid.String()
}

// PublishToChat marshals payload and fires it at the chat's channel.
// Fire-and-forget: at-most-once within the bus, bounded retry is the
// caller's concern (§5: 2 attempts, exponential).
func (b *Bus) PublishToChat(ctx context.Context, cid uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, chatChannel(cid), data).Err()
}

// PublishToChatRetry makes up to 2 attempts at PublishToChat with
// exponential backoff, per the bus's shared-resource contract in §5.
func (b *Bus) PublishToChatRetry(ctx context.Context, cid uuid.UUID, payload any) error {
	var err error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < 2; attempt++ {
		if err = b.PublishToChat(ctx, cid, payload); err == nil {
			return nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("bus publish failed, retrying")
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// SubscribePattern subscribes to every chat channel ("chat:*") and invokes
// handler(chatID, rawPayload) for each message received, until ctx is
// cancelled. On a dropped connection to Redis it reconnects with
// exponential backoff and resubscribes; it never returns except when ctx
// is done.
func (b *Bus) SubscribePattern(ctx context.Context, handler func(cid uuid.UUID, payload json.RawMessage)) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := b.listenOnce(ctx, handler); err != nil {
			log.Error().Err(err).Dur("backoff", backoff).Msg("pub/sub listener lost connection, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second
	}
}

func (b *Bus) listenOnce(ctx context.Context, handler func(cid uuid.UUID, payload json.RawMessage)) error {
	pubsub := b.client.PSubscribe(ctx, chatChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			cid, err := uuid.Parse(msg.Channel[len(chatChannelPrefix):])
			if err != nil {
				log.Warn().Str("channel", msg.Channel).Msg("pub/sub message on malformed channel name")
				continue
			}
			handler(cid, json.RawMessage(msg.Payload))
		}
	}
}
