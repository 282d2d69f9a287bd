// Package bus mirrors room events between server instances over Redis
// pub/sub.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/core"
	"github.com/vovakirdan/coedit-server/internal/proto"
)

// DefaultPrefix is prepended to room ids to form channel names.
const DefaultPrefix = "coedit:room:"

type envelope struct {
	Origin  string        `json:"origin"`
	Message proto.Message `json:"message"`
}

// RedisMirror implements core.Mirror. Each instance tags what it publishes
// with a random origin id and ignores its own messages on the way back.
type RedisMirror struct {
	client *redis.Client
	prefix string
	origin string
	log    *zerolog.Logger
}

// NewRedis wraps an existing client. An empty prefix selects DefaultPrefix.
func NewRedis(client *redis.Client, prefix string, logger *zerolog.Logger) *RedisMirror {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisMirror{
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
		log:    logger,
	}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr, prefix string, logger *zerolog.Logger) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedis(client, prefix, logger), nil
}

// Close releases the Redis client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// Publish sends ev to the channel of its room.
func (m *RedisMirror) Publish(ctx context.Context, ev *core.Event) error {
	data, err := m.encode(ev)
	if err != nil {
		return err
	}
	if err := m.client.Publish(ctx, m.prefix+ev.Room, data).Err(); err != nil {
		return fmt.Errorf("publish room %s: %w", ev.Room, err)
	}
	return nil
}

// Subscribe listens on every room channel. The returned channel is closed
// when ctx is done.
func (m *RedisMirror) Subscribe(ctx context.Context) (<-chan *core.Event, error) {
	pubsub := m.client.PSubscribe(ctx, m.prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s*: %w", m.prefix, err)
	}

	out := make(chan *core.Event, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				ev, err := m.decode(msg.Channel, []byte(msg.Payload))
				if err != nil {
					m.log.Warn().Err(err).Str("channel", msg.Channel).Msg("skip mirrored message")
					continue
				}
				if ev == nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *RedisMirror) encode(ev *core.Event) ([]byte, error) {
	msg, err := proto.FromEvent(ev)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(envelope{Origin: m.origin, Message: msg})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// decode returns nil without error for messages this instance published.
func (m *RedisMirror) decode(channel string, data []byte) (*core.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Origin == m.origin {
		return nil, nil
	}
	room := strings.TrimPrefix(channel, m.prefix)
	if env.Message.RoomID != room {
		return nil, fmt.Errorf("room mismatch: channel %q carries %q", room, env.Message.RoomID)
	}
	return proto.ToEvent(env.Message)
}
