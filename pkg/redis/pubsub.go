package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a client and checks the server answers.
func Connect(ctx context.Context, address, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		Password:    password,
		DB:          0,
		DialTimeout: 5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", address, err)
	}
	return client, nil
}

// RoomChannel is the Pub/Sub channel carrying a room's updates.
func RoomChannel(roomCode string) string {
	return "room:" + roomCode
}

// Broadcaster publishes room updates as JSON on the room's channel.
type Broadcaster struct {
	client *redis.Client
}

func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

func (b *Broadcaster) Broadcast(ctx context.Context, roomCode string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal room update: %w", err)
	}

	if err := b.client.Publish(ctx, RoomChannel(roomCode), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish room update: %w", err)
	}
	return nil
}

// Listen streams the payloads published on the room's channel until ctx is
// done or the returned close function is called.
func (b *Broadcaster) Listen(ctx context.Context, roomCode string) (<-chan string, func() error, error) {
	sub := b.client.Subscribe(ctx, RoomChannel(roomCode))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to room %s: %w", roomCode, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, sub.Close, nil
}
