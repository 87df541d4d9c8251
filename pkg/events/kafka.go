package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTypeRoomCreated     EventType = "room_created"
	EventTypeRoomClosed      EventType = "room_closed"
	EventTypeUserJoined      EventType = "user_joined"
	EventTypeTrackAdded      EventType = "track_added"
	EventTypeTrackRemoved    EventType = "track_removed"
	EventTypeTrackVoted      EventType = "track_voted"
	EventTypePlaybackAdvance EventType = "playback_advanced"
)

// DefaultTopic carries every room event, keyed by room id.
const DefaultTopic = "room-events"

type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id"`
	RoomCode  string          `json:"room_code"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewEvent(eventType EventType, roomID, roomCode, userID string, at time.Time, payload interface{}) (Event, error) {
	event := Event{
		Type:      eventType,
		RoomID:    roomID,
		RoomCode:  roomCode,
		UserID:    userID,
		Timestamp: at,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal payload: %w", err)
		}
		event.Payload = raw
	}
	return event, nil
}

// Publisher emits room events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type KafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaClient(brokers []string, topic string, groupID string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}

	client := &KafkaClient{writer: writer}
	if groupID != "" {
		client.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.LastOffset,
		})
	}
	return client
}

// Publish writes the event keyed by room id so a room's events stay ordered
// within one partition.
func (k *KafkaClient) Publish(ctx context.Context, event Event) error {
	messageJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RoomID),
		Value: messageJSON,
		Time:  event.Timestamp,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// ConsumeEvents blocks, passing every decoded event to handler until ctx is
// done or handler fails.
func (k *KafkaClient) ConsumeEvents(ctx context.Context, handler func(Event) error) error {
	if k.reader == nil {
		return fmt.Errorf("kafka client has no consumer group configured")
	}
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}

		if err := handler(event); err != nil {
			return fmt.Errorf("failed to handle event: %w", err)
		}
	}
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if k.reader != nil {
		if err := k.reader.Close(); err != nil {
			return fmt.Errorf("failed to close reader: %w", err)
		}
	}
	return nil
}

// Event payload types
type TrackAddedPayload struct {
	RoomTrackID string `json:"room_track_id"`
	TrackID     string `json:"track_id"`
	Inserted    bool   `json:"inserted"`
}

type TrackVotedPayload struct {
	RoomTrackID string `json:"room_track_id"`
	Value       int    `json:"value"`
}

type TrackRemovedPayload struct {
	RoomTrackID string `json:"room_track_id"`
}

type PlaybackAdvancedPayload struct {
	PlayedRoomTrackID  string `json:"played_room_track_id,omitempty"`
	PlayingRoomTrackID string `json:"playing_room_track_id,omitempty"`
	TrackID            string `json:"track_id,omitempty"`
	Title              string `json:"title,omitempty"`
	Artist             string `json:"artist,omitempty"`
}

type UserJoinedPayload struct {
	Role string `json:"role"`
}
