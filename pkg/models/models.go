package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleHost  = "host"
	RoleGuest = "guest"

	DefaultTrackDurationMs = 180_000
)

type User struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"size:64;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

type Room struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Code       string    `json:"code" gorm:"size:12;not null;uniqueIndex"`
	Name       *string   `json:"name" gorm:"size:100"`
	HostUserID uuid.UUID `json:"host_user_id" gorm:"type:char(36);not null;index"`
	Host       User      `json:"-" gorm:"foreignKey:HostUserID"`
	IsActive   bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
}

type RoomMember struct {
	RoomID   uuid.UUID `json:"room_id" gorm:"type:char(36);primaryKey;index"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:char(36);primaryKey;index"`
	Room     Room      `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	User     User      `json:"-"`
	Role     string    `json:"role" gorm:"size:16;not null;default:guest"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`
}

// Track is catalog reference data; ids are either "mock:track:N" or Spotify track URIs.
type Track struct {
	ID         string `json:"id" gorm:"size:64;primaryKey"`
	Title      string `json:"title" gorm:"not null;index"`
	Artist     string `json:"artist" gorm:"not null;index"`
	DurationMs int    `json:"duration_ms" gorm:"not null;default:180000"`
}

// RoomTrack is one track's instance inside a room queue.
//
// QueuedKey mirrors TrackID while the row is queued and is NULL afterwards.
// The unique index on (room_id, queued_key) therefore allows at most one
// queued row per track per room, on every supported database.
type RoomTrack struct {
	ID            uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	RoomID        uuid.UUID   `json:"room_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_room_tracks_queued,priority:1"`
	Room          Room        `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	TrackID       string      `json:"track_id" gorm:"size:64;not null;index"`
	Track         Track       `json:"-"`
	AddedByUserID uuid.UUID   `json:"added_by_user_id" gorm:"type:char(36);not null"`
	AddedBy       User        `json:"-" gorm:"foreignKey:AddedByUserID"`
	Status        TrackStatus `json:"status" gorm:"size:16;not null;default:queued;index"`
	QueuedKey     *string     `json:"-" gorm:"size:64;uniqueIndex:ux_room_tracks_queued,priority:2"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewQueuedRoomTrack builds a RoomTrack in the queued state with its guard key set.
func NewQueuedRoomTrack(roomID uuid.UUID, trackID string, addedBy uuid.UUID, createdAt time.Time) *RoomTrack {
	key := trackID
	return &RoomTrack{
		ID:            uuid.New(),
		RoomID:        roomID,
		TrackID:       trackID,
		AddedByUserID: addedBy,
		Status:        StatusQueued,
		QueuedKey:     &key,
		CreatedAt:     createdAt,
	}
}

type Vote struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	RoomTrackID uuid.UUID `json:"room_track_id" gorm:"type:char(36);not null;uniqueIndex:uq_vote_per_user_per_track,priority:1"`
	RoomTrack   RoomTrack `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index;uniqueIndex:uq_vote_per_user_per_track,priority:2"`
	User        User      `json:"-"`
	Value       int       `json:"value" gorm:"not null"` // 1 for upvote, -1 for downvote
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// All lists every persisted model in dependency order, for migrations.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Room{},
		&RoomMember{},
		&Track{},
		&RoomTrack{},
		&Vote{},
	}
}
