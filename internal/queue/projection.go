package queue

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/party-queue/pkg/models"
)

// Entry is one ranked item of a room's queue.
type Entry struct {
	RoomTrackID   uuid.UUID          `json:"room_track_id"`
	TrackID       string             `json:"track_id"`
	Title         string             `json:"title"`
	Artist        string             `json:"artist"`
	DurationMs    int                `json:"duration_ms"`
	Votes         int                `json:"votes"`
	Score         float64            `json:"score"`
	Status        models.TrackStatus `json:"status"`
	AddedByUserID uuid.UUID          `json:"added_by_user_id"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Row is the raw joined record a projection is computed from.
type Row struct {
	RoomTrackID   uuid.UUID
	TrackID       string
	Title         string
	Artist        string
	DurationMs    int
	Votes         int
	Status        models.TrackStatus
	AddedByUserID uuid.UUID
	CreatedAt     time.Time
}

const rowColumns = `rt.id AS room_track_id,
	t.id AS track_id,
	t.title AS title,
	t.artist AS artist,
	t.duration_ms AS duration_ms,
	COALESCE(vs.votes, 0) AS votes,
	rt.status AS status,
	rt.added_by_user_id AS added_by_user_id,
	rt.created_at AS created_at`

const votesSubquery = `LEFT JOIN (
	SELECT room_track_id, SUM(value) AS votes
	FROM votes
	GROUP BY room_track_id
) vs ON vs.room_track_id = rt.id`

// Load returns the ranked queue of room, read through db (which may be a
// transaction). The result is never cached and is empty, not nil, when
// nothing is queued.
func Load(ctx context.Context, db *gorm.DB, room *models.Room, now time.Time) ([]Entry, error) {
	rows, err := loadRows(ctx, db, room.ID, models.StatusQueued, "rt.created_at ASC")
	if err != nil {
		return nil, err
	}
	return Rank(rows, room.HostUserID, now), nil
}

// LoadPlaying returns the most recently created playing entry of room, or nil.
func LoadPlaying(ctx context.Context, db *gorm.DB, room *models.Room, now time.Time) (*Entry, error) {
	rows, err := loadRows(ctx, db, room.ID, models.StatusPlaying, "rt.created_at DESC")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	entry := toEntry(rows[0], room.HostUserID, now)
	return &entry, nil
}

func loadRows(ctx context.Context, db *gorm.DB, roomID uuid.UUID, status models.TrackStatus, order string) ([]Row, error) {
	var rows []Row
	err := db.WithContext(ctx).
		Table("room_tracks AS rt").
		Select(rowColumns).
		Joins("JOIN tracks t ON t.id = rt.track_id").
		Joins(votesSubquery).
		Where("rt.room_id = ? AND rt.status = ?", roomID, status).
		Order(order).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Rank scores rows and orders them by score descending. Rows must arrive in
// creation order; the stable sort keeps earlier tracks first on equal scores.
func Rank(rows []Row, hostUserID uuid.UUID, now time.Time) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toEntry(row, hostUserID, now))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

func toEntry(row Row, hostUserID uuid.UUID, now time.Time) Entry {
	isHostAdd := row.AddedByUserID == hostUserID
	return Entry{
		RoomTrackID:   row.RoomTrackID,
		TrackID:       row.TrackID,
		Title:         row.Title,
		Artist:        row.Artist,
		DurationMs:    row.DurationMs,
		Votes:         row.Votes,
		Score:         Score(row.CreatedAt, row.Votes, isHostAdd, now),
		Status:        row.Status,
		AddedByUserID: row.AddedByUserID,
		CreatedAt:     row.CreatedAt,
	}
}
