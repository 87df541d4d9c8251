package room

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/models"
)

var lockForUpdate = clause.Locking{Strength: "UPDATE"}

// PlaybackState is the result of advancing playback.
type PlaybackState struct {
	NowPlaying *queue.Entry  `json:"now_playing"`
	Queue      []queue.Entry `json:"queue"`
}

// Advance retires the playing track and promotes the head of the queue.
// Only the host may advance. The room row stays locked until commit, so two
// concurrent advances on one room run one after the other.
func (s *Service) Advance(ctx context.Context, code string, userID uuid.UUID) (*PlaybackState, error) {
	var room *models.Room
	var playedID uuid.UUID
	state := &PlaybackState{Queue: []queue.Entry{}}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		room, err = activeRoom(ctx, tx, opAdvance, code, true)
		if err != nil {
			return err
		}
		if room.HostUserID != userID {
			return forbidden(opAdvance, "not_host", "only the host can advance playback")
		}

		var current models.RoomTrack
		err = tx.Where("room_id = ? AND status = ?", room.ID, models.StatusPlaying).
			Order("created_at DESC").
			Take(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return internal(opAdvance, "playing_select_failed", err)
		default:
			if err := transition(tx, opAdvance, &current, models.StatusPlayed); err != nil {
				return err
			}
			playedID = current.ID
		}

		entries, err := queue.Load(ctx, tx, room, s.now())
		if err != nil {
			return internal(opAdvance, "queue_load_failed", err)
		}
		if len(entries) == 0 {
			return nil
		}

		head := entries[0]
		next := &models.RoomTrack{ID: head.RoomTrackID, Status: head.Status}
		if err := transition(tx, opAdvance, next, models.StatusPlaying); err != nil {
			return err
		}
		head.Status = models.StatusPlaying
		state.NowPlaying = &head
		state.Queue = entries[1:]
		return nil
	})
	if err != nil {
		err = passThrough(opAdvance, "transaction_failed", err)
		s.logError(opAdvance, err, zap.String("room_code", NormalizeCode(code)))
		return nil, err
	}

	payload := events.PlaybackAdvancedPayload{}
	if playedID != uuid.Nil {
		payload.PlayedRoomTrackID = playedID.String()
	}
	if state.NowPlaying != nil {
		payload.PlayingRoomTrackID = state.NowPlaying.RoomTrackID.String()
		payload.TrackID = state.NowPlaying.TrackID
		payload.Title = state.NowPlaying.Title
		payload.Artist = state.NowPlaying.Artist
	}
	s.notify(ctx, events.EventTypePlaybackAdvance, room, userID, payload,
		&Update{NowPlaying: state.NowPlaying, Queue: state.Queue})
	return state, nil
}

// NowPlaying returns the playing entry of the room, scored the same way as
// the queue, or nil when nothing is playing.
func (s *Service) NowPlaying(ctx context.Context, code string) (*queue.Entry, error) {
	room, err := activeRoom(ctx, s.db, opNowPlaying, code, false)
	if err != nil {
		return nil, err
	}

	entry, err := queue.LoadPlaying(ctx, s.db, room, s.now())
	if err != nil {
		err = internal(opNowPlaying, "playing_load_failed", err)
		s.logError(opNowPlaying, err, zap.String("room_code", room.Code))
		return nil, err
	}
	return entry, nil
}
