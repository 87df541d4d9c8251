package room

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/pkg/database"
	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/models"
)

// errAlreadyQueued rolls back an insert that lost the race for the queued
// guard key.
var errAlreadyQueued = errors.New("track already queued")

// GetQueue returns the ranked queue of the active room with code.
func (s *Service) GetQueue(ctx context.Context, code string) ([]queue.Entry, error) {
	room, err := activeRoom(ctx, s.db, opGetQueue, code, false)
	if err != nil {
		return nil, err
	}

	entries, err := queue.Load(ctx, s.db, room, s.now())
	if err != nil {
		err = internal(opGetQueue, "queue_load_failed", err)
		s.logError(opGetQueue, err, zap.String("room_code", room.Code))
		return nil, err
	}
	return entries, nil
}

// AddTrack queues trackID in the room. A track that is already queued in the
// room is left alone, including when two callers race to add it, and the
// call still returns the current queue.
func (s *Service) AddTrack(ctx context.Context, code string, trackID string, userID uuid.UUID) ([]queue.Entry, error) {
	var room *models.Room
	var roomTrack *models.RoomTrack
	var inserted bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		room, err = activeRoom(ctx, tx, opAddTrack, code, false)
		if err != nil {
			return err
		}

		var track models.Track
		err = tx.Where("id = ?", trackID).Take(&track).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(opAddTrack, "track_not_found", "track not found")
		}
		if err != nil {
			return internal(opAddTrack, "track_select_failed", err)
		}

		roomTrack = models.NewQueuedRoomTrack(room.ID, track.ID, userID, s.now())
		result := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(roomTrack)
		if result.Error != nil {
			if database.IsUniqueViolation(result.Error) {
				return errAlreadyQueued
			}
			if database.IsForeignKeyViolation(result.Error) {
				return userNotFound(opAddTrack)
			}
			return internal(opAddTrack, "room_track_insert_failed", result.Error)
		}
		inserted = result.RowsAffected > 0
		return nil
	})
	if errors.Is(err, errAlreadyQueued) {
		err = nil
	}
	if err != nil {
		err = passThrough(opAddTrack, "transaction_failed", err)
		s.logError(opAddTrack, err, zap.String("track_id", trackID))
		return nil, err
	}

	entries, err := queue.Load(ctx, s.db, room, s.now())
	if err != nil {
		err = internal(opAddTrack, "queue_load_failed", err)
		s.logError(opAddTrack, err, zap.String("room_code", room.Code))
		return nil, err
	}

	if inserted {
		s.notify(ctx, events.EventTypeTrackAdded, room, userID, events.TrackAddedPayload{
			RoomTrackID: roomTrack.ID.String(),
			TrackID:     roomTrack.TrackID,
			Inserted:    true,
		}, queueUpdate(entries))
	}
	return entries, nil
}

// RemoveTrack takes a queued track out of the room. The host may remove any
// track; guests only the ones they added.
func (s *Service) RemoveTrack(ctx context.Context, code string, roomTrackID uuid.UUID, userID uuid.UUID) ([]queue.Entry, error) {
	var room *models.Room
	var entries []queue.Entry

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		room, err = activeRoom(ctx, tx, opRemoveTrack, code, true)
		if err != nil {
			return err
		}

		roomTrack, err := queuedRoomTrack(ctx, tx, opRemoveTrack, room.ID, roomTrackID)
		if err != nil {
			return err
		}
		if userID != room.HostUserID && userID != roomTrack.AddedByUserID {
			return forbidden(opRemoveTrack, "not_owner", "only the host or the guest who added the track can remove it")
		}

		if err := transition(tx, opRemoveTrack, roomTrack, models.StatusRemoved); err != nil {
			return err
		}

		entries, err = queue.Load(ctx, tx, room, s.now())
		if err != nil {
			return internal(opRemoveTrack, "queue_load_failed", err)
		}
		return nil
	})
	if err != nil {
		err = passThrough(opRemoveTrack, "transaction_failed", err)
		s.logError(opRemoveTrack, err, zap.String("room_track_id", roomTrackID.String()))
		return nil, err
	}

	s.notify(ctx, events.EventTypeTrackRemoved, room, userID,
		events.TrackRemovedPayload{RoomTrackID: roomTrackID.String()}, queueUpdate(entries))
	return entries, nil
}

// queuedRoomTrack loads roomTrackID only if it belongs to roomID and is queued.
func queuedRoomTrack(ctx context.Context, tx *gorm.DB, operation string, roomID, roomTrackID uuid.UUID) (*models.RoomTrack, error) {
	var roomTrack models.RoomTrack
	err := tx.WithContext(ctx).
		Where("id = ? AND room_id = ? AND status = ?", roomTrackID, roomID, models.StatusQueued).
		Take(&roomTrack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(operation, "room_track_not_found", "track not in this room or not queued")
	}
	if err != nil {
		return nil, internal(operation, "room_track_select_failed", err)
	}
	return &roomTrack, nil
}

// transition moves roomTrack to next. The update is guarded by the current
// status so a concurrent writer that already moved the row makes it fail.
func transition(tx *gorm.DB, operation string, roomTrack *models.RoomTrack, next models.TrackStatus) error {
	updates, err := roomTrack.Status.TransitionUpdates(next)
	if err != nil {
		return internal(operation, "invalid_transition", err)
	}

	result := tx.Model(&models.RoomTrack{}).
		Where("id = ? AND status = ?", roomTrack.ID, roomTrack.Status).
		Updates(updates)
	if result.Error != nil {
		return internal(operation, "status_update_failed", result.Error)
	}
	if result.RowsAffected != 1 {
		return newError(ErrConflict, operation, "status_changed", "track status changed concurrently", nil)
	}
	roomTrack.Status = next
	if next != models.StatusQueued {
		roomTrack.QueuedKey = nil
	}
	return nil
}
