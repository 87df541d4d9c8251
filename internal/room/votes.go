package room

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/pkg/database"
	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/models"
)

// CastVote records userID's vote on a queued track. Voting again replaces
// the earlier value; there is no way to withdraw a vote.
func (s *Service) CastVote(ctx context.Context, code string, roomTrackID uuid.UUID, value int, userID uuid.UUID) ([]queue.Entry, error) {
	if value != 1 && value != -1 {
		return nil, validationError(opCastVote, "invalid_value", "value must be +1 or -1")
	}

	var room *models.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		room, err = activeRoom(ctx, tx, opCastVote, code, false)
		if err != nil {
			return err
		}
		if _, err := queuedRoomTrack(ctx, tx, opCastVote, room.ID, roomTrackID); err != nil {
			return err
		}

		now := s.now()
		vote := &models.Vote{
			ID:          uuid.New(),
			RoomTrackID: roomTrackID,
			UserID:      userID,
			Value:       value,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "room_track_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).
			Create(vote).Error
		if database.IsForeignKeyViolation(err) {
			return userNotFound(opCastVote)
		}
		if err != nil {
			return internal(opCastVote, "vote_upsert_failed", err)
		}
		return nil
	})
	if err != nil {
		err = passThrough(opCastVote, "transaction_failed", err)
		s.logError(opCastVote, err, zap.String("room_track_id", roomTrackID.String()))
		return nil, err
	}

	entries, err := queue.Load(ctx, s.db, room, s.now())
	if err != nil {
		err = internal(opCastVote, "queue_load_failed", err)
		s.logError(opCastVote, err, zap.String("room_code", room.Code))
		return nil, err
	}

	s.notify(ctx, events.EventTypeTrackVoted, room, userID,
		events.TrackVotedPayload{RoomTrackID: roomTrackID.String(), Value: value}, queueUpdate(entries))
	return entries, nil
}
