package room

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/pkg/database"
	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/models"
)

const (
	// CodeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6

	maxCodeAttempts      = 5
	maxRoomNameLength    = 100
	maxDisplayNameLength = 64
	defaultDisplayName   = "Guest"
)

// GenerateCode returns a random room code drawn from CodeAlphabet.
func GenerateCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(CodeAlphabet)))
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code[i] = CodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// CreateGuest registers a new guest identity.
func (s *Service) CreateGuest(ctx context.Context, displayName string) (*models.User, error) {
	name := strings.TrimSpace(displayName)
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return nil, validationError(opCreateGuest, "name_too_long",
			fmt.Sprintf("display name must be at most %d characters", maxDisplayNameLength))
	}
	if name == "" {
		name = defaultDisplayName
	}

	user := &models.User{
		ID:          uuid.New(),
		DisplayName: name,
		CreatedAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, newError(ErrConflict, opCreateGuest, "duplicate_user", "user already exists", err)
		}
		err = internal(opCreateGuest, "user_insert_failed", err)
		s.logError(opCreateGuest, err)
		return nil, err
	}
	return user, nil
}

// CreateRoom creates a room hosted by hostUserID together with the host's
// membership. Each attempt runs in its own transaction so a code collision
// can be retried with a fresh code.
func (s *Service) CreateRoom(ctx context.Context, name string, hostUserID uuid.UUID) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return nil, validationError(opCreateRoom, "name_too_long",
			fmt.Sprintf("room name must be at most %d characters", maxRoomNameLength))
	}
	var roomName *string
	if name != "" {
		roomName = &name
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			err = internal(opCreateRoom, "code_generation_failed", err)
			s.logError(opCreateRoom, err)
			return nil, err
		}

		now := s.now()
		room := &models.Room{
			ID:         uuid.New(),
			Code:       code,
			Name:       roomName,
			HostUserID: hostUserID,
			IsActive:   true,
			CreatedAt:  now,
		}
		member := &models.RoomMember{
			RoomID:   room.ID,
			UserID:   hostUserID,
			Role:     models.RoleHost,
			JoinedAt: now,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
				return err
			}
			return tx.Omit(clause.Associations).Create(member).Error
		})
		if err == nil {
			s.notify(ctx, events.EventTypeRoomCreated, room, hostUserID, nil, nil)
			return room, nil
		}
		if database.IsForeignKeyViolation(err) {
			err = userNotFound(opCreateRoom)
			s.logError(opCreateRoom, err, zap.String("host_user_id", hostUserID.String()))
			return nil, err
		}
		if !database.IsUniqueViolation(err) {
			err = internal(opCreateRoom, "room_insert_failed", err)
			s.logError(opCreateRoom, err, zap.String("host_user_id", hostUserID.String()))
			return nil, err
		}
		s.logger.Debug("room code collision", zap.String("code", code), zap.Int("attempt", attempt))
	}

	err := newError(ErrResourceExhausted, opCreateRoom, "code_attempts_exhausted",
		"could not generate a unique room code", nil)
	s.logError(opCreateRoom, err)
	return nil, err
}

// GetRoomByCode returns the active room for code.
func (s *Service) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	room, err := activeRoom(ctx, s.db, opGetRoom, code, false)
	if err != nil {
		s.logError(opGetRoom, err)
		return nil, err
	}
	return room, nil
}

// Membership is the result of joining a room.
type Membership struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}

// JoinRoom adds userID to the room as a guest. Joining twice is a no-op.
func (s *Service) JoinRoom(ctx context.Context, code string, userID uuid.UUID) (*Membership, error) {
	var room *models.Room
	var inserted bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		room, err = activeRoom(ctx, tx, opJoinRoom, code, false)
		if err != nil {
			return err
		}

		member := &models.RoomMember{
			RoomID:   room.ID,
			UserID:   userID,
			Role:     models.RoleGuest,
			JoinedAt: s.now(),
		}
		result := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(member)
		if result.Error != nil {
			if database.IsForeignKeyViolation(result.Error) {
				return userNotFound(opJoinRoom)
			}
			return internal(opJoinRoom, "member_insert_failed", result.Error)
		}
		inserted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		err = passThrough(opJoinRoom, "transaction_failed", err)
		s.logError(opJoinRoom, err, zap.String("user_id", userID.String()))
		return nil, err
	}

	if inserted {
		s.notify(ctx, events.EventTypeUserJoined, room, userID, events.UserJoinedPayload{Role: models.RoleGuest}, nil)
	}
	return &Membership{RoomID: room.ID, UserID: userID}, nil
}

// CloseRoom deactivates a room. Only the host may close it, and a closed
// room is never reopened.
func (s *Service) CloseRoom(ctx context.Context, roomID uuid.UUID, userID uuid.UUID) error {
	var room models.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(lockForUpdate).Where("id = ?", roomID).Take(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(opCloseRoom, "room_not_found", "room not found")
		}
		if err != nil {
			return internal(opCloseRoom, "room_select_failed", err)
		}
		if room.HostUserID != userID {
			return forbidden(opCloseRoom, "not_host", "only the host can close the room")
		}
		if !room.IsActive {
			return nil
		}
		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).Update("is_active", false).Error; err != nil {
			return internal(opCloseRoom, "room_update_failed", err)
		}
		room.IsActive = false
		return nil
	})
	if err != nil {
		err = passThrough(opCloseRoom, "transaction_failed", err)
		s.logError(opCloseRoom, err, zap.String("room_id", roomID.String()))
		return err
	}

	s.notify(ctx, events.EventTypeRoomClosed, &room, userID, nil, queueUpdate([]queue.Entry{}))
	return nil
}
