package room

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/models"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// Broadcaster pushes room updates to realtime subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomCode string, message interface{}) error
}

// Update is the realtime snapshot sent to a room's subscribers.
type Update struct {
	Type       events.EventType `json:"type"`
	RoomCode   string           `json:"room_code"`
	NowPlaying *queue.Entry     `json:"now_playing,omitempty"`
	Queue      []queue.Entry    `json:"queue"`
}

type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	CodeGenerator func() (string, error)
	Publisher     events.Publisher
	Broadcaster   Broadcaster
	Logger        *zap.Logger
}

// Service is the room engine: lifecycle, queueing, voting and playback.
// It holds no room state of its own; every call reads and writes the store.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	newCode     func() (string, error)
	publisher   events.Publisher
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newCode := cfg.CodeGenerator
	if newCode == nil {
		newCode = GenerateCode
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		clock:       clock,
		newCode:     newCode,
		publisher:   publisher,
		broadcaster: cfg.Broadcaster,
		logger:      logger,
	}, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// NormalizeCode trims and upper-cases a room code as typed by a guest.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// activeRoom loads the active room for code. lock takes a row lock for the
// rest of the transaction (ignored by SQLite, which serializes writers).
func activeRoom(ctx context.Context, tx *gorm.DB, operation, code string, lock bool) (*models.Room, error) {
	query := tx.WithContext(ctx)
	if lock {
		query = query.Clauses(lockForUpdate)
	}

	var room models.Room
	err := query.Where("code = ? AND is_active = ?", NormalizeCode(code), true).Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(operation, "room_not_found", "room not found or inactive")
	}
	if err != nil {
		return nil, internal(operation, "room_select_failed", err)
	}
	return &room, nil
}

// notify publishes a domain event and a queue snapshot after a commit.
// Failures are logged; the committed operation still succeeds.
func (s *Service) notify(ctx context.Context, eventType events.EventType, room *models.Room, userID uuid.UUID, payload interface{}, update *Update) {
	event, err := events.NewEvent(eventType, room.ID.String(), room.Code, userID.String(), s.now(), payload)
	if err != nil {
		s.logger.Warn("failed to build room event", zap.String("event", string(eventType)), zap.Error(err))
	} else if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish room event",
			zap.String("event", string(eventType)),
			zap.String("room_code", room.Code),
			zap.Error(err))
	}

	if update == nil || s.broadcaster == nil {
		return
	}
	update.Type = eventType
	update.RoomCode = room.Code
	if err := s.broadcaster.Broadcast(ctx, room.Code, *update); err != nil {
		s.logger.Warn("failed to broadcast room update",
			zap.String("event", string(eventType)),
			zap.String("room_code", room.Code),
			zap.Error(err))
	}
}

func queueUpdate(entries []queue.Entry) *Update {
	return &Update{Queue: entries}
}

func (s *Service) logError(operation string, err error, fields ...zap.Field) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && !errors.Is(err, ErrInternal) {
		return
	}
	attrs := []zap.Field{zap.String("operation", operation), zap.Error(err)}
	attrs = append(attrs, fields...)
	s.logger.Error("room service error", attrs...)
}
