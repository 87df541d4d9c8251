package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/party-queue/pkg/models"
)

const searchLimit = 20

var errMissingDatabase = errors.New("database handle is required")

// Service reads and writes the track catalog.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) (*Service, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}, nil
}

// likeEscaper makes user input match literally inside LIKE ... ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search returns up to 20 tracks whose title or artist contains query,
// ignoring case, ordered by title. A blank query browses the first 20 tracks.
func (s *Service) Search(ctx context.Context, query string) ([]models.Track, error) {
	tracks := []models.Track{}
	query = strings.TrimSpace(query)

	tx := s.db.WithContext(ctx)
	if query != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
		tx = tx.Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(artist) LIKE ? ESCAPE '!'", pattern, pattern)
	}
	err := tx.Order("title ASC").
		Limit(searchLimit).
		Find(&tracks).Error
	if err != nil {
		s.logger.Error("track search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	return tracks, nil
}

// Upsert inserts tracks, refreshing title, artist and duration of ids that
// already exist.
func (s *Service) Upsert(ctx context.Context, tracks []models.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "artist", "duration_ms"}),
		}).
		Create(&tracks).Error
	if err != nil {
		return fmt.Errorf("failed to upsert tracks: %w", err)
	}
	return nil
}
