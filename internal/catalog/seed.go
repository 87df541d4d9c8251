package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/party-queue/pkg/models"
)

// SampleTracks is the built-in demo catalog.
var SampleTracks = []models.Track{
	{ID: "mock:track:1", Title: "Levitating", Artist: "Dua Lipa", DurationMs: 203000},
	{ID: "mock:track:2", Title: "Blinding Lights", Artist: "The Weeknd", DurationMs: 200000},
	{ID: "mock:track:3", Title: "Pepas", Artist: "Farruko", DurationMs: 269000},
	{ID: "mock:track:4", Title: "Titi Me Preguntó", Artist: "Bad Bunny", DurationMs: 240000},
	{ID: "mock:track:5", Title: "Anti-Hero", Artist: "Taylor Swift", DurationMs: 201000},
	{ID: "mock:track:6", Title: "As It Was", Artist: "Harry Styles", DurationMs: 168000},
	{ID: "mock:track:7", Title: "Dance Monkey", Artist: "Tones and I", DurationMs: 209000},
	{ID: "mock:track:8", Title: "Happier Than Ever", Artist: "Billie Eilish", DurationMs: 298000},
	{ID: "mock:track:9", Title: "bad guy", Artist: "Billie Eilish", DurationMs: 194000},
	{ID: "mock:track:10", Title: "One Kiss", Artist: "Calvin Harris & Dua Lipa", DurationMs: 213000},
}

// Seed inserts SampleTracks when the catalog is empty and reports how many
// tracks it added.
func (s *Service) Seed(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Track{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	if count > 0 {
		s.logger.Info("catalog already seeded", zap.Int64("tracks", count))
		return 0, nil
	}

	tracks := make([]models.Track, len(SampleTracks))
	copy(tracks, SampleTracks)
	if err := s.db.WithContext(ctx).Create(&tracks).Error; err != nil {
		return 0, fmt.Errorf("failed to seed tracks: %w", err)
	}
	s.logger.Info("catalog seeded", zap.Int("tracks", len(tracks)))
	return len(tracks), nil
}
