package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/party-queue/internal/spotify"
	"github.com/party-queue/pkg/models"
)

// TrackSearcher finds tracks in an external catalog.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.Track, error)
}

// Importer copies search results from Spotify into the local catalog.
type Importer struct {
	catalog  *Service
	searcher TrackSearcher
}

func NewImporter(catalog *Service, searcher TrackSearcher) *Importer {
	return &Importer{catalog: catalog, searcher: searcher}
}

// SpotifyTrackID is the catalog id of a Spotify track.
func SpotifyTrackID(id string) string {
	return "spotify:track:" + id
}

// Import searches Spotify for query and upserts up to limit results.
func (i *Importer) Import(ctx context.Context, query string, limit int) ([]models.Track, error) {
	found, err := i.searcher.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search spotify: %w", err)
	}

	tracks := make([]models.Track, 0, len(found))
	for _, track := range found {
		if track.ID == "" || track.Name == "" {
			continue
		}
		duration := track.Duration
		if duration <= 0 {
			duration = models.DefaultTrackDurationMs
		}
		tracks = append(tracks, models.Track{
			ID:         SpotifyTrackID(track.ID),
			Title:      track.Name,
			Artist:     track.ArtistNames(),
			DurationMs: duration,
		})
	}

	if err := i.catalog.Upsert(ctx, tracks); err != nil {
		return nil, err
	}
	i.catalog.logger.Info("imported spotify tracks", zap.String("query", query), zap.Int("tracks", len(tracks)))
	return tracks, nil
}
