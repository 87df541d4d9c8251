package room

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/pkg/database"
	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 8, 29, 14, 20, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates map[string][]Update
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, roomCode string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updates == nil {
		b.updates = map[string][]Update{}
	}
	b.updates[roomCode] = append(b.updates[roomCode], message.(Update))
	return nil
}

func (b *recordingBroadcaster) last(roomCode string) (Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.updates[roomCode]
	if len(list) == 0 {
		return Update{}, false
	}
	return list[len(list)-1], true
}

type testEnv struct {
	service     *Service
	db          *gorm.DB
	clock       *fakeClock
	publisher   *recordingPublisher
	broadcaster *recordingBroadcaster
}

// Environment variables naming a shared server database for the concurrency
// tests, e.g. "postgres" and "host=localhost user=party dbname=party_test".
const (
	testDriverEnv = "PARTYQ_TEST_DATABASE_DRIVER"
	testDSNEnv    = "PARTYQ_TEST_DATABASE_DSN"
)

func newTestEnv(t *testing.T, codes func() (string, error)) *testEnv {
	t.Helper()
	return newTestEnvOn(t, database.DriverSQLite, filepath.Join(t.TempDir(), "room.db"), codes)
}

// newConcurrencyEnv uses the server database named by PARTYQ_TEST_DATABASE_DRIVER
// and PARTYQ_TEST_DATABASE_DSN when both are set, so transactions overlap across
// pooled connections and the unique indexes and row locks do the guarding.
// Otherwise it falls back to SQLite, whose single connection runs the
// transactions one at a time; there the tests only check that interleaved
// calls converge on the same state.
func newConcurrencyEnv(t *testing.T) *testEnv {
	t.Helper()
	driver, dsn := os.Getenv(testDriverEnv), os.Getenv(testDSNEnv)
	if driver == "" || dsn == "" {
		return newTestEnv(t, nil)
	}
	return newTestEnvOn(t, driver, dsn, nil)
}

func newTestEnvOn(t *testing.T, driver, dsn string, codes func() (string, error)) *testEnv {
	t.Helper()

	db, err := database.Open(driver, dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	tracks := []models.Track{
		{ID: "mock:track:1", Title: "Levitating", Artist: "Dua Lipa", DurationMs: 203000},
		{ID: "mock:track:2", Title: "Blinding Lights", Artist: "The Weeknd", DurationMs: 200000},
		{ID: "mock:track:3", Title: "Pepas", Artist: "Farruko", DurationMs: 269000},
		{ID: "mock:track:4", Title: "Anti-Hero", Artist: "Taylor Swift", DurationMs: 201000},
	}
	// A shared server database keeps the catalog between runs.
	require.NoError(t, db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tracks).Error)

	env := &testEnv{
		db:          db,
		clock:       newFakeClock(),
		publisher:   &recordingPublisher{},
		broadcaster: &recordingBroadcaster{},
	}
	service, err := NewService(ServiceConfig{
		Database:      db,
		Clock:         env.clock.Now,
		CodeGenerator: codes,
		Publisher:     env.publisher,
		Broadcaster:   env.broadcaster,
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)
	env.service = service
	return env
}

func (e *testEnv) guest(t *testing.T, name string) uuid.UUID {
	t.Helper()
	user, err := e.service.CreateGuest(context.Background(), name)
	require.NoError(t, err)
	return user.ID
}

func (e *testEnv) room(t *testing.T, host uuid.UUID) *models.Room {
	t.Helper()
	room, err := e.service.CreateRoom(context.Background(), "Friday night", host)
	require.NoError(t, err)
	return room
}

// add queues a track and steps the clock so creation order is unambiguous.
func (e *testEnv) add(t *testing.T, code, trackID string, user uuid.UUID) []queue.Entry {
	t.Helper()
	entries, err := e.service.AddTrack(context.Background(), code, trackID, user)
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	return entries
}

func sequenceCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	index := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[index%len(codes)]
		index++
		return code, nil
	}
}

func trackIDs(entries []queue.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.TrackID)
	}
	return out
}

func findEntry(entries []queue.Entry, trackID string) (queue.Entry, bool) {
	for _, entry := range entries {
		if entry.TrackID == trackID {
			return entry, true
		}
	}
	return queue.Entry{}, false
}
