package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/models"
)

func TestGenerateCodeUsesUnambiguousAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected rune %q", r)
		}
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
	}
}

func TestCreateGuest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user, err := env.service.CreateGuest(ctx, "  DJ Ana  ")
	require.NoError(t, err)
	assert.Equal(t, "DJ Ana", user.DisplayName)
	assert.NotEqual(t, uuid.Nil, user.ID)

	anonymous, err := env.service.CreateGuest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Guest", anonymous.DisplayName)

	_, err = env.service.CreateGuest(ctx, strings.Repeat("x", 65))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.CreateGuest(ctx, strings.Repeat("é", 64))
	assert.NoError(t, err)
}

func TestCreateRoomAddsHostMembership(t *testing.T) {
	env := newTestEnv(t, sequenceCodes("ABC234"))
	host := env.guest(t, "host")

	room, err := env.service.CreateRoom(context.Background(), "  Friday night ", host)
	require.NoError(t, err)
	assert.Equal(t, "ABC234", room.Code)
	require.NotNil(t, room.Name)
	assert.Equal(t, "Friday night", *room.Name)
	assert.True(t, room.IsActive)
	assert.Equal(t, host, room.HostUserID)
	assert.Equal(t, env.clock.Now(), room.CreatedAt)

	var member models.RoomMember
	require.NoError(t, env.db.Where("room_id = ? AND user_id = ?", room.ID, host).Take(&member).Error)
	assert.Equal(t, models.RoleHost, member.Role)

	assert.Equal(t, []events.EventType{events.EventTypeRoomCreated}, env.publisher.types())
}

func TestCreateRoomWithoutName(t *testing.T) {
	env := newTestEnv(t, nil)
	host := env.guest(t, "host")

	room, err := env.service.CreateRoom(context.Background(), "   ", host)
	require.NoError(t, err)
	assert.Nil(t, room.Name)

	var stored models.Room
	require.NoError(t, env.db.Where("id = ?", room.ID).Take(&stored).Error)
	assert.Nil(t, stored.Name)
	assert.Equal(t, room.Code, stored.Code)
}

func TestCreateRoomRejectsLongName(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.service.CreateRoom(context.Background(), strings.Repeat("n", 101), uuid.New())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateRoomRetriesCodeCollision(t *testing.T) {
	env := newTestEnv(t, sequenceCodes("ABC234", "ABC234", "ABC234", "XYZ789"))
	host := env.guest(t, "host")

	first, err := env.service.CreateRoom(context.Background(), "one", host)
	require.NoError(t, err)
	assert.Equal(t, "ABC234", first.Code)

	second, err := env.service.CreateRoom(context.Background(), "two", host)
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", second.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.Room{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var members int64
	require.NoError(t, env.db.Model(&models.RoomMember{}).Count(&members).Error)
	assert.Equal(t, int64(2), members, "failed attempts must not leave memberships behind")
}

func TestCreateRoomExhaustsCodeAttempts(t *testing.T) {
	env := newTestEnv(t, sequenceCodes("ABC234"))
	host := env.guest(t, "host")
	env.room(t, host)

	_, err := env.service.CreateRoom(context.Background(), "again", host)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "room.create_room.code_attempts_exhausted", serviceErr.Code())
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	host := env.guest(t, "host")
	guest := env.guest(t, "guest")
	room := env.room(t, host)
	ctx := context.Background()

	membership, err := env.service.JoinRoom(ctx, strings.ToLower(room.Code), guest)
	require.NoError(t, err)
	assert.Equal(t, room.ID, membership.RoomID)
	assert.Equal(t, guest, membership.UserID)

	again, err := env.service.JoinRoom(ctx, " "+room.Code+" ", guest)
	require.NoError(t, err)
	assert.Equal(t, membership, again)

	// The host joining their own room keeps the host role.
	_, err = env.service.JoinRoom(ctx, room.Code, host)
	require.NoError(t, err)

	var members []models.RoomMember
	require.NoError(t, env.db.Where("room_id = ?", room.ID).Order("role").Find(&members).Error)
	require.Len(t, members, 2)
	assert.Equal(t, models.RoleGuest, members[0].Role)
	assert.Equal(t, models.RoleHost, members[1].Role)

	joined := 0
	for _, eventType := range env.publisher.types() {
		if eventType == events.EventTypeUserJoined {
			joined++
		}
	}
	assert.Equal(t, 1, joined)
}

func TestConcurrentJoinsCreateOneMembership(t *testing.T) {
	env := newConcurrencyEnv(t)
	host := env.guest(t, "host")
	guest := env.guest(t, "guest")
	room := env.room(t, host)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.JoinRoom(context.Background(), room.Code, guest)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	var count int64
	require.NoError(t, env.db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", room.ID, guest).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestJoinRoomNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.service.JoinRoom(context.Background(), "NOPE22", uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseRoom(t *testing.T) {
	env := newTestEnv(t, nil)
	host := env.guest(t, "host")
	guest := env.guest(t, "guest")
	room := env.room(t, host)
	ctx := context.Background()

	err := env.service.CloseRoom(ctx, room.ID, guest)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, env.service.CloseRoom(ctx, room.ID, host))
	require.NoError(t, env.service.CloseRoom(ctx, room.ID, host))

	var stored models.Room
	require.NoError(t, env.db.Where("id = ?", room.ID).Take(&stored).Error)
	assert.False(t, stored.IsActive)

	_, err = env.service.JoinRoom(ctx, room.Code, guest)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.service.GetRoomByCode(ctx, room.Code)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.service.AddTrack(ctx, room.Code, "mock:track:1", guest)
	assert.ErrorIs(t, err, ErrNotFound)

	err = env.service.CloseRoom(ctx, uuid.New(), host)
	assert.ErrorIs(t, err, ErrNotFound)

	update, ok := env.broadcaster.last(room.Code)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeRoomClosed, update.Type)
}

func TestGetRoomByCode(t *testing.T) {
	env := newTestEnv(t, nil)
	host := env.guest(t, "host")
	room := env.room(t, host)

	found, err := env.service.GetRoomByCode(context.Background(), strings.ToLower(room.Code))
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)
}
