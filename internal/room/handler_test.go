package room

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/pkg/models"
)

func newTestRouter(env *testEnv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("user_id", id)
		}
		c.Next()
	})
	NewHandler(env.service).RegisterRoutes(api)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, user uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{validationError(opCastVote, "invalid_value", "bad"), http.StatusBadRequest},
		{notFound(opGetRoom, "room_not_found", "missing"), http.StatusNotFound},
		{forbidden(opAdvance, "not_host", "no"), http.StatusForbidden},
		{newError(ErrConflict, opCreateGuest, "duplicate_user", "dup", nil), http.StatusConflict},
		{newError(ErrResourceExhausted, opCreateRoom, "code_attempts_exhausted", "busy", nil), http.StatusServiceUnavailable},
		{internal(opGetQueue, "queue_load_failed", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCode(tc.err), tc.err.Error())
	}
}

func TestHandlerRoomFlow(t *testing.T) {
	env := newTestEnv(t, sequenceCodes("PARTY2"))
	router := newTestRouter(env)
	host := env.guest(t, "host")
	guest := env.guest(t, "guest")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/rooms", host, gin.H{"name": "Rooftop"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var room models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
	assert.Equal(t, "PARTY2", room.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/join", guest, gin.H{"code": "party2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var membership Membership
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &membership))
	assert.Equal(t, room.ID, membership.RoomID)
	assert.Equal(t, guest, membership.UserID)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/code/PARTY2/tracks", guest, gin.H{"track_id": "mock:track:1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entries []queue.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/code/PARTY2/votes", guest,
		gin.H{"room_track_id": entries[0].RoomTrackID, "value": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Equal(t, 1, entries[0].Votes)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/rooms/code/PARTY2/now-playing", guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/code/PARTY2/advance", guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/code/PARTY2/advance", host, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state PlaybackState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.NotNil(t, state.NowPlaying)
	assert.Equal(t, "mock:track:1", state.NowPlaying.TrackID)
	assert.Equal(t, models.StatusPlaying, state.NowPlaying.Status)
	assert.Empty(t, state.Queue)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/rooms/code/PARTY2/queue", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/rooms/%s/close", room.ID), guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/rooms/%s/close", room.ID), host, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/rooms/code/PARTY2", guest, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"room not found or inactive"}`, rec.Body.String())
}

func TestHandlerRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newTestRouter(env)
	host := env.guest(t, "host")
	room := env.room(t, host)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/rooms/join", host, gin.H{"code": "ABC"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/join", host, gin.H{"code": "ABCDEFGHIJKLM"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/code/"+room.Code+"/votes", host,
		gin.H{"room_track_id": uuid.New(), "value": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/code/"+room.Code+"/tracks", host, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/code/"+room.Code+"/tracks", host, gin.H{"track_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/code/"+room.Code+"/tracks/not-a-uuid", host, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms/not-a-uuid/close", host, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/rooms", uuid.Nil, gin.H{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCodeExhaustion(t *testing.T) {
	env := newTestEnv(t, sequenceCodes("SAME22"))
	router := newTestRouter(env)
	host := env.guest(t, "host")
	env.room(t, host)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/rooms", host, gin.H{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
