package room

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.POST("", h.createRoom)
		rooms.POST("/join", h.joinRoom)
		rooms.POST("/:id/close", h.closeRoom)
		rooms.GET("/code/:code", h.getRoomByCode)
		rooms.GET("/code/:code/queue", h.getQueue)
		rooms.POST("/code/:code/tracks", h.addTrack)
		rooms.DELETE("/code/:code/tracks/:roomTrackId", h.removeTrack)
		rooms.POST("/code/:code/votes", h.castVote)
		rooms.POST("/code/:code/advance", h.advance)
		rooms.GET("/code/:code/now-playing", h.nowPlaying)
	}
}

// StatusCode maps a service error kind to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrResourceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	message := "internal error"
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		message = serviceErr.Message()
	}
	c.JSON(StatusCode(err), gin.H{"error": message})
}

// userID reads the identity set by the auth middleware.
func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return uuid.Nil, false
	}
	return id, true
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), req.Name, user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *Handler) getRoomByCode(c *gin.Context) {
	room, err := h.service.GetRoomByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

type JoinRoomRequest struct {
	Code string `json:"code" binding:"required,min=4,max=12"`
}

func (h *Handler) joinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	membership, err := h.service.JoinRoom(c.Request.Context(), req.Code, user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, membership)
}

func (h *Handler) closeRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	if err := h.service.CloseRoom(c.Request.Context(), roomID, user); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "is_active": false})
}

func (h *Handler) getQueue(c *gin.Context) {
	entries, err := h.service.GetQueue(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

type AddTrackRequest struct {
	TrackID string `json:"track_id" binding:"required"`
}

func (h *Handler) addTrack(c *gin.Context) {
	var req AddTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	entries, err := h.service.AddTrack(c.Request.Context(), c.Param("code"), req.TrackID, user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) removeTrack(c *gin.Context) {
	roomTrackID, err := uuid.Parse(c.Param("roomTrackId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room track id"})
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	entries, err := h.service.RemoveTrack(c.Request.Context(), c.Param("code"), roomTrackID, user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

type VoteRequest struct {
	RoomTrackID uuid.UUID `json:"room_track_id" binding:"required"`
	Value       int       `json:"value"`
}

func (h *Handler) castVote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := userID(c)
	if !ok {
		return
	}

	entries, err := h.service.CastVote(c.Request.Context(), c.Param("code"), req.RoomTrackID, req.Value, user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) advance(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	state, err := h.service.Advance(c.Request.Context(), c.Param("code"), user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// nowPlaying answers 200 with a null body when nothing is playing.
func (h *Handler) nowPlaying(c *gin.Context) {
	entry, err := h.service.NowPlaying(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}
