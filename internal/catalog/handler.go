package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tracks/search", h.search)
}

// search accepts q, or artist_or_title for older clients.
func (h *Handler) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		query = c.Query("artist_or_title")
	}

	tracks, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, tracks)
}
