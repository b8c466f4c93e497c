// Package messages exposes the passive viewer surface: message listing that
// never marks anything read. Agents retrieve and mark via the MCP tools.
package messages

import (
	"errors"
	"net/http"
	"strconv"

	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MountRoutes mounts read-only message routes.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore) {
	g := r.Group("/v1")

	g.GET("/channels/:channelID/messages", func(c *gin.Context) {
		listMessages(c, store)
	})
}

func listMessages(c *gin.Context, store registrystore.ChatStore) {
	channelID, err := uuid.Parse(c.Param("channelID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "channel not found"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	msgs, err := store.ListMessages(c.Request.Context(), channelID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
