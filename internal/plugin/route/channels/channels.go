package channels

import (
	"errors"
	"net/http"
	"strconv"

	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MountRoutes mounts channel routes.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore) {
	g := r.Group("/v1")

	g.GET("/channels", func(c *gin.Context) {
		listChannels(c, store)
	})
	g.POST("/channels", func(c *gin.Context) {
		createChannel(c, store)
	})
	g.GET("/channels/:channelID", func(c *gin.Context) {
		getChannel(c, store)
	})
	g.DELETE("/channels/:channelID", func(c *gin.Context) {
		deleteChannel(c, store)
	})
}

func listChannels(c *gin.Context, store registrystore.ChatStore) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	page, err := store.ListChannels(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func createChannel(c *gin.Context, store registrystore.ChatStore) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		MaxAgents   int    `json:"max_agents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}

	ch, err := store.CreateChannel(c.Request.Context(), req.Name, req.Description, req.MaxAgents)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func getChannel(c *gin.Context, store registrystore.ChatStore) {
	channelID, err := uuid.Parse(c.Param("channelID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "channel not found"})
		return
	}

	ch, err := store.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		handleError(c, err)
		return
	}
	if ch == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "channel not found"})
		return
	}
	agents, err := store.ListAgents(c.Request.Context(), channelID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"channel":        ch,
		"current_agents": len(agents),
		"agents":         agents,
	})
}

func deleteChannel(c *gin.Context, store registrystore.ChatStore) {
	channelID, err := uuid.Parse(c.Param("channelID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "channel not found"})
		return
	}

	if err := store.DeleteChannel(c.Request.Context(), channelID); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var capacity *registrystore.CapacityError
	var dependency *registrystore.DependencyError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"code": "conflict", "error": err.Error()})
	case errors.As(err, &capacity):
		c.JSON(http.StatusConflict, gin.H{"code": "capacity", "error": err.Error()})
	case errors.As(err, &dependency):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "dependency", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
