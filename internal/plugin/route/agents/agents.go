package agents

import (
	"errors"
	"net/http"

	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MountRoutes mounts agent roster routes.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore) {
	g := r.Group("/v1")

	g.GET("/channels/:channelID/agents", func(c *gin.Context) {
		listAgents(c, store)
	})
	g.POST("/channels/:channelID/agents", func(c *gin.Context) {
		joinChannel(c, store)
	})
	g.DELETE("/channels/:channelID/agents/:agentID", func(c *gin.Context) {
		leaveChannel(c, store)
	})
}

func listAgents(c *gin.Context, store registrystore.ChatStore) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	agents, err := store.ListAgents(c.Request.Context(), channelID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func joinChannel(c *gin.Context, store registrystore.ChatStore) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	var req struct {
		Username        string `json:"username"         binding:"required"`
		RoleDescription string `json:"role_description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}

	agent, err := store.JoinChannel(c.Request.Context(), channelID, req.Username, req.RoleDescription)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func leaveChannel(c *gin.Context, store registrystore.ChatStore) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	agentID, err := uuid.Parse(c.Param("agentID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "agent not found"})
		return
	}

	if err := store.LeaveChannel(c.Request.Context(), channelID, agentID); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func channelParam(c *gin.Context) (uuid.UUID, bool) {
	channelID, err := uuid.Parse(c.Param("channelID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "channel not found"})
		return uuid.Nil, false
	}
	return channelID, true
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var capacity *registrystore.CapacityError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"code": "conflict", "error": err.Error()})
	case errors.As(err, &capacity):
		c.JSON(http.StatusConflict, gin.H{"code": "capacity", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
