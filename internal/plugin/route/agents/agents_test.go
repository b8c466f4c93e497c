package agents_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/model"
	"github.com/chirino/chat-service/internal/plugin/route/agents"
	"github.com/chirino/chat-service/internal/plugin/store/sqlite"
	registrymigrate "github.com/chirino/chat-service/internal/registry/migrate"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, registrystore.ChatStore, context.Context, *model.Channel) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBPath = filepath.Join(t.TempDir(), "chat.db")
	cfg.CacheType = "none"
	ctx := config.WithContext(context.Background(), &cfg)

	_ = sqlite.ForceImport
	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)

	ch, err := store.CreateChannel(ctx, "general", "", 2)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	agents.MountRoutes(router, store)
	return router, store, ctx, ch
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJoinChannelEndpoint(t *testing.T) {
	router, _, _, ch := setupRouter(t)
	base := "/v1/channels/" + ch.ChannelID.String() + "/agents"

	w := doJSON(t, router, http.MethodPost, base, gin.H{
		"username":         "alice",
		"role_description": "a helpful test participant",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var agent struct {
		AgentID  string `json:"agent_id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agent))
	assert.NotEmpty(t, agent.AgentID)
	assert.Equal(t, "alice", agent.Username)

	// Duplicate username conflicts.
	w = doJSON(t, router, http.MethodPost, base, gin.H{
		"username":         "alice",
		"role_description": "a helpful test participant",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"conflict"`)

	// Bad username pattern is a validation error.
	w = doJSON(t, router, http.MethodPost, base, gin.H{
		"username":         "no spaces allowed",
		"role_description": "a helpful test participant",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Third member exceeds the two-member cap.
	w = doJSON(t, router, http.MethodPost, base, gin.H{
		"username":         "bob",
		"role_description": "a helpful test participant",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, router, http.MethodPost, base, gin.H{
		"username":         "carol",
		"role_description": "a helpful test participant",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"capacity"`)
}

func TestListAgentsEndpoint(t *testing.T) {
	router, store, ctx, ch := setupRouter(t)

	_, err := store.JoinChannel(ctx, ch.ChannelID, "alice", "a helpful test participant")
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/v1/channels/"+ch.ChannelID.String()+"/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Agents []struct {
			Username string `json:"username"`
		} `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Agents, 1)
	assert.Equal(t, "alice", resp.Agents[0].Username)

	w = doJSON(t, router, http.MethodGet, "/v1/channels/00000000-0000-0000-0000-000000000001/agents", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaveChannelEndpoint(t *testing.T) {
	router, store, ctx, ch := setupRouter(t)

	agent, err := store.JoinChannel(ctx, ch.ChannelID, "alice", "a helpful test participant")
	require.NoError(t, err)
	path := "/v1/channels/" + ch.ChannelID.String() + "/agents/" + agent.AgentID.String()

	w := doJSON(t, router, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
