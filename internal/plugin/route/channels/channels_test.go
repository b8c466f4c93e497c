package channels_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/plugin/route/channels"
	"github.com/chirino/chat-service/internal/plugin/store/sqlite"
	registrymigrate "github.com/chirino/chat-service/internal/registry/migrate"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, registrystore.ChatStore, context.Context) {
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

	gin.SetMode(gin.TestMode)
	router := gin.New()
	channels.MountRoutes(router, store)
	return router, store, ctx
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

func TestCreateChannelEndpoint(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/channels", gin.H{
		"name":        "general",
		"description": "general discussion",
		"max_agents":  10,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var ch struct {
		ChannelID string `json:"channel_id"`
		Name      string `json:"name"`
		MaxAgents int    `json:"max_agents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ch))
	assert.NotEmpty(t, ch.ChannelID)
	assert.Equal(t, "general", ch.Name)
	assert.Equal(t, 10, ch.MaxAgents)

	// Duplicate name conflicts.
	w = doJSON(t, router, http.MethodPost, "/v1/channels", gin.H{"name": "general"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"conflict"`)

	// Missing name is rejected before the store is consulted.
	w = doJSON(t, router, http.MethodPost, "/v1/channels", gin.H{"description": "nameless"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Out-of-range capacity maps to a validation error.
	w = doJSON(t, router, http.MethodPost, "/v1/channels", gin.H{"name": "tiny", "max_agents": 1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation_error"`)
}

func TestListChannelsEndpoint(t *testing.T) {
	router, store, ctx := setupRouter(t)

	_, err := store.CreateChannel(ctx, "alpha", "", 10)
	require.NoError(t, err)
	_, err = store.CreateChannel(ctx, "beta", "", 10)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/v1/channels?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Channels []struct {
			Name       string `json:"name"`
			AgentCount int64  `json:"agent_count"`
		} `json:"channels"`
		Total   int64 `json:"total"`
		HasMore bool  `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Channels, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, "alpha", page.Channels[0].Name)
}

func TestGetChannelEndpoint(t *testing.T) {
	router, store, ctx := setupRouter(t)

	ch, err := store.CreateChannel(ctx, "info", "", 10)
	require.NoError(t, err)
	_, err = store.JoinChannel(ctx, ch.ChannelID, "alice", "a helpful test participant")
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/v1/channels/"+ch.ChannelID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Channel struct {
			Name string `json:"name"`
		} `json:"channel"`
		CurrentAgents int `json:"current_agents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "info", resp.Channel.Name)
	assert.Equal(t, 1, resp.CurrentAgents)

	// Unknown and malformed ids both read as absent.
	w = doJSON(t, router, http.MethodGet, "/v1/channels/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, router, http.MethodGet, "/v1/channels/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteChannelEndpoint(t *testing.T) {
	router, store, ctx := setupRouter(t)

	ch, err := store.CreateChannel(ctx, "teardown", "", 10)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodDelete, "/v1/channels/"+ch.ChannelID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/v1/channels/"+ch.ChannelID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
