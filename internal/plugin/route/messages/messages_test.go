package messages_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/plugin/route/messages"
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
	messages.MountRoutes(router, store)
	return router, store, ctx
}

func TestListMessagesEndpoint(t *testing.T) {
	router, store, ctx := setupRouter(t)

	ch, err := store.CreateChannel(ctx, "general", "", 10)
	require.NoError(t, err)
	alice, err := store.JoinChannel(ctx, ch.ChannelID, "alice", "a helpful test participant")
	require.NoError(t, err)
	bob, err := store.JoinChannel(ctx, ch.ChannelID, "bob", "a helpful test participant")
	require.NoError(t, err)
	_, err = store.SendMessage(ctx, ch.ChannelID, alice.AgentID, "hi @bob")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/channels/"+ch.ChannelID.String()+"/messages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []struct {
			Content        string   `json:"content"`
			Mentions       []string `json:"mentions"`
			SequenceNumber int64    `json:"sequence_number"`
			Sender         struct {
				Username string `json:"username"`
			} `json:"sender"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hi @bob", resp.Messages[0].Content)
	assert.Equal(t, []string{"bob"}, resp.Messages[0].Mentions)
	assert.Equal(t, "alice", resp.Messages[0].Sender.Username)

	// Viewing is passive: bob's unread set is untouched.
	unread, err := store.GetNewMessages(ctx, ch.ChannelID, bob.AgentID, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestListMessagesUnknownChannel(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/channels/00000000-0000-0000-0000-000000000001/messages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
