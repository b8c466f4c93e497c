package mcptools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/plugin/store/sqlite"
	registrymigrate "github.com/chirino/chat-service/internal/registry/migrate"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTools(t *testing.T) (*Tools, context.Context) {
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

	return New(store), ctx
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, res.IsError, "unexpected tool error: %v", res.Content)
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func resultError(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestCreateChannelTool(t *testing.T) {
	tools, ctx := setupTools(t)

	res, err := tools.createChannel(ctx, callReq(map[string]any{
		"name":        "general",
		"description": "general chatter",
		"max_agents":  5,
	}))
	require.NoError(t, err)
	payload := resultJSON(t, res)
	assert.Equal(t, "success", payload["status"])
	channel := payload["channel"].(map[string]any)
	assert.Equal(t, "general", channel["name"])

	// A duplicate name surfaces as a tool error, not a Go error.
	res, err = tools.createChannel(ctx, callReq(map[string]any{"name": "general"}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, res), "already exists")
}

func TestJoinAndListAgentsTools(t *testing.T) {
	tools, ctx := setupTools(t)

	res, err := tools.createChannel(ctx, callReq(map[string]any{"name": "room"}))
	require.NoError(t, err)
	channelID := resultJSON(t, res)["channel"].(map[string]any)["channel_id"].(string)

	res, err = tools.joinChannel(ctx, callReq(map[string]any{
		"channel_id":       channelID,
		"username":         "alice",
		"role_description": "a helpful test participant",
	}))
	require.NoError(t, err)
	payload := resultJSON(t, res)
	assert.Equal(t, "success", payload["status"])

	res, err = tools.listChannelAgents(ctx, callReq(map[string]any{"channel_id": channelID}))
	require.NoError(t, err)
	payload = resultJSON(t, res)
	assert.Equal(t, float64(1), payload["agent_count"])

	// Malformed ids are validation failures.
	res, err = tools.joinChannel(ctx, callReq(map[string]any{
		"channel_id":       "not-a-uuid",
		"username":         "bob",
		"role_description": "a helpful test participant",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, res), "channel_id")
}

func TestGetChannelInfoTool(t *testing.T) {
	tools, ctx := setupTools(t)

	res, err := tools.createChannel(ctx, callReq(map[string]any{"name": "lookup"}))
	require.NoError(t, err)
	channelID := resultJSON(t, res)["channel"].(map[string]any)["channel_id"].(string)

	// By name and by id resolve the same channel.
	res, err = tools.getChannelInfo(ctx, callReq(map[string]any{"channel_name": "lookup"}))
	require.NoError(t, err)
	info := resultJSON(t, res)["channel"].(map[string]any)
	assert.Equal(t, channelID, info["channel_id"])

	res, err = tools.getChannelInfo(ctx, callReq(map[string]any{"channel_id": channelID}))
	require.NoError(t, err)
	info = resultJSON(t, res)["channel"].(map[string]any)
	assert.Equal(t, "lookup", info["name"])

	res, err = tools.getChannelInfo(ctx, callReq(map[string]any{"channel_name": "absent"}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, res), "not found")

	res, err = tools.getChannelInfo(ctx, callReq(map[string]any{}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, res), "channel_name or channel_id")
}

func TestMessagingToolsRoundTrip(t *testing.T) {
	tools, ctx := setupTools(t)

	res, err := tools.createChannel(ctx, callReq(map[string]any{"name": "talk"}))
	require.NoError(t, err)
	channelID := resultJSON(t, res)["channel"].(map[string]any)["channel_id"].(string)

	join := func(username string) string {
		res, err := tools.joinChannel(ctx, callReq(map[string]any{
			"channel_id":       channelID,
			"username":         username,
			"role_description": "a helpful test participant",
		}))
		require.NoError(t, err)
		return resultJSON(t, res)["agent"].(map[string]any)["agent_id"].(string)
	}
	aliceID := join("alice")
	bobID := join("bob")

	res, err = tools.sendMessage(ctx, callReq(map[string]any{
		"channel_id": channelID,
		"agent_id":   aliceID,
		"content":    "hi @bob",
	}))
	require.NoError(t, err)
	payload := resultJSON(t, res)
	assert.Equal(t, float64(1), payload["sequence_number"])
	assert.Equal(t, []any{"bob"}, payload["mentions"])

	// Mentioning a non-member vetoes the send.
	res, err = tools.sendMessage(ctx, callReq(map[string]any{
		"channel_id": channelID,
		"agent_id":   aliceID,
		"content":    "hi @ghost",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, res), "ghost")

	res, err = tools.getNewMessages(ctx, callReq(map[string]any{
		"channel_id": channelID,
		"agent_id":   bobID,
	}))
	require.NoError(t, err)
	payload = resultJSON(t, res)
	assert.Equal(t, float64(1), payload["new_messages_count"])

	// Already marked read, so the second call is empty.
	res, err = tools.getNewMessages(ctx, callReq(map[string]any{
		"channel_id": channelID,
		"agent_id":   bobID,
	}))
	require.NoError(t, err)
	payload = resultJSON(t, res)
	assert.Equal(t, float64(0), payload["new_messages_count"])
}

func TestMessageHistoryToolPagination(t *testing.T) {
	tools, ctx := setupTools(t)

	res, err := tools.createChannel(ctx, callReq(map[string]any{"name": "pages"}))
	require.NoError(t, err)
	channelID := resultJSON(t, res)["channel"].(map[string]any)["channel_id"].(string)

	res, err = tools.joinChannel(ctx, callReq(map[string]any{
		"channel_id":       channelID,
		"username":         "alice",
		"role_description": "a helpful test participant",
	}))
	require.NoError(t, err)
	aliceID := resultJSON(t, res)["agent"].(map[string]any)["agent_id"].(string)

	for i := 0; i < 5; i++ {
		res, err = tools.sendMessage(ctx, callReq(map[string]any{
			"channel_id": channelID,
			"agent_id":   aliceID,
			"content":    "tick",
		}))
		require.NoError(t, err)
		resultJSON(t, res)
	}

	res, err = tools.getMessageHistory(ctx, callReq(map[string]any{
		"channel_id": channelID,
		"agent_id":   aliceID,
		"limit":      2,
	}))
	require.NoError(t, err)
	payload := resultJSON(t, res)
	pagination := payload["pagination"].(map[string]any)
	assert.Equal(t, float64(4), pagination["oldest_sequence"])
	assert.Equal(t, float64(5), pagination["newest_sequence"])

	res, err = tools.getMessageHistory(ctx, callReq(map[string]any{
		"channel_id":      channelID,
		"agent_id":        aliceID,
		"limit":           2,
		"before_sequence": 3,
	}))
	require.NoError(t, err)
	payload = resultJSON(t, res)
	pagination = payload["pagination"].(map[string]any)
	assert.Equal(t, float64(1), pagination["oldest_sequence"])
	assert.Equal(t, float64(2), pagination["newest_sequence"])
}

func TestCheckMentionsTool(t *testing.T) {
	tools, ctx := setupTools(t)

	res, err := tools.createChannel(ctx, callReq(map[string]any{"name": "pings"}))
	require.NoError(t, err)
	channelID := resultJSON(t, res)["channel"].(map[string]any)["channel_id"].(string)

	join := func(username string) string {
		res, err := tools.joinChannel(ctx, callReq(map[string]any{
			"channel_id":       channelID,
			"username":         username,
			"role_description": "a helpful test participant",
		}))
		require.NoError(t, err)
		return resultJSON(t, res)["agent"].(map[string]any)["agent_id"].(string)
	}
	aliceID := join("alice")
	bobID := join("bob")

	send := func(content string) {
		res, err := tools.sendMessage(ctx, callReq(map[string]any{
			"channel_id": channelID,
			"agent_id":   aliceID,
			"content":    content,
		}))
		require.NoError(t, err)
		resultJSON(t, res)
	}
	send("no mention here")
	send("hey @bob, ping")
	send("another for @bob")

	res, err = tools.checkMentions(ctx, callReq(map[string]any{
		"channel_id": channelID,
		"agent_id":   bobID,
	}))
	require.NoError(t, err)
	payload := resultJSON(t, res)
	assert.Equal(t, "@bob", payload["agent"])
	assert.Equal(t, float64(2), payload["mentions_count"])
}
