package mcptools

import (
	"context"
	"fmt"

	"github.com/chirino/chat-service/internal/model"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func (t *Tools) registerChannelTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("create_channel",
		mcp.WithDescription("Create a new channel for agent communication."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique channel name (1-100 characters)")),
		mcp.WithString("description", mcp.Description("Optional channel description (max 500 characters)")),
		mcp.WithNumber("max_agents", mcp.DefaultNumber(50), mcp.Description("Maximum number of agents allowed (2-100)")),
	), t.createChannel)

	s.AddTool(mcp.NewTool("list_channels",
		mcp.WithDescription("List all available channels with their agent counts."),
		mcp.WithNumber("limit", mcp.DefaultNumber(20), mcp.Description("Maximum number of channels to return")),
		mcp.WithNumber("offset", mcp.DefaultNumber(0), mcp.Description("Pagination offset")),
	), t.listChannels)

	s.AddTool(mcp.NewTool("get_channel_info",
		mcp.WithDescription("Get detailed information about a channel, including its current agents. Provide either channel_name or channel_id."),
		mcp.WithString("channel_name", mcp.Description("Channel name")),
		mcp.WithString("channel_id", mcp.Description("Channel UUID")),
	), t.getChannelInfo)

	s.AddTool(mcp.NewTool("join_channel",
		mcp.WithDescription("Join a channel with a unique username."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
		mcp.WithString("username", mcp.Required(), mcp.Description("Username, 3-50 characters: letters, digits, hyphens, underscores")),
		mcp.WithString("role_description", mcp.Required(), mcp.Description("What this agent does (10-200 characters)")),
	), t.joinChannel)

	s.AddTool(mcp.NewTool("leave_channel",
		mcp.WithDescription("Leave a channel and clean up the agent's presence."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The agent's UUID")),
	), t.leaveChannel)

	s.AddTool(mcp.NewTool("list_channel_agents",
		mcp.WithDescription("List all agents currently in a channel, oldest member first."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
	), t.listChannelAgents)
}

func (t *Tools) createChannel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	description := req.GetString("description", "")
	maxAgents := req.GetInt("max_agents", 50)

	ch, err := t.store.CreateChannel(ctx, name, description, maxAgents)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Channel %q created successfully", name),
		"channel": ch,
	})
}

func (t *Tools) listChannels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	offset := req.GetInt("offset", 0)

	page, err := t.store.ListChannels(ctx, limit, offset)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":   "success",
		"channels": page.Channels,
		"total":    page.Total,
		"has_more": page.HasMore,
	})
}

func (t *Tools) getChannelInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelName := req.GetString("channel_name", "")
	rawID := req.GetString("channel_id", "")
	if channelName == "" && rawID == "" {
		return mcp.NewToolResultError("must provide either channel_name or channel_id"), nil
	}

	ch, err := t.lookupChannel(ctx, rawID, channelName)
	if err != nil {
		return toolError(err)
	}
	if ch == nil {
		return mcp.NewToolResultError("channel not found"), nil
	}

	agents, err := t.store.ListAgents(ctx, ch.ChannelID)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status": "success",
		"channel": map[string]any{
			"channel_id":     ch.ChannelID,
			"name":           ch.Name,
			"description":    ch.Description,
			"max_agents":     ch.MaxAgents,
			"current_agents": len(agents),
			"created_at":     ch.CreatedAt,
			"agents":         agents,
		},
	})
}

func (t *Tools) joinChannel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	username, err := req.RequireString("username")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	roleDescription, err := req.RequireString("role_description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channelID, err := parseID(rawID, "channel_id")
	if err != nil {
		return toolError(err)
	}

	agent, err := t.store.JoinChannel(ctx, channelID, username, roleDescription)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("@%s joined the channel", username),
		"agent":   agent,
	})
}

func (t *Tools) leaveChannel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawChannelID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawAgentID, err := req.RequireString("agent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channelID, err := parseID(rawChannelID, "channel_id")
	if err != nil {
		return toolError(err)
	}
	agentID, err := parseID(rawAgentID, "agent_id")
	if err != nil {
		return toolError(err)
	}

	if err := t.store.LeaveChannel(ctx, channelID, agentID); err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":  "success",
		"message": "left the channel",
	})
}

func (t *Tools) listChannelAgents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channelID, err := parseID(rawID, "channel_id")
	if err != nil {
		return toolError(err)
	}

	agents, err := t.store.ListAgents(ctx, channelID)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":      "success",
		"agent_count": len(agents),
		"agents":      agents,
	})
}

// lookupChannel resolves a channel by id when given, by name otherwise.
// Absence is (nil, nil), matching the store's probe contract.
func (t *Tools) lookupChannel(ctx context.Context, rawID, name string) (*model.Channel, error) {
	if rawID != "" {
		channelID, err := parseID(rawID, "channel_id")
		if err != nil {
			return nil, err
		}
		return t.store.GetChannel(ctx, channelID)
	}
	return t.store.GetChannelByName(ctx, name)
}
