package mcptools

import (
	"context"
	"fmt"
	"slices"

	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func (t *Tools) registerMessagingTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a message to a channel. Use @username to mention members; every mentioned username must be a current member."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The sending agent's UUID")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message content (1-4000 characters)")),
	), t.sendMessage)

	s.AddTool(mcp.NewTool("get_new_messages",
		mcp.WithDescription("Retrieve unread messages from a channel. Retrieved messages are marked as read by the requesting agent."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The requesting agent's UUID")),
		mcp.WithNumber("limit", mcp.DefaultNumber(50), mcp.Description("Maximum number of messages to return")),
	), t.getNewMessages)

	s.AddTool(mcp.NewTool("get_message_history",
		mcp.WithDescription("Retrieve message history from a channel, most recent page first, ordered oldest-first within the page. Unread messages in the page are marked as read."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The requesting agent's UUID")),
		mcp.WithNumber("limit", mcp.DefaultNumber(50), mcp.Description("Maximum number of messages to return")),
		mcp.WithNumber("before_sequence", mcp.Description("Only messages with a lower sequence number (for pagination)")),
	), t.getMessageHistory)

	s.AddTool(mcp.NewTool("get_agent_messages",
		mcp.WithDescription("Get recent messages from a specific agent in a channel. Read-only; marks nothing as read."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
		mcp.WithString("agent_username", mcp.Required(), mcp.Description("The username whose messages to retrieve")),
		mcp.WithNumber("limit", mcp.DefaultNumber(20), mcp.Description("Maximum number of messages to return")),
	), t.getAgentMessages)

	s.AddTool(mcp.NewTool("check_mentions",
		mcp.WithDescription("Check recent history for messages mentioning the agent. Messages in the scanned history are marked as read."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("The UUID of the channel")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The agent's UUID")),
		mcp.WithNumber("limit", mcp.DefaultNumber(20), mcp.Description("Maximum number of mentioning messages to return")),
	), t.checkMentions)
}

func (t *Tools) sendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, agentID, result := t.channelAndAgent(req)
	if result != nil {
		return result, nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	msg, err := t.store.SendMessage(ctx, channelID, agentID, content)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":          "success",
		"message":         fmt.Sprintf("Message sent by @%s", msg.Sender.Username),
		"message_id":      msg.MessageID,
		"timestamp":       msg.CreatedAt,
		"sequence_number": msg.SequenceNumber,
		"mentions":        msg.Mentions,
	})
}

func (t *Tools) getNewMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, agentID, result := t.channelAndAgent(req)
	if result != nil {
		return result, nil
	}
	limit := req.GetInt("limit", 50)

	msgs, err := t.store.GetNewMessages(ctx, channelID, agentID, limit)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":             "success",
		"new_messages_count": len(msgs),
		"messages":           msgs,
		"note":               fmt.Sprintf("All %d messages have been marked as read", len(msgs)),
	})
}

func (t *Tools) getMessageHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, agentID, result := t.channelAndAgent(req)
	if result != nil {
		return result, nil
	}
	limit := req.GetInt("limit", 50)

	var beforeSequence *int64
	if v := req.GetInt("before_sequence", 0); v > 0 {
		seq := int64(v)
		beforeSequence = &seq
	}

	msgs, err := t.store.GetMessageHistory(ctx, channelID, agentID, limit, beforeSequence)
	if err != nil {
		return toolError(err)
	}

	pagination := map[string]any{
		"returned": len(msgs),
		"limit":    limit,
	}
	if beforeSequence != nil {
		pagination["before_sequence"] = *beforeSequence
	}
	if len(msgs) > 0 {
		pagination["oldest_sequence"] = msgs[0].SequenceNumber
		pagination["newest_sequence"] = msgs[len(msgs)-1].SequenceNumber
	}
	return jsonResult(map[string]any{
		"status":        "success",
		"message_count": len(msgs),
		"messages":      msgs,
		"pagination":    pagination,
		"note":          "Any previously unread messages have been marked as read",
	})
}

func (t *Tools) getAgentMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawID, err := req.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	username, err := req.RequireString("agent_username")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channelID, err := parseID(rawID, "channel_id")
	if err != nil {
		return toolError(err)
	}
	limit := req.GetInt("limit", 20)

	msgs, err := t.store.GetAgentMessages(ctx, channelID, username, limit)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"status":        "success",
		"agent":         "@" + username,
		"message_count": len(msgs),
		"messages":      msgs,
	})
}

func (t *Tools) checkMentions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, agentID, result := t.channelAndAgent(req)
	if result != nil {
		return result, nil
	}
	limit := req.GetInt("limit", 20)

	agent, err := t.store.GetAgent(ctx, agentID)
	if err != nil {
		return toolError(err)
	}
	if agent == nil {
		return mcp.NewToolResultError("agent not found"), nil
	}

	// Scan a wider history window, then keep only messages that mention the
	// caller.
	msgs, err := t.store.GetMessageHistory(ctx, channelID, agentID, limit*2, nil)
	if err != nil {
		return toolError(err)
	}
	mentioned := make([]registrystore.MessageView, 0, limit)
	for _, msg := range msgs {
		if slices.Contains(msg.Mentions, agent.Username) {
			mentioned = append(mentioned, msg)
			if len(mentioned) == limit {
				break
			}
		}
	}
	return jsonResult(map[string]any{
		"status":         "success",
		"agent":          "@" + agent.Username,
		"mentions_count": len(mentioned),
		"messages":       mentioned,
		"note":           "Messages have been marked as read",
	})
}

// channelAndAgent extracts and parses the channel_id and agent_id arguments
// shared by the messaging tools. A non-nil result is the error to return.
func (t *Tools) channelAndAgent(req mcp.CallToolRequest) (channelID, agentID uuid.UUID, result *mcp.CallToolResult) {
	rawChannelID, err := req.RequireString("channel_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, mcp.NewToolResultError(err.Error())
	}
	rawAgentID, err := req.RequireString("agent_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, mcp.NewToolResultError(err.Error())
	}
	channelID, err = parseID(rawChannelID, "channel_id")
	if err != nil {
		result, _ = toolError(err)
		return uuid.Nil, uuid.Nil, result
	}
	agentID, err = parseID(rawAgentID, "agent_id")
	if err != nil {
		result, _ = toolError(err)
		return uuid.Nil, uuid.Nil, result
	}
	return channelID, agentID, nil
}
