// Package mcptools exposes the chat store as MCP tools. Tool bindings happen
// through an explicit Tools registry built at startup; nothing registers
// itself at import time.
package mcptools

import (
	"encoding/json"
	"fmt"

	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tools binds the chat store to MCP tool handlers.
type Tools struct {
	store registrystore.ChatStore
}

// New creates the tool registry over the given store.
func New(store registrystore.ChatStore) *Tools {
	return &Tools{store: store}
}

// Register adds every tool to the MCP server.
func (t *Tools) Register(s *server.MCPServer) {
	t.registerChannelTools(s)
	t.registerMessagingTools(s)
}

// jsonResult renders a success payload as indented JSON, matching what agent
// clients expect to parse out of the tool result text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &registrystore.ValidationError{Field: field, Message: "must be a UUID"}
	}
	return id, nil
}
