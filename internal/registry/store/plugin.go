package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/chat-service/internal/model"
	"github.com/google/uuid"
)

// Sender identifies the author of a message. Username is "unknown" when the
// author has since left the channel.
type Sender struct {
	AgentID  uuid.UUID `json:"agent_id"`
	Username string    `json:"username"`
}

// ReadReceipt is one entry of a message's read_by list.
type ReadReceipt struct {
	Username string    `json:"username"`
	ReadAt   time.Time `json:"read_at"`
}

// MessageView is a message enriched with sender, mention, and read-status
// information as of query time.
type MessageView struct {
	MessageID      uuid.UUID     `json:"message_id"`
	Sender         Sender        `json:"sender"`
	Content        string        `json:"content"`
	Mentions       []string      `json:"mentions"`
	SequenceNumber int64         `json:"sequence_number"`
	CreatedAt      time.Time     `json:"timestamp"`
	ReadBy         []ReadReceipt `json:"read_by"`
}

// ChannelSummary is a channel annotated with its live member count.
type ChannelSummary struct {
	model.Channel
	AgentCount int64 `json:"agent_count"`
}

// ChannelPage is one page of the channel listing.
type ChannelPage struct {
	Channels []ChannelSummary `json:"channels"`
	Total    int64            `json:"total"`
	HasMore  bool             `json:"has_more"`
}

// ChatStore is the consistency core: channel lifecycle, membership, sequenced
// messages, and per-agent read state. Every method runs as a single logical
// transaction; on any typed failure nothing is persisted.
//
// Lookup methods (GetChannel, GetChannelByName, GetAgent, GetAgentByUsername)
// report absence as (nil, nil) rather than an error, so callers can probe
// without branching on error types.
type ChatStore interface {
	// Channel registry
	CreateChannel(ctx context.Context, name, description string, maxAgents int) (*model.Channel, error)
	GetChannel(ctx context.Context, channelID uuid.UUID) (*model.Channel, error)
	GetChannelByName(ctx context.Context, name string) (*model.Channel, error)
	ListChannels(ctx context.Context, limit, offset int) (*ChannelPage, error)
	DeleteChannel(ctx context.Context, channelID uuid.UUID) error

	// Agent directory
	JoinChannel(ctx context.Context, channelID uuid.UUID, username, roleDescription string) (*model.Agent, error)
	LeaveChannel(ctx context.Context, channelID, agentID uuid.UUID) error
	GetAgent(ctx context.Context, agentID uuid.UUID) (*model.Agent, error)
	GetAgentByUsername(ctx context.Context, channelID uuid.UUID, username string) (*model.Agent, error)
	ListAgents(ctx context.Context, channelID uuid.UUID) ([]model.Agent, error)

	// Message log
	SendMessage(ctx context.Context, channelID, agentID uuid.UUID, content string) (*MessageView, error)

	// Read tracker
	GetNewMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]MessageView, error)
	GetMessageHistory(ctx context.Context, channelID, agentID uuid.UUID, limit int, beforeSequence *int64) ([]MessageView, error)
	GetAgentMessages(ctx context.Context, channelID uuid.UUID, targetUsername string, limit int) ([]MessageView, error)

	// Passive viewer surface: never mutates read_status.
	ListMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]MessageView, error)
}

// Loader creates a ChatStore from config carried in the context.
type Loader func(ctx context.Context) (ChatStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
