// Package metrics wraps a ChatStore to record per-operation latency.
package metrics

import (
	"context"
	"time"

	"github.com/chirino/chat-service/internal/model"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/chirino/chat-service/internal/security"
	"github.com/google/uuid"
)

// Wrap decorates the store with latency metrics.
func Wrap(next registrystore.ChatStore) registrystore.ChatStore {
	return &store{next: next}
}

type store struct {
	next registrystore.ChatStore
}

func observe(op string, start time.Time) {
	if security.StoreLatency != nil {
		security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (s *store) CreateChannel(ctx context.Context, name, description string, maxAgents int) (*model.Channel, error) {
	defer observe("CreateChannel", time.Now())
	return s.next.CreateChannel(ctx, name, description, maxAgents)
}

func (s *store) GetChannel(ctx context.Context, channelID uuid.UUID) (*model.Channel, error) {
	defer observe("GetChannel", time.Now())
	return s.next.GetChannel(ctx, channelID)
}

func (s *store) GetChannelByName(ctx context.Context, name string) (*model.Channel, error) {
	defer observe("GetChannelByName", time.Now())
	return s.next.GetChannelByName(ctx, name)
}

func (s *store) ListChannels(ctx context.Context, limit, offset int) (*registrystore.ChannelPage, error) {
	defer observe("ListChannels", time.Now())
	return s.next.ListChannels(ctx, limit, offset)
}

func (s *store) DeleteChannel(ctx context.Context, channelID uuid.UUID) error {
	defer observe("DeleteChannel", time.Now())
	return s.next.DeleteChannel(ctx, channelID)
}

func (s *store) JoinChannel(ctx context.Context, channelID uuid.UUID, username, roleDescription string) (*model.Agent, error) {
	defer observe("JoinChannel", time.Now())
	return s.next.JoinChannel(ctx, channelID, username, roleDescription)
}

func (s *store) LeaveChannel(ctx context.Context, channelID, agentID uuid.UUID) error {
	defer observe("LeaveChannel", time.Now())
	return s.next.LeaveChannel(ctx, channelID, agentID)
}

func (s *store) GetAgent(ctx context.Context, agentID uuid.UUID) (*model.Agent, error) {
	defer observe("GetAgent", time.Now())
	return s.next.GetAgent(ctx, agentID)
}

func (s *store) GetAgentByUsername(ctx context.Context, channelID uuid.UUID, username string) (*model.Agent, error) {
	defer observe("GetAgentByUsername", time.Now())
	return s.next.GetAgentByUsername(ctx, channelID, username)
}

func (s *store) ListAgents(ctx context.Context, channelID uuid.UUID) ([]model.Agent, error) {
	defer observe("ListAgents", time.Now())
	return s.next.ListAgents(ctx, channelID)
}

func (s *store) SendMessage(ctx context.Context, channelID, agentID uuid.UUID, content string) (*registrystore.MessageView, error) {
	defer observe("SendMessage", time.Now())
	return s.next.SendMessage(ctx, channelID, agentID, content)
}

func (s *store) GetNewMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]registrystore.MessageView, error) {
	defer observe("GetNewMessages", time.Now())
	return s.next.GetNewMessages(ctx, channelID, agentID, limit)
}

func (s *store) GetMessageHistory(ctx context.Context, channelID, agentID uuid.UUID, limit int, beforeSequence *int64) ([]registrystore.MessageView, error) {
	defer observe("GetMessageHistory", time.Now())
	return s.next.GetMessageHistory(ctx, channelID, agentID, limit, beforeSequence)
}

func (s *store) GetAgentMessages(ctx context.Context, channelID uuid.UUID, targetUsername string, limit int) ([]registrystore.MessageView, error) {
	defer observe("GetAgentMessages", time.Now())
	return s.next.GetAgentMessages(ctx, channelID, targetUsername, limit)
}

func (s *store) ListMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]registrystore.MessageView, error) {
	defer observe("ListMessages", time.Now())
	return s.next.ListMessages(ctx, channelID, limit)
}
