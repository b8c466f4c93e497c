package gormstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-service/internal/model"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

func (s *Store) JoinChannel(ctx context.Context, channelID uuid.UUID, username, roleDescription string) (*model.Agent, error) {
	if !usernamePattern.MatchString(username) {
		return nil, &registrystore.ValidationError{
			Field:   "username",
			Message: "must be 3-50 characters: letters, digits, hyphens, underscores",
		}
	}
	if len(roleDescription) < 10 || len(roleDescription) > 200 {
		return nil, &registrystore.ValidationError{
			Field:   "role_description",
			Message: "must be 10-200 characters",
		}
	}

	var agent model.Agent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The capacity check and the insert must see the same member count, so
		// the channel row is locked for the duration of the transaction.
		ch, err := requireChannel(s.lockForUpdate(tx), channelID)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&model.Agent{}).Where("channel_id = ?", channelID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count agents: %w", err)
		}
		if count >= int64(ch.MaxAgents) {
			return &registrystore.CapacityError{ChannelID: channelID.String(), MaxAgents: ch.MaxAgents}
		}

		agent = model.Agent{
			AgentID:         uuid.New(),
			ChannelID:       channelID,
			Username:        username,
			RoleDescription: roleDescription,
			JoinedAt:        time.Now(),
		}
		if err := tx.Create(&agent).Error; err != nil {
			if isUniqueViolation(err) {
				return &registrystore.ConflictError{Message: fmt.Sprintf("username %q already exists in this channel", username)}
			}
			return fmt.Errorf("failed to join channel: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Agent joined channel", "username", username, "agentID", agent.AgentID, "channelID", channelID)
	return &agent, nil
}

func (s *Store) LeaveChannel(ctx context.Context, channelID, agentID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("agent_id = ? AND channel_id = ?", agentID, channelID).Delete(&model.Agent{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete agent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &registrystore.NotFoundError{Resource: "agent", ID: agentID.String()}
		}
		// Only the agent's read markers go with it; authored messages and
		// their mention rows stay.
		if err := tx.Where("agent_id = ?", agentID).Delete(&model.ReadStatus{}).Error; err != nil {
			return fmt.Errorf("failed to delete read status: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("Agent left channel", "agentID", agentID, "channelID", channelID)
	return nil
}

func (s *Store) GetAgent(ctx context.Context, agentID uuid.UUID) (*model.Agent, error) {
	var agent model.Agent
	res := s.db.WithContext(ctx).Where("agent_id = ?", agentID).Limit(1).Find(&agent)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load agent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &agent, nil
}

func (s *Store) GetAgentByUsername(ctx context.Context, channelID uuid.UUID, username string) (*model.Agent, error) {
	var agent model.Agent
	res := s.db.WithContext(ctx).Where("channel_id = ? AND username = ?", channelID, username).Limit(1).Find(&agent)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load agent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &agent, nil
}

func (s *Store) ListAgents(ctx context.Context, channelID uuid.UUID) ([]model.Agent, error) {
	if _, err := requireChannel(s.db.WithContext(ctx), channelID); err != nil {
		return nil, err
	}
	var agents []model.Agent
	if err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("joined_at ASC, username ASC").
		Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}
