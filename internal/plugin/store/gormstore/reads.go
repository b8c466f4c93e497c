package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/chat-service/internal/model"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMessageLimit = 50
	defaultSenderLimit  = 20
)

func (s *Store) GetNewMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]registrystore.MessageView, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	var views []registrystore.MessageView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireChannel(tx, channelID); err != nil {
			return err
		}
		if _, err := requireAgent(tx, channelID, agentID); err != nil {
			return err
		}

		read := tx.Model(&model.ReadStatus{}).Select("message_id").Where("agent_id = ?", agentID)
		var msgs []model.Message
		if err := tx.Where("channel_id = ? AND message_id NOT IN (?)", channelID, read).
			Order("sequence_number ASC").
			Limit(limit).
			Find(&msgs).Error; err != nil {
			return fmt.Errorf("failed to load unread messages: %w", err)
		}

		// Claim each candidate by inserting its read marker. A concurrent
		// call by the same agent that already claimed a message makes the
		// insert a no-op here, and the message drops out of this result, so
		// racing calls partition the unread set disjointly.
		now := time.Now()
		claimed := make([]model.Message, 0, len(msgs))
		for i := range msgs {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.ReadStatus{AgentID: agentID, MessageID: msgs[i].MessageID, ReadAt: now})
			if res.Error != nil {
				return fmt.Errorf("failed to mark message read: %w", res.Error)
			}
			if res.RowsAffected > 0 {
				claimed = append(claimed, msgs[i])
			}
		}

		var err error
		views, err = enrichMessages(tx, claimed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) GetMessageHistory(ctx context.Context, channelID, agentID uuid.UUID, limit int, beforeSequence *int64) ([]registrystore.MessageView, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	var views []registrystore.MessageView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireChannel(tx, channelID); err != nil {
			return err
		}
		if _, err := requireAgent(tx, channelID, agentID); err != nil {
			return err
		}

		q := tx.Where("channel_id = ?", channelID)
		if beforeSequence != nil {
			q = q.Where("sequence_number < ?", *beforeSequence)
		}
		var msgs []model.Message
		if err := q.Order("sequence_number DESC").Limit(limit).Find(&msgs).Error; err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		reverse(msgs)

		// Anything in the page the agent had not read yet is read now. The
		// conflict-free insert makes re-reading history a no-op.
		now := time.Now()
		for i := range msgs {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.ReadStatus{AgentID: agentID, MessageID: msgs[i].MessageID, ReadAt: now}).Error; err != nil {
				return fmt.Errorf("failed to mark message read: %w", err)
			}
		}

		var err error
		views, err = enrichMessages(tx, msgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) GetAgentMessages(ctx context.Context, channelID uuid.UUID, targetUsername string, limit int) ([]registrystore.MessageView, error) {
	if limit <= 0 {
		limit = defaultSenderLimit
	}
	var views []registrystore.MessageView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireChannel(tx, channelID); err != nil {
			return err
		}
		var target model.Agent
		res := tx.Where("channel_id = ? AND username = ?", channelID, targetUsername).Limit(1).Find(&target)
		if res.Error != nil {
			return fmt.Errorf("failed to load agent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &registrystore.NotFoundError{Resource: "agent", ID: targetUsername}
		}

		var msgs []model.Message
		if err := tx.Where("channel_id = ? AND agent_id = ?", channelID, target.AgentID).
			Order("sequence_number DESC").
			Limit(limit).
			Find(&msgs).Error; err != nil {
			return fmt.Errorf("failed to load messages: %w", err)
		}
		reverse(msgs)

		var err error
		views, err = enrichMessages(tx, msgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) ListMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]registrystore.MessageView, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	var views []registrystore.MessageView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireChannel(tx, channelID); err != nil {
			return err
		}
		var msgs []model.Message
		if err := tx.Where("channel_id = ?", channelID).
			Order("sequence_number DESC").
			Limit(limit).
			Find(&msgs).Error; err != nil {
			return fmt.Errorf("failed to load messages: %w", err)
		}
		reverse(msgs)

		var err error
		views, err = enrichMessages(tx, msgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func reverse(msgs []model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
