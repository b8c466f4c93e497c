package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-service/internal/model"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultMaxAgents    = 50
	defaultChannelLimit = 20
)

func (s *Store) CreateChannel(ctx context.Context, name, description string, maxAgents int) (*model.Channel, error) {
	if maxAgents == 0 {
		maxAgents = defaultMaxAgents
	}
	if len(name) < 1 || len(name) > 100 {
		return nil, &registrystore.ValidationError{Field: "name", Message: "must be 1-100 characters"}
	}
	if len(description) > 500 {
		return nil, &registrystore.ValidationError{Field: "description", Message: "must be at most 500 characters"}
	}
	if maxAgents < 2 || maxAgents > 100 {
		return nil, &registrystore.ValidationError{Field: "max_agents", Message: "must be between 2 and 100"}
	}

	ch := model.Channel{
		ChannelID:   uuid.New(),
		Name:        name,
		Description: description,
		MaxAgents:   maxAgents,
		CreatedAt:   time.Now(),
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&ch).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &registrystore.ConflictError{Message: fmt.Sprintf("channel name %q already exists", name)}
		}
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	s.cachePut(&ch)

	log.Info("Channel created", "name", name, "channelID", ch.ChannelID, "maxAgents", maxAgents)
	return &ch, nil
}

func (s *Store) GetChannel(ctx context.Context, channelID uuid.UUID) (*model.Channel, error) {
	if ch, ok := s.cacheGet(channelID); ok {
		return ch, nil
	}
	var ch model.Channel
	res := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Limit(1).Find(&ch)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load channel: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	s.cachePut(&ch)
	return &ch, nil
}

func (s *Store) GetChannelByName(ctx context.Context, name string) (*model.Channel, error) {
	if ch, ok := s.cacheGetByName(name); ok {
		return ch, nil
	}
	var ch model.Channel
	res := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&ch)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load channel: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	s.cachePut(&ch)
	return &ch, nil
}

func (s *Store) ListChannels(ctx context.Context, limit, offset int) (*registrystore.ChannelPage, error) {
	if limit <= 0 {
		limit = defaultChannelLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Channel{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count channels: %w", err)
	}

	var chans []model.Channel
	if err := s.db.WithContext(ctx).
		Order("created_at ASC, name ASC").
		Limit(limit).
		Offset(offset).
		Find(&chans).Error; err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	counts := make(map[uuid.UUID]int64, len(chans))
	if len(chans) > 0 {
		ids := make([]uuid.UUID, len(chans))
		for i := range chans {
			ids[i] = chans[i].ChannelID
		}
		var rows []struct {
			ChannelID uuid.UUID
			N         int64
		}
		if err := s.db.WithContext(ctx).Model(&model.Agent{}).
			Select("channel_id, COUNT(*) AS n").
			Where("channel_id IN ?", ids).
			Group("channel_id").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to count agents: %w", err)
		}
		for _, r := range rows {
			counts[r.ChannelID] = r.N
		}
	}

	page := &registrystore.ChannelPage{
		Channels: make([]registrystore.ChannelSummary, len(chans)),
		Total:    total,
		HasMore:  int64(offset+limit) < total,
	}
	for i := range chans {
		page.Channels[i] = registrystore.ChannelSummary{
			Channel:    chans[i],
			AgentCount: counts[chans[i].ChannelID],
		}
	}
	return page, nil
}

func (s *Store) DeleteChannel(ctx context.Context, channelID uuid.UUID) error {
	var deleted model.Channel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch, err := requireChannel(tx, channelID)
		if err != nil {
			return err
		}
		deleted = *ch

		// Dependents first, so the delete order never leaves a dangling
		// reference visible. Read-status and mention rows hang off messages;
		// agents only ever read messages of their own channel.
		messageIDs := tx.Model(&model.Message{}).Select("message_id").Where("channel_id = ?", channelID)
		if err := tx.Where("message_id IN (?)", messageIDs).Delete(&model.ReadStatus{}).Error; err != nil {
			return fmt.Errorf("failed to delete read status: %w", err)
		}
		messageIDs = tx.Model(&model.Message{}).Select("message_id").Where("channel_id = ?", channelID)
		if err := tx.Where("message_id IN (?)", messageIDs).Delete(&model.Mention{}).Error; err != nil {
			return fmt.Errorf("failed to delete mentions: %w", err)
		}
		if err := tx.Where("channel_id = ?", channelID).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.Where("channel_id = ?", channelID).Delete(&model.Agent{}).Error; err != nil {
			return fmt.Errorf("failed to delete agents: %w", err)
		}
		if err := tx.Where("channel_id = ?", channelID).Delete(&model.Channel{}).Error; err != nil {
			return fmt.Errorf("failed to delete channel: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cacheInvalidate(&deleted)

	log.Info("Channel deleted", "name", deleted.Name, "channelID", channelID)
	return nil
}
