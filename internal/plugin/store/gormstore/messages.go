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

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_-]+)`)

// maxSendAttempts bounds the retry loop around sequence assignment. Each
// retry re-reads the channel's maximum sequence number, so a lost race is
// recoverable; the bound only guards against pathological contention.
const maxSendAttempts = 5

// parseMentions extracts @username tokens in order of first occurrence,
// case-sensitively, without duplicates.
func parseMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	mentions := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			mentions = append(mentions, m[1])
		}
	}
	return mentions
}

func (s *Store) SendMessage(ctx context.Context, channelID, agentID uuid.UUID, content string) (*registrystore.MessageView, error) {
	if len(content) < 1 || len(content) > 4000 {
		return nil, &registrystore.ValidationError{Field: "content", Message: "must be 1-4000 characters"}
	}
	mentions := parseMentions(content)

	for attempt := 1; ; attempt++ {
		view, err := s.trySend(ctx, channelID, agentID, content, mentions)
		if err == nil {
			log.Info("Message sent",
				"channelID", channelID,
				"agentID", agentID,
				"sequence", view.SequenceNumber,
				"mentions", len(mentions),
			)
			return view, nil
		}
		// A uniqueness violation here can only be the per-channel sequence
		// index: two senders read the same maximum. Re-read and retry.
		if isUniqueViolation(err) && attempt < maxSendAttempts {
			log.Debug("Sequence collision, retrying send", "channelID", channelID, "attempt", attempt)
			continue
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sequence assignment contention on channel %s: %w", channelID, err)
		}
		return nil, err
	}
}

// trySend performs one send attempt as a single transaction: membership and
// mention validation, sequence assignment, and the message, mention, and
// sender read-status inserts all commit together or not at all.
func (s *Store) trySend(ctx context.Context, channelID, agentID uuid.UUID, content string, mentions []string) (*registrystore.MessageView, error) {
	var view registrystore.MessageView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireChannel(s.lockForUpdate(tx), channelID); err != nil {
			return err
		}
		sender, err := requireAgent(tx, channelID, agentID)
		if err != nil {
			return err
		}

		// Every mention must name a current member or the send is rejected
		// whole; the transaction rollback discards nothing since nothing has
		// been written yet.
		for _, username := range mentions {
			var n int64
			if err := tx.Model(&model.Agent{}).
				Where("channel_id = ? AND username = ?", channelID, username).
				Count(&n).Error; err != nil {
				return fmt.Errorf("failed to resolve mention: %w", err)
			}
			if n == 0 {
				return &registrystore.DependencyError{Username: username}
			}
		}

		var maxSeq int64
		if err := tx.Model(&model.Message{}).
			Where("channel_id = ?", channelID).
			Select("COALESCE(MAX(sequence_number), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("failed to read sequence: %w", err)
		}

		now := time.Now()
		msg := model.Message{
			MessageID:      uuid.New(),
			ChannelID:      channelID,
			AgentID:        agentID,
			Content:        content,
			SequenceNumber: maxSeq + 1,
			CreatedAt:      now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		for _, username := range mentions {
			if err := tx.Create(&model.Mention{MessageID: msg.MessageID, MentionedUsername: username}).Error; err != nil {
				return fmt.Errorf("failed to insert mention: %w", err)
			}
		}
		if err := tx.Create(&model.ReadStatus{AgentID: agentID, MessageID: msg.MessageID, ReadAt: now}).Error; err != nil {
			return fmt.Errorf("failed to insert read status: %w", err)
		}

		mentioned := mentions
		if mentioned == nil {
			mentioned = []string{}
		}
		view = registrystore.MessageView{
			MessageID:      msg.MessageID,
			Sender:         registrystore.Sender{AgentID: agentID, Username: sender.Username},
			Content:        content,
			Mentions:       mentioned,
			SequenceNumber: msg.SequenceNumber,
			CreatedAt:      now,
			ReadBy:         []registrystore.ReadReceipt{{Username: sender.Username, ReadAt: now}},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}
