// Package gormstore implements the chat store on top of GORM. It is shared by
// the sqlite and postgres store plugins, which differ only in how they open
// the database and in how write serialization is obtained: postgres locks the
// channel row, sqlite already admits a single writer per transaction.
package gormstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/chirino/chat-service/internal/model"
	registrycache "github.com/chirino/chat-service/internal/registry/cache"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements registrystore.ChatStore for any GORM dialect.
type Store struct {
	db       *gorm.DB
	channels registrycache.ChannelCache
}

// New creates a store over the given database handle. channels may be nil to
// disable channel metadata caching.
func New(db *gorm.DB, channels registrycache.ChannelCache) *Store {
	return &Store{db: db, channels: channels}
}

// Models returns every model the store persists, in migration order.
func Models() []any {
	return []any{
		&model.Channel{},
		&model.Agent{},
		&model.Message{},
		&model.Mention{},
		&model.ReadStatus{},
	}
}

// lockForUpdate serializes capacity checks and sequence assignment on a
// channel. Postgres needs an explicit row lock; sqlite rejects FOR UPDATE and
// serializes writing transactions on its own.
func (s *Store) lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// isUniqueViolation reports whether err is a uniqueness-constraint violation
// from any supported backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return true
	}
	return false
}

// requireChannel loads the channel or fails with a typed not-found error.
func requireChannel(tx *gorm.DB, channelID uuid.UUID) (*model.Channel, error) {
	var ch model.Channel
	res := tx.Where("channel_id = ?", channelID).Limit(1).Find(&ch)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load channel: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &registrystore.NotFoundError{Resource: "channel", ID: channelID.String()}
	}
	return &ch, nil
}

// requireAgent loads the agent scoped to the channel, or fails with a typed
// not-found error.
func requireAgent(tx *gorm.DB, channelID, agentID uuid.UUID) (*model.Agent, error) {
	var agent model.Agent
	res := tx.Where("agent_id = ? AND channel_id = ?", agentID, channelID).Limit(1).Find(&agent)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load agent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &registrystore.NotFoundError{Resource: "agent", ID: agentID.String()}
	}
	return &agent, nil
}

func (s *Store) cacheGet(channelID uuid.UUID) (*model.Channel, bool) {
	if s.channels == nil {
		return nil, false
	}
	return s.channels.Get(channelID.String())
}

func (s *Store) cacheGetByName(name string) (*model.Channel, bool) {
	if s.channels == nil {
		return nil, false
	}
	return s.channels.GetByName(name)
}

func (s *Store) cachePut(ch *model.Channel) {
	if s.channels != nil {
		s.channels.Put(ch)
	}
}

func (s *Store) cacheInvalidate(ch *model.Channel) {
	if s.channels != nil {
		s.channels.Invalidate(ch)
	}
}

// enrichMessages builds the API view of the given messages: sender identity,
// mention usernames, and the read_by list as of the surrounding transaction.
func enrichMessages(tx *gorm.DB, msgs []model.Message) ([]registrystore.MessageView, error) {
	views := make([]registrystore.MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return views, nil
	}

	messageIDs := make([]uuid.UUID, len(msgs))
	senderIDs := make([]uuid.UUID, 0, len(msgs))
	seen := make(map[uuid.UUID]bool, len(msgs))
	for i := range msgs {
		messageIDs[i] = msgs[i].MessageID
		if !seen[msgs[i].AgentID] {
			seen[msgs[i].AgentID] = true
			senderIDs = append(senderIDs, msgs[i].AgentID)
		}
	}

	// Sender usernames. Senders that have since left the channel resolve to
	// "unknown"; their messages persist.
	var senders []model.Agent
	if err := tx.Where("agent_id IN ?", senderIDs).Find(&senders).Error; err != nil {
		return nil, fmt.Errorf("failed to load senders: %w", err)
	}
	usernames := make(map[uuid.UUID]string, len(senders))
	for i := range senders {
		usernames[senders[i].AgentID] = senders[i].Username
	}

	var mentionRows []model.Mention
	if err := tx.Where("message_id IN ?", messageIDs).
		Order("mentioned_username ASC").
		Find(&mentionRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load mentions: %w", err)
	}
	mentions := make(map[uuid.UUID][]string)
	for _, m := range mentionRows {
		mentions[m.MessageID] = append(mentions[m.MessageID], m.MentionedUsername)
	}

	// Read receipts joined with the reader's username. Readers that left the
	// channel have no read_status rows left either, so an inner join is right.
	type readRow struct {
		MessageID uuid.UUID
		Username  string
		ReadAt    time.Time
	}
	var reads []readRow
	if err := tx.Table("read_status").
		Select("read_status.message_id, agents.username, read_status.read_at").
		Joins("JOIN agents ON agents.agent_id = read_status.agent_id").
		Where("read_status.message_id IN ?", messageIDs).
		Order("read_status.read_at ASC").
		Scan(&reads).Error; err != nil {
		return nil, fmt.Errorf("failed to load read receipts: %w", err)
	}
	readBy := make(map[uuid.UUID][]registrystore.ReadReceipt)
	for _, r := range reads {
		readBy[r.MessageID] = append(readBy[r.MessageID], registrystore.ReadReceipt{Username: r.Username, ReadAt: r.ReadAt})
	}

	for i := range msgs {
		username, ok := usernames[msgs[i].AgentID]
		if !ok {
			username = "unknown"
		}
		mentioned := mentions[msgs[i].MessageID]
		if mentioned == nil {
			mentioned = []string{}
		}
		receipts := readBy[msgs[i].MessageID]
		if receipts == nil {
			receipts = []registrystore.ReadReceipt{}
		}
		views = append(views, registrystore.MessageView{
			MessageID:      msgs[i].MessageID,
			Sender:         registrystore.Sender{AgentID: msgs[i].AgentID, Username: username},
			Content:        msgs[i].Content,
			Mentions:       mentioned,
			SequenceNumber: msgs[i].SequenceNumber,
			CreatedAt:      msgs[i].CreatedAt,
			ReadBy:         receipts,
		})
	}
	return views, nil
}
