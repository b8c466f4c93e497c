package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a named communication scope with a membership cap.
type Channel struct {
	ChannelID   uuid.UUID `json:"channel_id"  gorm:"column:channel_id;primaryKey;type:uuid"`
	Name        string    `json:"name"        gorm:"size:100;not null;uniqueIndex:idx_channels_name"`
	Description string    `json:"description" gorm:"size:500"`
	MaxAgents   int       `json:"max_agents"  gorm:"not null;default:50"`
	CreatedAt   time.Time `json:"created_at"  gorm:"not null"`
	IsActive    bool      `json:"is_active"   gorm:"not null;default:true"`
}

func (Channel) TableName() string { return "channels" }

// Agent is a member of exactly one channel. Usernames are unique per channel,
// case-sensitively.
type Agent struct {
	AgentID         uuid.UUID `json:"agent_id"         gorm:"column:agent_id;primaryKey;type:uuid"`
	ChannelID       uuid.UUID `json:"channel_id"       gorm:"not null;type:uuid;index:idx_agents_channel;uniqueIndex:idx_agents_channel_username"`
	Username        string    `json:"username"         gorm:"size:50;not null;uniqueIndex:idx_agents_channel_username"`
	RoleDescription string    `json:"role_description" gorm:"size:200;not null"`
	JoinedAt        time.Time `json:"joined_at"        gorm:"not null"`
}

func (Agent) TableName() string { return "agents" }

// Message is immutable once created. SequenceNumber is assigned at creation
// and establishes the total message order within the channel. The sender
// column carries no foreign key because messages outlive their author's
// membership.
type Message struct {
	MessageID      uuid.UUID `json:"message_id"      gorm:"column:message_id;primaryKey;type:uuid"`
	ChannelID      uuid.UUID `json:"channel_id"      gorm:"not null;type:uuid;uniqueIndex:idx_messages_channel_seq"`
	AgentID        uuid.UUID `json:"agent_id"        gorm:"not null;type:uuid;index:idx_messages_agent"`
	Content        string    `json:"content"         gorm:"size:4000;not null"`
	SequenceNumber int64     `json:"sequence_number" gorm:"not null;uniqueIndex:idx_messages_channel_seq"`
	CreatedAt      time.Time `json:"created_at"      gorm:"not null"`
}

func (Message) TableName() string { return "messages" }

// Mention records one @username token resolved at send time. Rows are only
// ever created together with their message.
type Mention struct {
	MessageID         uuid.UUID `json:"message_id"         gorm:"column:message_id;primaryKey;type:uuid"`
	MentionedUsername string    `json:"mentioned_username" gorm:"size:50;primaryKey"`
}

func (Mention) TableName() string { return "message_mentions" }

// ReadStatus marks that an agent has retrieved a message. At most one row per
// (agent, message) pair; rows go away only when the agent or the message does.
type ReadStatus struct {
	AgentID   uuid.UUID `json:"agent_id"   gorm:"column:agent_id;primaryKey;type:uuid;index:idx_read_status_agent"`
	MessageID uuid.UUID `json:"message_id" gorm:"column:message_id;primaryKey;type:uuid"`
	ReadAt    time.Time `json:"read_at"    gorm:"not null"`
}

func (ReadStatus) TableName() string { return "read_status" }
