package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:char(36);index;not null" json:"-"`
	Title     *string   `gorm:"size:500" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ToolCall records one odds lookup performed while answering a turn.
type ToolCall struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// MessageMetadata is the typed shape stored in the message metadata column.
// Only assistant messages carry it.
type MessageMetadata struct {
	Model              string     `json:"model,omitempty"`
	Streamed           bool       `json:"streamed,omitempty"`
	OddsEnriched       bool       `json:"odds_enriched,omitempty"`
	OddsLegs           int        `json:"odds_legs,omitempty"`
	EnrichmentDegraded bool       `json:"enrichment_degraded,omitempty"`
	Error              bool       `json:"error,omitempty"`
	ToolCalls          []ToolCall `json:"tool_calls,omitempty"`
	RequestsRemaining  *int       `json:"api_requests_remaining,omitempty"`
}

type Message struct {
	ID             uuid.UUID        `gorm:"type:char(36);primaryKey" json:"id"`
	ConversationID uuid.UUID        `gorm:"type:char(36);index:idx_msg_conv_created,priority:1;not null" json:"conversation_id"`
	Role           string           `gorm:"size:16;not null" json:"role"`
	Content        string           `gorm:"type:text;not null" json:"content"`
	Metadata       *MessageMetadata `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt      time.Time        `gorm:"index:idx_msg_conv_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
