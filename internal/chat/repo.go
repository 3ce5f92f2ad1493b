package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// EnsureConversation reuses the given conversation when it exists and
// belongs to the caller, and lazily creates a fresh untitled one otherwise.
// A conversation id owned by somebody else reads as not found.
func (r *Repo) EnsureConversation(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (*Conversation, error) {
	if conversationID != nil {
		var conv Conversation
		err := r.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", *conversationID, userID).
			First(&conv).Error
		if err != nil {
			return nil, err
		}
		return &conv, nil
	}

	conv := &Conversation{UserID: userID}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// AppendMessage inserts the message and bumps the conversation's
// updated_at in one transaction.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", m.ConversationID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *Repo) SetTitle(ctx context.Context, conversationID uuid.UUID, title string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ? AND title IS NULL", conversationID).
		Update("title", title).Error
}

// RecentMessages returns the newest messages first; callers reverse for
// prompt order.
func (r *Repo) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 6
	}
	var msgs []Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

type ConversationSummary struct {
	ID           uuid.UUID `json:"id"`
	Title        *string   `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}

func (r *Repo) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ConversationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []ConversationSummary
	err := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Select("conversations.id, conversations.title, conversations.created_at, conversations.updated_at, count(messages.id) as message_count").
		Joins("LEFT JOIN messages ON messages.conversation_id = conversations.id").
		Where("conversations.user_id = ?", userID).
		Group("conversations.id").
		Order("conversations.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation loads one owned conversation with its messages in
// creation order.
func (r *Repo) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation removes an owned conversation and its messages.
func (r *Repo) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv Conversation
		if err := tx.Where("id = ? AND user_id = ?", conversationID, userID).First(&conv).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&conv).Error
	})
}
