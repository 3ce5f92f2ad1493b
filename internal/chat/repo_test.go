package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestEnsureConversationCreatesAndReuses(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)
	repo := NewRepo(db)

	conv, err := repo.EnsureConversation(context.Background(), uid, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ID == uuid.Nil {
		t.Fatal("conversation id not assigned")
	}
	if conv.Title != nil {
		t.Fatal("new conversation must start untitled")
	}

	again, err := repo.EnsureConversation(context.Background(), uid, &conv.ID)
	if err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatal("expected the same conversation back")
	}
}

func TestEnsureConversationRejectsForeignOwner(t *testing.T) {
	db := openTestDB(t)
	owner := createTestUser(t, db)
	repo := NewRepo(db)

	conv, err := repo.EnsureConversation(context.Background(), owner, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	intruder := uuid.New()
	_, err = repo.EnsureConversation(context.Background(), intruder, &conv.ID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestSetTitleOnlyOnce(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)
	repo := NewRepo(db)

	conv, err := repo.EnsureConversation(context.Background(), uid, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.SetTitle(context.Background(), conv.ID, "first"); err != nil {
		t.Fatalf("set title: %v", err)
	}
	if err := repo.SetTitle(context.Background(), conv.ID, "second"); err != nil {
		t.Fatalf("set title again: %v", err)
	}

	var got Conversation
	if err := db.First(&got, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title == nil || *got.Title != "first" {
		t.Fatalf("title must stick to the first value, got %v", got.Title)
	}
}

func TestRecentMessagesNewestFirstWithLimit(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)
	repo := NewRepo(db)

	conv, err := repo.EnsureConversation(context.Background(), uid, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	base := time.Now().Add(-time.Hour).UTC()
	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		if err := repo.AppendMessage(context.Background(), &Message{
			ConversationID: conv.ID, Role: RoleUser, Content: c,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	msgs, err := repo.RecentMessages(context.Background(), conv.ID, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "four" || msgs[1].Content != "three" {
		t.Fatalf("expected newest first, got %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestListConversationsCountsMessages(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)
	repo := NewRepo(db)

	conv, err := repo.EnsureConversation(context.Background(), uid, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := repo.AppendMessage(context.Background(), &Message{
			ConversationID: conv.ID, Role: RoleUser, Content: "m",
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	list, err := repo.ListConversations(context.Background(), uid, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one conversation, got %d", len(list))
	}
	if list[0].MessageCount != 3 {
		t.Fatalf("expected 3 messages counted, got %d", list[0].MessageCount)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)
	repo := NewRepo(db)

	conv, err := repo.EnsureConversation(context.Background(), uid, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rr := 42
	meta := &MessageMetadata{
		Model:             "test-model",
		Streamed:          true,
		OddsEnriched:      true,
		OddsLegs:          2,
		RequestsRemaining: &rr,
		ToolCalls: []ToolCall{{
			Name: "lookup_odds",
			Args: map[string]string{"sport": "americanfootball_nfl"},
		}},
	}
	if err := repo.AppendMessage(context.Background(), &Message{
		ConversationID: conv.ID, Role: RoleAssistant, Content: "analysis", Metadata: meta,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	var got Message
	if err := db.First(&got, "conversation_id = ? AND role = ?", conv.ID, RoleAssistant).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Metadata == nil {
		t.Fatal("metadata lost")
	}
	if got.Metadata.Model != "test-model" || !got.Metadata.OddsEnriched || got.Metadata.OddsLegs != 2 {
		t.Fatalf("metadata mismatch: %+v", got.Metadata)
	}
	if got.Metadata.RequestsRemaining == nil || *got.Metadata.RequestsRemaining != 42 {
		t.Fatalf("remaining quota lost: %+v", got.Metadata.RequestsRemaining)
	}
	if len(got.Metadata.ToolCalls) != 1 || got.Metadata.ToolCalls[0].Name != "lookup_odds" {
		t.Fatalf("tool calls lost: %+v", got.Metadata.ToolCalls)
	}
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)
	repo := NewRepo(db)

	conv, err := repo.EnsureConversation(context.Background(), uid, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.AppendMessage(context.Background(), &Message{
		ConversationID: conv.ID, Role: RoleUser, Content: "bye",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := repo.DeleteConversation(context.Background(), uid, conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int64
	if err := db.Model(&Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("messages must go with the conversation, %d left", count)
	}

	err = repo.DeleteConversation(context.Background(), uid, conv.ID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found on second delete, got %v", err)
	}
}
