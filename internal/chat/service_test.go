package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/draftkiller/backend/internal/ai"
	"github.com/draftkiller/backend/internal/models"
)

// fakeStreamProvider replays a fixed script of chunks, then an optional
// error, then closes both channels.
type fakeStreamProvider struct {
	chunks []string
	err    error
	block  bool // never produce anything, wait for cancellation
}

func (p *fakeStreamProvider) StreamChat(ctx context.Context, msgs []ai.Message) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		if p.block {
			<-ctx.Done()
			errs <- ctx.Err()
			return
		}
		for _, c := range p.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return out, errs
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &Conversation{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, provider ai.StreamProvider) *Service {
	t.Helper()
	return NewService(ServiceOptions{
		Repo:            NewRepo(db),
		Analysis:        provider,
		Extractor:       NewExtractor(nil, time.Second, nil),
		Enricher:        NewEnricher(nil, "", nil),
		Prompts:         NewPromptBuilder("", 0),
		Model:           "test-model",
		AnalysisTimeout: 5 * time.Second,
		HistoryWindow:   6,
	})
}

func createTestUser(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	u := models.User{Email: t.Name() + "@example.com", PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream did not finish, got %d events so far", len(out))
		}
	}
}

func TestStreamAnalysisPersistsBothTurns(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)

	svc := newTestService(t, db, &fakeStreamProvider{chunks: []string{"This parlay ", "is risky."}})

	events, err := svc.StreamAnalysis(context.Background(), Identity{UserID: uid},
		StreamRequest{Message: "Chiefs -6.5 and Cowboys ML, thoughts?"})
	if err != nil {
		t.Fatalf("stream analysis: %v", err)
	}

	got := drain(t, events)
	if len(got) == 0 {
		t.Fatal("expected events")
	}
	last := got[len(got)-1]
	if last.Type != EventDone {
		t.Fatalf("expected done event, got %q", last.Type)
	}
	if last.ConversationID == "" {
		t.Fatal("done event should carry the conversation id")
	}

	var text string
	for _, ev := range got {
		if ev.Type == EventContent {
			text += ev.Delta
		}
	}
	if text != "This parlay is risky." {
		t.Fatalf("unexpected streamed text: %q", text)
	}

	convID := uuid.MustParse(last.ConversationID)
	var msgs []Message
	if err := db.Where("conversation_id = ?", convID).Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected user and assistant rows, got %d", len(msgs))
	}
	byRole := map[string]Message{}
	for _, m := range msgs {
		byRole[m.Role] = m
	}
	if _, ok := byRole[RoleUser]; !ok {
		t.Fatal("user message not persisted")
	}
	assistant, ok := byRole[RoleAssistant]
	if !ok {
		t.Fatal("assistant message not persisted")
	}
	if assistant.Content != "This parlay is risky." {
		t.Fatalf("assistant content mismatch: %q", assistant.Content)
	}
	if assistant.Metadata == nil || assistant.Metadata.Model != "test-model" || !assistant.Metadata.Streamed {
		t.Fatalf("unexpected metadata: %+v", assistant.Metadata)
	}

	var conv Conversation
	if err := db.First(&conv, "id = ?", convID).Error; err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	if conv.Title == nil || *conv.Title != "Chiefs -6.5 and Cowboys ML, thoughts?" {
		t.Fatalf("expected title from first message, got %v", conv.Title)
	}
}

func TestStreamAnalysisCancelLeavesNoAssistantRow(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)

	svc := newTestService(t, db, &fakeStreamProvider{block: true})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.StreamAnalysis(ctx, Identity{UserID: uid},
		StreamRequest{Message: "take your time"})
	if err != nil {
		t.Fatalf("stream analysis: %v", err)
	}

	cancel()
	got := drain(t, events)

	for _, ev := range got {
		if ev.Type == EventDone || ev.Type == EventError {
			t.Fatalf("cancelled stream emitted terminal event %q", ev.Type)
		}
	}

	var count int64
	if err := db.Model(&Message{}).Where("role = ?", RoleAssistant).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no assistant rows after cancel, got %d", count)
	}

	var userCount int64
	if err := db.Model(&Message{}).Where("role = ?", RoleUser).Count(&userCount).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if userCount != 1 {
		t.Fatalf("user message should survive cancellation, got %d rows", userCount)
	}
}

func TestStreamAnalysisProviderErrorPersistsApology(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)

	svc := newTestService(t, db, &fakeStreamProvider{
		chunks: []string{"partial "},
		err:    errors.New("upstream exploded"),
	})

	events, err := svc.StreamAnalysis(context.Background(), Identity{UserID: uid},
		StreamRequest{Message: "analyze this"})
	if err != nil {
		t.Fatalf("stream analysis: %v", err)
	}

	got := drain(t, events)
	last := got[len(got)-1]
	if last.Type != EventError {
		t.Fatalf("expected error event last, got %q", last.Type)
	}
	for _, ev := range got {
		if ev.Type == EventDone {
			t.Fatal("failed stream must not emit done")
		}
	}

	var msg Message
	if err := db.Where("role = ?", RoleAssistant).First(&msg).Error; err != nil {
		t.Fatalf("load assistant row: %v", err)
	}
	if msg.Content != failureApology {
		t.Fatalf("expected apology content, got %q", msg.Content)
	}
	if msg.Metadata == nil || !msg.Metadata.Error {
		t.Fatalf("expected error metadata, got %+v", msg.Metadata)
	}
}

func TestStreamAnalysisEmptyCompletionFails(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)

	svc := newTestService(t, db, &fakeStreamProvider{})

	events, err := svc.StreamAnalysis(context.Background(), Identity{UserID: uid},
		StreamRequest{Message: "say nothing"})
	if err != nil {
		t.Fatalf("stream analysis: %v", err)
	}

	got := drain(t, events)
	if len(got) == 0 || got[len(got)-1].Type != EventError {
		t.Fatalf("empty stream should end in error, got %+v", got)
	}
}

func TestStreamAnalysisAnonymousHasNoPersistence(t *testing.T) {
	db := openTestDB(t)

	svc := newTestService(t, db, &fakeStreamProvider{chunks: []string{"fine"}})

	events, err := svc.StreamAnalysis(context.Background(),
		Identity{SessionID: "abc123"},
		StreamRequest{Message: "quick take on the Bills?"})
	if err != nil {
		t.Fatalf("stream analysis: %v", err)
	}

	got := drain(t, events)
	last := got[len(got)-1]
	if last.Type != EventDone {
		t.Fatalf("expected done, got %q", last.Type)
	}
	if last.ConversationID != "" {
		t.Fatal("anonymous done must not reference a conversation")
	}

	var count int64
	if err := db.Model(&Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("anonymous streams must not persist, got %d rows", count)
	}
}

func TestStreamAnalysisUnknownConversation(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)

	svc := newTestService(t, db, &fakeStreamProvider{chunks: []string{"x"}})

	other := uuid.New()
	_, err := svc.StreamAnalysis(context.Background(), Identity{UserID: uid},
		StreamRequest{Message: "hi", ConversationID: &other})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestStreamAnalysisContinuesConversation(t *testing.T) {
	db := openTestDB(t)
	uid := createTestUser(t, db)

	svc := newTestService(t, db, &fakeStreamProvider{chunks: []string{"reply"}})

	events, err := svc.StreamAnalysis(context.Background(), Identity{UserID: uid},
		StreamRequest{Message: "first turn"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	got := drain(t, events)
	convID := uuid.MustParse(got[len(got)-1].ConversationID)

	events, err = svc.StreamAnalysis(context.Background(), Identity{UserID: uid},
		StreamRequest{Message: "second turn", ConversationID: &convID})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	got = drain(t, events)
	if got[len(got)-1].ConversationID != convID.String() {
		t.Fatal("second turn should reuse the conversation")
	}

	var count int64
	if err := db.Model(&Message{}).Where("conversation_id = ?", convID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 messages after two turns, got %d", count)
	}

	var convCount int64
	if err := db.Model(&Conversation{}).Count(&convCount).Error; err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if convCount != 1 {
		t.Fatalf("expected a single conversation, got %d", convCount)
	}
}

func TestTitleTruncation(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	title := titleFrom(long)
	if len(title) != maxTitleLen {
		t.Fatalf("expected %d chars, got %d", maxTitleLen, len(title))
	}
	if title[maxTitleLen-3:] != "..." {
		t.Fatalf("expected ellipsis suffix, got %q", title[maxTitleLen-3:])
	}

	short := "short question"
	if titleFrom(short) != short {
		t.Fatal("short titles must pass through unchanged")
	}
}
