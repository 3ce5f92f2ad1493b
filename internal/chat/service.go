package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftkiller/backend/internal/ai"
)

// ErrConversationNotFound is returned when the referenced conversation does
// not exist or belongs to another user.
var ErrConversationNotFound = errors.New("conversation not found")

const failureApology = "I'm sorry, I wasn't able to finish that analysis. Please try again."

const maxTitleLen = 100

// Identity is the caller of a chat operation. Authenticated callers carry a
// user ID; anonymous callers carry only a session ID and get no persistence.
type Identity struct {
	UserID    uuid.UUID
	SessionID string
}

func (id Identity) Anonymous() bool { return id.UserID == uuid.Nil }

// StreamRequest is one analysis turn.
type StreamRequest struct {
	Message        string
	ConversationID *uuid.UUID
}

// Service orchestrates the analysis pipeline: persist the user turn, extract
// intent, enrich with odds, build the prompt, stream the model, persist the
// outcome.
type Service struct {
	repo      *Repo
	analysis  ai.StreamProvider
	extractor *Extractor
	enricher  *Enricher
	prompts   *PromptBuilder
	log       *zap.Logger

	model   string
	timeout time.Duration
	window  int
}

type ServiceOptions struct {
	Repo      *Repo
	Analysis  ai.StreamProvider
	Extractor *Extractor
	Enricher  *Enricher
	Prompts   *PromptBuilder
	Log       *zap.Logger

	Model           string
	AnalysisTimeout time.Duration
	HistoryWindow   int
}

func NewService(opts ServiceOptions) *Service {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 6
	}
	if opts.Prompts == nil {
		opts.Prompts = NewPromptBuilder("", 0)
	}
	return &Service{
		repo:      opts.Repo,
		analysis:  opts.Analysis,
		extractor: opts.Extractor,
		enricher:  opts.Enricher,
		prompts:   opts.Prompts,
		log:       opts.Log,
		model:     opts.Model,
		timeout:   opts.AnalysisTimeout,
		window:    opts.HistoryWindow,
	}
}

// StreamAnalysis runs one analysis turn, delivering events on the returned
// channel. Persistence errors for the user turn surface synchronously so the
// handler can answer with a proper status before any event is written. The
// channel closes after the terminal event.
func (s *Service) StreamAnalysis(ctx context.Context, id Identity, req StreamRequest) (<-chan Event, error) {
	var conv *Conversation
	var history []Message

	if !id.Anonymous() {
		var err error
		conv, err = s.repo.EnsureConversation(ctx, id.UserID, req.ConversationID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		if err != nil {
			return nil, err
		}

		history, err = s.repo.RecentMessages(ctx, conv.ID, s.window)
		if err != nil {
			return nil, err
		}
		reverseMessages(history)

		userMsg := &Message{ConversationID: conv.ID, Role: RoleUser, Content: req.Message}
		if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
			return nil, err
		}
		if conv.Title == nil {
			if err := s.repo.SetTitle(ctx, conv.ID, titleFrom(req.Message)); err != nil {
				s.log.Warn("failed to set conversation title", zap.Error(err))
			}
		}
	}

	events := make(chan Event, 32)
	go s.runPipeline(ctx, id, req, conv, history, events)
	return events, nil
}

func (s *Service) runPipeline(ctx context.Context, id Identity, req StreamRequest, conv *Conversation, history []Message, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	query := s.extractor.Extract(ctx, req.Message, history)
	enriched, toolCalls := s.enricher.Enrich(ctx, query, emit)

	msgs := s.prompts.Build(history, req.Message, enriched)

	stream := &analysisStream{provider: s.analysis, timeout: s.timeout}
	state, text, err := stream.run(ctx, msgs, func(delta string) {
		emit(Event{Type: EventContent, Delta: delta})
	})

	meta := s.buildMetadata(enriched, toolCalls)

	switch state {
	case StateCancelled:
		// The client walked away. Leave no assistant trace.
		s.log.Info("analysis cancelled by client",
			zap.String("intent", string(query.Intent)))
		return

	case StateFailed:
		s.log.Error("analysis stream failed",
			zap.String("intent", string(query.Intent)), zap.Error(err))
		if conv != nil {
			meta.Error = true
			s.persistAssistant(conv.ID, failureApology, meta)
		}
		emit(Event{Type: EventError, Message: "analysis failed, please try again"})
		return

	case StateCompleted:
		var convID string
		if conv != nil {
			if err := s.persistAssistant(conv.ID, text, meta); err != nil {
				// the streamed content already reached the client, but the
				// save failing is still a failed request
				emit(Event{Type: EventError, Message: "analysis could not be saved"})
				return
			}
			convID = conv.ID.String()
		}
		emit(Event{Type: EventDone, ConversationID: convID})
	}
}

func (s *Service) buildMetadata(enriched *EnrichedOdds, toolCalls []ToolCall) *MessageMetadata {
	meta := &MessageMetadata{Model: s.model, Streamed: true, ToolCalls: toolCalls}
	if enriched != nil {
		meta.OddsEnriched = !enriched.Degraded && len(enriched.Legs) > 0
		meta.OddsLegs = len(enriched.Legs)
		meta.EnrichmentDegraded = enriched.Degraded
		if enriched.RequestsRemaining >= 0 {
			rr := enriched.RequestsRemaining
			meta.RequestsRemaining = &rr
		}
	}
	return meta
}

// persistAssistant writes the assistant turn on a fresh context so a client
// disconnect after completion cannot lose the row.
func (s *Service) persistAssistant(convID uuid.UUID, content string, meta *MessageMetadata) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := &Message{ConversationID: convID, Role: RoleAssistant, Content: content, Metadata: meta}
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		s.log.Error("failed to persist assistant message",
			zap.String("conversation_id", convID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ConversationSummary, error) {
	return s.repo.ListConversations(ctx, userID, limit, offset)
}

func (s *Service) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, userID, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	return conv, err
}

func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	err := s.repo.DeleteConversation(ctx, userID, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

func reverseMessages(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func titleFrom(message string) string {
	if len(message) <= maxTitleLen {
		return message
	}
	return message[:maxTitleLen-3] + "..."
}
