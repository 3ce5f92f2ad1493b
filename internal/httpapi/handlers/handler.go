package handlers

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftkiller/backend/internal/ai"
	"github.com/draftkiller/backend/internal/chat"
	"github.com/draftkiller/backend/internal/config"
	"github.com/draftkiller/backend/internal/odds"
	"github.com/draftkiller/backend/internal/usage"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	Log     *zap.Logger
	ChatSvc *chat.Service
	Tracker *usage.Tracker
}

func NewHandler(db *gorm.DB, cfg config.Config, log *zap.Logger, tracker *usage.Tracker) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	analysis := ai.NewOpenRouterProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMSiteURL, cfg.LLMAppName)

	// Extraction runs on a smaller, cheaper model against the same endpoint.
	var extraction ai.Provider
	if cfg.LLMAPIKey != "" {
		extraction = ai.NewOpenRouterProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMExtractionModel, cfg.LLMSiteURL, cfg.LLMAppName)
	}

	oddsClient := odds.NewClient(cfg.OddsBaseURL, cfg.OddsAPIKey, cfg.OddsSportsTTL, cfg.OddsEventsTTL)
	oddsSvc := odds.NewService(oddsClient)

	repo := chat.NewRepo(db)
	chatSvc := chat.NewService(chat.ServiceOptions{
		Repo:            repo,
		Analysis:        analysis,
		Extractor:       chat.NewExtractor(extraction, cfg.ExtractionTimeout, log),
		Enricher:        chat.NewEnricher(oddsSvc, cfg.DefaultSport, log),
		Prompts:         chat.NewPromptBuilder("", cfg.PromptCharBudget),
		Log:             log,
		Model:           cfg.LLMModel,
		AnalysisTimeout: cfg.AnalysisTimeout,
		HistoryWindow:   cfg.HistoryWindow,
	})

	return &Handler{DB: db, Cfg: cfg, Log: log, ChatSvc: chatSvc, Tracker: tracker}
}
