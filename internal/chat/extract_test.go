package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/draftkiller/backend/internal/ai"
)

func TestFallbackSuggestionIntent(t *testing.T) {
	q := fallbackQuery("what's a good parlay for this weekend?")
	if q.Intent != IntentSuggestions {
		t.Fatalf("expected suggestions intent, got %q", q.Intent)
	}
	if q.Sport == "" {
		t.Fatal("suggestions should carry a sport")
	}
	if len(q.SuggestedQueries) != 1 {
		t.Fatalf("expected one suggested query, got %d", len(q.SuggestedQueries))
	}
}

func TestFallbackOddsIntent(t *testing.T) {
	q := fallbackQuery("show me the spread on the Chiefs game")
	if q.Intent != IntentLookupOdds {
		t.Fatalf("expected lookup intent, got %q", q.Intent)
	}
	if q.Sport != "americanfootball_nfl" {
		t.Fatalf("expected NFL inferred from team name, got %q", q.Sport)
	}
}

func TestFallbackAnalyzeSplitsLegs(t *testing.T) {
	q := fallbackQuery("Chiefs -6.5, Lakers ML")
	if q.Intent != IntentAnalyzeBets {
		t.Fatalf("expected analyze intent, got %q", q.Intent)
	}
	if len(q.Entities) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(q.Entities))
	}
	if q.Entities[0].Sport != "americanfootball_nfl" {
		t.Fatalf("expected NFL for the first leg, got %q", q.Entities[0].Sport)
	}
	if q.Entities[1].Sport != "basketball_nba" {
		t.Fatalf("expected NBA for the second leg, got %q", q.Entities[1].Sport)
	}
}

func TestFallbackAndSeparator(t *testing.T) {
	q := fallbackQuery("Cowboys ML and Eagles ML")
	if q.Intent != IntentAnalyzeBets {
		t.Fatalf("expected analyze intent, got %q", q.Intent)
	}
	if len(q.Entities) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(q.Entities))
	}
}

func TestFallbackGeneralQuestion(t *testing.T) {
	q := fallbackQuery("how does a teaser work?")
	if q.Intent != IntentGeneral {
		t.Fatalf("expected general intent, got %q", q.Intent)
	}
	if len(q.Entities) != 0 {
		t.Fatalf("expected no entities, got %d", len(q.Entities))
	}
}

func TestParseExtractionStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"intent\":\"lookup_odds\",\"sport\":\"baseball_mlb\",\"confidence\":0.9}\n```"
	q, err := parseExtraction(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Intent != IntentLookupOdds || q.Sport != "baseball_mlb" {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.Entities == nil || q.SuggestedQueries == nil {
		t.Fatal("slices must be non-nil after parse")
	}
}

func TestParseExtractionRejectsUnknownIntent(t *testing.T) {
	if _, err := parseExtraction(`{"intent":"make_coffee"}`); err == nil {
		t.Fatal("expected error for unknown intent")
	}
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	if _, err := parseExtraction("sure! here's the json you asked for"); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}

func TestExtractWithoutProviderUsesFallback(t *testing.T) {
	e := NewExtractor(nil, time.Second, nil)
	q := e.Extract(context.Background(), "recommend me something for the NBA", nil)
	if q.Intent != IntentSuggestions {
		t.Fatalf("expected fallback suggestions, got %q", q.Intent)
	}
	if q.Sport != "basketball_nba" {
		t.Fatalf("expected NBA, got %q", q.Sport)
	}
}

type garbageProvider struct{}

func (garbageProvider) Chat(ctx context.Context, msgs []ai.Message) (string, error) {
	return "happy to help! here are my thoughts", nil
}

type brokenProvider struct{}

func (brokenProvider) Chat(ctx context.Context, msgs []ai.Message) (string, error) {
	return "", errors.New("gateway timeout")
}

func TestExtractUnparseableOutputDegradesConservatively(t *testing.T) {
	e := NewExtractor(garbageProvider{}, time.Second, nil)
	q := e.Extract(context.Background(), "Chiefs -6.5, Cowboys ML", nil)
	if q.Intent != IntentGeneral {
		t.Fatalf("expected general_question, got %q", q.Intent)
	}
	if len(q.Entities) != 0 || len(q.SuggestedQueries) != 0 {
		t.Fatalf("expected empty query, got %+v", q)
	}
}

func TestExtractTransportFailureDegradesConservatively(t *testing.T) {
	e := NewExtractor(brokenProvider{}, time.Second, nil)
	q := e.Extract(context.Background(), "Chiefs -6.5, Cowboys ML", nil)
	if q.Intent != IntentGeneral {
		t.Fatalf("expected general_question, got %q", q.Intent)
	}
}

func TestDetectSportKeywords(t *testing.T) {
	cases := map[string]string{
		"the yankees look strong": "baseball_mlb",
		"curry is on fire":        "basketball_nba",
		"any nhl games tonight":   "icehockey_nhl",
		"random chatter":          "",
	}
	for in, want := range cases {
		if got := detectSport(in); got != want {
			t.Errorf("detectSport(%q) = %q, want %q", in, got, want)
		}
	}
}
