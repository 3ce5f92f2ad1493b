package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftkiller/backend/internal/ai"
)

const extractionSystemPrompt = `You are a betting query parser. Extract structured information from user messages about sports betting.

Intents:
- "analyze_specific_bets": the user names specific bets (e.g. "Chiefs -6.5, Cowboys ML")
- "request_suggestions": the user wants parlay ideas (e.g. "what's a good parlay?")
- "lookup_odds": the user wants to see odds for something
- "general_question": anything else

Entity types: player, team, bet_type, line, sport.

Sport keys (The Odds API): NFL -> "americanfootball_nfl", MLB -> "baseball_mlb",
NBA -> "basketball_nba", NHL -> "icehockey_nhl", College Football -> "americanfootball_ncaaf".

Always return a single JSON object matching:
{
  "intent": "analyze_specific_bets|request_suggestions|lookup_odds|general_question",
  "sport": "sport key or null",
  "confidence": 0.0-1.0,
  "entities": [{"type": "...", "value": "...", "sport_inferred": "sport key or null", "confidence": 0.0-1.0}],
  "suggested_queries": [{"query_type": "team_odds|game_odds|suggestions", "sport": "...", "team_name": "...", "market": "h2h|spreads|totals"}],
  "reasoning": "brief explanation"
}`

// sportKeywords maps well-known teams and players to sport keys for quick
// detection without a model call.
var sportKeywords = map[string]string{
	"chiefs":        "americanfootball_nfl",
	"kansas city":   "americanfootball_nfl",
	"cowboys":       "americanfootball_nfl",
	"dallas":        "americanfootball_nfl",
	"49ers":         "americanfootball_nfl",
	"niners":        "americanfootball_nfl",
	"san francisco": "americanfootball_nfl",
	"patriots":      "americanfootball_nfl",
	"packers":       "americanfootball_nfl",
	"eagles":        "americanfootball_nfl",
	"bills":         "americanfootball_nfl",
	"bengals":       "americanfootball_nfl",
	"aaron judge":   "baseball_mlb",
	"shohei ohtani": "baseball_mlb",
	"mookie betts":  "baseball_mlb",
	"yankees":       "baseball_mlb",
	"dodgers":       "baseball_mlb",
	"red sox":       "baseball_mlb",
	"lakers":        "basketball_nba",
	"warriors":      "basketball_nba",
	"celtics":       "basketball_nba",
	"lebron":        "basketball_nba",
	"curry":         "basketball_nba",
}

// Extractor turns one raw user turn into a BettingQuery via a small, fast
// model call. It never fails upward: transport and parse problems degrade
// to a conservative general-question query, and with no provider at all the
// heuristic parser takes over.
type Extractor struct {
	provider ai.Provider // nil disables the model path entirely
	timeout  time.Duration
	log      *zap.Logger
}

func NewExtractor(provider ai.Provider, timeout time.Duration, log *zap.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{provider: provider, timeout: timeout, log: log}
}

// Extract classifies the message. history is the conversation tail, oldest
// first; only the last few turns are fed to the model.
func (e *Extractor) Extract(ctx context.Context, message string, history []Message) BettingQuery {
	if e.provider == nil {
		return fallbackQuery(message)
	}

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	msgs := []ai.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: formatExtractionPrompt(message, history)},
	}

	var out string
	var err error
	if jp, ok := e.provider.(ai.JSONProvider); ok {
		out, err = jp.ChatJSON(tctx, msgs)
	} else {
		out, err = e.provider.Chat(tctx, msgs)
	}
	if err != nil {
		e.log.Warn("intent extraction call failed, using conservative default", zap.Error(err))
		return conservativeQuery()
	}

	q, err := parseExtraction(out)
	if err != nil {
		e.log.Warn("intent extraction returned unparseable output, using conservative default",
			zap.Error(err), zap.String("raw", truncate(out, 500)))
		return conservativeQuery()
	}
	return q
}

// conservativeQuery is the degraded result when the model path failed:
// a general question with no entities, so no odds quota gets spent on a
// guess.
func conservativeQuery() BettingQuery {
	return BettingQuery{
		Intent:           IntentGeneral,
		Confidence:       0,
		Entities:         []Entity{},
		SuggestedQueries: []SuggestedQuery{},
		Reasoning:        "extraction degraded",
	}
}

func formatExtractionPrompt(message string, history []Message) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Previous conversation context:\n")
		start := 0
		if len(history) > 6 {
			start = len(history) - 6
		}
		for _, m := range history[start:] {
			b.WriteString(strings.ToUpper(m.Role))
			b.WriteString(": ")
			b.WriteString(truncate(m.Content, 200))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Current user message: ")
	b.WriteString(message)
	b.WriteString("\n\nExtract the betting intent and return JSON:")
	return b.String()
}

func parseExtraction(raw string) (BettingQuery, error) {
	raw = stripCodeFence(raw)

	var q BettingQuery
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return BettingQuery{}, err
	}
	if !q.Intent.valid() {
		return BettingQuery{}, errInvalidIntent
	}
	if q.Entities == nil {
		q.Entities = []Entity{}
	}
	if q.SuggestedQueries == nil {
		q.SuggestedQueries = []SuggestedQuery{}
	}
	return q, nil
}

var errInvalidIntent = jsonError("unknown intent value")

type jsonError string

func (e jsonError) Error() string { return string(e) }

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// fallbackQuery is the conservative heuristic used when the model path is
// unavailable or returns garbage: keyword checks plus comma/"and" leg
// detection, defaulting to a general question with no entities.
func fallbackQuery(message string) BettingQuery {
	lower := strings.ToLower(message)
	sport := detectSport(lower)

	q := BettingQuery{
		Intent:           IntentGeneral,
		Sport:            sport,
		Confidence:       0.5,
		Entities:         []Entity{},
		SuggestedQueries: []SuggestedQuery{},
		Reasoning:        "heuristic fallback",
	}

	switch {
	case containsAny(lower, "suggest", "good parlay", "recommend", "what should"):
		q.Intent = IntentSuggestions
		if sport == "" {
			q.Sport = "americanfootball_nfl"
		}
		q.SuggestedQueries = []SuggestedQuery{{QueryType: "suggestions", Sport: q.Sport}}
	case containsAny(lower, "odds", "line", "spread"):
		q.Intent = IntentLookupOdds
	case strings.Contains(message, ",") || strings.Contains(lower, " and "):
		q.Intent = IntentAnalyzeBets
		q.Entities = splitLegs(message)
	}
	return q
}

// splitLegs treats comma- or "and"-separated fragments as candidate team
// entities. Crude, but good enough to drive odds resolution when the model
// path is down.
func splitLegs(message string) []Entity {
	parts := strings.FieldsFunc(message, func(r rune) bool { return r == ',' })
	if len(parts) == 1 {
		parts = strings.Split(message, " and ")
	}
	entities := make([]Entity, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		entities = append(entities, Entity{
			Type:       EntityTeam,
			Value:      p,
			Sport:      detectSport(strings.ToLower(p)),
			Confidence: 0.4,
		})
	}
	return entities
}

func detectSport(lower string) string {
	for kw, sport := range sportKeywords {
		if strings.Contains(lower, kw) {
			return sport
		}
	}
	switch {
	case containsAny(lower, "nfl", "football"):
		return "americanfootball_nfl"
	case containsAny(lower, "mlb", "baseball"):
		return "baseball_mlb"
	case containsAny(lower, "nba", "basketball"):
		return "basketball_nba"
	case containsAny(lower, "nhl", "hockey"):
		return "icehockey_nhl"
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
