package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftkiller/backend/internal/odds"
)

// LegOdds carries the resolved market data for one leg of the user's query.
// Resolved is false when no upcoming event matched the entity.
type LegOdds struct {
	Entity       string            `json:"entity"`
	Resolved     bool              `json:"resolved"`
	Event        string            `json:"event,omitempty"`
	CommenceTime time.Time         `json:"commence_time,omitempty"`
	Market       string            `json:"market,omitempty"`
	Best         *odds.Quote       `json:"best,omitempty"`
	Worst        *odds.Quote       `json:"worst,omitempty"`
	Suggestions  []odds.Suggestion `json:"suggestions,omitempty"`
}

// EnrichedOdds is the odds context attached to one analysis. Degraded means
// the upstream was unreachable or over quota; the stream proceeds without
// live numbers in that case.
type EnrichedOdds struct {
	Sport             string    `json:"sport"`
	Legs              []LegOdds `json:"legs"`
	Degraded          bool      `json:"degraded"`
	FetchedAt         time.Time `json:"fetched_at"`
	RequestsRemaining int       `json:"requests_remaining"`
}

// Enricher resolves the entities of a BettingQuery against live odds,
// emitting tool events as it goes.
type Enricher struct {
	svc          *odds.Service
	defaultSport string
	log          *zap.Logger
}

func NewEnricher(svc *odds.Service, defaultSport string, log *zap.Logger) *Enricher {
	if defaultSport == "" {
		defaultSport = "americanfootball_nfl"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{svc: svc, defaultSport: defaultSport, log: log}
}

// Enrich fetches odds for the query. A nil result means the query needs no
// odds context at all. Upstream failures never propagate: the result comes
// back with Degraded set and zero legs.
func (e *Enricher) Enrich(ctx context.Context, q BettingQuery, emit func(Event)) (*EnrichedOdds, []ToolCall) {
	if e.svc == nil || q.Intent == IntentGeneral {
		return nil, nil
	}

	sport := q.Sport
	if sport == "" {
		sport = e.defaultSport
	}

	out := &EnrichedOdds{Sport: sport, FetchedAt: time.Now().UTC()}
	var calls []ToolCall

	switch q.Intent {
	case IntentSuggestions:
		calls = e.enrichSuggestions(ctx, out, emit)
	case IntentAnalyzeBets, IntentLookupOdds:
		calls = e.enrichLegs(ctx, q, out, emit)
	default:
		return nil, nil
	}

	out.RequestsRemaining = e.svc.RemainingRequests()
	return out, calls
}

func (e *Enricher) enrichSuggestions(ctx context.Context, out *EnrichedOdds, emit func(Event)) []ToolCall {
	call := ToolCall{Name: "suggest_bets", Args: map[string]string{"sport": out.Sport}}
	emit(Event{Type: EventToolCall, Tool: &call})

	sports, err := e.svc.ListActiveSports(ctx)
	if err != nil {
		e.degrade(out, err, emit)
		return []ToolCall{call}
	}
	if !sportActive(sports, out.Sport) {
		e.log.Debug("requested sport not in active catalog, keeping default", zap.String("sport", out.Sport))
	}

	sugg, err := e.svc.SuggestionsForSport(ctx, out.Sport, 5)
	if err != nil {
		e.degrade(out, err, emit)
		return []ToolCall{call}
	}

	leg := LegOdds{Entity: out.Sport, Resolved: len(sugg) > 0, Market: odds.MarketMoneyline, Suggestions: sugg}
	out.Legs = append(out.Legs, leg)
	emit(Event{Type: EventToolOutput, Output: fmt.Sprintf("found %d candidate bets for %s", len(sugg), out.Sport)})
	return []ToolCall{call}
}

func (e *Enricher) enrichLegs(ctx context.Context, q BettingQuery, out *EnrichedOdds, emit func(Event)) []ToolCall {
	var calls []ToolCall
	for _, ent := range q.Entities {
		if ent.Type != EntityTeam && ent.Type != EntityPlayer {
			continue
		}
		sport := ent.Sport
		if sport == "" {
			sport = out.Sport
		}

		call := ToolCall{Name: "lookup_odds", Args: map[string]string{"sport": sport, "query": ent.Value}}
		calls = append(calls, call)
		emit(Event{Type: EventToolCall, Tool: &call})

		events, err := e.svc.FindEventsByTeam(ctx, sport, ent.Value)
		if err != nil {
			e.degrade(out, err, emit)
			return calls
		}
		leg := e.resolveLeg(ctx, sport, ent.Value, events)
		out.Legs = append(out.Legs, leg)

		if leg.Resolved {
			emit(Event{Type: EventToolOutput, Output: fmt.Sprintf("%s: best %s", leg.Event, quoteLine(leg.Best))})
		} else {
			emit(Event{Type: EventToolOutput, Output: fmt.Sprintf("no upcoming event matched %q", ent.Value)})
		}
	}
	return calls
}

func (e *Enricher) resolveLeg(ctx context.Context, sport, entity string, events []odds.Event) LegOdds {
	leg := LegOdds{Entity: entity}
	if len(events) == 0 {
		return leg
	}
	ev := events[0]
	leg.Resolved = true
	leg.Event = ev.Matchup()
	leg.CommenceTime = ev.CommenceTime
	leg.Market = odds.MarketMoneyline

	cmp, err := e.svc.CompareBookmakerOdds(ctx, sport, ev.ID, odds.MarketMoneyline)
	if err != nil || cmp == nil {
		e.log.Debug("bookmaker comparison unavailable", zap.String("event", ev.ID), zap.Error(err))
		return leg
	}
	leg.Best = cmp.Best
	leg.Worst = cmp.Worst
	return leg
}

// degrade marks the enrichment as failed-soft. Quota exhaustion and upstream
// outages are expected states, not errors the user should see raw.
func (e *Enricher) degrade(out *EnrichedOdds, err error, emit func(Event)) {
	out.Degraded = true
	out.Legs = nil
	if errors.Is(err, odds.ErrQuotaExceeded) {
		e.log.Warn("odds API quota exceeded, continuing without enrichment")
	} else {
		e.log.Warn("odds enrichment failed, continuing without it", zap.Error(err))
	}
	emit(Event{Type: EventToolOutput, Output: "live odds are unavailable right now; continuing without them"})
}

func sportActive(sports []odds.Sport, key string) bool {
	for _, s := range sports {
		if s.Key == key {
			return true
		}
	}
	return false
}

func quoteLine(q *odds.Quote) string {
	if q == nil {
		return "n/a"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %+d", q.Outcome, int(q.Price))
	if q.Point != nil {
		fmt.Fprintf(&b, " (%.1f)", *q.Point)
	}
	fmt.Fprintf(&b, " @ %s", q.Bookmaker)
	return b.String()
}
