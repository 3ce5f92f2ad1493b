package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/draftkiller/backend/internal/ai"
)

const defaultSystemPrompt = `You are Draft Killer, a sharp, honest sports betting analyst.

Rules:
- Analyze parlays leg by leg: implied probability, correlation between legs, and juice.
- When live odds are provided, cite concrete prices and bookmakers from that data only.
- When odds are not available, say so plainly and reason from general principles.
- Never invent odds, injury news, or results.
- Be direct about bad bets. Flattery loses money.
- Keep responses focused; use short sections, not walls of text.`

// PromptBuilder assembles the message list sent to the analysis model. The
// character budget bounds total prompt size: system prompt and the final
// user turn are always kept, history is added newest first until the budget
// runs out.
type PromptBuilder struct {
	system string
	budget int
}

func NewPromptBuilder(system string, budget int) *PromptBuilder {
	if system == "" {
		system = defaultSystemPrompt
	}
	if budget <= 0 {
		budget = 24000
	}
	return &PromptBuilder{system: system, budget: budget}
}

// Build renders the final message list. history is oldest first; enriched
// may be nil when the turn needs no odds context.
func (p *PromptBuilder) Build(history []Message, userMessage string, enriched *EnrichedOdds) []ai.Message {
	final := renderUserTurn(userMessage, enriched)

	remaining := p.budget - len(p.system) - len(final)

	// Walk history newest first so the most recent turns survive the cut.
	var kept []Message
	for i := len(history) - 1; i >= 0; i-- {
		cost := len(history[i].Content)
		if cost > remaining {
			break
		}
		remaining -= cost
		kept = append(kept, history[i])
	}

	msgs := make([]ai.Message, 0, len(kept)+2)
	msgs = append(msgs, ai.Message{Role: "system", Content: p.system})
	for i := len(kept) - 1; i >= 0; i-- {
		msgs = append(msgs, ai.Message{Role: kept[i].Role, Content: kept[i].Content})
	}
	msgs = append(msgs, ai.Message{Role: RoleUser, Content: final})
	return msgs
}

func renderUserTurn(message string, enriched *EnrichedOdds) string {
	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\n")

	switch {
	case enriched == nil:
		return message
	case enriched.Degraded || len(enriched.Legs) == 0:
		b.WriteString("[No current odds data available. Analyze from general principles and say the numbers could not be fetched.]")
	default:
		b.WriteString("[Current odds data, fetched ")
		b.WriteString(enriched.FetchedAt.Format(time.RFC3339))
		b.WriteString(":]\n")
		for _, leg := range enriched.Legs {
			renderLeg(&b, leg)
		}
	}
	return b.String()
}

func renderLeg(b *strings.Builder, leg LegOdds) {
	if !leg.Resolved {
		fmt.Fprintf(b, "- %s: no upcoming event found\n", leg.Entity)
		return
	}
	if len(leg.Suggestions) > 0 {
		fmt.Fprintf(b, "- Candidate bets (%s):\n", leg.Market)
		for _, s := range leg.Suggestions {
			fmt.Fprintf(b, "  - %s: %s %+d @ %s (starts %s)\n",
				s.Event, s.Outcome, int(s.Price), s.Bookmaker, s.CommenceTime.Format(time.RFC3339))
		}
		return
	}
	fmt.Fprintf(b, "- %s (%s, starts %s)", leg.Event, leg.Market, leg.CommenceTime.Format(time.RFC3339))
	if leg.Best != nil {
		fmt.Fprintf(b, ": best %s %+d @ %s", leg.Best.Outcome, int(leg.Best.Price), leg.Best.Bookmaker)
		if leg.Worst != nil && leg.Worst.Bookmaker != leg.Best.Bookmaker {
			fmt.Fprintf(b, ", worst %+d @ %s", int(leg.Worst.Price), leg.Worst.Bookmaker)
		}
	}
	b.WriteString("\n")
}
