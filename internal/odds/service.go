package odds

import (
	"context"
	"sort"
	"strings"
)

var defaultMarkets = []string{MarketMoneyline, MarketSpreads, MarketTotals}

// Service is the high-level odds lookup surface used by the chat pipeline.
// Everything beyond the two cached upstream fetches is pure computation
// over cached event data.
type Service struct {
	client  *Client
	markets []string
}

func NewService(client *Client) *Service {
	return &Service{client: client, markets: defaultMarkets}
}

func (s *Service) RemainingRequests() int {
	return s.client.RemainingRequests()
}

// ListActiveSports returns the cached sport catalog filtered to active
// sports.
func (s *Service) ListActiveSports(ctx context.Context) ([]Sport, error) {
	sports, err := s.client.Sports(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]Sport, 0, len(sports))
	for _, sp := range sports {
		if sp.Active {
			active = append(active, sp)
		}
	}
	return active, nil
}

// UpcomingEvents returns upcoming events with odds for one sport.
func (s *Service) UpcomingEvents(ctx context.Context, sportKey string) ([]Event, error) {
	return s.client.Events(ctx, sportKey, s.markets)
}

// FindEventsByTeam filters the sport's cached events by a case-insensitive
// team name fragment. The only upstream call is the cache-filling event
// fetch itself.
func (s *Service) FindEventsByTeam(ctx context.Context, sportKey, fragment string) ([]Event, error) {
	events, err := s.UpcomingEvents(ctx, sportKey)
	if err != nil {
		return nil, err
	}
	frag := strings.ToLower(fragment)
	var matched []Event
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.HomeTeam), frag) ||
			strings.Contains(strings.ToLower(ev.AwayTeam), frag) {
			matched = append(matched, ev)
		}
	}
	return matched, nil
}

// CompareBookmakerOdds collects every bookmaker's price for one bet type on
// one event and ranks them. Pure computation over cached data.
func (s *Service) CompareBookmakerOdds(ctx context.Context, sportKey, eventID, betType string) (*Comparison, error) {
	events, err := s.UpcomingEvents(ctx, sportKey)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.ID == eventID {
			return compareEvent(ev, betType), nil
		}
	}
	return nil, nil
}

func compareEvent(ev Event, betType string) *Comparison {
	cmp := &Comparison{EventID: ev.ID, BetType: betType}
	for _, bk := range ev.Bookmakers {
		for _, m := range bk.Markets {
			if m.Key != betType {
				continue
			}
			for _, out := range m.Outcomes {
				q := Quote{Bookmaker: bk.Title, Outcome: out.Name, Price: out.Price, Point: out.Point}
				cmp.All = append(cmp.All, q)
				if cmp.Best == nil || betterPrice(q.Price, cmp.Best.Price) {
					b := q
					cmp.Best = &b
				}
				if cmp.Worst == nil || betterPrice(cmp.Worst.Price, q.Price) {
					w := q
					cmp.Worst = &w
				}
			}
		}
	}
	return cmp
}

// betterPrice reports whether a pays out more than b in american odds:
// higher positive is better, less negative is better, positive beats
// negative.
func betterPrice(a, b float64) bool {
	switch {
	case a > 0 && b > 0:
		return a > b
	case a < 0 && b < 0:
		return a > b
	default:
		return a > 0 && b < 0
	}
}

// SuggestionsForSport returns the n most favorable moneyline prices across
// the sport's upcoming events as parlay-leg material.
func (s *Service) SuggestionsForSport(ctx context.Context, sportKey string, n int) ([]Suggestion, error) {
	events, err := s.UpcomingEvents(ctx, sportKey)
	if err != nil {
		return nil, err
	}
	var out []Suggestion
	for _, ev := range events {
		cmp := compareEvent(ev, MarketMoneyline)
		if cmp.Best == nil {
			continue
		}
		out = append(out, Suggestion{
			Event:        ev.Matchup(),
			CommenceTime: ev.CommenceTime,
			Market:       MarketMoneyline,
			Outcome:      cmp.Best.Outcome,
			Price:        cmp.Best.Price,
			Point:        cmp.Best.Point,
			Bookmaker:    cmp.Best.Bookmaker,
		})
	}
	sort.Slice(out, func(i, j int) bool { return betterPrice(out[i].Price, out[j].Price) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
