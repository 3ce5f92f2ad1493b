package odds

import "time"

// Market keys used by The Odds API.
const (
	MarketMoneyline = "h2h"
	MarketSpreads   = "spreads"
	MarketTotals    = "totals"
)

type Sport struct {
	Key          string `json:"key"`
	Group        string `json:"group"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	HasOutrights bool   `json:"has_outrights"`
}

type Outcome struct {
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Point       *float64 `json:"point,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

func (e Event) Matchup() string {
	return e.AwayTeam + " @ " + e.HomeTeam
}

// Quote is a single bookmaker's price for one outcome.
type Quote struct {
	Bookmaker string   `json:"bookmaker"`
	Outcome   string   `json:"outcome"`
	Price     float64  `json:"price"`
	Point     *float64 `json:"point,omitempty"`
}

// Comparison holds one bet's prices across all bookmakers carrying it.
type Comparison struct {
	EventID string  `json:"event_id"`
	BetType string  `json:"bet_type"`
	Best    *Quote  `json:"best,omitempty"`
	Worst   *Quote  `json:"worst,omitempty"`
	All     []Quote `json:"all"`
}

// Suggestion is one favorable line offered as parlay-leg material.
type Suggestion struct {
	Event        string    `json:"event"`
	CommenceTime time.Time `json:"commence_time"`
	Market       string    `json:"market"`
	Outcome      string    `json:"outcome"`
	Price        float64   `json:"price"`
	Point        *float64  `json:"point,omitempty"`
	Bookmaker    string    `json:"bookmaker"`
}
