package chat

// Intent classifies what the user wants from a chat turn.
type Intent string

const (
	IntentAnalyzeBets Intent = "analyze_specific_bets"
	IntentSuggestions Intent = "request_suggestions"
	IntentLookupOdds  Intent = "lookup_odds"
	IntentGeneral     Intent = "general_question"
)

func (i Intent) valid() bool {
	switch i {
	case IntentAnalyzeBets, IntentSuggestions, IntentLookupOdds, IntentGeneral:
		return true
	}
	return false
}

type EntityType string

const (
	EntityTeam    EntityType = "team"
	EntityPlayer  EntityType = "player"
	EntityBetType EntityType = "bet_type"
	EntityLine    EntityType = "line"
	EntitySport   EntityType = "sport"
)

type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Sport      string     `json:"sport_inferred,omitempty"`
	Confidence float64    `json:"confidence"`
}

// SuggestedQuery is a lookup hint produced by the extraction model.
type SuggestedQuery struct {
	QueryType  string `json:"query_type"`
	Sport      string `json:"sport,omitempty"`
	TeamName   string `json:"team_name,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	Market     string `json:"market,omitempty"`
}

// BettingQuery is the structured form of one user turn, as produced by the
// extraction stage.
type BettingQuery struct {
	Intent           Intent           `json:"intent"`
	Sport            string           `json:"sport,omitempty"`
	Confidence       float64          `json:"confidence"`
	Entities         []Entity         `json:"entities"`
	SuggestedQueries []SuggestedQuery `json:"suggested_queries"`
	Reasoning        string           `json:"reasoning,omitempty"`
}
