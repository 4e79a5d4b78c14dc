package history

import (
	"encoding/json"
	"time"

	"github.com/sv4u/playlistroulette/game/model"
	"github.com/sv4u/playlistroulette/game/session"
)

// Activity types.
const (
	ActivityGameStarted   = "game_started"
	ActivityGameFinished  = "game_finished"
	ActivityGameFailed    = "game_failed"
	ActivityConnected     = "settings_connected"
	ActivityConnectFailed = "settings_connect_failed"
	ActivityCacheSynced   = "cache_synced"
)

// RoundRecord is one answered round of a finished game.
type RoundRecord struct {
	Number          int        `json:"number"`
	Song            model.Song `json:"song"`
	CorrectPlaylist string     `json:"correct_playlist"`
	Selected        string     `json:"selected"`
	Correct         bool       `json:"correct"`
}

// GameRecord is a finished game.
type GameRecord struct {
	GameID          string        `json:"game_id"`
	Player          string        `json:"player,omitempty"`
	Source          string        `json:"source,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	RequestedRounds int           `json:"requested_rounds"`
	TotalRounds     int           `json:"total_rounds"`
	CorrectAnswers  int           `json:"correct_answers"`
	Percentage      int           `json:"percentage"`
	Tier            string        `json:"tier"`
	Rounds          []RoundRecord `json:"rounds"`
}

// NewGameRecord summarises a finished session.
func NewGameRecord(gameID string, s session.Session, startedAt, finishedAt time.Time) GameRecord {
	pct := session.Percentage(s.CorrectAnswers, s.TotalRounds)
	rec := GameRecord{
		GameID:          gameID,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		RequestedRounds: s.RequestedRounds,
		TotalRounds:     s.TotalRounds,
		CorrectAnswers:  s.CorrectAnswers,
		Percentage:      pct,
		Tier:            session.Tier(pct),
		Rounds:          make([]RoundRecord, 0, len(s.Rounds)),
	}
	for _, r := range s.Rounds {
		if !r.Answered {
			continue
		}
		rec.Rounds = append(rec.Rounds, RoundRecord{
			Number:          r.Number,
			Song:            r.Song,
			CorrectPlaylist: r.CorrectPlaylist,
			Selected:        r.Selected,
			Correct:         r.IsCorrect(),
		})
	}
	return rec
}

// ActivityEntry represents a single event: a game started or finished, a
// connection attempt, a cache sync.
type ActivityEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ActivityHistory represents a collection of activity entries.
type ActivityHistory struct {
	Entries []ActivityEntry `json:"entries"`
}

// ToJSON converts GameRecord to JSON bytes.
func (g *GameRecord) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// FromJSON creates GameRecord from JSON bytes.
func (g *GameRecord) FromJSON(data []byte) error {
	return json.Unmarshal(data, g)
}

// ToJSON converts ActivityHistory to JSON bytes.
func (a *ActivityHistory) ToJSON() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// FromJSON creates ActivityHistory from JSON bytes.
func (a *ActivityHistory) FromJSON(data []byte) error {
	return json.Unmarshal(data, a)
}
