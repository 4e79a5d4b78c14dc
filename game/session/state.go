package session

import "github.com/sv4u/playlistroulette/game/model"

// Kind names a game state for serialization.
type Kind string

const (
	KindLoading     Kind = "loading"
	KindError       Kind = "error"
	KindPlaying     Kind = "playing"
	KindRoundResult Kind = "round_result"
	KindGameOver    Kind = "game_over"
)

// State is the closed set of game states. Only types in this package implement it.
type State interface {
	Kind() Kind
	isState()
}

// Loading is shown while the corpus is being fetched.
type Loading struct{}

// Error carries a message for the player. It is left through Retry.
type Error struct {
	Message string
}

// Playing asks the player to pick a playlist for Song.
type Playing struct {
	Round          int
	TotalRounds    int
	Song           model.Song
	Options        []string
	CorrectAnswers int
}

// RoundResult reveals the answer for the round just played.
type RoundResult struct {
	Round            int
	TotalRounds      int
	Song             model.Song
	CorrectPlaylist  string
	SelectedPlaylist string
	CorrectAnswers   int

	// LastRound is set when no further song was planned, which can happen
	// before Round reaches TotalRounds.
	LastRound bool
}

// GameOver summarizes a finished session.
type GameOver struct {
	CorrectAnswers int
	TotalRounds    int
}

func (Loading) Kind() Kind     { return KindLoading }
func (Error) Kind() Kind       { return KindError }
func (Playing) Kind() Kind     { return KindPlaying }
func (RoundResult) Kind() Kind { return KindRoundResult }
func (GameOver) Kind() Kind    { return KindGameOver }

func (Loading) isState()     {}
func (Error) isState()       {}
func (Playing) isState()     {}
func (RoundResult) isState() {}
func (GameOver) isState()    {}

// IsCorrect reports whether the selected playlist matched.
func (r RoundResult) IsCorrect() bool {
	return r.SelectedPlaylist == r.CorrectPlaylist
}

// IsLastRound reports whether advancing ends the game.
func (r RoundResult) IsLastRound() bool {
	return r.LastRound || r.Round >= r.TotalRounds
}

// Percentage returns the score as a whole percentage.
func (g GameOver) Percentage() int {
	return Percentage(g.CorrectAnswers, g.TotalRounds)
}

// Tier returns the performance message for the score.
func (g GameOver) Tier() string {
	return Tier(g.Percentage())
}

// View is the flat JSON rendering of a State.
type View struct {
	State            Kind        `json:"state"`
	Message          string      `json:"message,omitempty"`
	Round            int         `json:"round,omitempty"`
	TotalRounds      int         `json:"total_rounds,omitempty"`
	Song             *model.Song `json:"song,omitempty"`
	Options          []string    `json:"options,omitempty"`
	CorrectPlaylist  string      `json:"correct_playlist,omitempty"`
	SelectedPlaylist string      `json:"selected_playlist,omitempty"`
	IsCorrect        *bool       `json:"is_correct,omitempty"`
	CorrectAnswers   int         `json:"correct_answers"`
	LastRound        bool        `json:"last_round,omitempty"`
	Percentage       *int        `json:"percentage,omitempty"`
	Tier             string      `json:"tier,omitempty"`
}

// ViewOf flattens s for rendering.
func ViewOf(s State) View {
	switch st := s.(type) {
	case Error:
		return View{State: KindError, Message: st.Message}
	case Playing:
		song := st.Song
		return View{
			State:          KindPlaying,
			Round:          st.Round,
			TotalRounds:    st.TotalRounds,
			Song:           &song,
			Options:        append([]string(nil), st.Options...),
			CorrectAnswers: st.CorrectAnswers,
		}
	case RoundResult:
		song := st.Song
		correct := st.IsCorrect()
		return View{
			State:            KindRoundResult,
			Round:            st.Round,
			TotalRounds:      st.TotalRounds,
			Song:             &song,
			CorrectPlaylist:  st.CorrectPlaylist,
			SelectedPlaylist: st.SelectedPlaylist,
			IsCorrect:        &correct,
			CorrectAnswers:   st.CorrectAnswers,
			LastRound:        st.IsLastRound(),
		}
	case GameOver:
		pct := st.Percentage()
		return View{
			State:          KindGameOver,
			TotalRounds:    st.TotalRounds,
			CorrectAnswers: st.CorrectAnswers,
			Percentage:     &pct,
			Tier:           st.Tier(),
		}
	default:
		return View{State: KindLoading}
	}
}
