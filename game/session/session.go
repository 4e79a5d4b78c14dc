package session

import (
	"errors"
	"fmt"

	"github.com/sv4u/playlistroulette/game/model"
	"github.com/sv4u/playlistroulette/game/round"
)

// Messages shown in the Error state.
const (
	MsgNoSongs       = "No songs available. Please check your playlists."
	MsgInvalidRounds = "Number of rounds must be at least 1."
)

// Round is one planned question of a session.
type Round struct {
	Number          int        `json:"number"`
	Song            model.Song `json:"song"`
	CorrectPlaylist string     `json:"correct_playlist"`
	Options         []string   `json:"options"`
	Selected        string     `json:"selected,omitempty"`
	Answered        bool       `json:"answered"`
}

// IsCorrect reports whether the round was answered with the correct playlist.
func (r Round) IsCorrect() bool {
	return r.Answered && r.Selected == r.CorrectPlaylist
}

// Session is the full game value. Transitions return a new Session and never
// modify their argument.
type Session struct {
	RequestedRounds int
	TotalRounds     int
	CurrentRound    int
	CorrectAnswers  int
	Rounds          []Round
	State           State
}

// Load returns the session shown while the corpus for totalRounds is fetched.
func Load(totalRounds int) Session {
	return Session{RequestedRounds: totalRounds, State: Loading{}}
}

// Begin plans a session of up to totalRounds from corpus and enters round 1.
//
// playlistNames supplies the distractor universe; names found only in the
// corpus are added to it. When the corpus has fewer distinct songs than
// requested only those rounds are played, but TotalRounds keeps the requested
// count so unplayed rounds score as missed.
func Begin(totalRounds int, corpus model.Corpus, playlistNames []string, sel *round.Selector) Session {
	s := Load(totalRounds)
	if totalRounds < 1 {
		return Fail(s, MsgInvalidRounds)
	}
	if sel == nil {
		sel = round.NewSelector(nil)
	}

	picked, err := sel.SelectRounds(corpus, totalRounds)
	var insufficient *round.InsufficientDataError
	if err != nil && !errors.As(err, &insufficient) {
		return Fail(s, err.Error())
	}
	if len(picked) == 0 {
		return Fail(s, MsgNoSongs)
	}

	names := mergeNames(playlistNames, corpus.PlaylistNames())
	rounds := make([]Round, len(picked))
	for i, a := range picked {
		rounds[i] = Round{
			Number:          i + 1,
			Song:            a.Song,
			CorrectPlaylist: a.Playlist,
			Options:         sel.BuildOptions(a, corpus, names),
		}
	}

	s.TotalRounds = totalRounds
	s.CurrentRound = 1
	s.Rounds = rounds
	s.State = s.playing()
	return s
}

// Submit records choice for the current round and reveals the result.
// It returns s unchanged unless s is Playing.
func Submit(s Session, choice string) Session {
	if _, ok := s.State.(Playing); !ok {
		return s
	}
	idx := s.CurrentRound - 1
	if idx < 0 || idx >= len(s.Rounds) {
		return s
	}

	next := s.clone()
	r := next.Rounds[idx]
	r.Selected = choice
	r.Answered = true
	next.Rounds[idx] = r
	if r.IsCorrect() {
		next.CorrectAnswers++
	}
	next.State = RoundResult{
		Round:            next.CurrentRound,
		TotalRounds:      next.TotalRounds,
		Song:             r.Song,
		CorrectPlaylist:  r.CorrectPlaylist,
		SelectedPlaylist: choice,
		CorrectAnswers:   next.CorrectAnswers,
		LastRound:        next.CurrentRound >= next.PlannedRounds(),
	}
	return next
}

// Advance moves from a round result to the next round, or to GameOver after
// the last round or once the corpus is exhausted. It returns s unchanged
// unless s is RoundResult.
func Advance(s Session) Session {
	if _, ok := s.State.(RoundResult); !ok {
		return s
	}

	next := s.clone()
	if next.CurrentRound >= next.TotalRounds || next.CurrentRound >= next.PlannedRounds() {
		next.CurrentRound = next.TotalRounds + 1
		next.State = GameOver{CorrectAnswers: next.CorrectAnswers, TotalRounds: next.TotalRounds}
		return next
	}
	next.CurrentRound++
	next.State = next.playing()
	return next
}

// Fail moves s to the Error state with message.
func Fail(s Session, message string) Session {
	next := s.clone()
	next.State = Error{Message: message}
	return next
}

// LoadFailed returns the Error session for a failed corpus fetch.
func LoadFailed(totalRounds int, err error) Session {
	return Fail(Load(totalRounds), fmt.Sprintf("Failed to load songs: %v", err))
}

// Current returns the round being played or just revealed.
func (s Session) Current() (Round, bool) {
	idx := s.CurrentRound - 1
	if idx < 0 || idx >= len(s.Rounds) {
		return Round{}, false
	}
	return s.Rounds[idx], true
}

// Finished reports whether s is in GameOver.
func (s Session) Finished() bool {
	_, ok := s.State.(GameOver)
	return ok
}

// PlannedRounds is the number of rounds the corpus could supply.
func (s Session) PlannedRounds() int {
	return len(s.Rounds)
}

// Shortfall reports whether fewer rounds were planned than requested.
func (s Session) Shortfall() bool {
	return s.PlannedRounds() > 0 && s.PlannedRounds() < s.TotalRounds
}

func (s Session) playing() State {
	r, ok := s.Current()
	if !ok {
		return GameOver{CorrectAnswers: s.CorrectAnswers, TotalRounds: s.TotalRounds}
	}
	return Playing{
		Round:          s.CurrentRound,
		TotalRounds:    s.TotalRounds,
		Song:           r.Song,
		Options:        append([]string(nil), r.Options...),
		CorrectAnswers: s.CorrectAnswers,
	}
}

func (s Session) clone() Session {
	next := s
	if s.Rounds != nil {
		next.Rounds = make([]Round, len(s.Rounds))
		copy(next.Rounds, s.Rounds)
	}
	return next
}

func mergeNames(primary, extra []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(extra))
	out := make([]string, 0, len(primary)+len(extra))
	for _, list := range [][]string{primary, extra} {
		for _, n := range list {
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}
