package round

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sv4u/playlistroulette/game/model"
)

// MaxOptions is the number of choices offered per round.
const MaxOptions = 4

// InsufficientDataError reports that the corpus could not satisfy a request in full.
type InsufficientDataError struct {
	Requested int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: requested %d rounds, only %d distinct songs available", e.Requested, e.Available)
}

// Selector draws rounds and builds option sets from a random source.
// It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector backed by rng.
// A nil rng gets a time-seeded source.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{rng: rng}
}

// NewSeededSelector creates a selector with a fixed seed.
func NewSeededSelector(seed int64) *Selector {
	return NewSelector(rand.New(rand.NewSource(seed)))
}

var defaultSelector = NewSelector(nil)

// SelectRounds draws up to totalRounds associations from corpus using the package selector.
func SelectRounds(corpus model.Corpus, totalRounds int) ([]model.Association, error) {
	return defaultSelector.SelectRounds(corpus, totalRounds)
}

// BuildOptions builds the choices for one round using the package selector.
func BuildOptions(round model.Association, corpus model.Corpus, playlistNames []string) []string {
	return defaultSelector.BuildOptions(round, corpus, playlistNames)
}

// SelectRounds shuffles the corpus and keeps the first association of each
// distinct song until totalRounds are picked.
//
// When fewer distinct songs exist than requested, every available song is
// returned together with an *InsufficientDataError. Callers may treat that
// error as a warning when the returned slice is not empty.
func (s *Selector) SelectRounds(corpus model.Corpus, totalRounds int) ([]model.Association, error) {
	if totalRounds < 1 {
		return nil, fmt.Errorf("total rounds must be at least 1, got %d", totalRounds)
	}

	shuffled := make([]model.Association, len(corpus))
	copy(shuffled, corpus)
	s.shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	seen := model.NewSongSet()
	picked := make([]model.Association, 0, totalRounds)
	for _, a := range shuffled {
		if a.Playlist == "" || !seen.Add(a.Song) {
			continue
		}
		picked = append(picked, a)
		if len(picked) == totalRounds {
			return picked, nil
		}
	}

	return picked, &InsufficientDataError{Requested: totalRounds, Available: len(picked)}
}

// BuildOptions returns up to MaxOptions distinct playlist names for a round,
// always including the correct one.
//
// Distractors are drawn first from playlists that do not contain the round's
// song. If those run out the remaining slots are filled from any other
// playlist, so a distractor may then also hold the song.
func (s *Selector) BuildOptions(round model.Association, corpus model.Corpus, playlistNames []string) []string {
	correct := round.Playlist
	conflicting := corpus.PlaylistsContaining(round.Song)

	chosen := map[string]struct{}{correct: {}}
	options := []string{correct}

	preferred := make([]string, 0, len(playlistNames))
	for _, name := range dedupe(playlistNames) {
		if name == correct {
			continue
		}
		if _, ok := conflicting[name]; ok {
			continue
		}
		preferred = append(preferred, name)
	}
	s.shuffleStrings(preferred)
	for _, name := range preferred {
		if len(options) == MaxOptions {
			break
		}
		options = append(options, name)
		chosen[name] = struct{}{}
	}

	if len(options) < MaxOptions {
		fallback := make([]string, 0, len(playlistNames))
		for _, name := range dedupe(playlistNames) {
			if _, ok := chosen[name]; ok {
				continue
			}
			fallback = append(fallback, name)
		}
		s.shuffleStrings(fallback)
		for _, name := range fallback {
			if len(options) == MaxOptions {
				break
			}
			options = append(options, name)
			chosen[name] = struct{}{}
		}
	}

	s.shuffleStrings(options)
	return options
}

func (s *Selector) shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}

func (s *Selector) shuffleStrings(values []string) {
	s.shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
