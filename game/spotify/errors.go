package spotify

import "fmt"

// Fetch stages reported on playlist errors.
const (
	StageMetadata = "metadata"
	StageTracks   = "tracks"
)

// RateLimitError is returned when Spotify answers 429 while a playlist is
// being loaded. Playlist loading stops on the first one.
type RateLimitError struct {
	PlaylistID string
	RetryAfter int // seconds
	Original   error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("playlist %s: rate limited, retry in %ds: %v", e.PlaylistID, e.RetryAfter, e.Original)
}

func (e *RateLimitError) Unwrap() error {
	return e.Original
}

// PlaylistError is any other failure loading one playlist. The playlist is
// skipped and the remaining ones are still loaded.
type PlaylistError struct {
	PlaylistID string
	Stage      string
	Page       int // 1-based track page, 0 for metadata
	Original   error
}

func (e *PlaylistError) Error() string {
	if e.Page > 1 {
		return fmt.Sprintf("playlist %s: %s page %d: %v", e.PlaylistID, e.Stage, e.Page, e.Original)
	}
	return fmt.Sprintf("playlist %s: %s: %v", e.PlaylistID, e.Stage, e.Original)
}

func (e *PlaylistError) Unwrap() error {
	return e.Original
}
