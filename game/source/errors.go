package source

import (
	"errors"
	"fmt"
)

// ErrNoSongs is returned when a source answers with no playable songs.
var ErrNoSongs = errors.New("no songs available")

// DataSourceError reports a failed fetch from a playlist source.
type DataSourceError struct {
	Source string // bundled, remote, spotify, cache, fallback
	Op     string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s source: %s: %v", e.Source, e.Op, e.Err)
	}
	return fmt.Sprintf("%s source: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned when the playlist API answers with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
