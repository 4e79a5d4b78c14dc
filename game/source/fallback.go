package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sv4u/playlistroulette/game/logging"
)

// Fallback tries its loaders in order and returns the first catalog with at
// least one song.
type Fallback struct {
	loaders []Loader
	logger  *logging.Logger

	mu   sync.Mutex
	last string
}

// NewFallback creates a fallback chain.
func NewFallback(logger *logging.Logger, loaders ...Loader) *Fallback {
	return &Fallback{loaders: loaders, logger: logger}
}

// Name implements Loader.
func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.loaders))
	for _, l := range f.loaders {
		names = append(names, l.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// Served returns the name of the loader behind the last successful load.
func (f *Fallback) Served() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Load implements Loader.
func (f *Fallback) Load(ctx context.Context) (Catalog, error) {
	var failures []error
	for _, l := range f.loaders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cat, err := l.Load(ctx)
		if err == nil && cat.SongCount() == 0 {
			err = ErrNoSongs
		}
		if err != nil {
			f.logger.WarnWithOperation("fallback", fmt.Sprintf("%s failed: %v", l.Name(), err))
			failures = append(failures, fmt.Errorf("%s: %w", l.Name(), err))
			continue
		}

		f.mu.Lock()
		f.last = l.Name()
		f.mu.Unlock()
		return cat, nil
	}

	if len(failures) == 0 {
		failures = append(failures, errors.New("no sources configured"))
	}
	return nil, &DataSourceError{Source: "fallback", Op: "load", Err: errors.Join(failures...)}
}
