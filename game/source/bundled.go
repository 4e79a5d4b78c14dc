package source

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
)

//go:embed data/playlists.json
var bundledPlaylists []byte

// Bundled serves the dataset shipped with the binary, or a JSON file in the
// same format when a path is configured.
type Bundled struct {
	path string
}

// NewBundled creates a bundled loader. An empty path selects the built-in dataset.
func NewBundled(path string) *Bundled {
	return &Bundled{path: path}
}

// Name implements Loader.
func (b *Bundled) Name() string {
	return "bundled"
}

// Load implements Loader.
func (b *Bundled) Load(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := bundledPlaylists
	if b.path != "" {
		raw, err := os.ReadFile(b.path)
		if err != nil {
			return nil, &DataSourceError{Source: b.Name(), Op: "read", Err: fmt.Errorf("failed to read %s: %w", b.path, err)}
		}
		data = raw
	}
	cat, err := DecodeCatalog(bytes.NewReader(data))
	if err != nil {
		return nil, &DataSourceError{Source: b.Name(), Op: "decode", Err: err}
	}
	return cat, nil
}
