package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

// fileSchema is the TOML layout of library.toml.
type fileSchema struct {
	Shows   []Show          `toml:"shows"`
	Tracked []TrackedSeries `toml:"tracked"`
}

// state is the in-memory form the actor operates on.
type state struct {
	shows   map[string]*Show
	tracked map[string]*TrackedSeries
}

func newState() *state {
	return &state{
		shows:   make(map[string]*Show),
		tracked: make(map[string]*TrackedSeries),
	}
}

// loadFile reads the library file. A missing file yields an empty state; a
// file that exists but does not parse yields ErrCorruptState.
func loadFile(path string) (*state, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading library: %w", err)
	}

	var schema fileSchema
	if err := toml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %v", path, ErrCorruptState, err)
	}

	st := newState()
	for i := range schema.Shows {
		show := schema.Shows[i]
		show.sortEpisodes()
		st.shows[show.ID] = &show
	}
	for i := range schema.Tracked {
		ts := schema.Tracked[i]
		st.tracked[ts.ShowID] = &ts
	}
	return st, nil
}

// saveFile writes the state atomically: encode to a temp file in the same
// directory, sync, then rename over the target. A crash leaves either the
// old file or the new one, never a torn write.
func saveFile(path string, st *state) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating library dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".library-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp library file: %w", err)
	}
	defer os.Remove(tmp.Name())

	schema := st.schema()
	if err := toml.NewEncoder(tmp).Encode(schema); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding library: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing library: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp library file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing library file: %w", err)
	}
	return nil
}

// schema converts the state to its deterministic file form, sorted by ID so
// rewrites of unchanged state produce identical files.
func (st *state) schema() fileSchema {
	var schema fileSchema
	for _, id := range sortedKeys(st.shows) {
		schema.Shows = append(schema.Shows, *st.shows[id])
	}
	for _, id := range sortedKeys(st.tracked) {
		schema.Tracked = append(schema.Tracked, *st.tracked[id])
	}
	return schema
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Recover moves a corrupt library file aside so a fresh one can be written.
// It returns the backup path.
func Recover(path string) (string, error) {
	backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("backing up corrupt library: %w", err)
	}
	return backup, nil
}
