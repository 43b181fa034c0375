// Package themes holds the per-run mapping from clip id to a short label.
//
// The set is built once per fresh batch from each clip's comment tag and is
// read-only afterwards. It is saved as YAML so an operator can inspect or
// hand-edit labels between runs.
package themes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"shortreel/internal/fileutil"
)

// Set maps clip ids to theme labels. An empty label means the clip carried no
// theme.
type Set map[string]string

// Lookup returns the label for clip and whether the clip is known at all.
func (s Set) Lookup(clip string) (string, bool) {
	label, ok := s[clip]
	return label, ok
}

// Triple returns the labels for three clips in order, plus the clips that had
// no entry.
func (s Set) Triple(clips [3]string) ([3]string, []string) {
	var labels [3]string
	var missing []string
	for i, clip := range clips {
		label, ok := s[clip]
		if !ok {
			missing = append(missing, clip)
		}
		labels[i] = label
	}
	return labels, missing
}

// Clips returns the known clip ids sorted by name.
func (s Set) Clips() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type document struct {
	Themes map[string]string `yaml:"themes"`
}

// Store persists a Set to a YAML file.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// ErrMissing means no theme set has been saved yet.
var ErrMissing = errors.New("theme set file missing")

// Load reads the saved set.
func (s *Store) Load(ctx context.Context) (Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("read theme set: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse theme set %s: %w", s.path, err)
	}
	set := make(Set, len(doc.Themes))
	for clip, label := range doc.Themes {
		set[strings.TrimSpace(clip)] = strings.TrimSpace(label)
	}
	return set, nil
}

// Save atomically replaces the saved set.
func (s *Store) Save(ctx context.Context, set Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := yaml.Marshal(document{Themes: set})
	if err != nil {
		return fmt.Errorf("encode theme set: %w", err)
	}
	return fileutil.WriteFileAtomic(s.path, data, 0o644)
}
