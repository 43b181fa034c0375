package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"shortreel/internal/fileutil"
)

// Store persists a catalog as a JSON array of [clipA, clipB, clipC, done]
// tuples.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Exists reports whether a catalog has been saved.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Load reads the persisted catalog. A missing file returns ErrCatalogMissing.
func (s *Store) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCatalogMissing
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return decode(s.path, data)
}

// Save atomically replaces the persisted catalog.
func (s *Store) Save(ctx context.Context, c *Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil {
		return errors.New("save catalog: nil catalog")
	}
	data, err := encode(c)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(s.path, data, 0o644)
}

func encode(c *Catalog) ([]byte, error) {
	rows := make([][4]any, len(c.Units))
	for i, unit := range c.Units {
		rows[i] = [4]any{unit.Clips[0], unit.Clips[1], unit.Clips[2], unit.Done}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return append(data, '\n'), nil
}

func decode(path string, data []byte) (*Catalog, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &rows); err != nil {
		return nil, &CorruptCatalogError{Path: path, Reason: "not a JSON array", Err: err}
	}

	units := make([]WorkUnit, 0, len(rows))
	for idx, raw := range rows {
		var fields []json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &CorruptCatalogError{Path: path, Reason: fmt.Sprintf("entry %d is not an array", idx), Err: err}
		}
		if len(fields) != 4 {
			return nil, &CorruptCatalogError{Path: path, Reason: fmt.Sprintf("entry %d has %d fields, want 4", idx, len(fields))}
		}
		var unit WorkUnit
		for pos := 0; pos < 3; pos++ {
			if err := json.Unmarshal(fields[pos], &unit.Clips[pos]); err != nil {
				return nil, &CorruptCatalogError{Path: path, Reason: fmt.Sprintf("entry %d clip %d is not a string", idx, pos), Err: err}
			}
			if unit.Clips[pos] == "" {
				return nil, &CorruptCatalogError{Path: path, Reason: fmt.Sprintf("entry %d clip %d is empty", idx, pos)}
			}
		}
		switch string(bytes.TrimSpace(fields[3])) {
		case "true":
			unit.Done = true
		case "false":
		default:
			return nil, &CorruptCatalogError{Path: path, Reason: fmt.Sprintf("entry %d done flag is not a boolean", idx)}
		}
		if !unit.distinct() {
			return nil, &CorruptCatalogError{Path: path, Reason: fmt.Sprintf("entry %d repeats a clip", idx)}
		}
		units = append(units, unit)
	}
	return &Catalog{Units: units}, nil
}
