package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shortreel/internal/services"
	"shortreel/internal/stage"
)

var musicExtensions = []string{".mp3", ".m4a", ".aac", ".wav", ".flac", ".ogg"}

// ListClips returns the file names in the input directory that carry one of
// the configured clip extensions, sorted by name.
func (r *Runner) ListClips(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := listFiles(r.cfg.Paths.InputDir, r.cfg.Video.ClipExtensions)
	if err != nil {
		marker := services.ErrConfiguration
		if os.IsNotExist(err) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, stage.NameCatalog, "list clips",
			fmt.Sprintf("cannot read input directory %s", r.cfg.Paths.InputDir), err)
	}
	return names, nil
}

// musicTracks lists the background tracks. A missing directory is empty.
func (r *Runner) musicTracks() ([]string, error) {
	dir := strings.TrimSpace(r.cfg.Paths.MusicDir)
	if dir == "" {
		return nil, nil
	}
	names, err := listFiles(dir, musicExtensions)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	tracks := make([]string, len(names))
	for i, name := range names {
		tracks[i] = filepath.Join(dir, name)
	}
	return tracks, nil
}

func listFiles(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if hasExtension(entry.Name(), extensions) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range extensions {
		want = strings.ToLower(strings.TrimSpace(want))
		if want != "" && !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if ext == want {
			return true
		}
	}
	return false
}
