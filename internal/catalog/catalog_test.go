package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"shortreel/internal/catalog"
	"shortreel/internal/services"
)

func TestBuildProducesEveryOrderedTriple(t *testing.T) {
	for _, n := range []int{3, 4, 5, 6} {
		clips := make([]string, n)
		for i := range clips {
			clips[i] = string(rune('A'+i)) + ".mp4"
		}
		cat, err := catalog.Build(clips)
		if err != nil {
			t.Fatalf("Build(%d clips): %v", n, err)
		}
		want := n * (n - 1) * (n - 2)
		if cat.Len() != want {
			t.Fatalf("Build(%d clips) produced %d units, want %d", n, cat.Len(), want)
		}
		seen := make(map[[3]string]struct{}, want)
		for idx, unit := range cat.Units {
			if unit.Done {
				t.Fatalf("unit %d should start pending", idx)
			}
			c := unit.Clips
			if c[0] == c[1] || c[1] == c[2] || c[0] == c[2] {
				t.Fatalf("unit %d repeats a clip: %v", idx, c)
			}
			if _, dup := seen[c]; dup {
				t.Fatalf("unit %d duplicates an earlier triple: %v", idx, c)
			}
			seen[c] = struct{}{}
		}
	}
}

func TestBuildThreeClipsOrder(t *testing.T) {
	cat, err := catalog.Build([]string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := [][3]string{
		{"A", "B", "C"},
		{"A", "C", "B"},
		{"B", "A", "C"},
		{"B", "C", "A"},
		{"C", "A", "B"},
		{"C", "B", "A"},
	}
	if cat.Len() != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), cat.Len())
	}
	for i, clips := range want {
		if cat.Units[i].Clips != clips {
			t.Fatalf("unit %d: got %v want %v", i, cat.Units[i].Clips, clips)
		}
	}
}

func TestBuildRejectsTooFewDistinctClips(t *testing.T) {
	tests := []struct {
		name  string
		clips []string
	}{
		{"empty", nil},
		{"two", []string{"a", "b"}},
		{"duplicates", []string{"a", "b", "a", "b"}},
		{"blank", []string{"a", " ", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Build(tt.clips)
			var empty *catalog.EmptyInputError
			if !errors.As(err, &empty) {
				t.Fatalf("expected EmptyInputError, got %v", err)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
		})
	}
}

func TestBuildDedupesFirstOccurrenceWins(t *testing.T) {
	cat, err := catalog.Build([]string{"B", "A", "B", "C"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cat.Len() != 6 {
		t.Fatalf("expected 6 units, got %d", cat.Len())
	}
	if cat.Units[0].Clips != [3]string{"B", "A", "C"} {
		t.Fatalf("expected first-seen order, got %v", cat.Units[0].Clips)
	}
}

func TestFirstPending(t *testing.T) {
	cat, err := catalog.Build([]string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for k := 0; k <= cat.Len(); k++ {
		c := &catalog.Catalog{Units: append([]catalog.WorkUnit(nil), cat.Units...)}
		for i := 0; i < k; i++ {
			c.Units[i].Done = true
		}
		idx, ok := c.FirstPending()
		if k == c.Len() {
			if ok || idx != catalog.NoPending {
				t.Fatalf("all done: expected NoPending, got %d %v", idx, ok)
			}
			continue
		}
		if !ok || idx != k {
			t.Fatalf("first %d done: expected %d, got %d %v", k, k, idx, ok)
		}
	}

	if idx, ok := (&catalog.Catalog{}).FirstPending(); ok || idx != catalog.NoPending {
		t.Fatalf("empty catalog: expected NoPending, got %d", idx)
	}
}

func TestMarkDoneExactlyOnce(t *testing.T) {
	cat, _ := catalog.Build([]string{"a", "b", "c"})
	if err := cat.MarkDone(2); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := cat.MarkDone(2); err == nil {
		t.Fatal("expected error marking a done unit again")
	}
	if err := cat.MarkDone(99); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
	if err := cat.MarkDone(-1); err == nil {
		t.Fatal("expected error for negative index")
	}
	done, pending := cat.Counts()
	if done != 1 || pending != 5 {
		t.Fatalf("unexpected counts: done=%d pending=%d", done, pending)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(filepath.Join(t.TempDir(), "combinations.json"))
	cat, _ := catalog.Build([]string{"A", "B", "C", "D"})
	_ = cat.MarkDone(0)
	_ = cat.MarkDone(1)

	if err := store.Save(ctx, cat); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cat, loaded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, cat)
	}

	if err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	again, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !reflect.DeepEqual(cat, again) {
		t.Fatal("save then load on an unchanged catalog changed it")
	}
}

func TestLoadReadsTupleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combinations.json")
	body := `[["1.mp4","2.mp4","3.mp4",true],["1.mp4","3.mp4","2.mp4",false]]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.NewStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Len() != 2 || !cat.Units[0].Done || cat.Units[1].Done {
		t.Fatalf("unexpected catalog: %+v", cat)
	}
	if idx, _ := cat.FirstPending(); idx != 1 {
		t.Fatalf("expected resume at 1, got %d", idx)
	}
}

func TestLoadRejectsCorruptCatalogs(t *testing.T) {
	tests := map[string]string{
		"not json":       `{{{`,
		"object":         `{"a":1}`,
		"short tuple":    `[["a","b",false]]`,
		"long tuple":     `[["a","b","c",false,1]]`,
		"numeric clip":   `[["a",2,"c",false]]`,
		"string flag":    `[["a","b","c","false"]]`,
		"null flag":      `[["a","b","c",null]]`,
		"repeated clip":  `[["a","a","c",false]]`,
		"empty clip":     `[["","b","c",false]]`,
		"entry not list": `["a"]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "combinations.json")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := catalog.NewStore(path).Load(context.Background())
			var corrupt *catalog.CorruptCatalogError
			if !errors.As(err, &corrupt) {
				t.Fatalf("expected CorruptCatalogError, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := catalog.NewStore(filepath.Join(t.TempDir(), "absent.json"))
	if store.Exists() {
		t.Fatal("expected store to report missing file")
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, catalog.ErrCatalogMissing) {
		t.Fatalf("expected ErrCatalogMissing, got %v", err)
	}
}

func TestClipsListsDistinctIDs(t *testing.T) {
	cat, _ := catalog.Build([]string{"x", "y", "z"})
	if got := cat.Clips(); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Fatalf("unexpected clips: %v", got)
	}
}
