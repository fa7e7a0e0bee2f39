package memory_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
)

// ---------------------------------------------------------------------------
// Records and merge
// ---------------------------------------------------------------------------

func TestRating_JSON(t *testing.T) {
	in := `{"resp":"hi","stage":"banter","heat":1,"rating":null,"reason":"","ts":1762641255643}`
	var r memory.Reply
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Rating != memory.RatingNone || r.TS != 1762641255643 {
		t.Errorf("unexpected reply: %+v", r)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("marshal = %s, want %s", out, in)
	}

	if err := json.Unmarshal([]byte(`{"resp":"x","rating":"y"}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Rating != memory.RatingYes {
		t.Errorf("lower-case rating not accepted: %q", r.Rating)
	}
	if err := json.Unmarshal([]byte(`{"resp":"x","rating":"maybe"}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Rating != memory.RatingNone {
		t.Errorf("unknown rating should be none, got %q", r.Rating)
	}
}

func TestMerge(t *testing.T) {
	existing := []memory.Reply{
		{Resp: "let's grab coffee", Stage: "banter", Heat: 1, Rating: memory.RatingYes, Reason: "smooth", TS: 1},
		{Resp: "what's up", Stage: "banter", Heat: 1, TS: 1},
	}

	t.Run("null rating and empty reason never overwrite", func(t *testing.T) {
		got, added := memory.Merge(existing, []memory.Reply{
			{Resp: "let's grab coffee", Stage: "plan", Heat: 2, TS: 2},
		})
		if added != 0 {
			t.Errorf("added = %d, want 0", added)
		}
		want := memory.Reply{Resp: "let's grab coffee", Stage: "plan", Heat: 2, Rating: memory.RatingYes, Reason: "smooth", TS: 2}
		if diff := cmp.Diff(want, got[0]); diff != "" {
			t.Errorf("merged reply mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("repeated null commits keep the rating", func(t *testing.T) {
		items := existing
		for i := 0; i < 3; i++ {
			items, _ = memory.Merge(items, []memory.Reply{{Resp: "let's grab coffee"}})
		}
		if items[0].Rating != memory.RatingYes {
			t.Errorf("rating lost after repeated commits: %q", items[0].Rating)
		}
	})

	t.Run("explicit rating overwrites", func(t *testing.T) {
		got, _ := memory.Merge(existing, []memory.Reply{
			{Resp: "let's grab coffee", Rating: memory.RatingNo, Reason: "too fast"},
		})
		if got[0].Rating != memory.RatingNo || got[0].Reason != "too fast" {
			t.Errorf("unexpected reply: %+v", got[0])
		}
	})

	t.Run("new replies append in order", func(t *testing.T) {
		got, added := memory.Merge(existing, []memory.Reply{
			{Resp: "drinks at 8?"},
			{Resp: "what's up"},
			{Resp: ""},
			{Resp: "pick you up?"},
		})
		if added != 2 {
			t.Errorf("added = %d, want 2", added)
		}
		var texts []string
		for _, r := range got {
			texts = append(texts, r.Resp)
		}
		want := []string{"let's grab coffee", "what's up", "drinks at 8?", "pick you up?"}
		if diff := cmp.Diff(want, texts); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if len(existing) != 2 {
			t.Error("Merge modified its input")
		}
	})
}

// ---------------------------------------------------------------------------
// FileStore
// ---------------------------------------------------------------------------

func TestFileStore(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is empty", func(t *testing.T) {
		recs, err := memory.NewFileStore(filepath.Join(dir, "none.json")).Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("expected empty records, got %d", len(recs))
		}
	})

	t.Run("corrupt file is empty with error", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		recs, err := memory.NewFileStore(path).Load()
		if !errors.Is(err, memory.ErrCorruptStore) {
			t.Fatalf("expected ErrCorruptStore, got %v", err)
		}
		if recs == nil || len(recs) != 0 {
			t.Errorf("expected non-nil empty records, got %v", recs)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		fs := memory.NewFileStore(filepath.Join(dir, "sub", "commits.json"))
		want := memory.Records{
			"hey what are you doing": {Items: []memory.Reply{
				{Resp: "let's grab coffee", Stage: "banter", Heat: 1, Rating: memory.RatingYes, TS: 10},
				{Resp: "nothing much", Stage: "banter", Heat: 1, TS: 10},
			}},
		}
		if err := fs.Save(want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := fs.Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})
}

// ---------------------------------------------------------------------------
// Index
// ---------------------------------------------------------------------------

func TestIndex_CommitThenRecall(t *testing.T) {
	ix := memory.NewIndex(memory.Options{PreferLiked: true})
	key := "hey what are you doing"
	ix.Upsert(key, []memory.Reply{{Resp: "let's grab coffee", Stage: "banter", Heat: 1, Rating: memory.RatingYes}})

	for _, q := range []string{"hey what are you doing", "hey wyd??"} {
		got := ix.Similar(q, 5)
		if len(got) != 1 || got[0].Key != key {
			t.Fatalf("Similar(%q) = %+v, want key %q", q, got, key)
		}
		if got[0].Score < 0.22 {
			t.Errorf("score %v below threshold", got[0].Score)
		}
	}
	if diff := cmp.Diff([]string{"let's grab coffee"}, ix.BestLinesFor(key, 1)); diff != "" {
		t.Errorf("BestLinesFor mismatch (-want +got):\n%s", diff)
	}
}

func TestIndex_SimilarThreshold(t *testing.T) {
	ix := memory.NewIndex(memory.Options{})
	ix.Build(memory.Records{
		"are you free tonight":            {},
		"so are you free tonight or what": {},
		"what is your favorite movie":     {},
		"are you":                         {},
	})

	got := ix.Similar("are you free tomorrow", 5)
	want := []memory.Match{{Key: "are you free tonight", Score: 1.0 / 3.0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Similar mismatch (-want +got):\n%s", diff)
	}
	for _, m := range ix.Similar("what are you doing tonight", 5) {
		if m.Score < 0.22 {
			t.Errorf("match %+v below threshold", m)
		}
	}
}

func TestIndex_SimilarOrderingAndTopK(t *testing.T) {
	ix := memory.NewIndex(memory.Options{})
	ix.Build(memory.Records{
		"want to get drinks":         {},
		"want to get drinks later":   {},
		"want to get drinks tonight": {},
	})
	got := ix.Similar("want to get drinks", 2)
	want := []memory.Match{
		{Key: "want to get drinks", Score: 1},
		{Key: "want to get drinks later", Score: 2.0 / 3.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Similar mismatch (-want +got):\n%s", diff)
	}
}

func TestIndex_SimilarGuards(t *testing.T) {
	recs := memory.Records{"lol": {}, "laughing out loud": {}}

	ix := memory.NewIndex(memory.Options{})
	ix.Build(recs)
	if got := ix.Similar("lol", 5); got != nil {
		t.Errorf("short query returned %+v", got)
	}
	if got := ix.Similar("   lol   ", 5); got != nil {
		t.Errorf("padded short query returned %+v", got)
	}

	off := memory.NewIndex(memory.Options{Disabled: true})
	off.Build(recs)
	if got := off.Similar("laughing out loud", 5); got != nil {
		t.Errorf("disabled index returned %+v", got)
	}
}

func TestIndex_UpsertReplacesPostings(t *testing.T) {
	ix := memory.NewIndex(memory.Options{})
	ix.Upsert("meet me at the park", nil)
	before := ix.Stats()
	if before.Keys != 1 || before.Shingles != 3 {
		t.Fatalf("unexpected stats: %+v", before)
	}

	ix.Upsert("meet me at the park", []memory.Reply{{Resp: "on my way"}})
	if after := ix.Stats(); after != before {
		t.Errorf("re-upsert changed stats: %+v -> %+v", before, after)
	}
	e, ok := ix.Entry("meet me at the park")
	if !ok || len(e.Items) != 1 {
		t.Errorf("entry not replaced: %+v", e)
	}
}

func TestIndex_BestLinesFor(t *testing.T) {
	items := []memory.Reply{
		{Resp: "first  one"},
		{Resp: "liked one", Rating: memory.RatingYes},
		{Resp: "disliked", Rating: memory.RatingNo},
		{Resp: "another liked", Rating: memory.RatingYes},
	}

	tests := []struct {
		name   string
		liked  bool
		items  []memory.Reply
		limit  int
		expect []string
	}{
		{"prefer liked", true, items, 3, []string{"liked one", "another liked"}},
		{"prefer liked limit", true, items, 1, []string{"liked one"}},
		{"policy off", false, items, 2, []string{"first one", "liked one"}},
		{"no liked falls back", true, items[:1], 3, []string{"first one"}},
		{"zero limit", true, items, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := memory.NewIndex(memory.Options{PreferLiked: tt.liked})
			ix.Upsert("where are you from", tt.items)
			if diff := cmp.Diff(tt.expect, ix.BestLinesFor("where are you from", tt.limit)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIndex_ConcurrentUpsertAndLookup(t *testing.T) {
	ix := memory.NewIndex(memory.Options{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ix.Upsert(fmt.Sprintf("are you free on day %d", i%7), []memory.Reply{{Resp: fmt.Sprintf("w%d", w)}})
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for _, m := range ix.Similar("are you free on day 3", 5) {
					ix.BestLinesFor(m.Key, 2)
				}
			}
		}()
	}
	wg.Wait()

	got := ix.Similar("are you free on day 3", 1)
	if len(got) != 1 || got[0].Key != "are you free on day 3" {
		t.Errorf("reflexive lookup failed: %+v", got)
	}
}
