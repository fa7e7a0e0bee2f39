package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/quickrizz/internal/quickrizz/store"
)

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quickrizz-test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("schema version = %d, want 1", v)
	}
	if err := s.InsertFeedback(ctx, &store.Feedback{Latest: "hey", Option: "hi you"}); err != nil {
		t.Fatalf("InsertFeedback: %v", err)
	}
	s.Close()

	again, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	n, err := again.CountFeedback(ctx)
	if err != nil {
		t.Fatalf("CountFeedback: %v", err)
	}
	if n != 1 {
		t.Errorf("rows after reopen = %d, want 1", n)
	}
}

func TestInsertFeedback_Defaults(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	f := &store.Feedback{Stage: "banter", Latest: "wyd", Option: "thinking about you"}
	if err := s.InsertFeedback(ctx, f); err != nil {
		t.Fatalf("InsertFeedback: %v", err)
	}
	if f.ID == "" {
		t.Error("ID should be assigned")
	}
	if f.TS.IsZero() {
		t.Error("TS should be assigned")
	}
	if f.Label != store.DefaultLabel {
		t.Errorf("Label = %q, want %q", f.Label, store.DefaultLabel)
	}

	liked, err := s.LikedFeedback(ctx, "banter", 6)
	if err != nil {
		t.Fatalf("LikedFeedback: %v", err)
	}
	if len(liked) != 1 || liked[0].ID != f.ID {
		t.Errorf("expected the default-labelled row to count as liked, got %+v", liked)
	}
}

func TestLikedFeedback(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	base := time.UnixMilli(1_700_000_000_000)
	rows := []store.Feedback{
		{Stage: "plan", Latest: "what's the plan", Option: "pasta at mine", Label: "up"},
		{Stage: "plan", Latest: "what's the plan", Option: "skip this one", Label: "down"},
		{Stage: "banter", Latest: "lol", Option: "you laugh at everything", Label: "liked"},
		{Stage: "", Latest: "u up?", Option: "  always  ", Label: "LIKE"},
		{Stage: "plan", Latest: "", Option: "no latest", Label: "up"},
		{Stage: "plan", Latest: "free friday?", Option: "friday 8, I'll pick you up", Label: "clicked"},
	}
	for i := range rows {
		rows[i].TS = base.Add(time.Duration(i) * time.Second)
		if err := s.InsertFeedback(ctx, &rows[i]); err != nil {
			t.Fatalf("InsertFeedback[%d]: %v", i, err)
		}
	}

	options := func(fs []store.Feedback) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.Option)
		}
		return out
	}

	tests := []struct {
		name  string
		stage string
		k     int
		want  []string
	}{
		{"same stage newest first", "plan", 6, []string{"friday 8, I'll pick you up", "always", "pasta at mine"}},
		{"other stage", "banter", 6, []string{"always", "you laugh at everything"}},
		{"any stage", "", 6, []string{"friday 8, I'll pick you up", "always", "you laugh at everything", "pasta at mine"}},
		{"limit", "plan", 1, []string{"friday 8, I'll pick you up"}},
		{"zero", "plan", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.LikedFeedback(ctx, tt.stage, tt.k)
			if err != nil {
				t.Fatalf("LikedFeedback: %v", err)
			}
			if diff := cmp.Diff(tt.want, options(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsLiked(t *testing.T) {
	for label, want := range map[string]bool{"up": true, "Clicked": true, "like": true, "liked": true, "down": false, "": false} {
		if got := store.IsLiked(label); got != want {
			t.Errorf("IsLiked(%q) = %v, want %v", label, got, want)
		}
	}
}
