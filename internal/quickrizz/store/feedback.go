package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLabel is recorded when feedback arrives without a label.
const DefaultLabel = "clicked"

// likedLabels mark a suggestion the user took or approved.
var likedLabels = []string{"up", "clicked", "like", "liked"}

// Feedback is one reaction to a suggested reply.
type Feedback struct {
	ID     string
	TS     time.Time
	Stage  string
	Latest string
	Option string
	Label  string
	Meta   map[string]any
}

// IsLiked reports whether label counts as positive feedback.
func IsLiked(label string) bool {
	for _, l := range likedLabels {
		if strings.EqualFold(label, l) {
			return true
		}
	}
	return false
}

// InsertFeedback appends f to the log. ID and TS are filled in when unset.
func (s *Store) InsertFeedback(ctx context.Context, f *Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.TS.IsZero() {
		f.TS = time.Now()
	}
	if f.Label == "" {
		f.Label = DefaultLabel
	}
	meta := f.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal feedback meta: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, ts, stage, latest, option, label, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.TS.UnixMilli(), f.Stage, f.Latest, f.Option, f.Label, string(metaJSON))
	if err != nil {
		return fmt.Errorf("store: insert feedback: %w", err)
	}
	return nil
}

// LikedFeedback returns up to k recent liked rows usable as examples for
// stage. It looks at the max(6, k) most recent liked rows, skips rows
// missing the incoming text or the option, and skips rows recorded at a
// different stage. Rows without a stage match any stage, and an empty
// stage matches every row.
func (s *Store) LikedFeedback(ctx context.Context, stage string, k int) ([]Feedback, error) {
	if k <= 0 {
		return nil, nil
	}

	args := make([]any, 0, len(likedLabels)+1)
	for _, l := range likedLabels {
		args = append(args, l)
	}
	args = append(args, max(6, k))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, stage, latest, option, label
		FROM feedback
		WHERE lower(label) IN (?, ?, ?, ?)
		ORDER BY ts DESC, rowid DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query liked feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var (
			f  Feedback
			ts int64
		)
		if err := rows.Scan(&f.ID, &ts, &f.Stage, &f.Latest, &f.Option, &f.Label); err != nil {
			return nil, fmt.Errorf("store: scan feedback: %w", err)
		}
		f.TS = time.UnixMilli(ts)
		f.Option = strings.TrimSpace(f.Option)
		if f.Latest == "" || f.Option == "" {
			continue
		}
		if stage != "" && f.Stage != "" && f.Stage != stage {
			continue
		}
		if len(out) < k {
			out = append(out, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate feedback: %w", err)
	}
	return out, nil
}

// CountFeedback returns the number of rows in the log.
func (s *Store) CountFeedback(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count feedback: %w", err)
	}
	return n, nil
}
