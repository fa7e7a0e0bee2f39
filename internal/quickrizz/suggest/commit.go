package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/quickrizz/common/redact"
	"github.com/bdobrica/quickrizz/common/trace"
	"github.com/bdobrica/quickrizz/internal/quickrizz/candidates"
	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
	"github.com/bdobrica/quickrizz/internal/quickrizz/store"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

var (
	// ErrEmptyKey is returned by Commit when the text normalises to nothing.
	ErrEmptyKey = errors.New("suggest: commit text is empty")
	// ErrNoFeedbackLog is returned when the Service has no feedback store.
	ErrNoFeedbackLog = errors.New("suggest: feedback log not configured")
)

// Commit records replies chosen for an incoming message.
type Commit struct {
	Text  string
	Stage string
	Heat  int
	// TS is Unix milliseconds; zero means now.
	TS int64
	// Options carry Resp and optionally Rating and Reason; the other
	// fields are filled from the Commit.
	Options []memory.Reply
}

// CommitResult reports what a commit changed.
type CommitResult struct {
	Key        string
	Added      int
	TotalItems int
}

// Commit merges c into the recall store and the index. Replies are keyed
// by their text: a repeated reply updates the stored one, keeping its
// rating and reason unless new ones are given.
//
// A corrupt recall store is not overwritten; the commit fails instead.
func (s *Service) Commit(ctx context.Context, c Commit) (CommitResult, error) {
	key := textnorm.Normalize(c.Text)
	if key == "" {
		return CommitResult{}, ErrEmptyKey
	}
	ts := c.TS
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}

	incoming := make([]memory.Reply, 0, len(c.Options))
	for _, o := range c.Options {
		resp := candidates.Clean(o.Resp)
		if resp == "" {
			continue
		}
		incoming = append(incoming, memory.Reply{
			Resp:   resp,
			Stage:  c.Stage,
			Heat:   c.Heat,
			Rating: o.Rating,
			Reason: o.Reason,
			TS:     ts,
		})
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	recs, err := s.records.Load()
	if err != nil {
		return CommitResult{}, fmt.Errorf("suggest: load records: %w", err)
	}
	if recs == nil {
		recs = memory.Records{}
	}
	existing := recs[key].Items
	if len(incoming) == 0 {
		return CommitResult{Key: key, TotalItems: len(existing)}, nil
	}

	merged, added := memory.Merge(existing, incoming)
	recs[key] = memory.Entry{Items: merged}
	if err := s.records.Save(recs); err != nil {
		return CommitResult{}, fmt.Errorf("suggest: save records: %w", err)
	}
	s.index.Upsert(key, merged)

	slog.Info("suggest: committed", trace.Attr(ctx), "key", key, "added", added, "total", len(merged))
	return CommitResult{Key: key, Added: added, TotalItems: len(merged)}, nil
}

// Feedback appends f to the feedback log.
func (s *Service) Feedback(ctx context.Context, f *store.Feedback) error {
	if s.feedback == nil {
		return ErrNoFeedbackLog
	}
	if err := s.feedback.InsertFeedback(ctx, f); err != nil {
		return err
	}
	slog.Debug("suggest: feedback logged", trace.Attr(ctx),
		"stage", f.Stage, "label", f.Label, "meta", redact.Map(f.Meta))
	return nil
}

// Reload rebuilds the index from the recall store. An unreadable store
// leaves an empty index and is reported.
func (s *Service) Reload(ctx context.Context) (memory.Stats, error) {
	recs, err := s.records.Load()
	if err != nil {
		slog.Error("suggest: recall store unreadable, index left empty", trace.Attr(ctx), "err", err)
	}
	s.index.Build(recs)
	return s.index.Stats(), err
}

// Status summarises the Service state.
type Status struct {
	Recall       memory.Stats `json:"recall"`
	FeedbackRows int          `json:"feedbackRows"`
}

// Status reports index and feedback log sizes.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{Recall: s.index.Stats()}
	if s.feedback == nil {
		return st, nil
	}
	n, err := s.feedback.CountFeedback(ctx)
	if err != nil {
		return st, err
	}
	st.FeedbackRows = n
	return st, nil
}

// Recall returns the recalled lines Suggest would merge for text, without
// calling the generator.
func (s *Service) Recall(text string) ([]string, []memory.Match) {
	lines, d := s.recall(text)
	return lines, d.Keys
}
