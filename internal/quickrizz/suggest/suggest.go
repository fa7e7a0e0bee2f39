// Package suggest runs the per-request control flow of QuickRizz.
//
// For a suggestion it builds one window snapshot, computes heat, stage,
// recall and topic concurrently, asks the candidate generator for fresh
// lines, merges recalled lines ahead of them and fills any shortfall with
// canned fallbacks. It also owns the commit path into the recall store and
// the feedback path into the feedback log.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/quickrizz/common/trace"
	"github.com/bdobrica/quickrizz/internal/quickrizz/candidates"
	"github.com/bdobrica/quickrizz/internal/quickrizz/convo"
	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/heat"
	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
	"github.com/bdobrica/quickrizz/internal/quickrizz/stage"
	"github.com/bdobrica/quickrizz/internal/quickrizz/store"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

const (
	defaultCount = 3
	// maxGenerated caps how many fresh lines are asked for per request.
	maxGenerated = 3
	// emptyHeat is reported when there is nothing to reply to.
	emptyHeat = 1
)

// Completer is the generation gateway.
type Completer interface {
	Generate(ctx context.Context, req gateway.Request) (string, error)
}

// RecordStore persists the recall records.
type RecordStore interface {
	Load() (memory.Records, error)
	Save(memory.Records) error
}

// Config configures a Service.
type Config struct {
	Name  string
	Style string
	// ContextWindow is the number of trailing messages considered.
	ContextWindow int
	// MinSpiceFloor is the lowest heat reported without a cooling cue.
	MinSpiceFloor int
	// MergeLimit caps recalled lines per suggestion.
	MergeLimit int
	// MaxTokens caps candidate generation output.
	MaxTokens int
}

// Request asks for suggestions.
type Request struct {
	Messages  []convo.Message
	N         int
	TopicHint string
	// Spice overrides the inferred heat when it is in [0, 3].
	Spice *int
}

// Debug explains a suggestion.
type Debug struct {
	Why        string                  `json:"why,omitempty"`
	Stage      *stage.Diagnostics      `json:"stage,omitempty"`
	Heat       *heat.Diagnostics       `json:"spice,omitempty"`
	Topic      *TopicDebug             `json:"idea,omitempty"`
	Recall     *RecallDebug            `json:"memory,omitempty"`
	Candidates *candidates.Diagnostics `json:"generate,omitempty"`
	Fallbacks  int                     `json:"fallbacks,omitempty"`
}

// Result is a finished suggestion.
type Result struct {
	Stage   stage.Stage
	Plan    stage.Guidance
	Options []string
	Heat    int
	Topic   string
	Debug   Debug
}

// Service answers suggestion, commit and feedback requests. It is safe for
// concurrent use.
type Service struct {
	cfg        Config
	llm        Completer
	heat       *heat.Inferencer
	classifier *stage.Classifier
	generator  *candidates.Generator
	index      *memory.Index
	records    RecordStore
	feedback   *store.Store

	// commitMu serialises the load-merge-save cycle on records.
	commitMu sync.Mutex
}

// New returns a Service. feedback may be nil, which disables the feedback
// log and liked exemplars.
func New(cfg Config, llm Completer, index *memory.Index, records RecordStore, feedback *store.Store) *Service {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = convo.DefaultSize
	}
	genCfg := candidates.Config{
		Identity:  candidates.Identity{Name: cfg.Name, Style: cfg.Style},
		MaxTokens: cfg.MaxTokens,
	}
	if feedback != nil {
		genCfg.Exemplars = likedSource{feedback}
	}
	return &Service{
		cfg:        cfg,
		llm:        llm,
		heat:       heat.New(cfg.MinSpiceFloor),
		classifier: stage.NewClassifier(llm),
		generator:  candidates.New(llm, genCfg),
		index:      index,
		records:    records,
		feedback:   feedback,
	}
}

// Suggest returns up to req.N reply suggestions. Component failures
// degrade the result; the only error is a cancelled ctx.
func (s *Service) Suggest(ctx context.Context, req Request) (*Result, error) {
	n := req.N
	if n <= 0 {
		n = defaultCount
	}
	w := convo.NewWindow(req.Messages, s.cfg.ContextWindow)
	latest := w.LatestIncoming()
	if latest == "" {
		return &Result{
			Stage:   stage.Banter,
			Plan:    stage.PlanFor(stage.Banter),
			Options: []string{},
			Heat:    emptyHeat,
			Debug:   Debug{Why: "no latest"},
		}, nil
	}

	var (
		level  int
		hd     heat.Diagnostics
		st     stage.Stage
		sd     stage.Diagnostics
		recall []string
		rd     RecallDebug
		topic  string
		td     TopicDebug
	)
	// Each signal degrades on its own; only cancellation fails the request.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		level, hd = s.heat.Infer(w, latest)
		return gctx.Err()
	})
	g.Go(func() error {
		st, sd = s.classifier.Classify(gctx, w, latest)
		return gctx.Err()
	})
	g.Go(func() error {
		recall, rd = s.recall(latest)
		return gctx.Err()
	})
	g.Go(func() error {
		topic, td = s.topic(gctx, w, latest, req.TopicHint)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	if req.Spice != nil && *req.Spice >= 0 && *req.Spice <= heat.MaxLevel-1 {
		level = *req.Spice
	}
	if !heat.CoolingRx.MatchString(textnorm.Lower(w.Text())) {
		level = max(level, s.heat.Floor)
	}
	recall = filterRecalled(recall, st)
	if level >= 3 && len(recall) > 1 {
		recall = recall[:1]
	}

	fresh, cd := s.generator.Generate(ctx, candidates.Input{
		Window: w,
		Latest: latest,
		Stage:  st,
		Heat:   level,
		Topic:  topic,
		Count:  min(max(n, 1), maxGenerated),
	})

	options := mergeLines(n, recall, fresh)
	filled := 0
	if len(options) < n {
		before := len(options)
		options = fill(options, n, fallbackLines(latest, s.cfg.Name), level)
		filled = len(options) - before
	}

	slog.Info("suggest: done", trace.Attr(ctx),
		"stage", st.String(), "heat", level, "topic", topic,
		"recalled", len(recall), "generated", len(fresh), "fallbacks", filled, "options", len(options))

	return &Result{
		Stage:   st,
		Plan:    stage.PlanFor(st),
		Options: options,
		Heat:    level,
		Topic:   topic,
		Debug: Debug{
			Stage:      &sd,
			Heat:       &hd,
			Topic:      &td,
			Recall:     &rd,
			Candidates: &cd,
			Fallbacks:  filled,
		},
	}, nil
}

// mergeLines puts recalled lines ahead of fresh ones, cleaned and
// deduplicated, up to n.
func mergeLines(n int, groups ...[]string) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for _, lines := range groups {
		for _, line := range lines {
			if len(out) >= n {
				return out
			}
			line = candidates.Clean(line)
			if line == "" {
				continue
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		}
	}
	return out
}

// filterRecalled drops committed lines that fresh candidates would not be
// allowed to contain.
func filterRecalled(lines []string, st stage.Stage) []string {
	out := lines[:0:0]
	for _, line := range lines {
		if strings.Contains(line, ";") || candidates.IsDeferral(line) {
			continue
		}
		if st >= stage.Logistics && stage.IsRegression(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// likedSource serves liked feedback rows as generation exemplars.
type likedSource struct{ st *store.Store }

func (l likedSource) LikedExemplars(ctx context.Context, stage string, k int) ([]candidates.Exemplar, error) {
	rows, err := l.st.LikedFeedback(ctx, stage, k)
	if err != nil {
		return nil, err
	}
	out := make([]candidates.Exemplar, 0, len(rows))
	for _, r := range rows {
		out = append(out, candidates.Exemplar{Latest: r.Latest, Options: []string{r.Option}})
	}
	return out, nil
}
