// Package candidates asks the generator for fresh reply lines and turns its
// output into a short ranked list.
//
// Raw lines are cleaned and filtered (stretched greetings, unwanted
// self-introductions, semicolons, deferrals, filler words, and winks below
// heat 2), scored, given extra hygiene at the opener stage, passed through
// forward enforcement and cut to the requested count.
package candidates

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/bdobrica/quickrizz/common/trace"
	"github.com/bdobrica/quickrizz/internal/quickrizz/convo"
	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/stage"
)

const (
	defaultMaxTokens = 120
	likedExemplars   = 6
	openerMaxWords   = 8
)

// OpenerFallbacks replace the list when opener hygiene leaves nothing.
var OpenerFallbacks = []string{
	"ok you have my attention",
	"what's the story behind that?",
	"you seem like trouble",
}

// Completer is the slice of the generation gateway the generator needs.
type Completer interface {
	Generate(ctx context.Context, req gateway.Request) (string, error)
}

// ExemplarSource supplies replies the user liked earlier at a stage.
type ExemplarSource interface {
	LikedExemplars(ctx context.Context, stage string, k int) ([]Exemplar, error)
}

// Identity is who the suggestions speak for.
type Identity struct {
	Name  string
	Style string
}

// Config configures a Generator.
type Config struct {
	Identity Identity
	// Exemplars is optional.
	Exemplars ExemplarSource
	// MaxTokens caps the generator output. Defaults to 120.
	MaxTokens int
}

// Input is one generation request.
type Input struct {
	Window convo.Window
	Latest string
	Stage  stage.Stage
	Heat   int
	Topic  string
	// Count is the number of lines wanted; values below 1 mean 1.
	Count int
}

// Diagnostics explains a generation.
type Diagnostics struct {
	Generated []string                 `json:"generated"`
	Ranked    []string                 `json:"rankedTop"`
	Forward   stage.EnforceDiagnostics `json:"forwardEnforcer"`
	Fallback  bool                     `json:"openerFallback,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Generator produces ranked candidate lines.
type Generator struct {
	llm       Completer
	identity  Identity
	exemplars ExemplarSource
	maxTokens int
	enforcer  stage.Enforcer
	selfIntro *regexp.Regexp
}

// New returns a Generator calling llm.
func New(llm Completer, cfg Config) *Generator {
	g := &Generator{
		llm:       llm,
		identity:  cfg.Identity,
		exemplars: cfg.Exemplars,
		maxTokens: cfg.MaxTokens,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if name := strings.TrimSpace(cfg.Identity.Name); name != "" {
		g.selfIntro = regexp.MustCompile(`(?i)\b(i\s*'?m|i am)\s+` + regexp.QuoteMeta(name))
	}
	return g
}

// Generate returns up to in.Count ranked lines. Generator failures and
// unusable output count as an empty list, never an error; at the opener
// stage that empty list is replaced by OpenerFallbacks.
func (g *Generator) Generate(ctx context.Context, in Input) ([]string, Diagnostics) {
	var d Diagnostics
	count := max(in.Count, 1)

	raw, err := g.llm.Generate(ctx, gateway.Request{
		Messages:    g.messages(ctx, in),
		Temperature: Temperature(in.Heat),
		MaxTokens:   g.maxTokens,
	})
	var opts []string
	switch {
	case err != nil:
		d.Error = err.Error()
		slog.Warn("candidates: generation failed", trace.Attr(ctx), "err", err)
	case raw == "":
		slog.Debug("candidates: generator returned nothing", trace.Attr(ctx))
	default:
		if opts, err = ParseOptions(raw); err != nil {
			d.Error = err.Error()
			slog.Warn("candidates: unusable generator output", trace.Attr(ctx), "err", err)
		}
	}
	d.Generated = opts

	ranked := g.Rank(in, opts)

	if in.Stage == stage.Opener {
		ranked = openerHygiene(ranked)
		if len(ranked) == 0 {
			ranked = append([]string(nil), OpenerFallbacks...)
			d.Fallback = true
		}
	}

	ranked, d.Forward = g.enforcer.Apply(in.Stage, ranked)
	if len(ranked) > count {
		ranked = ranked[:count]
	}
	d.Ranked = ranked

	slog.Debug("candidates: ranked", trace.Attr(ctx),
		"stage", in.Stage.String(), "heat", in.Heat, "generated", len(opts), "kept", len(ranked))
	return ranked, d
}

// Rank filters raw lines and orders the survivors by Score, best first.
func (g *Generator) Rank(in Input, raw []string) []string {
	askedName := AsksIdentity(in.Latest)
	pool := make([]string, 0, len(raw))
	for _, s := range raw {
		s = Clean(s)
		if s == "" || elongatedGreetRx.MatchString(s) {
			continue
		}
		if !askedName && g.selfIntro != nil && g.selfIntro.MatchString(s) {
			continue
		}
		if strings.Contains(s, ";") || deferralRx.MatchString(s) {
			continue
		}
		if in.Heat < 2 {
			if s = StripWinks(s); s == "" {
				continue
			}
		}
		if fillerRx.MatchString(s) {
			continue
		}
		pool = append(pool, s)
	}

	scores := make([]float64, len(pool))
	idx := make([]int, len(pool))
	for i, s := range pool {
		scores[i] = Score(s, in.Heat)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

// AsksIdentity reports whether latest asks who the user is.
func AsksIdentity(latest string) bool {
	low := strings.ToLower(latest)
	for _, k := range []string{"name", "who are you", "who’s this", "who's this", "who is this"} {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

func openerHygiene(ranked []string) []string {
	out := make([]string, 0, len(ranked))
	for _, line := range ranked {
		if elongatedGreetRx.MatchString(line) || openerBanRx.MatchString(line) {
			continue
		}
		if len(strings.Fields(line)) > openerMaxWords {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (g *Generator) messages(ctx context.Context, in Input) []gateway.Message {
	msgs := []gateway.Message{{Role: gateway.RoleSystem, Content: g.systemPrompt(in)}}
	for _, e := range staticExemplars {
		msgs = append(msgs, exemplarPair(e)...)
	}
	if g.exemplars != nil {
		liked, err := g.exemplars.LikedExemplars(ctx, in.Stage.String(), likedExemplars)
		if err != nil {
			slog.Warn("candidates: liked exemplars unavailable", trace.Attr(ctx), "err", err)
		}
		for _, e := range liked {
			msgs = append(msgs, exemplarPair(e)...)
		}
	}
	return append(msgs, gateway.Message{Role: gateway.RoleUser, Content: userPrompt(in)})
}
