package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bdobrica/quickrizz/common/trace"
	"github.com/bdobrica/quickrizz/internal/quickrizz/convo"
	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

// Completer is the slice of the generation gateway the classifier needs.
type Completer interface {
	Generate(ctx context.Context, req gateway.Request) (string, error)
}

const (
	voteTemperature = 0.1
	voteMaxTokens   = 5
)

// Diagnostics explains a classification.
type Diagnostics struct {
	Heuristic Stage    `json:"heuristic"`
	Why       []string `json:"why,omitempty"`
	VoteRaw   string   `json:"voteRaw"`
	Vote      Stage    `json:"vote"`
	VoteError string   `json:"voteError,omitempty"`
	Chosen    Stage    `json:"chosen"`
}

// Classifier fuses the keyword heuristic with a generator vote.
type Classifier struct {
	llm Completer
}

// NewClassifier returns a Classifier that votes through llm.
func NewClassifier(llm Completer) *Classifier {
	return &Classifier{llm: llm}
}

// Classify returns the stage of w. latest is the text being replied to.
// A failed or unusable vote counts as Banter; it never fails the request.
func (c *Classifier) Classify(ctx context.Context, w convo.Window, latest string) (Stage, Diagnostics) {
	heur, why := Heuristic(w)
	d := Diagnostics{Heuristic: heur, Why: why, Vote: Banter}

	raw, err := c.llm.Generate(ctx, gateway.Request{
		Messages:    votePrompt(w, latest),
		Temperature: voteTemperature,
		MaxTokens:   voteMaxTokens,
	})
	if err != nil {
		d.VoteError = err.Error()
		slog.Warn("stage: vote failed, defaulting to banter", trace.Attr(ctx), "err", err)
	} else {
		d.VoteRaw = raw
		d.Vote = ParseVote(raw)
	}

	d.Chosen = Fuse(heur, d.Vote)
	slog.Debug("stage: classified", trace.Attr(ctx),
		"heuristic", heur.String(), "vote", d.Vote.String(), "chosen", d.Chosen.String())
	return d.Chosen, d
}

// ParseVote reads the first word of a generator reply as a stage label.
// Anything that is not a label yields Banter.
func ParseVote(raw string) Stage {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Banter
	}
	s, ok := Parse(strings.Trim(fields[0], "\"'`.,:;!?*()[]"))
	if !ok {
		return Banter
	}
	return s
}

func votePrompt(w convo.Window, latest string) []gateway.Message {
	sys := "Label the dating chat stage with one token: " + strings.Join(Labels(), ", ") +
		". Respond with just the token. Prefer later stage when mixed."
	usr := fmt.Sprintf("HISTORY(last %d):\n%s\n\nLATEST:\n%s\n\nStage:",
		convo.DefaultSize, w.Transcript(true), textnorm.Expand(latest))
	return []gateway.Message{
		{Role: gateway.RoleSystem, Content: sys},
		{Role: gateway.RoleUser, Content: usr},
	}
}
