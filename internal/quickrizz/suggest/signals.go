package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bdobrica/quickrizz/common/trace"
	"github.com/bdobrica/quickrizz/internal/quickrizz/convo"
	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

// DefaultTopic is used when no topic can be extracted.
const DefaultTopic = "move things forward"

const (
	topicTemperature = 0.2
	topicMaxTokens   = 8
	topicMaxChars    = 40
)

var topicStripRx = regexp.MustCompile(`[^a-z0-9\s']`)

// TopicDebug explains how the topic was chosen.
type TopicDebug struct {
	Raw   string `json:"raw,omitempty"`
	Hint  bool   `json:"hint,omitempty"`
	Error string `json:"error,omitempty"`
}

// RecallDebug explains which recalled lines were picked.
type RecallDebug struct {
	Keys   []memory.Match `json:"keys,omitempty"`
	Picked []string       `json:"picked,omitempty"`
}

// CleanTopic lower-cases raw, drops everything but letters, digits,
// whitespace and apostrophes, and cuts it to 40 characters. An empty
// result becomes DefaultTopic.
func CleanTopic(raw string) string {
	t := strings.ToLower(textnorm.Clamp(raw, textnorm.MaxChars))
	t = topicStripRx.ReplaceAllString(t, "")
	if len(t) > topicMaxChars {
		t = t[:topicMaxChars]
	}
	if t = textnorm.Clamp(t, 0); t == "" {
		return DefaultTopic
	}
	return t
}

// topic returns the 2 to 5 word idea the conversation is about. A non-empty
// hint is used instead of asking the generator.
func (s *Service) topic(ctx context.Context, w convo.Window, latest, hint string) (string, TopicDebug) {
	if strings.TrimSpace(hint) != "" {
		return CleanTopic(hint), TopicDebug{Raw: hint, Hint: true}
	}

	sys := "Summarize the core conversational idea/goal in 2 to 5 words (no punctuation). " +
		"Examples: 'come over tonight', 'set a time', 'flirty teasing escalates'. Respond with only the phrase."
	usr := fmt.Sprintf("HISTORY(last %d):\n%s\n\nLATEST:\n%s\n\nIDEA:", len(w), w.Transcript(true), textnorm.Expand(latest))

	raw, err := s.llm.Generate(ctx, gateway.Request{
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: sys},
			{Role: gateway.RoleUser, Content: usr},
		},
		Temperature: topicTemperature,
		MaxTokens:   topicMaxTokens,
	})
	d := TopicDebug{Raw: raw}
	if err != nil {
		d.Error = err.Error()
		slog.Warn("suggest: topic extraction failed", trace.Attr(ctx), "err", err)
		return DefaultTopic, d
	}
	return CleanTopic(raw), d
}

// recall returns up to MergeLimit stored replies for prior messages similar
// to latest, best match first.
func (s *Service) recall(latest string) ([]string, RecallDebug) {
	var d RecallDebug
	limit := s.cfg.MergeLimit
	if limit <= 0 {
		return nil, d
	}
	d.Keys = s.index.Similar(latest, 0)

	var lines []string
	seen := make(map[string]struct{})
	for _, m := range d.Keys {
		for _, line := range s.index.BestLinesFor(m.Key, limit) {
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			lines = append(lines, line)
			if len(lines) == limit {
				d.Picked = lines
				return lines, d
			}
		}
	}
	d.Picked = lines
	return lines, d
}
