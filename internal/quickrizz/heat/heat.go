// Package heat infers how flirty a conversation is running, on a 0–4
// scale, from a weighted table of textual cues.
//
// The score starts at a baseline and each cue category adds its weight at
// most once. Bonuses reward reciprocity, a streak of hot incoming messages
// and a hot latest message. The score is bucketed by fixed thresholds,
// lifted to the configured floor unless a cooling cue fired, and escalated
// to 4 only from level 3 when an explicit trigger phrase is present.
// A score in the top band alone reports 3.
package heat

import (
	"log/slog"
	"strconv"

	"github.com/bdobrica/quickrizz/internal/quickrizz/convo"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

const (
	// MaxLevel is the hottest level. It is reached only by escalation.
	MaxLevel = 4

	baseline      = 1.0
	mutualBonus   = 0.45
	streakBonus   = 0.8
	streakSpan    = 4
	streakMin     = 2
	greenBonus    = 0.6
	coolPenalty   = 0.35
	latestHotBump = 0.8
)

// thresholds maps a minimum score to a level, hottest first.
var thresholds = []struct {
	min   float64
	level int
}{
	{3.5, 4},
	{2.6, 3},
	{1.8, 2},
	{1.1, 1},
}

// Hit records one contribution to the score.
type Hit struct {
	Tag    string `json:"tag"`
	Detail string `json:"detail,omitempty"`
}

// Diagnostics explains a heat decision.
type Diagnostics struct {
	Score     float64 `json:"score"`
	Hits      []Hit   `json:"hits"`
	Cooling   bool    `json:"cooling"`
	Escalated bool    `json:"escalated,omitempty"`
	Level     int     `json:"level"`
}

// Inferencer scores windows. The zero value has a floor of 0.
type Inferencer struct {
	// Floor is the lowest level reported when no cooling cue is present.
	Floor int
}

// New returns an Inferencer with the given floor, clamped to [0, 3].
func New(floor int) *Inferencer {
	return &Inferencer{Floor: min(max(floor, 0), MaxLevel-1)}
}

// Infer returns the heat level of w. latest is the text being replied to.
func (in *Inferencer) Infer(w convo.Window, latest string) (int, Diagnostics) {
	d := Score(w, latest)
	level := Resolve(d.Score, d.Cooling, in.Floor)

	if level >= 3 {
		if escalationRx.MatchString(textnorm.Lower(w.Text())) || escalationRx.MatchString(textnorm.Lower(latest)) {
			level = MaxLevel
			d.Escalated = true
			d.Hits = append(d.Hits, Hit{Tag: "escalation", Detail: "trigger"})
		}
	}
	d.Level = level

	slog.Debug("heat: inferred", "level", level, "score", d.Score, "cooling", d.Cooling, "hits", len(d.Hits))
	return level, d
}

// Score computes the raw intensity score of w without bucketing it.
func Score(w convo.Window, latest string) Diagnostics {
	windowText := textnorm.Lower(w.Text())
	d := Diagnostics{Score: baseline}

	for _, c := range cueTable {
		if c.rx.MatchString(windowText) {
			d.Score += c.weight
			d.Hits = append(d.Hits, Hit{Tag: string(c.cat), Detail: "window"})
		}
	}

	theirs := textnorm.Lower(w.TextOf(convo.Incoming))
	yours := textnorm.Lower(w.TextOf(convo.Outgoing))
	mutual := 0
	for _, cat := range matches(theirs, mutualSet) {
		for _, other := range matches(yours, mutualSet) {
			if cat == other {
				mutual++
				break
			}
		}
	}
	if mutual > 0 {
		d.Score += mutualBonus * float64(mutual)
		d.Hits = append(d.Hits, Hit{Tag: "mutual", Detail: strconv.Itoa(mutual)})
	}

	if hot := hotStreak(w); hot >= streakMin {
		d.Score += streakBonus
		d.Hits = append(d.Hits, Hit{Tag: "streak", Detail: strconv.Itoa(hot)})
	}

	if greenRx.MatchString(windowText) {
		d.Score += greenBonus
		d.Hits = append(d.Hits, Hit{Tag: "green"})
	}
	if CoolingRx.MatchString(windowText) {
		d.Score -= coolPenalty
		d.Cooling = true
		d.Hits = append(d.Hits, Hit{Tag: "cooling"})
	}

	if len(matches(textnorm.Lower(latest), mutualSet)) > 0 {
		d.Score += latestHotBump
		d.Hits = append(d.Hits, Hit{Tag: "latest_hot"})
	}
	return d
}

// hotStreak counts how many of the incoming party's last four non-empty
// messages match a hot category.
func hotStreak(w convo.Window) int {
	seen, hot := 0, 0
	for i := len(w) - 1; i >= 0 && seen < streakSpan; i-- {
		m := w[i]
		if m.Role != convo.Incoming || m.Text == "" {
			continue
		}
		seen++
		if len(matches(textnorm.Lower(m.Text), hotSet)) > 0 {
			hot++
		}
	}
	return hot
}

// Band buckets score by the fixed thresholds, 0 through 4.
func Band(score float64) int {
	for _, t := range thresholds {
		if score >= t.min {
			return t.level
		}
	}
	return 0
}

// Resolve turns a score into a reportable level before escalation: the
// band capped at 3, lifted to floor unless cooling is set. Level 4 needs an
// explicit trigger on top of level 3, so no score reaches it alone.
func Resolve(score float64, cooling bool, floor int) int {
	level := min(Band(score), MaxLevel-1)
	if !cooling {
		level = max(level, floor)
	}
	return level
}
