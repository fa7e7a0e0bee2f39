package stage

import (
	"regexp"

	"github.com/bdobrica/quickrizz/internal/quickrizz/convo"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

// rule raises the heuristic stage to at least stage when rx matches the
// window. why is reported in diagnostics; empty reasons are not reported.
type rule struct {
	stage Stage
	why   string
	rx    *regexp.Regexp
}

var rules = []rule{
	{Opener, "", regexp.MustCompile(`\b(hey|hi|hello)\b`)},
	{Banter, "", regexp.MustCompile(`\b(lol|haha|jk|tease|cute|music|movie)\b`)},
	{Rapport, "rapport-cues", regexp.MustCompile(`\b(i like|i love|that['’]s bold|you['’]re fun|miss you|attracted)\b`)},
	{Logistics, "time/place-cues", regexp.MustCompile(`\b(when|what time|tonight|tmr|tomorrow|where|which place)\b`)},
	{Plan, "lets+verb", regexp.MustCompile(`\b(let'?s|lets)\s+(meet|hang|grab|do|cook|watch|walk|picnic)\b`)},
	{Confirm, "explicit-time", regexp.MustCompile(`\b(\d{1,2}(:\d\d)?\s*(am|pm)?)\b|\btonight|8\b`)},
	{Wrap, "locked-in", regexp.MustCompile(`\b(see you|on my way|locked in|it['’]?s a date)\b`)},
}

// Heuristic reads the stage from keywords in the window. Every rule is
// tested and the highest matching stage wins; with no match the stage is
// Opener.
func Heuristic(w convo.Window) (Stage, []string) {
	text := textnorm.Lower(w.Text())
	best := Opener
	var why []string
	for _, r := range rules {
		if !r.rx.MatchString(text) {
			continue
		}
		best = max(best, r.stage)
		if r.why != "" {
			why = append(why, r.why)
		}
	}
	return best, why
}
