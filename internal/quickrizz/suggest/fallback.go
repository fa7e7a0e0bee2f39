package suggest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bdobrica/quickrizz/internal/quickrizz/candidates"
)

var (
	schedulingFallbacks = []string{
		"I'm down. What timing works best?",
		"Can do. Any preference on day or place?",
		"Let's pick a time that works",
	}
	genericFallbacks = []string{
		"ok you've got my attention",
		"tell me more, I'm listening",
		"you're fun, keep going",
	}
)

// fallbackLines picks canned lines for latest: name lines when it asks who
// the user is, scheduling lines when it is a question, generic ones
// otherwise.
func fallbackLines(latest, name string) []string {
	switch {
	case name != "" && candidates.AsksIdentity(latest):
		return []string{
			fmt.Sprintf("I'm %s. Nice to meet you", name),
			fmt.Sprintf("I go by %s. You?", name),
			fmt.Sprintf("I'm %s. What should I call you?", name),
		}
	case strings.HasSuffix(strings.TrimSpace(latest), "?"):
		return schedulingFallbacks
	default:
		return genericFallbacks
	}
}

// fill appends usable fallback lines to options until it holds n. Lines
// with semicolons or deferrals are skipped and winks are stripped below
// heat 2.
func fill(options []string, n int, fallbacks []string, heatLevel int) []string {
	for _, f := range fallbacks {
		if len(options) >= n {
			break
		}
		f = candidates.Clean(f)
		if strings.Contains(f, ";") || candidates.IsDeferral(f) {
			continue
		}
		if heatLevel < 2 {
			f = candidates.StripWinks(f)
		}
		if f == "" || slices.Contains(options, f) {
			continue
		}
		options = append(options, f)
	}
	return options
}
