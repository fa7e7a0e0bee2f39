package stage

import (
	"regexp"
	"sort"
)

var (
	// forwardRx marks lines that move towards a meet-up: booking, timing,
	// places, proximity.
	forwardRx = regexp.MustCompile(`(?i)\b(let'?s|set|pick|book|reserve|lock|plan|meet|grab|call|swing by|pull up|come over|my place|your place|` +
		`tonight|tmr|tomorrow|after|later|7|8|9|10\s*(?:am|pm)?)\b|:\d\d`)

	// regressRx marks small-talk lines that drag the chat back to the
	// opener or banter stage.
	regressRx = regexp.MustCompile(`(?i)^\s*(he+y+|hi+i+)\b|` +
		`\b(wyd|what'?s up|hbu|wbu|how('s| is)\s*(your\s*)?(day|week)|where (are|r) you from|` +
		`favorite|favourite|music|movie|song|netflix|major|work|study|tell me about)\b`)

	timeRx  = regexp.MustCompile(`(?i)\b\d{1,2}(:\d\d)?\s*(am|pm)?\b|\btonight|tmr|tomorrow\b`)
	placeRx = regexp.MustCompile(`(?i)\bmy place|your place|meet\b`)
)

const (
	forwardBonus = 1.2
	timeBonus    = 0.8
	placeBonus   = 0.5
)

// EnforceDiagnostics explains what forward enforcement changed.
type EnforceDiagnostics struct {
	Stage   Stage    `json:"stage"`
	Target  *Stage   `json:"target,omitempty"`
	Dropped []string `json:"droppedRegress,omitempty"`
	Forward []string `json:"forwardKept,omitempty"`
}

// Enforcer keeps suggestions moving the conversation forward.
type Enforcer struct{}

// IsRegression reports whether line is small talk that pulls the chat
// back towards opener or banter.
func IsRegression(line string) bool { return regressRx.MatchString(line) }

// IsForward reports whether line carries a forward-progress cue.
func IsForward(line string) bool { return forwardRx.MatchString(line) }

// Bonus is the forward re-rank bonus of line when the conversation is at
// current.
func Bonus(current Stage, line string) float64 {
	b := 0.0
	if forwardRx.MatchString(line) {
		b += forwardBonus
	}
	target, ok := current.Next()
	if !ok {
		return b
	}
	if (target == Plan || target == Confirm || target == Wrap) && timeRx.MatchString(line) {
		b += timeBonus
	}
	if (target == Logistics || target == Plan) && placeRx.MatchString(line) {
		b += placeBonus
	}
	return b
}

// Apply filters and re-ranks ranked, which is ordered best first.
//
// Once current has reached Logistics, regression lines are dropped. The
// survivors are then stably re-sorted by Bonus, so lines with equal bonus
// keep their incoming order. The result may be empty.
func (Enforcer) Apply(current Stage, ranked []string) ([]string, EnforceDiagnostics) {
	d := EnforceDiagnostics{Stage: current}
	if t, ok := current.Next(); ok {
		d.Target = &t
	}

	kept := make([]string, 0, len(ranked))
	for _, line := range ranked {
		if current >= Logistics && IsRegression(line) {
			d.Dropped = append(d.Dropped, line)
			continue
		}
		kept = append(kept, line)
	}

	bonus := make(map[string]float64, len(kept))
	for _, line := range kept {
		bonus[line] = Bonus(current, line)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return bonus[kept[i]] > bonus[kept[j]]
	})

	for _, line := range kept {
		if IsForward(line) && len(d.Forward) < 3 {
			d.Forward = append(d.Forward, line)
		}
	}
	return kept, d
}
