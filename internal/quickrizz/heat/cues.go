package heat

import "regexp"

// Category tags a cue pattern.
type Category string

const (
	Desire     Category = "desire"
	Touch      Category = "touch"
	Proximity  Category = "proximity"
	Body       Category = "body"
	Permission Category = "permission"
	Exclusive  Category = "exclusive"
	Sensory    Category = "sensory"
	Command    Category = "command"
	Tease      Category = "tease"
	Wink       Category = "wink"
	EroticQ    Category = "erotic_q"
	Readiness  Category = "readiness"
	Invite     Category = "invite"
)

// cue is one row of the weighted cue table.
type cue struct {
	cat    Category
	weight float64
	rx     *regexp.Regexp
}

// cueTable is evaluated in order; each row adds its weight at most once.
var cueTable = []cue{
	{Desire, 1.0, regexp.MustCompile(`(?i)\b(want you|need you|can'?t wait|begging for|crave|dying to|i aim to please|please me)\b`)},
	{Touch, 1.0, regexp.MustCompile(`(?i)\b(kiss|touch|feel|grab|pull you|hold (you|me)|hands? on|lips?|neck|waist|hips?)\b`)},
	{Proximity, 0.9, regexp.MustCompile(`(?i)\b(come over|pull up|at (my|ur|your) place|now|tonight|after|later|swing by|on my way)\b`)},
	{Body, 0.7, regexp.MustCompile(`(?i)\b(neck|lips?|thighs?|waist|hips?|back|skin|hair)\b`)},
	{Permission, 0.4, regexp.MustCompile(`(?i)\b(if you'?re into it|if you want|want me to|should i|can i)\b`)},
	{Exclusive, 0.4, regexp.MustCompile(`(?i)\b(just us|just you and me|our night|my place|your place)\b`)},
	{Sensory, 0.6, regexp.MustCompile(`(?i)\b(warm|soft|slow|close|closer|whisper|taste|smell|skin|breathe)\b`)},
	{Command, 0.4, regexp.MustCompile(`(?i)\b(come|pull|kiss|bring|meet|slide|sneak|decide|book)\b`)},
	{Tease, 0.6, regexp.MustCompile(`(?i)\b(tease|teasing|make you beg|earn it|behave|be good)\b`)},
	{Wink, 0.8, regexp.MustCompile(`[😉😏]|;\)`)},
	{EroticQ, 1.2, regexp.MustCompile(`(?i)\b(what are you (gonna|going to) do to me|how (are|r) you (gonna|going to) please me|how will you please me)\b`)},
	{Readiness, 0.9, regexp.MustCompile(`(?i)\b(i('|’)?m so ready|i('?m)? ready|can'?t wait|don'?t keep me waiting)\b`)},
	{Invite, 0.5, regexp.MustCompile(`(?i)\b(when are we meeting|so when|let'?s meet|set a time)\b`)},
}

// mutualSet lists the categories that earn the reciprocity bonus and the
// latest-message bonus.
var mutualSet = map[Category]bool{
	Desire: true, Touch: true, Proximity: true, Tease: true,
	Wink: true, EroticQ: true, Readiness: true,
}

// hotSet lists the categories that count towards a streak.
var hotSet = map[Category]bool{
	Desire: true, Touch: true, EroticQ: true, Readiness: true, Wink: true,
}

var (
	greenRx = regexp.MustCompile(`(?i)(?:\b(dare|bold|come|pull up|when|where|tonight|in bed|miss you|wink)\b|;\)|😉|😏)`)

	// CoolingRx matches the broad cooling cues. Its presence anywhere in a
	// window suspends the heat floor. "idk" is matched in both spellings
	// since cue text is slang-expanded.
	CoolingRx = regexp.MustCompile(`(?i)\b(busy|tired|idk|i don'?t know|not sure|another time|later)\b`)

	escalationRx = regexp.MustCompile(`(?i)` +
		`\bexplore me\b` +
		`|\bmake me( yours)?\b` +
		`|\bdo (me|it to me)\b` +
		`|\b(take|use) me\b` +
		`|\bhave your way with me\b` +
		`|\bi want you inside me\b` +
		`|\bput it in\b` +
		`|\bi'?m (all )?yours( tonight)?\b` +
		`|\b(come )?claim me\b` +
		`|\bmake me (beg|scream)\b` +
		`|\b(ruin|destroy) me\b` +
		`|\b(hands on|touch) (me|my)\b` +
		`|\bkiss me (now|everywhere)\b` +
		`|\b(come over|pull up) now\b` +
		`|\bi'?m ready for you\b|\btake me now\b` +
		`|\bi want all of you\b|\bgive it to me\b` +
		`|\bdo your worst\b` +
		`|\b(harder|deeper|faster|don'?t stop)\b` +
		`|\b(you can|you should|i want you to)\s+(?:kiss|touch|pin|choke|spank|grab|hold|take)\b` +
		`|\b(mmm+|god yes|ugh yes)\b` +
		`|(?:🍑|🍆|💦|👅|🫦)+(?:\s*(?:now|tonight))?`)
)

// matches reports the categories of set that match text.
func matches(text string, set map[Category]bool) []Category {
	var out []Category
	for _, c := range cueTable {
		if set[c.cat] && c.rx.MatchString(text) {
			out = append(out, c.cat)
		}
	}
	return out
}
