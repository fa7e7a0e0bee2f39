package candidates

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	decisiveRx = regexp.MustCompile(`(?i)\b(pull|bring|call|pick|book|meet|come|come over|sneak|steal|decide|swing|drop|slide|plan)\b`)
	deferralRx = regexp.MustCompile(`(?i)\b(you pick|your call|up to you|whatever works|either works|you decide|idc|i don'?t care)\b`)
	lightRx    = regexp.MustCompile(`(?i)\b(warm|bed|steal|tuck|keep you up)\b`)
	hedgeRx    = regexp.MustCompile(`(?i)\b(maybe|kinda|sort of|might|could|i guess)\b`)
	innuendoRx = regexp.MustCompile(`(?i)\b(cuddle|wild|kiss|closer|blanket|spoon|massage|back rub|lap|whisper|stay over|come over|movie night|truth or dare)\b`)
	winkRx     = regexp.MustCompile(`[😉😏]`)

	// elongatedGreetRx matches stretched greetings such as "heyyy" or
	// "hiii". A plain "hey" or "hi" is fine.
	elongatedGreetRx = regexp.MustCompile(`(?i)\b(he+y{2,}|he{2,}y+|hi{2,})\b`)
	fillerRx         = regexp.MustCompile(`(?i)\b(vibe|snack|snacks)\b`)
	openerBanRx      = regexp.MustCompile(`(?i)\b(weekend|plan|ready|fun|meet|date|tonight|tmr|tomorrow|call|book|pick|movie|walk|come over)\b`)
	ideaRx           = regexp.MustCompile(`(?i)\b(idea|plan|what('?s|s)\s*the\s*plan|what.*doing|what.*we.*doing)\b`)
)

// Score rates a candidate line at the given heat. Higher is better.
func Score(line string, heat int) float64 {
	t := strings.TrimSpace(line)
	if t == "" {
		return -999
	}

	score := 0.0
	switch words := len(strings.Fields(t)); {
	case words >= 4 && words <= 10:
		score += 2.0
	case words <= 13:
		score += 1.0
	default:
		score -= 1.5
	}
	if decisiveRx.MatchString(t) {
		score += 1.2
	}
	if strings.HasSuffix(t, "?") {
		score += 0.8
	} else {
		score += 0.3
	}
	if lightRx.MatchString(t) {
		if heat <= 1 {
			score += 0.6
		} else {
			score += 1.0
		}
	}
	if heat >= 2 && innuendoRx.MatchString(t) {
		if heat == 2 {
			score += 1.1
		} else {
			score += 1.6
		}
	}
	if hedgeRx.MatchString(t) {
		score -= 1.0
	}
	if first, _ := utf8.DecodeRuneInString(t); unicode.IsUpper(first) && strings.HasSuffix(t, ".") {
		score -= 0.6
	}
	if strings.Contains(t, ";") {
		score -= 2.5
	}
	if deferralRx.MatchString(t) {
		score -= 4.0
	}
	if winkRx.MatchString(t) {
		if heat >= 2 {
			score += 0.9
		} else {
			score -= 1.2
		}
	}
	return score
}

// IsDeferral reports whether line hands the decision back ("up to you").
func IsDeferral(line string) bool { return deferralRx.MatchString(line) }

// StripWinks removes wink and smirk emoji.
func StripWinks(line string) string {
	return strings.TrimSpace(winkRx.ReplaceAllString(line, ""))
}

// Clean collapses whitespace and trims list bullets from a generated line.
func Clean(line string) string {
	line = strings.ReplaceAll(line, " Enter", " ")
	line = strings.Join(strings.Fields(line), " ")
	return strings.Trim(line, " \t\n\r-*•")
}
