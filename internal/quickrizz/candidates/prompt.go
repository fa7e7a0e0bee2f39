package candidates

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/stage"
)

// styleRubric is the fixed part of the system prompt.
const styleRubric = `You write replies for dating app chats between people in their late teens and early twenties.
Write ultra-short replies that are flirty, direct, confident, witty and teasing. Avoid a corny or formal tone.
Prefer decisive verbs and concrete moves.
Length: 4 to 10 words. No markdown, no quotes, no dashes, no semicolons, no exclamation marks, no periods, no links.
Never defer decisions ("you pick", "your call", "up to you", "whatever works").
Do not introduce my name unless LATEST explicitly asks who I am.
Never stretch greetings ("heyyy", "hiii").
Heat policy:
- heat 0 to 1: playful and casual, respectful. Push toward heat 2.
- heat 2: bolder teasing and clearer intent. One 😉 or 😏 allowed at the END. Push toward heat 3.
- heat 3: very flirty, confident push toward meeting or physical proximity. One 😉 or 😏 allowed at the END.
- heat 4: direct, consent-affirming, proximity-forward, concrete plan. No coyness.
Stay on IDEA and GOAL; LATEST matters but do not lose the IDEA.
Return JSON: {"options":["...", "..."]}.
`

var modeGuides = map[int]string{
	0: "Mode: Casual. Keep it light, no emoji, soft tease only.",
	1: "Mode: Playful. Gentle tease allowed, no emoji.",
	2: "Mode: Flirty. Suggestive ideas, decisive invites, one wink emoji allowed.",
	3: "Mode: Bold. Cheeky, proximity-forward, one wink emoji allowed; keep respectful.",
	4: "Mode: Charged. Consent-affirming, direct, concrete proximity or plan; no coyness.",
}

var temperatures = map[int]float64{0: 0.2, 1: 0.35, 2: 0.5, 3: 0.65, 4: 0.75}

// Temperature returns the sampling temperature for a heat level.
func Temperature(heat int) float64 {
	if t, ok := temperatures[heat]; ok {
		return t
	}
	return temperatures[1]
}

func modeGuide(heat int) string {
	if g, ok := modeGuides[heat]; ok {
		return g
	}
	return modeGuides[1]
}

const ideaHint = "\nIf LATEST asks for an idea or plan, prefer cheeky, proximity-forward ideas, e.g.: " +
	`"movie and blanket on my couch", ` +
	`"truth or dare, loser owes a kiss", ` +
	`"massage trade, then dessert", ` +
	`"pasta night, I cook and you taste-test", ` +
	`"late walk then warm up at mine".`

const openerHint = "\nFor STAGE opener: keep it light and curious. " +
	"No plans, no specifics, no ready/fun/weekend/plan. " +
	"Never stretch greetings (heyyy/hiii). " +
	"Keep it to 3 to 5 words with light, open-ended energy."

// Exemplar is a worked example: an incoming line and one good reply.
type Exemplar struct {
	Latest  string
	Options []string
}

// staticExemplars are always sent as few-shot examples.
var staticExemplars = []Exemplar{
	{"i'm in bed rn", []string{
		"Move over, I'm stealing the warm side",
		"when am i pulling up?",
		"tuck you in or keep you up when i come over?",
	}},
	{"hey, wyd tmrw?", []string{
		"nm, I wouldnt mind some company",
		"let's grab that coffee we mentioned",
	}},
	{"not sure yet", []string{"I'll decide. You'll like it"}},
	{"that's bold", []string{"Confidence looks good on us"}},
	{"where are you from?", []string{"Toronto, wbu?", "Toronto, u want a tour?"}},
	{"brunch sounds great, where are we going?", []string{
		"Cafe Luna 11:30, I'll grab a table",
		"Union Market at 12. I'll meet you out front",
	}},
}

// exemplarPair renders an exemplar as a user/assistant turn pair.
func exemplarPair(e Exemplar) []gateway.Message {
	answer, _ := json.Marshal(struct {
		Options []string `json:"options"`
	}{e.Options})
	return []gateway.Message{
		{Role: gateway.RoleUser, Content: "She: " + e.Latest},
		{Role: gateway.RoleAssistant, Content: string(answer)},
	}
}

// systemPrompt assembles the system message for one request.
func (g *Generator) systemPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are QuickRizz.\n")
	b.WriteString(styleRubric)
	b.WriteString(modeGuide(in.Heat))
	if ideaRx.MatchString(in.Latest) {
		b.WriteString(ideaHint)
	}
	if in.Stage == stage.Opener {
		b.WriteString(openerHint)
	}
	b.WriteString("\n")
	if g.identity.Name != "" {
		fmt.Fprintf(&b, "If asked name or identity, answer briefly as %s. Otherwise never introduce my name.\n", g.identity.Name)
	}
	if g.identity.Style != "" {
		fmt.Fprintf(&b, "Voice: %s.\n", g.identity.Style)
	}
	plan := stage.PlanFor(in.Stage)
	fmt.Fprintf(&b, "IDEA: %s\n", in.Topic)
	fmt.Fprintf(&b, "Stage: %s. Goal: %s Tip: %s\n", in.Stage, plan.Goal, plan.Tip)
	b.WriteString("If heat is 3, prioritize flirty proximity-forward lines (suggestive, confident). " +
		"If heat is 4, be direct, consent-affirming, and concrete about proximity or plan.")
	return b.String()
}

func userPrompt(in Input) string {
	return "HISTORY (latest last, keep context):\n" +
		in.Window.Transcript(false) +
		"\n\nLATEST:\n" + in.Latest +
		"\n\nReturn 6 candidates in JSON."
}
