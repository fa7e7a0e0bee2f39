package stage

// Guidance is the goal and tip shown for a stage and fed to the generator.
type Guidance struct {
	Goal string `json:"goal"`
	Tip  string `json:"tip"`
}

var guidance = map[Stage]Guidance{
	Opener: {
		Goal: "Be warm and share a tiny fact; learn 1 detail. Move the conversation forward to banter.",
		Tip:  "Answer directly; include your name if asked. Move the conversation forward to banter.",
	},
	Banter: {
		Goal: "Keep it light; ask one fun, low-stakes question. Move the conversation forward to rapport. Do not fall back to opener.",
		Tip:  "Avoid an interview vibe; one-liner plus playful follow-up. Move the conversation forward to rapport.",
	},
	Rapport: {
		Goal: "Mirror tone; reveal a small personal detail; invite reciprocity. Move the conversation forward to logistics. Do not fall back to banter.",
		Tip:  "Acknowledge their last point; stay under 14 words. Move the conversation forward to logistics.",
	},
	Logistics: {
		Goal: "Move toward concrete times and places; give 2 choices. Move the conversation forward to plan. Avoid falling back to rapport.",
		Tip:  "Offer A/B times; end with a crisp question. Move the conversation forward to plan.",
	},
	Plan: {
		Goal: "Propose a clear plan with day and time plus an easy out. Move the conversation forward to confirm. Avoid falling back to logistics.",
		Tip:  "Specific, simple, flexible; end with a micro call to action. Move the conversation forward to confirm.",
	},
	Confirm: {
		Goal: "Confirm time and place; keep it friendly; at heat 3 or more allow a flirty edge and a decisive push. Move the conversation forward to wrap.",
		Tip:  "Restate details; check fit; keep it friendly. At heat 3 or more add flirty confidence.",
	},
	Wrap: {
		Goal: "Close on a positive note; set the next touchpoint.",
		Tip:  "Positive note; confirm the next step.",
	},
}

var defaultGuidance = Guidance{
	Goal: "Be natural and move things forward through opener, banter, rapport, logistics, plan, confirm, wrap.",
	Tip:  "Direct answer; 5–14 words; single call to action.",
}

// PlanFor returns the guidance for s.
func PlanFor(s Stage) Guidance {
	if g, ok := guidance[s]; ok {
		return g
	}
	return defaultGuidance
}
