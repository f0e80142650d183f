package authority

// Policy holds the canonical authority rules. Keep it small and treat it
// as law.
type Policy struct {
	AlphaActorID  string
	CommitActions map[string]bool
	// Advisory personas may advise but can never commit.
	AdvisoryActors map[string]bool
	Version        string
}

// DefaultPolicy returns the baseline policy.
func DefaultPolicy() Policy {
	return Policy{
		AlphaActorID: "ALPHA",
		CommitActions: map[string]bool{
			"STATE_MUTATE":         true,
			"POSITION_CHANGE":      true,
			"RISK_ENVELOPE_CHANGE": true,
			"REGIME_LOCK":          true,
			"CONFIG_WRITE":         true,
			"DECISION_COMMIT":      true,
		},
		AdvisoryActors: map[string]bool{
			"ADVISOR":  true,
			"GUARDIAN": true,
			"SENTINEL": true,
			"AUDITOR":  true,
			"SCOUT":    true,
		},
		Version: "1",
	}
}

// IsAlpha reports whether the actor is the alpha identity.
func (p Policy) IsAlpha(actorID string) bool {
	return actorID != "" && actorID == p.AlphaActorID
}

// Allow reports whether the action may be committed by the actor.
func (p Policy) Allow(action, actorID string) bool {
	if p.AdvisoryActors[actorID] {
		return false
	}
	return p.CommitActions[action]
}
