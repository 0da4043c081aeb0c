package game

// Reconcile turns the player's yes/no answer plus the AI's stored visual
// analysis into a concrete elimination set. The model only ever supplies the
// per-candidate feature verdicts; the elimination itself stays deterministic
// set arithmetic so its correctness does not depend on model reliability.
//
// A "yes" means the player's secret has the feature, so every remaining
// candidate without it is inconsistent. A "no" eliminates every candidate
// with the feature.
//
// If the computed set would wipe the whole board, the elimination is vetoed
// and nobody is removed: losing the last candidate to a model judgment error
// is an engine bug, not a legitimate AI loss. Callers surface the veto as a
// warning message.
func Reconcile(analysis []Judgment, answer Answer, remaining []Character) (eliminated []Character, vetoed bool) {
	drop := make(map[string]bool, len(analysis))
	for _, j := range analysis {
		if j.HasFeature != bool(answer) {
			drop[j.ID] = true
		}
	}

	for _, c := range remaining {
		if drop[c.ID] {
			eliminated = append(eliminated, c)
		}
	}

	if len(remaining) > 0 && len(eliminated) == len(remaining) {
		return nil, true
	}
	return eliminated, false
}

// subtract returns remaining minus the eliminated characters, preserving
// order.
func subtract(remaining, eliminated []Character) []Character {
	if len(eliminated) == 0 {
		return remaining
	}
	drop := make(map[string]bool, len(eliminated))
	for _, c := range eliminated {
		drop[c.ID] = true
	}
	kept := make([]Character, 0, len(remaining))
	for _, c := range remaining {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	return kept
}
