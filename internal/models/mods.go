package models

import (
	"fmt"
)

// Mod is a gameplay modifier, identified by its acronym ("HD", "DT", ...).
type Mod struct {
	// Acronym is the mod's short identifier.
	Acronym string `json:"acronym" validate:"required,uppercase,min=2,max=3"`
}

// commonModAcronyms are selectable in every ruleset.
var commonModAcronyms = []string{
	"NF", "EZ", "HD", "HR", "SD", "PF", "DT", "NC", "HT", "DC",
	"FL", "AC", "MU", "WU", "WD", "AS", "CL",
}

// rulesetModAcronyms are selectable only in a specific ruleset.
var rulesetModAcronyms = map[RulesetID][]string{
	RulesetOsu:   {"BL", "SO", "TD", "ST"},
	RulesetTaiko: {"SW"},
	RulesetCatch: {"FF", "MR"},
	RulesetMania: {"FI", "MR", "DS"},
}

// ValidModsFor returns the set of acronyms selectable in the given ruleset.
func ValidModsFor(ruleset RulesetID) map[string]struct{} {
	valid := make(map[string]struct{}, len(commonModAcronyms)+4)
	for _, a := range commonModAcronyms {
		valid[a] = struct{}{}
	}
	for _, a := range rulesetModAcronyms[ruleset] {
		valid[a] = struct{}{}
	}
	return valid
}

// ValidateMods checks that every mod in required ∪ allowed is selectable in
// the given ruleset and that the two sets are disjoint.
func ValidateMods(ruleset RulesetID, required, allowed []Mod) error {
	if !ruleset.Valid() {
		return fmt.Errorf("ruleset %d out of range", ruleset)
	}
	valid := ValidModsFor(ruleset)
	requiredSet := make(map[string]struct{}, len(required))
	for _, m := range required {
		if _, ok := valid[m.Acronym]; !ok {
			return fmt.Errorf("mod %q is not valid for ruleset %s", m.Acronym, ruleset)
		}
		requiredSet[m.Acronym] = struct{}{}
	}
	for _, m := range allowed {
		if _, ok := valid[m.Acronym]; !ok {
			return fmt.Errorf("mod %q is not valid for ruleset %s", m.Acronym, ruleset)
		}
		if _, dup := requiredSet[m.Acronym]; dup {
			return fmt.Errorf("mod %q is both required and allowed", m.Acronym)
		}
	}
	return nil
}

// ModsEqual reports whether two mod sets contain the same acronyms,
// regardless of order.
func ModsEqual(a, b []Mod) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, m := range a {
		seen[m.Acronym]++
	}
	for _, m := range b {
		seen[m.Acronym]--
		if seen[m.Acronym] < 0 {
			return false
		}
	}
	return true
}
