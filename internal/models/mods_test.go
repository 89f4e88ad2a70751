package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMods(t *testing.T) {
	tests := []struct {
		name     string
		ruleset  RulesetID
		required []Mod
		allowed  []Mod
		wantErr  string
	}{
		{
			name:     "common mods valid everywhere",
			ruleset:  RulesetMania,
			required: []Mod{{Acronym: "DT"}},
			allowed:  []Mod{{Acronym: "HD"}, {Acronym: "FL"}},
		},
		{
			name:     "ruleset specific mod accepted",
			ruleset:  RulesetOsu,
			required: []Mod{{Acronym: "BL"}},
		},
		{
			name:    "ruleset specific mod rejected elsewhere",
			ruleset: RulesetTaiko,
			allowed: []Mod{{Acronym: "BL"}},
			wantErr: "not valid",
		},
		{
			name:     "unknown acronym",
			ruleset:  RulesetOsu,
			required: []Mod{{Acronym: "XX"}},
			wantErr:  "not valid",
		},
		{
			name:     "overlap between required and allowed",
			ruleset:  RulesetOsu,
			required: []Mod{{Acronym: "HD"}},
			allowed:  []Mod{{Acronym: "HD"}},
			wantErr:  "both required and allowed",
		},
		{
			name:    "ruleset out of range",
			ruleset: RulesetID(7),
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMods(tt.ruleset, tt.required, tt.allowed)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestModsEqual(t *testing.T) {
	a := []Mod{{Acronym: "HD"}, {Acronym: "DT"}}
	b := []Mod{{Acronym: "DT"}, {Acronym: "HD"}}

	assert.True(t, ModsEqual(a, b), "order must not matter")
	assert.True(t, ModsEqual(nil, nil))
	assert.False(t, ModsEqual(a, a[:1]))
	assert.False(t, ModsEqual(a, []Mod{{Acronym: "HD"}, {Acronym: "NC"}}))
}
