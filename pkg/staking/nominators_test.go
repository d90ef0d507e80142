package staking_test

import (
	"testing"

	"github.com/canopy-network/stakewatch/pkg/staking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildNominatorIndex_Scenario tests ranks and absent target lists
func TestBuildNominatorIndex_Scenario(t *testing.T) {
	index := staking.BuildNominatorIndex([]staking.Nomination{
		{NominatorID: "N1", Targets: []string{"V2", "V1"}},
		{NominatorID: "N2"},
		{NominatorID: "N3", Targets: []string{"V1"}},
	})

	assert.Equal(t, []staking.NominatorRank{{NominatorID: "N1", Rank: 2}, {NominatorID: "N3", Rank: 1}}, index["V1"])
	assert.Equal(t, []staking.NominatorRank{{NominatorID: "N1", Rank: 1}}, index["V2"])
	_, ok := index["V3"]
	assert.False(t, ok)
	assert.Len(t, index, 2)
}

// TestBuildNominatorIndex_Duplicates tests that only the first occurrence is ranked
func TestBuildNominatorIndex_Duplicates(t *testing.T) {
	index := staking.BuildNominatorIndex([]staking.Nomination{
		{NominatorID: "N1", Targets: []string{"V1", "V2", "V1"}},
	})

	assert.Equal(t, []staking.NominatorRank{{NominatorID: "N1", Rank: 1}}, index["V1"])
	assert.Equal(t, []staking.NominatorRank{{NominatorID: "N1", Rank: 2}}, index["V2"])
}

// TestBuildNominatorIndex_RankMatchesTargets tests that every entry points back at its source position
func TestBuildNominatorIndex_RankMatchesTargets(t *testing.T) {
	nominations := []staking.Nomination{
		{NominatorID: "A", Targets: []string{"x", "y", "z"}},
		{NominatorID: "B", Targets: []string{"z", "x"}},
		{NominatorID: "C", Targets: []string{}},
		{NominatorID: "D", Targets: []string{"y"}},
	}
	byID := map[string][]string{}
	for _, n := range nominations {
		byID[n.NominatorID] = n.Targets
	}

	index := staking.BuildNominatorIndex(nominations)
	require.NotEmpty(t, index)
	for validatorID, ranks := range index {
		for _, r := range ranks {
			targets := byID[r.NominatorID]
			require.GreaterOrEqual(t, r.Rank, 1)
			require.LessOrEqual(t, r.Rank, len(targets))
			assert.Equal(t, validatorID, targets[r.Rank-1])
		}
	}
}

// TestIsNominating tests own-account highlighting
func TestIsNominating(t *testing.T) {
	nominatedBy := []staking.NominatorRank{{NominatorID: "N1", Rank: 1}, {NominatorID: "N2", Rank: 3}}

	assert.True(t, staking.IsNominating("V1", nominatedBy, []string{"N2"}))
	assert.True(t, staking.IsNominating("V1", nil, []string{"V1"}))
	assert.False(t, staking.IsNominating("V1", nominatedBy, []string{"N9"}))
	assert.False(t, staking.IsNominating("V1", nominatedBy, nil))
}
