package staking_test

import (
	"testing"

	"github.com/canopy-network/stakewatch/pkg/staking"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

// TestBondedTotal tests that only ledgers of listed stashes are summed
func TestBondedTotal(t *testing.T) {
	stashes := []staking.StakerState{
		{StashID: "s1", Ledger: &staking.StakingLedger{Stash: "s1", Total: uint256.NewInt(100)}},
		{StashID: "s2", Ledger: &staking.StakingLedger{Stash: "s2", Total: uint256.NewInt(250)}},
		{StashID: "s3", Ledger: &staking.StakingLedger{Stash: "elsewhere", Total: uint256.NewInt(999)}},
		{StashID: "s4"},
	}

	assert.Equal(t, "350", staking.BondedTotal(stashes).Dec())
	assert.True(t, staking.BondedTotal(nil).IsZero())
}

// TestOwnControllerStashes tests filtering and role ordering
func TestOwnControllerStashes(t *testing.T) {
	stashes := []staking.StakerState{
		{StashID: "idle-1", IsOwnController: true},
		{StashID: "nom-1", IsOwnController: true, IsStashNominating: true},
		{StashID: "foreign", IsOwnController: false, IsStashValidating: true},
		{StashID: "val-1", IsOwnController: true, IsStashValidating: true},
		{StashID: "idle-2", IsOwnController: true},
		{StashID: "val-2", IsOwnController: true, IsStashValidating: true},
	}

	got := staking.OwnControllerStashes(stashes)
	order := make([]string, 0, len(got))
	for _, s := range got {
		order = append(order, s.StashID)
	}
	assert.Equal(t, []string{"val-1", "val-2", "nom-1", "idle-1", "idle-2"}, order)
}

// TestCommissionFromPercent tests conversion and clamping of percentages
func TestCommissionFromPercent(t *testing.T) {
	assert.Equal(t, staking.Commission{Parts: 0}, staking.CommissionFromPercent(0))
	assert.Equal(t, staking.Commission{Parts: 50_000_000}, staking.CommissionFromPercent(5))
	assert.Equal(t, staking.Commission{Parts: 1_000_000_000}, staking.CommissionFromPercent(100))
	assert.Equal(t, staking.Commission{Parts: 1_000_000_000}, staking.CommissionFromPercent(250))
	assert.Equal(t, "5.00%", staking.CommissionFromPercent(5).String())
}

// TestCheckController tests the stash/controller validation rules
func TestCheckController(t *testing.T) {
	tests := []struct {
		name      string
		check     staking.ControllerCheck
		wantIssue bool
		wantFatal bool
	}{
		{
			name:  "default controller never errors",
			check: staking.ControllerCheck{StashID: "s", ControllerID: "c", DefaultController: "c", StashBondedTo: "x"},
		},
		{
			name:      "stash already bonded",
			check:     staking.ControllerCheck{StashID: "s", ControllerID: "c", StashBondedTo: "x"},
			wantIssue: true,
			wantFatal: true,
		},
		{
			name:      "controller manages another stash",
			check:     staking.ControllerCheck{StashID: "s", ControllerID: "c", ControllerStash: "other"},
			wantIssue: true,
			wantFatal: true,
		},
		{
			name:      "same stash and controller warns",
			check:     staking.ControllerCheck{StashID: "s", ControllerID: "s"},
			wantIssue: true,
		},
		{
			name:  "distinct accounts",
			check: staking.ControllerCheck{StashID: "s", ControllerID: "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := staking.CheckController(tt.check)
			assert.Equal(t, tt.wantIssue, issue.Message != "")
			assert.Equal(t, tt.wantFatal, issue.IsFatal)
		})
	}
}
