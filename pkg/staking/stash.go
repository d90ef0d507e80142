package staking

import (
	"fmt"
	"slices"

	"github.com/holiman/uint256"
)

const (
	commissionPerPercent = CommissionScale / 100
	maxCommissionParts   = CommissionScale
)

// StakingLedger is the bonded ledger of a stash.
type StakingLedger struct {
	Stash string
	Total *uint256.Int
}

// StakerState is an own stash as seen by the actions view.
type StakerState struct {
	StashID           string
	ControllerID      string
	IsOwnController   bool
	IsStashValidating bool
	IsStashNominating bool
	Ledger            *StakingLedger
}

// BondedTotal sums the ledger totals of the given stashes. Ledgers pointing at a stash
// outside the list are ignored.
func BondedTotal(stashes []StakerState) *uint256.Int {
	ids := make(map[string]struct{}, len(stashes))
	for _, s := range stashes {
		ids[s.StashID] = struct{}{}
	}
	total := new(uint256.Int)
	for _, s := range stashes {
		if s.Ledger == nil || s.Ledger.Total == nil {
			continue
		}
		if _, ok := ids[s.Ledger.Stash]; !ok {
			continue
		}
		total.Add(total, s.Ledger.Total)
	}
	return total
}

// OwnControllerStashes keeps the stashes controlled by an own account, validators first,
// then nominators, then the rest.
func OwnControllerStashes(stashes []StakerState) []StakerState {
	out := make([]StakerState, 0, len(stashes))
	for _, s := range stashes {
		if s.IsOwnController {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b StakerState) int {
		return roleWeight(a) - roleWeight(b)
	})
	return out
}

func roleWeight(s StakerState) int {
	switch {
	case s.IsStashValidating:
		return 1
	case s.IsStashNominating:
		return 5
	default:
		return 99
	}
}

// CommissionFromPercent converts a whole percentage into a commission, capped at 100%.
func CommissionFromPercent(percent uint64) Commission {
	if percent > 100 {
		return Commission{Parts: maxCommissionParts}
	}
	return Commission{Parts: percent * commissionPerPercent}
}

// ControllerCheck carries the chain lookups needed to validate a stash/controller pair.
type ControllerCheck struct {
	StashID           string `json:"stashId"`
	ControllerID      string `json:"controllerId"`
	DefaultController string `json:"defaultController,omitempty"`
	// StashBondedTo is the controller the stash is already bonded to, if any.
	StashBondedTo string `json:"stashBondedTo,omitempty"`
	// ControllerStash is the stash the controller already manages, if any.
	ControllerStash string `json:"controllerStash,omitempty"`
}

// ControllerIssue is the outcome of a controller check. An empty Message means no issue.
type ControllerIssue struct {
	Message string `json:"message,omitempty"`
	IsFatal bool   `json:"isFatal"`
}

// CheckController validates a stash/controller pair. Selecting the default controller
// never reports an issue.
func CheckController(c ControllerCheck) ControllerIssue {
	if c.DefaultController == c.ControllerID {
		return ControllerIssue{}
	}
	switch {
	case c.StashBondedTo != "":
		return ControllerIssue{
			Message: fmt.Sprintf("a stash account should not map to another controller, the selected stash is already controlled by %s", c.StashBondedTo),
			IsFatal: true,
		}
	case c.ControllerStash != "":
		return ControllerIssue{
			Message: fmt.Sprintf("a controller account should not manage multiple stashes, the selected controller is already controlling %s", c.ControllerStash),
			IsFatal: true,
		}
	case c.ControllerID == c.StashID:
		return ControllerIssue{
			Message: "distinct stash and controller accounts are recommended to ensure fund security",
		}
	}
	return ControllerIssue{}
}
