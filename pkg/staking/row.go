package staking

import "github.com/holiman/uint256"

// ValidatorPrefs is the validator preference record; Commission is nil when the chain
// reports no fee.
type ValidatorPrefs struct {
	Commission *Commission
}

// ValidatorRow collects the independently resolved inputs of one validator row.
// The summary is only produced once every input is present.
type ValidatorRow struct {
	exposure      *Exposure
	prefs         *ValidatorPrefs
	stakeLimit    *uint256.Int
	controller    string
	hasController bool

	summary *StakeSummary
}

// Ready reports whether every input has resolved.
func (r *ValidatorRow) Ready() bool {
	return r.exposure != nil && r.prefs != nil && r.stakeLimit != nil && r.hasController
}

// Summary returns the last computed summary, or false while inputs are missing.
func (r *ValidatorRow) Summary() (StakeSummary, bool) {
	if r.summary == nil {
		return StakeSummary{}, false
	}
	return *r.summary, true
}

// Controller returns the bonded controller; empty when the stash is not bonded.
func (r *ValidatorRow) Controller() (string, bool) {
	return r.controller, r.hasController
}

// NominatorIDs lists the accounts backing the current exposure.
func (r *ValidatorRow) NominatorIDs() []string {
	if r.exposure == nil {
		return nil
	}
	ids := make([]string, 0, len(r.exposure.Others))
	for _, o := range r.exposure.Others {
		ids = append(ids, o.Who)
	}
	return ids
}

// recompute rebuilds the summary. The previous summary is dropped on error so that a
// broken snapshot never leaves stale numbers behind.
func (r *ValidatorRow) recompute() error {
	if !r.Ready() {
		r.summary = nil
		return nil
	}
	summary, err := ExpandExposure(*r.exposure, r.prefs.Commission, r.stakeLimit)
	if err != nil {
		r.summary = nil
		return err
	}
	r.summary = &summary
	return nil
}
