package staking

// Nomination is one nominator's ranked target list. Nil Targets means the nominator has
// no recorded nomination.
type Nomination struct {
	NominatorID string   `json:"nominatorId"`
	Targets     []string `json:"targets"`
}

// NominatorRank is a nominator naming a validator at a 1-based position of its targets.
type NominatorRank struct {
	NominatorID string `json:"nominatorId"`
	Rank        int    `json:"rank"`
}

// NominatorIndex maps a validator to the nominators that named it, in source order.
type NominatorIndex map[string][]NominatorRank

// BuildNominatorIndex inverts nominator target lists. A validator listed more than once by
// the same nominator is recorded at its first position only.
func BuildNominatorIndex(nominations []Nomination) NominatorIndex {
	index := make(NominatorIndex)
	for _, n := range nominations {
		if n.Targets == nil {
			continue
		}
		seen := make(map[string]struct{}, len(n.Targets))
		for i, validatorID := range n.Targets {
			if _, dup := seen[validatorID]; dup {
				continue
			}
			seen[validatorID] = struct{}{}
			index[validatorID] = append(index[validatorID], NominatorRank{NominatorID: n.NominatorID, Rank: i + 1})
		}
	}
	return index
}

// IsNominating reports whether the row belongs to, or is nominated by, one of the own accounts.
func IsNominating(address string, nominatedBy []NominatorRank, ownAccounts []string) bool {
	own := toSet(ownAccounts)
	if _, ok := own[address]; ok {
		return true
	}
	for _, n := range nominatedBy {
		if _, ok := own[n.NominatorID]; ok {
			return true
		}
	}
	return false
}
