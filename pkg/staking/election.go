package staking

import "slices"

// FilteredAccount is one account of a partitioned election snapshot.
type FilteredAccount struct {
	AccountID  string `json:"accountId"`
	IsElected  bool   `json:"isElected"`
	IsFavorite bool   `json:"isFavorite"`
}

// ElectionState is the staking overview reported by the chain.
type ElectionState struct {
	NextElected []string `json:"nextElected"`
	Validators  []string `json:"validators"`
}

// Partition splits the account universe into three disjoint lists.
type Partition struct {
	Validators []FilteredAccount `json:"validators"`
	Elected    []FilteredAccount `json:"elected"`
	Waiting    []FilteredAccount `json:"waiting"`
}

// PartitionElection derives the validators, elected-but-not-validating and waiting lists.
// Favorites come first in every list; the order among equals is the input order.
func PartitionElection(state ElectionState, waiting []string, favorites []string) Partition {
	elected := toSet(state.NextElected)
	validators := toSet(state.Validators)
	favs := toSet(favorites)

	return Partition{
		Validators: filterAccounts(state.Validators, elected, favs, nil),
		Elected:    filterAccounts(state.NextElected, elected, favs, validators),
		Waiting:    filterAccounts(waiting, nil, favs, elected),
	}
}

func filterAccounts(accounts []string, elected, favorites, without map[string]struct{}) []FilteredAccount {
	out := make([]FilteredAccount, 0, len(accounts))
	for _, id := range accounts {
		if _, skip := without[id]; skip {
			continue
		}
		_, isElected := elected[id]
		_, isFavorite := favorites[id]
		out = append(out, FilteredAccount{AccountID: id, IsElected: isElected, IsFavorite: isFavorite})
	}
	slices.SortStableFunc(out, func(a, b FilteredAccount) int {
		switch {
		case a.IsFavorite == b.IsFavorite:
			return 0
		case a.IsFavorite:
			return -1
		default:
			return 1
		}
	})
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
