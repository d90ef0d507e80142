package staking

import "strings"

// Identity is the on-chain identity of an account.
type Identity struct {
	Display       string `json:"display,omitempty"`
	DisplayParent string `json:"displayParent,omitempty"`
}

// AccountInfo is the resolved lookup metadata of an account.
type AccountInfo struct {
	AccountID    string    `json:"accountId"`
	AccountIndex string    `json:"accountIndex,omitempty"`
	Identity     *Identity `json:"identity,omitempty"`
	Nickname     string    `json:"nickname,omitempty"`
}

// NameLookup resolves locally stored account names (the address book).
type NameLookup interface {
	Name(accountID string) (string, bool)
}

// Visibility decides whether a row matches the free-text filter.
type Visibility struct {
	// IdentityEnabled reports whether the chain exposes identity lookups.
	IdentityEnabled bool
	Book            NameLookup
}

// IsVisible matches filter against the account. The account id and index branch is a raw,
// case-sensitive match; every name branch is case-insensitive.
func (v Visibility) IsVisible(filter, accountID string, info *AccountInfo) bool {
	if filter == "" {
		return true
	}
	filterLower := strings.ToLower(filter)

	if strings.Contains(accountID, filter) {
		return true
	}
	if info != nil {
		if info.AccountIndex != "" && strings.Contains(info.AccountIndex, filter) {
			return true
		}
		if v.IdentityEnabled {
			if info.Identity != nil && (containsFold(info.Identity.Display, filterLower) || containsFold(info.Identity.DisplayParent, filterLower)) {
				return true
			}
		} else if containsFold(info.Nickname, filterLower) {
			return true
		}
	}

	if v.Book != nil {
		if name, ok := v.Book.Name(accountID); ok {
			return containsFold(name, filterLower)
		}
	}
	return false
}

// containsFold reports whether lower-cased s contains the already lower-cased needle.
func containsFold(s, needleLower string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), needleLower)
}
