package staking_test

import (
	"testing"

	"github.com/canopy-network/stakewatch/pkg/staking"
	"github.com/stretchr/testify/assert"
)

type bookStub map[string]string

func (b bookStub) Name(accountID string) (string, bool) {
	name, ok := b[accountID]
	return name, ok
}

// TestVisibility_IsVisible tests the priority order of the filter branches
func TestVisibility_IsVisible(t *testing.T) {
	book := bookStub{"5Gbook": "Treasury Cold"}

	tests := []struct {
		name       string
		visibility staking.Visibility
		filter     string
		accountID  string
		info       *staking.AccountInfo
		want       bool
	}{
		{
			name:      "empty filter is always visible",
			filter:    "",
			accountID: "5Gxyz",
			want:      true,
		},
		{
			name:      "account id substring",
			filter:    "Gxy",
			accountID: "5Gxyz",
			want:      true,
		},
		{
			name:      "account id match is case sensitive",
			filter:    "gxy",
			accountID: "5Gxyz",
			want:      false,
		},
		{
			name:      "account index substring",
			filter:    "F7",
			accountID: "5Gabc",
			info:      &staking.AccountInfo{AccountID: "5Gabc", AccountIndex: "F7Q"},
			want:      true,
		},
		{
			name:       "identity display case insensitive",
			visibility: staking.Visibility{IdentityEnabled: true},
			filter:     "ALICE",
			accountID:  "5Gabc",
			info:       &staking.AccountInfo{Identity: &staking.Identity{Display: "alice-validator"}},
			want:       true,
		},
		{
			name:       "identity display parent",
			visibility: staking.Visibility{IdentityEnabled: true},
			filter:     "org",
			accountID:  "5Gabc",
			info:       &staking.AccountInfo{Identity: &staking.Identity{Display: "node-1", DisplayParent: "BigOrg"}},
			want:       true,
		},
		{
			name:       "identity branch skips nickname",
			visibility: staking.Visibility{IdentityEnabled: true},
			filter:     "bob",
			accountID:  "5Gabc",
			info:       &staking.AccountInfo{Nickname: "Bob"},
			want:       false,
		},
		{
			name:      "nickname when identity is unavailable",
			filter:    "bob",
			accountID: "5Gabc",
			info:      &staking.AccountInfo{Nickname: "BOBBY"},
			want:      true,
		},
		{
			name:       "address book fallback",
			visibility: staking.Visibility{Book: book},
			filter:     "cold",
			accountID:  "5Gbook",
			want:       true,
		},
		{
			name:       "address book fallback after identity miss",
			visibility: staking.Visibility{IdentityEnabled: true, Book: book},
			filter:     "treasury",
			accountID:  "5Gbook",
			info:       &staking.AccountInfo{Identity: &staking.Identity{Display: "other"}},
			want:       true,
		},
		{
			name:       "no match",
			visibility: staking.Visibility{IdentityEnabled: true, Book: book},
			filter:     "zzz",
			accountID:  "5Gbook",
			info:       &staking.AccountInfo{Identity: &staking.Identity{Display: "other"}, Nickname: "zzz"},
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.visibility.IsVisible(tt.filter, tt.accountID, tt.info))
		})
	}
}
