package staking

// Heartbeat is the session liveness of a validator as reported by the chain.
type Heartbeat struct {
	// BlockCount is the number of blocks authored in the current session.
	BlockCount uint32 `json:"blockCount"`
	HasMessage bool   `json:"hasMessage"`
	IsOnline   bool   `json:"isOnline"`
}

// BlockAuthors is the recent block production of the validator set.
type BlockAuthors struct {
	// ByAuthor maps an author to the number of the last block it produced.
	ByAuthor map[string]uint64 `json:"byAuthor"`
	// LastBlockAuthors are the authors of the most recent blocks.
	LastBlockAuthors []string `json:"lastBlockAuthors"`
}

// activity holds the per-validator production data shown in the active table only.
type activity struct {
	byAuthor    map[string]uint64
	lastAuthors map[string]struct{}
	eraPoints   map[string]uint32
	heartbeats  map[string]Heartbeat
}

// apply copies the activity of accountID into row.
func (a *activity) apply(row *Row) {
	_, row.IsAuthor = a.lastAuthors[row.AccountID]
	if n, ok := a.byAuthor[row.AccountID]; ok {
		row.LastBlock = &n
	}
	if p, ok := a.eraPoints[row.AccountID]; ok {
		row.Points = &p
	}
	if hb, ok := a.heartbeats[row.AccountID]; ok {
		count := hb.BlockCount
		row.OnlineCount = &count
		row.OnlineMessage = hb.HasMessage
	}
}
