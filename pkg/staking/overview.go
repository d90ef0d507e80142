package staking

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Event kinds published by Overview.
const (
	EventPartition   = "staking.partition"
	EventNominations = "staking.nominations"
	EventRow         = "staking.row"
	EventAccountInfo = "staking.account"
	EventStashes     = "staking.stashes"
	EventActivity    = "staking.activity"
)

const subscriberBuffer = 64

// Event tells subscribers which derived view changed.
type Event struct {
	Kind      string `json:"kind"`
	AccountID string `json:"accountId,omitempty"`
}

// Row is the view record of one account in a staking table.
type Row struct {
	AccountID    string          `json:"accountId"`
	IsElected    bool            `json:"isElected"`
	IsFavorite   bool            `json:"isFavorite"`
	IsNominating bool            `json:"isNominating"`
	Visible      bool            `json:"visible"`
	NominatedBy  []NominatorRank `json:"nominatedBy,omitempty"`
	Stake        *StakeSummary   `json:"stake,omitempty"`

	// Block production, validators table only.
	IsAuthor      bool    `json:"isAuthor"`
	LastBlock     *uint64 `json:"lastBlock,omitempty"`
	Points        *uint32 `json:"points,omitempty"`
	OnlineCount   *uint32 `json:"onlineCount,omitempty"`
	OnlineMessage bool    `json:"onlineMessage,omitempty"`
	// Highlight marks recent block authors and rows the local user nominates.
	Highlight bool `json:"isHighlight"`
}

// Overview holds every staking input and recomputes the derived views whenever one of
// their inputs changes. Derived values are replaced, never patched.
type Overview struct {
	logger     *zap.Logger
	visibility Visibility

	mu          sync.RWMutex
	election    *ElectionState
	waiting     []string
	favorites   []string
	ownAccounts []string
	stashes     []StakerState
	nominations []Nomination
	infos       map[string]*AccountInfo
	rows        map[string]*ValidatorRow

	partition   *Partition
	nominatedBy NominatorIndex
	activity    activity

	subscribers *xsync.Map[uint64, chan Event]
	nextSubID   atomic.Uint64
}

// NewOverview returns an empty Overview.
func NewOverview(logger *zap.Logger, visibility Visibility) *Overview {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Overview{
		logger:      logger,
		visibility:  visibility,
		infos:       make(map[string]*AccountInfo),
		rows:        make(map[string]*ValidatorRow),
		subscribers: xsync.NewMap[uint64, chan Event](),
	}
}

// Subscribe registers for change events. Events are dropped for a subscriber whose buffer
// is full. The channel is never closed; callers stop reading after unsubscribing.
func (o *Overview) Subscribe() (<-chan Event, func()) {
	id := o.nextSubID.Add(1)
	ch := make(chan Event, subscriberBuffer)
	o.subscribers.Store(id, ch)
	return ch, func() { o.subscribers.Delete(id) }
}

func (o *Overview) publish(ev Event) {
	o.subscribers.Range(func(id uint64, ch chan Event) bool {
		select {
		case ch <- ev:
		default:
			o.logger.Debug("Dropping overview event for slow subscriber",
				zap.Uint64("subscriber", id),
				zap.String("kind", ev.Kind))
		}
		return true
	})
}

// SetElection replaces the staking overview snapshot.
func (o *Overview) SetElection(state ElectionState) {
	o.mu.Lock()
	o.election = &ElectionState{
		NextElected: slices.Clone(state.NextElected),
		Validators:  slices.Clone(state.Validators),
	}
	o.recomputePartition()
	o.mu.Unlock()
	o.publish(Event{Kind: EventPartition})
}

// SetWaiting replaces the next-era candidate list.
func (o *Overview) SetWaiting(waiting []string) {
	o.mu.Lock()
	o.waiting = slices.Clone(waiting)
	o.recomputePartition()
	o.mu.Unlock()
	o.publish(Event{Kind: EventPartition})
}

// SetFavorites replaces the favorite account set.
func (o *Overview) SetFavorites(favorites []string) {
	o.mu.Lock()
	o.favorites = slices.Clone(favorites)
	o.recomputePartition()
	o.mu.Unlock()
	o.publish(Event{Kind: EventPartition})
}

// recomputePartition must be called with mu held.
func (o *Overview) recomputePartition() {
	if o.election == nil {
		return
	}
	p := PartitionElection(*o.election, o.waiting, o.favorites)
	o.partition = &p
}

// SetNominations replaces the nomination snapshot and rebuilds the nominator index.
func (o *Overview) SetNominations(nominations []Nomination) {
	o.mu.Lock()
	o.nominations = slices.Clone(nominations)
	o.nominatedBy = BuildNominatorIndex(o.nominations)
	o.mu.Unlock()
	o.publish(Event{Kind: EventNominations})
}

// SetOwnAccounts replaces the accounts held by the local user.
func (o *Overview) SetOwnAccounts(accounts []string) {
	o.mu.Lock()
	o.ownAccounts = slices.Clone(accounts)
	o.mu.Unlock()
	o.publish(Event{Kind: EventNominations})
}

// SetStashes replaces the own stash list of the actions view.
func (o *Overview) SetStashes(stashes []StakerState) {
	o.mu.Lock()
	o.stashes = slices.Clone(stashes)
	o.mu.Unlock()
	o.publish(Event{Kind: EventStashes})
}

// SetBlockAuthors replaces the recent block production snapshot.
func (o *Overview) SetBlockAuthors(authors BlockAuthors) {
	byAuthor := make(map[string]uint64, len(authors.ByAuthor))
	for id, n := range authors.ByAuthor {
		byAuthor[id] = n
	}
	o.mu.Lock()
	o.activity.byAuthor = byAuthor
	o.activity.lastAuthors = toSet(authors.LastBlockAuthors)
	o.mu.Unlock()
	o.publish(Event{Kind: EventActivity})
}

// SetEraPoints replaces the reward points of the current era.
func (o *Overview) SetEraPoints(points map[string]uint32) {
	cp := make(map[string]uint32, len(points))
	for id, p := range points {
		cp[id] = p
	}
	o.mu.Lock()
	o.activity.eraPoints = cp
	o.mu.Unlock()
	o.publish(Event{Kind: EventActivity})
}

// SetHeartbeats replaces the session liveness of the validators.
func (o *Overview) SetHeartbeats(heartbeats map[string]Heartbeat) {
	cp := make(map[string]Heartbeat, len(heartbeats))
	for id, hb := range heartbeats {
		cp[id] = hb
	}
	o.mu.Lock()
	o.activity.heartbeats = cp
	o.mu.Unlock()
	o.publish(Event{Kind: EventActivity})
}

// SetAccountInfo stores the identity lookup result of an account.
func (o *Overview) SetAccountInfo(accountID string, info AccountInfo) {
	o.mu.Lock()
	o.infos[accountID] = &info
	o.mu.Unlock()
	o.publish(Event{Kind: EventAccountInfo, AccountID: accountID})
}

// SetExposure stores the exposure of a validator.
func (o *Overview) SetExposure(accountID string, exposure Exposure) error {
	return o.updateRow(accountID, func(r *ValidatorRow) { r.exposure = &exposure })
}

// SetPrefs stores the validator preferences (commission) of a validator.
func (o *Overview) SetPrefs(accountID string, prefs ValidatorPrefs) error {
	return o.updateRow(accountID, func(r *ValidatorRow) { r.prefs = &prefs })
}

// SetStakeLimit stores the stake limit of a validator. A nil limit marks it unresolved
// and withholds the summary.
func (o *Overview) SetStakeLimit(accountID string, limit *uint256.Int) error {
	if limit != nil {
		limit = limit.Clone()
	}
	return o.updateRow(accountID, func(r *ValidatorRow) { r.stakeLimit = limit })
}

// SetController stores the bonded controller of a stash; empty means not bonded.
func (o *Overview) SetController(accountID, controllerID string) error {
	return o.updateRow(accountID, func(r *ValidatorRow) {
		r.controller = controllerID
		r.hasController = true
	})
}

func (o *Overview) updateRow(accountID string, apply func(*ValidatorRow)) error {
	o.mu.Lock()
	row, ok := o.rows[accountID]
	if !ok {
		row = &ValidatorRow{}
		o.rows[accountID] = row
	}
	apply(row)
	err := row.recompute()
	o.mu.Unlock()

	if err != nil {
		o.logger.Error("Stake summary invariant violated",
			zap.String("accountId", accountID),
			zap.Error(err))
	}
	// a withdrawn summary is announced as well
	o.publish(Event{Kind: EventRow, AccountID: accountID})
	return err
}

// Partition returns the current partition, or false before the first election snapshot.
func (o *Overview) Partition() (Partition, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.partition == nil {
		return Partition{}, false
	}
	return *o.partition, true
}

// NominatedBy returns the nominators of a validator, or false before the first
// nomination snapshot.
func (o *Overview) NominatedBy(accountID string) ([]NominatorRank, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.nominatedBy == nil {
		return nil, false
	}
	return slices.Clone(o.nominatedBy[accountID]), true
}

// RowNominators returns the nominator accounts backing a validator's exposure.
func (o *Overview) RowNominators(accountID string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if row, ok := o.rows[accountID]; ok {
		return row.NominatorIDs()
	}
	return nil
}

// Validators returns the rows of the active validator table.
func (o *Overview) Validators(filter string) ([]Row, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.partition == nil {
		return nil, false
	}
	return o.buildRows(o.partition.Validators, filter, true), true
}

// Intentions returns the rows of the waiting table: elected accounts followed by waiting ones.
func (o *Overview) Intentions(filter string) ([]Row, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.partition == nil {
		return nil, false
	}
	rows := o.buildRows(o.partition.Elected, filter, false)
	return append(rows, o.buildRows(o.partition.Waiting, filter, false)...), true
}

// Stashes returns the own-controller stashes in display order and their bonded total.
func (o *Overview) Stashes() ([]StakerState, *uint256.Int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return OwnControllerStashes(o.stashes), BondedTotal(o.stashes)
}

// buildRows must be called with mu held. Block production is only joined for active
// validators.
func (o *Overview) buildRows(accounts []FilteredAccount, filter string, withActivity bool) []Row {
	rows := make([]Row, 0, len(accounts))
	for _, acc := range accounts {
		row := Row{
			AccountID:  acc.AccountID,
			IsElected:  acc.IsElected,
			IsFavorite: acc.IsFavorite,
			Visible:    o.visibility.IsVisible(filter, acc.AccountID, o.infos[acc.AccountID]),
		}
		if o.nominatedBy != nil {
			row.NominatedBy = slices.Clone(o.nominatedBy[acc.AccountID])
			if row.NominatedBy == nil {
				row.NominatedBy = []NominatorRank{}
			}
		}
		row.IsNominating = IsNominating(acc.AccountID, row.NominatedBy, o.ownAccounts)
		if withActivity {
			o.activity.apply(&row)
		}
		row.Highlight = row.IsAuthor || row.IsNominating
		if vr, ok := o.rows[acc.AccountID]; ok {
			if summary, ok := vr.Summary(); ok {
				row.Stake = &summary
			}
		}
		rows = append(rows, row)
	}
	return rows
}
