// Package snapshot decodes chain-state snapshots from the stream and applies them to the
// staking overview.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/stakewatch/pkg/redis"
	"github.com/canopy-network/stakewatch/pkg/staking"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Snapshot kinds.
const (
	KindElection    = "election"
	KindWaiting     = "waiting"
	KindNominations = "nominations"
	KindExposure    = "exposure"
	KindPrefs       = "prefs"
	KindStakeLimit  = "stakeLimit"
	KindBonded      = "bonded"
	KindAccountInfo = "accountInfo"
	KindOwnAccounts = "ownAccounts"
	KindStashes     = "stashes"
	KindAuthors     = "authors"
	KindEraPoints   = "eraPoints"
	KindHeartbeats  = "heartbeats"
)

var (
	ErrUnknownKind = errors.New("unknown snapshot kind")
	ErrMissingData = errors.New("snapshot has no data")
)

type individualExposure struct {
	Who   string `json:"who"`
	Value string `json:"value"`
}

type exposure struct {
	AccountID string               `json:"accountId"`
	Total     string               `json:"total"`
	Own       string               `json:"own"`
	Others    []individualExposure `json:"others"`
}

type prefs struct {
	AccountID  string  `json:"accountId"`
	Commission *uint64 `json:"commission"`
}

type stakeLimit struct {
	AccountID string  `json:"accountId"`
	Limit     *string `json:"limit"`
}

type bonded struct {
	AccountID    string `json:"accountId"`
	ControllerID string `json:"controllerId"`
}

type ledger struct {
	Stash string `json:"stash"`
	Total string `json:"total"`
}

type stash struct {
	StashID           string  `json:"stashId"`
	ControllerID      string  `json:"controllerId"`
	IsOwnController   bool    `json:"isOwnController"`
	IsStashValidating bool    `json:"isStashValidating"`
	IsStashNominating bool    `json:"isStashNominating"`
	Ledger            *ledger `json:"ledger"`
}

// Apply decodes data according to kind and hands it to the overview.
func Apply(ov *staking.Overview, kind string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%s: %w", kind, ErrMissingData)
	}
	switch kind {
	case KindElection:
		var v staking.ElectionState
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		ov.SetElection(v)
	case KindWaiting:
		var v []string
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		ov.SetWaiting(v)
	case KindNominations:
		var v []staking.Nomination
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		ov.SetNominations(v)
	case KindOwnAccounts:
		var v []string
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		ov.SetOwnAccounts(v)
	case KindAccountInfo:
		var v staking.AccountInfo
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		if v.AccountID == "" {
			return fmt.Errorf("%s: accountId is required", kind)
		}
		ov.SetAccountInfo(v.AccountID, v)
	case KindExposure:
		var v exposure
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		exp, err := v.toExposure()
		if err != nil {
			return fmt.Errorf("%s %s: %w", kind, v.AccountID, err)
		}
		return ov.SetExposure(v.AccountID, exp)
	case KindPrefs:
		var v prefs
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		var p staking.ValidatorPrefs
		if v.Commission != nil {
			p.Commission = &staking.Commission{Parts: *v.Commission}
		}
		return ov.SetPrefs(v.AccountID, p)
	case KindStakeLimit:
		var v stakeLimit
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		var limit *uint256.Int
		if v.Limit != nil {
			parsed, err := parseAmount(*v.Limit)
			if err != nil {
				return fmt.Errorf("%s %s: %w", kind, v.AccountID, err)
			}
			limit = parsed
		}
		return ov.SetStakeLimit(v.AccountID, limit)
	case KindBonded:
		var v bonded
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		return ov.SetController(v.AccountID, v.ControllerID)
	case KindStashes:
		var v []stash
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		states := make([]staking.StakerState, 0, len(v))
		for _, s := range v {
			st, err := s.toState()
			if err != nil {
				return fmt.Errorf("%s %s: %w", kind, s.StashID, err)
			}
			states = append(states, st)
		}
		ov.SetStashes(states)
	case KindAuthors:
		var v staking.BlockAuthors
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		ov.SetBlockAuthors(v)
	case KindEraPoints:
		var v map[string]uint32
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		ov.SetEraPoints(v)
	case KindHeartbeats:
		var v map[string]staking.Heartbeat
		if err := decode(kind, data, &v); err != nil {
			return err
		}
		ov.SetHeartbeats(v)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return nil
}

// Handler applies each stream message to ov. Malformed snapshots are returned as errors
// and logged by the consumer; they never stop the stream.
func Handler(ov *staking.Overview, logger *zap.Logger) redis.MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, msg redis.Message) error {
		kind := msg.GetKind()
		if err := Apply(ov, kind, msg.GetData()); err != nil {
			return err
		}
		logger.Debug("Applied chain snapshot", zap.String("id", msg.ID), zap.String("kind", kind))
		return nil
	}
}

func decode(kind string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func (e exposure) toExposure() (staking.Exposure, error) {
	total, err := parseAmount(e.Total)
	if err != nil {
		return staking.Exposure{}, err
	}
	own, err := parseAmount(e.Own)
	if err != nil {
		return staking.Exposure{}, err
	}
	others := make([]staking.IndividualExposure, 0, len(e.Others))
	for _, o := range e.Others {
		value, err := parseAmount(o.Value)
		if err != nil {
			return staking.Exposure{}, err
		}
		others = append(others, staking.IndividualExposure{Who: o.Who, Value: value})
	}
	return staking.Exposure{Total: total, Own: own, Others: others}, nil
}

func (s stash) toState() (staking.StakerState, error) {
	st := staking.StakerState{
		StashID:           s.StashID,
		ControllerID:      s.ControllerID,
		IsOwnController:   s.IsOwnController,
		IsStashValidating: s.IsStashValidating,
		IsStashNominating: s.IsStashNominating,
	}
	if s.Ledger != nil {
		total, err := parseAmount(s.Ledger.Total)
		if err != nil {
			return staking.StakerState{}, err
		}
		st.Ledger = &staking.StakingLedger{Stash: s.Ledger.Stash, Total: total}
	}
	return st, nil
}
