package staking

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// CommissionScale is the denominator of a Commission numerator (parts per billion).
	CommissionScale = 1_000_000_000
	// commissionPercentExp turns parts-per-billion into a percentage: parts * 10^-7.
	commissionPercentExp = -7
)

// ErrArithmeticUnderflow is returned when an exposure reports more own stake than total stake.
var ErrArithmeticUnderflow = errors.New("own stake exceeds total stake")

// IndividualExposure is the stake a single nominator backs a validator with.
type IndividualExposure struct {
	Who   string
	Value *uint256.Int
}

// Exposure is the chain-reported stake backing a validator.
type Exposure struct {
	Total  *uint256.Int
	Own    *uint256.Int
	Others []IndividualExposure
}

// Commission is the validator fee expressed as a numerator over CommissionScale.
type Commission struct {
	Parts uint64
}

// Percent returns the commission as a percentage.
func (c Commission) Percent() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(c.Parts), commissionPercentExp)
}

// String renders the commission with two decimals, e.g. "5.00%".
func (c Commission) String() string {
	return c.Percent().StringFixed(2) + "%"
}

// StakeSummary is the derived stake view of one validator row.
type StakeSummary struct {
	GuaranteeFee string
	Nominators   []IndividualExposure
	StakeTotal   *uint256.Int
	StakeOwn     *uint256.Int
	StakeOther   *uint256.Int
	StakeLimit   *uint256.Int
}

// ExpandExposure derives the stake summary of a validator. A nil commission leaves the
// guarantee fee absent. Own stake above total stake is an invariant violation and is
// reported as ErrArithmeticUnderflow, never clamped.
func ExpandExposure(exp Exposure, commission *Commission, stakeLimit *uint256.Int) (StakeSummary, error) {
	total := orZero(exp.Total)
	own := orZero(exp.Own)

	other, underflow := new(uint256.Int).SubOverflow(total, own)
	if underflow {
		return StakeSummary{}, fmt.Errorf("%w: own %s, total %s", ErrArithmeticUnderflow, own.Dec(), total.Dec())
	}

	nominators := make([]IndividualExposure, 0, len(exp.Others))
	for _, o := range exp.Others {
		nominators = append(nominators, IndividualExposure{Who: o.Who, Value: orZero(o.Value).Clone()})
	}

	summary := StakeSummary{
		Nominators: nominators,
		StakeTotal: total.Clone(),
		StakeOwn:   own.Clone(),
		StakeOther: other,
	}
	if stakeLimit != nil {
		summary.StakeLimit = stakeLimit.Clone()
	}
	if commission != nil {
		summary.GuaranteeFee = commission.String()
	}
	return summary, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func decString(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}

type individualExposureJSON struct {
	Who   string `json:"who"`
	Value string `json:"value"`
}

type stakeSummaryJSON struct {
	GuaranteeFee string                   `json:"guaranteeFee,omitempty"`
	Nominators   []individualExposureJSON `json:"nominators"`
	StakeTotal   string                   `json:"stakeTotal"`
	StakeOwn     string                   `json:"stakeOwn"`
	StakeOther   string                   `json:"stakeOther"`
	StakeLimit   string                   `json:"stakeLimit,omitempty"`
}

// MarshalJSON encodes amounts as decimal strings.
func (s StakeSummary) MarshalJSON() ([]byte, error) {
	out := stakeSummaryJSON{
		GuaranteeFee: s.GuaranteeFee,
		Nominators:   make([]individualExposureJSON, 0, len(s.Nominators)),
		StakeTotal:   decString(s.StakeTotal),
		StakeOwn:     decString(s.StakeOwn),
		StakeOther:   decString(s.StakeOther),
		StakeLimit:   decString(s.StakeLimit),
	}
	for _, n := range s.Nominators {
		out.Nominators = append(out.Nominators, individualExposureJSON{Who: n.Who, Value: decString(n.Value)})
	}
	return json.Marshal(out)
}
