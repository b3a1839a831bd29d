package staker

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PositionID identifies a liquidity position in the external position registry.
type PositionID = uint64

// IncentiveID is the keccak256 digest of an ABI encoded IncentiveKey.
type IncentiveID [32]byte

// Hex returns the 0x-prefixed hex form of the id.
func (id IncentiveID) Hex() string { return "0x" + hex.EncodeToString(id[:]) }

func (id IncentiveID) String() string { return id.Hex() }

// IncentiveKey describes an incentive program. It is never stored by itself;
// its hash is the lookup key for every incentive record.
type IncentiveKey struct {
	RewardToken common.Address `json:"rewardToken"`
	Pool        common.Address `json:"pool"`
	StartTime   uint64         `json:"startTime"`
	EndTime     uint64         `json:"endTime"`
	Refundee    common.Address `json:"refundee"`
}

// Incentive holds the reward accounting for one program.
type Incentive struct {
	ID                      IncentiveID  `json:"id"`
	Key                     IncentiveKey `json:"key"`
	TotalRewardUnclaimed    *uint256.Int `json:"totalRewardUnclaimed"`
	TotalSecondsClaimedX128 *uint256.Int `json:"totalSecondsClaimedX128"`
	NumberOfStakes          uint64       `json:"numberOfStakes"`
	CreatedAt               uint64       `json:"createdAt"`
	EndedAt                 uint64       `json:"endedAt,omitempty"`
}

// Clone returns a deep copy of the incentive.
func (i *Incentive) Clone() *Incentive {
	if i == nil {
		return nil
	}
	clone := *i
	clone.TotalRewardUnclaimed = cloneAmount(i.TotalRewardUnclaimed)
	clone.TotalSecondsClaimedX128 = cloneAmount(i.TotalSecondsClaimedX128)
	return &clone
}

// Deposit is the engine's registration record for a position held in custody.
type Deposit struct {
	PositionID     PositionID     `json:"tokenId"`
	Owner          common.Address `json:"owner"`
	NumberOfStakes uint64         `json:"numberOfStakes"`
	TickLower      int32          `json:"tickLower"`
	TickUpper      int32          `json:"tickUpper"`
	DepositedAt    uint64         `json:"depositedAt"`
}

// Clone returns a copy of the deposit.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

// Stake records a position's participation in one incentive.
type Stake struct {
	PositionID                           PositionID   `json:"tokenId"`
	IncentiveID                          IncentiveID  `json:"incentiveId"`
	SecondsPerLiquidityInsideInitialX128 *uint256.Int `json:"secondsPerLiquidityInsideInitialX128"`
	Liquidity                            *uint256.Int `json:"liquidity"`
	StakedAt                             uint64       `json:"stakedAt"`
}

// Clone returns a deep copy of the stake.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	clone.SecondsPerLiquidityInsideInitialX128 = cloneAmount(s.SecondsPerLiquidityInsideInitialX128)
	clone.Liquidity = cloneAmount(s.Liquidity)
	return &clone
}

// PositionInfo is the oracle's view of a position.
type PositionInfo struct {
	Pool      common.Address
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
}

// RewardInfo previews the settlement of a stake.
type RewardInfo struct {
	Reward            *uint256.Int `json:"reward"`
	SecondsInsideX128 *uint256.Int `json:"secondsInsideX128"`
}

// RangeStatus reports whether a position's range contains the pool's current tick.
type RangeStatus struct {
	InRange     bool           `json:"inRange"`
	TickLower   int32          `json:"tickLower"`
	TickUpper   int32          `json:"tickUpper"`
	CurrentTick int32          `json:"currentTick"`
	Pool        common.Address `json:"pool"`
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
