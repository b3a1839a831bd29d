package staker

import "github.com/holiman/uint256"

// Q128 is 2^128, the unit of the X128 fixed-point values.
var Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

// AccrualInput carries everything the reward computation needs. The oracle
// sample must be taken at EffectiveEnd(Now, EndTime).
type AccrualInput struct {
	TotalRewardUnclaimed                 *uint256.Int
	TotalSecondsClaimedX128              *uint256.Int
	StartTime                            uint64
	EndTime                              uint64
	Now                                  uint64
	Liquidity                            *uint256.Int
	SecondsPerLiquidityInsideInitialX128 *uint256.Int
	SecondsPerLiquidityInsideX128        *uint256.Int
}

// EffectiveEnd caps the accrual window at the incentive end time.
func EffectiveEnd(now, endTime uint64) uint64 {
	if now < endTime {
		return now
	}
	return endTime
}

// ComputeRewardAmount returns the reward owed to a stake and the seconds it
// claims from the incentive, both truncated toward zero.
//
// The denominator is the unclaimed share of the window so far, which shrinks
// by exactly what every settlement claims; settlement order does not change
// anyone's share.
func ComputeRewardAmount(in AccrualInput) (reward, secondsInsideX128 *uint256.Int) {
	reward = new(uint256.Int)
	secondsInsideX128 = new(uint256.Int)

	end := EffectiveEnd(in.Now, in.EndTime)
	elapsed := uint64(1)
	if end > in.StartTime && end-in.StartTime > 1 {
		elapsed = end - in.StartTime
	}
	totalSecondsUnclaimedX128 := new(uint256.Int).Lsh(uint256.NewInt(elapsed), 128)
	claimed := orZero(in.TotalSecondsClaimedX128)
	if claimed.Cmp(totalSecondsUnclaimedX128) >= 0 {
		return reward, secondsInsideX128
	}
	totalSecondsUnclaimedX128.Sub(totalSecondsUnclaimedX128, claimed)

	current := orZero(in.SecondsPerLiquidityInsideX128)
	initial := orZero(in.SecondsPerLiquidityInsideInitialX128)
	if current.Cmp(initial) <= 0 {
		return reward, secondsInsideX128
	}
	delta := new(uint256.Int).Sub(current, initial)
	if _, overflow := secondsInsideX128.MulOverflow(delta, orZero(in.Liquidity)); overflow {
		secondsInsideX128.Set(totalSecondsUnclaimedX128)
	}
	if secondsInsideX128.Cmp(totalSecondsUnclaimedX128) > 0 {
		secondsInsideX128.Set(totalSecondsUnclaimedX128)
	}

	// secondsInside <= totalSecondsUnclaimed, so the quotient fits and is
	// bounded by TotalRewardUnclaimed.
	reward.MulDivOverflow(orZero(in.TotalRewardUnclaimed), secondsInsideX128, totalSecondsUnclaimedX128)
	return reward, secondsInsideX128
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
