package staker

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StakeToken enters a deposited position into an incentive.
func (e *Engine) StakeToken(caller common.Address, key IncentiveKey, id PositionID) (*Stake, error) {
	var stake *Stake
	err := e.atomically(func(tx *opContext) error {
		if err := e.stake(tx, caller, key, id); err != nil {
			return err
		}
		var err error
		stake, err = e.getStake(id, ComputeIncentiveID(key))
		return err
	})
	if err != nil {
		return nil, err
	}
	return stake.Clone(), nil
}

func (e *Engine) stake(tx *opContext, caller common.Address, key IncentiveKey, id PositionID) error {
	if err := e.requireOracle(); err != nil {
		return err
	}
	incentiveID := ComputeIncentiveID(key)
	incentive, err := e.getIncentive(incentiveID)
	if err != nil {
		return err
	}
	if tx.now < key.StartTime {
		return ErrIncentiveNotStarted
	}
	deposit, err := e.getDeposit(id)
	if err != nil {
		return err
	}
	if caller != deposit.Owner {
		return ErrNotOwner
	}
	if _, ok, err := e.state.StakerStakeGet(id, incentiveID); err != nil {
		return err
	} else if ok {
		return ErrAlreadyStaked
	}
	info, err := e.oracle.Position(id)
	if err != nil {
		return err
	}
	if info.Pool != key.Pool {
		return fmt.Errorf("%w: position pool %s, incentive pool %s", ErrPoolMismatch, info.Pool.Hex(), key.Pool.Hex())
	}
	if info.Liquidity == nil || info.Liquidity.IsZero() {
		return ErrZeroLiquidity
	}
	// Sampled at the capped end so a stake entered after EndTime has a zero delta.
	snapshot, err := e.oracle.SecondsPerLiquidityInside(key.Pool, deposit.TickLower, deposit.TickUpper, EffectiveEnd(tx.now, key.EndTime))
	if err != nil {
		return err
	}
	stake := &Stake{
		PositionID:                           id,
		IncentiveID:                          incentiveID,
		SecondsPerLiquidityInsideInitialX128: cloneAmount(snapshot),
		Liquidity:                            new(uint256.Int).Set(info.Liquidity),
		StakedAt:                             tx.now,
	}
	if err := e.state.StakerStakePut(stake); err != nil {
		return err
	}
	deposit.NumberOfStakes++
	if err := e.state.StakerDepositPut(deposit); err != nil {
		return err
	}
	incentive.NumberOfStakes++
	if err := e.state.StakerIncentivePut(incentive); err != nil {
		return err
	}
	tx.emit(TokenStakedEvent(id, incentiveID, stake.Liquidity))
	return nil
}

// UnstakeToken settles a stake: the earned reward moves from the incentive
// into the deposit owner's vault balance and the stake is removed. Before the
// incentive ends only the deposit owner may settle; afterwards anyone may.
func (e *Engine) UnstakeToken(caller common.Address, key IncentiveKey, id PositionID) (*uint256.Int, error) {
	var reward *uint256.Int
	err := e.atomically(func(tx *opContext) error {
		if err := e.requireOracle(); err != nil {
			return err
		}
		incentiveID := ComputeIncentiveID(key)
		stake, err := e.getStake(id, incentiveID)
		if err != nil {
			return err
		}
		if tx.now < key.StartTime {
			return ErrIncentiveNotStarted
		}
		deposit, err := e.getDeposit(id)
		if err != nil {
			return err
		}
		if tx.now < key.EndTime && caller != deposit.Owner {
			return fmt.Errorf("%w: only the owner can unstake before the incentive end time", ErrNotOwner)
		}
		incentive, err := e.getIncentive(incentiveID)
		if err != nil {
			return err
		}
		var secondsInsideX128 *uint256.Int
		reward, secondsInsideX128, err = e.accrue(incentive, deposit, stake, tx.now)
		if err != nil {
			return err
		}

		incentive.TotalSecondsClaimedX128 = new(uint256.Int).Add(incentive.TotalSecondsClaimedX128, secondsInsideX128)
		incentive.TotalRewardUnclaimed = new(uint256.Int).Sub(incentive.TotalRewardUnclaimed, reward)
		incentive.NumberOfStakes--
		if err := e.state.StakerIncentivePut(incentive); err != nil {
			return err
		}
		deposit.NumberOfStakes--
		if err := e.state.StakerDepositPut(deposit); err != nil {
			return err
		}
		if err := e.credit(deposit.Owner, key.RewardToken, reward); err != nil {
			return err
		}
		if err := e.state.StakerStakeDelete(id, incentiveID); err != nil {
			return err
		}
		tx.emit(TokenUnstakedEvent(id, incentiveID, deposit.Owner, key.RewardToken, reward))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reward, nil
}

// GetRewardInfo previews what UnstakeToken would pay right now. It never
// writes state.
func (e *Engine) GetRewardInfo(key IncentiveKey, id PositionID) (RewardInfo, error) {
	var info RewardInfo
	err := e.view(func() error {
		if err := e.requireOracle(); err != nil {
			return err
		}
		incentiveID := ComputeIncentiveID(key)
		stake, err := e.getStake(id, incentiveID)
		if err != nil {
			return err
		}
		now := e.now()
		if now < key.StartTime {
			return ErrIncentiveNotStarted
		}
		deposit, err := e.getDeposit(id)
		if err != nil {
			return err
		}
		incentive, err := e.getIncentive(incentiveID)
		if err != nil {
			return err
		}
		reward, secondsInsideX128, err := e.accrue(incentive, deposit, stake, now)
		if err != nil {
			return err
		}
		info = RewardInfo{Reward: reward, SecondsInsideX128: secondsInsideX128}
		return nil
	})
	if err != nil {
		return RewardInfo{}, err
	}
	return info, nil
}

func (e *Engine) accrue(incentive *Incentive, deposit *Deposit, stake *Stake, now uint64) (*uint256.Int, *uint256.Int, error) {
	key := incentive.Key
	current, err := e.oracle.SecondsPerLiquidityInside(key.Pool, deposit.TickLower, deposit.TickUpper, EffectiveEnd(now, key.EndTime))
	if err != nil {
		return nil, nil, err
	}
	reward, secondsInsideX128 := ComputeRewardAmount(AccrualInput{
		TotalRewardUnclaimed:                 incentive.TotalRewardUnclaimed,
		TotalSecondsClaimedX128:              incentive.TotalSecondsClaimedX128,
		StartTime:                            key.StartTime,
		EndTime:                              key.EndTime,
		Now:                                  now,
		Liquidity:                            stake.Liquidity,
		SecondsPerLiquidityInsideInitialX128: stake.SecondsPerLiquidityInsideInitialX128,
		SecondsPerLiquidityInsideX128:        current,
	})
	return reward, secondsInsideX128, nil
}
