package staker

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Read-only views. None of these stage writes, so they only take read locks.

// readLocker is implemented by states whose overlay is shared with other
// writers. Holding its read side keeps their staged writes out of view.
type readLocker interface {
	RLock()
	RUnlock()
}

func (e *Engine) view(fn func() error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if locker, ok := e.state.(readLocker); ok {
		locker.RLock()
		defer locker.RUnlock()
	}
	return fn()
}

// IncentiveIDFor derives the id of a key.
func (e *Engine) IncentiveIDFor(key IncentiveKey) IncentiveID { return ComputeIncentiveID(key) }

// Incentive returns the record stored under id.
func (e *Engine) Incentive(id IncentiveID) (*Incentive, error) {
	var out *Incentive
	err := e.view(func() error {
		incentive, err := e.getIncentive(id)
		out = incentive.Clone()
		return err
	})
	return out, err
}

// AllIncentives lists every incentive ever created, oldest first.
func (e *Engine) AllIncentives() ([]*Incentive, error) {
	var out []*Incentive
	err := e.view(func() error {
		ids, err := e.state.StakerIncentiveIDs()
		if err != nil {
			return err
		}
		out = make([]*Incentive, 0, len(ids))
		for _, id := range ids {
			incentive, err := e.getIncentive(id)
			if err != nil {
				return err
			}
			out = append(out, incentive.Clone())
		}
		return nil
	})
	return out, err
}

// Deposit returns the deposit record of a position.
func (e *Engine) Deposit(id PositionID) (*Deposit, error) {
	var out *Deposit
	err := e.view(func() error {
		deposit, err := e.getDeposit(id)
		out = deposit.Clone()
		return err
	})
	return out, err
}

// Stake returns the stake of a position in an incentive.
func (e *Engine) Stake(id PositionID, incentive IncentiveID) (*Stake, error) {
	var out *Stake
	err := e.view(func() error {
		stake, err := e.getStake(id, incentive)
		out = stake.Clone()
		return err
	})
	return out, err
}

// TokenIDsByOwner lists every position deposited by owner.
func (e *Engine) TokenIDsByOwner(owner common.Address) ([]PositionID, error) {
	var out []PositionID
	err := e.view(func() error {
		ids, err := e.state.StakerDepositsByOwner(owner)
		out = ids
		return err
	})
	return out, err
}

// StakedTokenIDsByOwner lists the owner's positions with at least one stake.
func (e *Engine) StakedTokenIDsByOwner(owner common.Address) ([]PositionID, error) {
	var out []PositionID
	err := e.view(func() error {
		ids, err := e.state.StakerDepositsByOwner(owner)
		if err != nil {
			return err
		}
		out = make([]PositionID, 0, len(ids))
		for _, id := range ids {
			deposit, err := e.getDeposit(id)
			if err != nil {
				return err
			}
			if deposit.NumberOfStakes > 0 {
				out = append(out, id)
			}
		}
		return nil
	})
	return out, err
}

// IsTokenStaked reports whether a position holds any stake.
func (e *Engine) IsTokenStaked(id PositionID) (bool, error) {
	var staked bool
	err := e.view(func() error {
		deposit, ok, err := e.state.StakerDepositGet(id)
		if err != nil {
			return err
		}
		staked = ok && deposit != nil && deposit.NumberOfStakes > 0
		return nil
	})
	return staked, err
}

// IncentiveKeysByTokenID lists the incentives a position is staked in.
func (e *Engine) IncentiveKeysByTokenID(id PositionID) ([]IncentiveKey, error) {
	var out []IncentiveKey
	err := e.view(func() error {
		incentives, err := e.stakedIncentives(id)
		if err != nil {
			return err
		}
		out = make([]IncentiveKey, 0, len(incentives))
		for _, incentive := range incentives {
			out = append(out, incentive.Key)
		}
		return nil
	})
	return out, err
}

// StakeableIncentiveKeysByTokenID lists the incentives on the position's pool
// that it is not staked in and that have not ended yet.
func (e *Engine) StakeableIncentiveKeysByTokenID(id PositionID) ([]IncentiveKey, error) {
	var out []IncentiveKey
	err := e.view(func() error {
		if err := e.requireOracle(); err != nil {
			return err
		}
		if _, err := e.getDeposit(id); err != nil {
			return err
		}
		info, err := e.oracle.Position(id)
		if err != nil {
			return err
		}
		staked, err := e.state.StakerStakedIncentives(id)
		if err != nil {
			return err
		}
		skip := make(map[IncentiveID]struct{}, len(staked))
		for _, incentiveID := range staked {
			skip[incentiveID] = struct{}{}
		}
		ids, err := e.state.StakerIncentiveIDs()
		if err != nil {
			return err
		}
		now := e.now()
		out = []IncentiveKey{}
		for _, incentiveID := range ids {
			if _, ok := skip[incentiveID]; ok {
				continue
			}
			incentive, err := e.getIncentive(incentiveID)
			if err != nil {
				return err
			}
			if incentive.Key.Pool != info.Pool || incentive.Key.EndTime <= now {
				continue
			}
			out = append(out, incentive.Key)
		}
		return nil
	})
	return out, err
}

// RewardTokensByTokenID lists the distinct reward tokens of the incentives a
// position is staked in.
func (e *Engine) RewardTokensByTokenID(id PositionID) ([]common.Address, error) {
	var out []common.Address
	err := e.view(func() error {
		incentives, err := e.stakedIncentives(id)
		if err != nil {
			return err
		}
		set := make(map[common.Address]struct{})
		for _, incentive := range incentives {
			set[incentive.Key.RewardToken] = struct{}{}
		}
		out = sortedAddresses(set)
		return nil
	})
	return out, err
}

// RewardTokensByOwner lists the distinct reward tokens owed to owner: those of
// incentives its positions are staked in plus any with a claimable balance.
func (e *Engine) RewardTokensByOwner(owner common.Address) ([]common.Address, error) {
	var out []common.Address
	err := e.view(func() error {
		set := make(map[common.Address]struct{})
		ids, err := e.state.StakerDepositsByOwner(owner)
		if err != nil {
			return err
		}
		for _, id := range ids {
			incentives, err := e.stakedIncentives(id)
			if err != nil {
				return err
			}
			for _, incentive := range incentives {
				set[incentive.Key.RewardToken] = struct{}{}
			}
		}
		tokens, err := e.state.StakerRewardTokens(owner)
		if err != nil {
			return err
		}
		for _, token := range tokens {
			balance, err := e.state.StakerRewardGet(owner, token)
			if err != nil {
				return err
			}
			if balance != nil && !balance.IsZero() {
				set[token] = struct{}{}
			}
		}
		out = sortedAddresses(set)
		return nil
	})
	return out, err
}

// RangeStatus reports whether the pool's current tick sits inside the
// position's range.
func (e *Engine) RangeStatus(id PositionID) (RangeStatus, error) {
	var status RangeStatus
	err := e.view(func() error {
		if err := e.requireOracle(); err != nil {
			return err
		}
		info, err := e.oracle.Position(id)
		if err != nil {
			return err
		}
		tick, err := e.oracle.CurrentTick(info.Pool)
		if err != nil {
			return err
		}
		status = RangeStatus{
			InRange:     info.TickLower <= tick && tick < info.TickUpper,
			TickLower:   info.TickLower,
			TickUpper:   info.TickUpper,
			CurrentTick: tick,
			Pool:        info.Pool,
		}
		return nil
	})
	return status, err
}

// SwapFees returns the uncollected swap fees of a position as reported by the oracle.
func (e *Engine) SwapFees(id PositionID) (*uint256.Int, *uint256.Int, error) {
	var fee0, fee1 *uint256.Int
	err := e.view(func() error {
		if err := e.requireOracle(); err != nil {
			return err
		}
		var err error
		fee0, fee1, err = e.oracle.FeesOwed(id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return cloneAmount(fee0), cloneAmount(fee1), nil
}

func (e *Engine) stakedIncentives(id PositionID) ([]*Incentive, error) {
	ids, err := e.state.StakerStakedIncentives(id)
	if err != nil {
		return nil, err
	}
	out := make([]*Incentive, 0, len(ids))
	for _, incentiveID := range ids {
		incentive, err := e.getIncentive(incentiveID)
		if err != nil {
			return nil, err
		}
		out = append(out, incentive)
	}
	return out, nil
}

func sortedAddresses(set map[common.Address]struct{}) []common.Address {
	out := make([]common.Address, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
