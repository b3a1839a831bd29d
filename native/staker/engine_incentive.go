package staker

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CreateIncentive funds a new incentive from the caller's balance.
func (e *Engine) CreateIncentive(caller common.Address, key IncentiveKey, reward *uint256.Int) (*Incentive, error) {
	var created *Incentive
	err := e.atomically(func(tx *opContext) error {
		if err := e.requireOracle(); err != nil {
			return err
		}
		if err := e.requireLedger(); err != nil {
			return err
		}
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		if err := validateIncentiveKey(key, reward, params, tx.now); err != nil {
			return err
		}
		if !e.oracle.PoolExists(key.Pool) {
			return fmt.Errorf("%w: pool %s not recognised", ErrInvalidSponsor, key.Pool.Hex())
		}
		id := ComputeIncentiveID(key)
		if _, ok, err := e.state.StakerIncentiveGet(id); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%w: %s", ErrDuplicateIncentive, id.Hex())
		}
		if err := e.ledger.TransferIn(key.RewardToken, caller, reward); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		created = &Incentive{
			ID:                      id,
			Key:                     key,
			TotalRewardUnclaimed:    new(uint256.Int).Set(reward),
			TotalSecondsClaimedX128: new(uint256.Int),
			CreatedAt:               tx.now,
		}
		if err := e.state.StakerIncentivePut(created); err != nil {
			return err
		}
		tx.emit(IncentiveCreatedEvent(id, key, reward))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

func validateIncentiveKey(key IncentiveKey, reward *uint256.Int, params Params, now uint64) error {
	if reward == nil || reward.IsZero() {
		return fmt.Errorf("%w: reward must be positive", ErrInvalidSponsor)
	}
	if key.RewardToken == (common.Address{}) {
		return fmt.Errorf("%w: reward token required", ErrInvalidSponsor)
	}
	if key.Refundee == (common.Address{}) {
		return fmt.Errorf("%w: refundee required", ErrInvalidSponsor)
	}
	if key.StartTime < now {
		return fmt.Errorf("%w: start time must be now or in the future", ErrInvalidWindow)
	}
	if key.StartTime-now > params.MaxIncentiveStartLeadTime {
		return fmt.Errorf("%w: start time too far into future", ErrInvalidWindow)
	}
	if key.EndTime <= key.StartTime {
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidWindow)
	}
	if key.EndTime-key.StartTime > params.MaxIncentiveDuration {
		return fmt.Errorf("%w: incentive duration is too long", ErrInvalidWindow)
	}
	return nil
}

// EndIncentive refunds whatever reward is still unclaimed to the refundee.
// Outstanding stakes keep settling afterwards against the capped window.
func (e *Engine) EndIncentive(key IncentiveKey) (*uint256.Int, error) {
	var refund *uint256.Int
	err := e.atomically(func(tx *opContext) error {
		if err := e.requireLedger(); err != nil {
			return err
		}
		if tx.now <= key.EndTime {
			return ErrNotEnded
		}
		id := ComputeIncentiveID(key)
		incentive, err := e.getIncentive(id)
		if err != nil {
			return err
		}
		if incentive.TotalRewardUnclaimed.IsZero() {
			return ErrNothingToRefund
		}
		refund = new(uint256.Int).Set(incentive.TotalRewardUnclaimed)
		incentive.TotalRewardUnclaimed = new(uint256.Int)
		incentive.EndedAt = tx.now
		if err := e.ledger.TransferOut(key.RewardToken, key.Refundee, refund); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if err := e.state.StakerIncentivePut(incentive); err != nil {
			return err
		}
		tx.emit(IncentiveEndedEvent(id, key.RewardToken, refund))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}
