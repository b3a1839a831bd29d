package staker

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (e *Engine) credit(owner, token common.Address, amount *uint256.Int) error {
	balance, err := e.state.StakerRewardGet(owner, token)
	if err != nil {
		return err
	}
	updated := new(uint256.Int).Add(orZero(balance), orZero(amount))
	return e.state.StakerRewardPut(owner, token, updated)
}

// ClaimReward pays out vault balance to `to`. A zero request, or one larger
// than the balance, claims everything. An empty balance claims nothing and
// leaves no trace.
func (e *Engine) ClaimReward(caller, rewardToken, to common.Address, amountRequested *uint256.Int) (*uint256.Int, error) {
	var claimed *uint256.Int
	err := e.atomically(func(tx *opContext) error {
		if err := e.requireLedger(); err != nil {
			return err
		}
		if to == (common.Address{}) || to == e.address {
			return fmt.Errorf("%w: cannot claim to %s", ErrInvalidRecipient, to.Hex())
		}
		balance, err := e.state.StakerRewardGet(caller, rewardToken)
		if err != nil {
			return err
		}
		balance = orZero(balance)
		claimed = new(uint256.Int).Set(balance)
		if amountRequested != nil && !amountRequested.IsZero() && amountRequested.Cmp(balance) < 0 {
			claimed.Set(amountRequested)
		}
		if claimed.IsZero() {
			return nil
		}
		remaining := new(uint256.Int).Sub(balance, claimed)
		if err := e.state.StakerRewardPut(caller, rewardToken, remaining); err != nil {
			return err
		}
		if err := e.ledger.TransferOut(rewardToken, to, claimed); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		tx.emit(RewardClaimedEvent(rewardToken, caller, to, claimed))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RewardBalance returns the claimable balance of owner in token.
func (e *Engine) RewardBalance(owner, token common.Address) (*uint256.Int, error) {
	var balance *uint256.Int
	err := e.view(func() error {
		var err error
		balance, err = e.state.StakerRewardGet(owner, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cloneAmount(balance), nil
}
