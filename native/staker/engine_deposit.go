package staker

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OnPositionArrived registers a position whose custody has moved to the engine.
func (e *Engine) OnPositionArrived(id PositionID, owner common.Address, tickLower, tickUpper int32) (*Deposit, error) {
	var deposit *Deposit
	err := e.atomically(func(tx *opContext) error {
		var err error
		deposit, err = e.registerDeposit(tx, id, owner, tickLower, tickUpper)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deposit.Clone(), nil
}

// ReceivePosition takes position id from `from` into custody, registers the
// deposit for `from` and stakes it into every supplied incentive. The custody
// move is staged in the same transaction as the deposit, so any failure
// leaves the position with its sender.
func (e *Engine) ReceivePosition(from common.Address, id PositionID, stakeKeys ...IncentiveKey) (*Deposit, error) {
	var deposit *Deposit
	err := e.atomically(func(tx *opContext) error {
		if e.custody == nil {
			return errNilCustody
		}
		if err := e.custody.TransferPosition(from, e.address, id); err != nil {
			return err
		}
		var err error
		deposit, err = e.acceptDeposit(tx, from, id, stakeKeys)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deposit.Clone(), nil
}

// OnPositionReceived registers a position that is already held by the engine,
// staking it into every supplied incentive as part of the same operation. If
// any stake fails the deposit is not recorded either.
func (e *Engine) OnPositionReceived(from common.Address, id PositionID, stakeKeys ...IncentiveKey) (*Deposit, error) {
	var deposit *Deposit
	err := e.atomically(func(tx *opContext) error {
		var err error
		deposit, err = e.acceptDeposit(tx, from, id, stakeKeys)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deposit.Clone(), nil
}

func (e *Engine) acceptDeposit(tx *opContext, from common.Address, id PositionID, stakeKeys []IncentiveKey) (*Deposit, error) {
	if err := e.requireOracle(); err != nil {
		return nil, err
	}
	holder, err := e.oracle.OwnerOf(id)
	if err != nil {
		return nil, err
	}
	if holder != e.address {
		return nil, fmt.Errorf("%w: position %d is held by %s", ErrNotOwner, id, holder.Hex())
	}
	info, err := e.oracle.Position(id)
	if err != nil {
		return nil, err
	}
	deposit, err := e.registerDeposit(tx, id, from, info.TickLower, info.TickUpper)
	if err != nil {
		return nil, err
	}
	for _, key := range stakeKeys {
		if err := e.stake(tx, from, key, id); err != nil {
			return nil, err
		}
	}
	if len(stakeKeys) == 0 {
		return deposit, nil
	}
	return e.getDeposit(id)
}

func (e *Engine) registerDeposit(tx *opContext, id PositionID, owner common.Address, tickLower, tickUpper int32) (*Deposit, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero owner", ErrInvalidRecipient)
	}
	if _, ok, err := e.state.StakerDepositGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyRegistered
	}
	deposit := &Deposit{
		PositionID:  id,
		Owner:       owner,
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		DepositedAt: tx.now,
	}
	if err := e.state.StakerDepositPut(deposit); err != nil {
		return nil, err
	}
	tx.emit(DepositTransferredEvent(id, common.Address{}, owner))
	return deposit, nil
}

// WithdrawToken hands an unstaked position back out of custody and forgets it.
func (e *Engine) WithdrawToken(caller common.Address, id PositionID, recipient common.Address) error {
	return e.atomically(func(tx *opContext) error {
		if e.custody == nil {
			return errNilCustody
		}
		if recipient == (common.Address{}) || recipient == e.address {
			return fmt.Errorf("%w: cannot withdraw to %s", ErrInvalidRecipient, recipient.Hex())
		}
		deposit, err := e.getDeposit(id)
		if err != nil {
			return err
		}
		if caller != deposit.Owner {
			return ErrNotOwner
		}
		if deposit.NumberOfStakes != 0 {
			return fmt.Errorf("%w: %d outstanding", ErrActiveStakesExist, deposit.NumberOfStakes)
		}
		if err := e.state.StakerDepositDelete(id); err != nil {
			return err
		}
		// The custody move is staged in the same overlay as the deposit delete.
		if err := e.custody.TransferPosition(e.address, recipient, id); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		tx.emit(DepositTransferredEvent(id, deposit.Owner, common.Address{}))
		return nil
	})
}

// TransferDeposit reassigns the owner of a deposit. Stakes are keyed by
// position, so they follow the deposit and future rewards go to newOwner.
func (e *Engine) TransferDeposit(caller common.Address, id PositionID, newOwner common.Address) error {
	return e.atomically(func(tx *opContext) error {
		if newOwner == (common.Address{}) {
			return fmt.Errorf("%w: invalid transfer recipient", ErrInvalidRecipient)
		}
		deposit, err := e.getDeposit(id)
		if err != nil {
			return err
		}
		if caller != deposit.Owner {
			return ErrNotOwner
		}
		oldOwner := deposit.Owner
		deposit.Owner = newOwner
		if err := e.state.StakerDepositPut(deposit); err != nil {
			return err
		}
		tx.emit(DepositTransferredEvent(id, oldOwner, newOwner))
		return nil
	})
}
