package bank

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidAmount is returned for nil amounts.
	ErrInvalidAmount = errors.New("bank: amount required")
	// ErrZeroAddress is returned when either side of a transfer is unset.
	ErrZeroAddress = errors.New("bank: zero address")
)

type balanceStore interface {
	Balance(token, account common.Address) (*uint256.Int, error)
	SetBalance(token, account common.Address, amount *uint256.Int) error
	Update(fn func() error) error
}

// Ledger moves fungible token balances between accounts. Transfers only
// stage writes on the backing store, so they land or vanish together with
// whatever operation invoked them.
type Ledger struct {
	store   balanceStore
	custody common.Address
}

// NewLedger returns a ledger whose TransferIn and TransferOut move funds
// against the custody account.
func NewLedger(store balanceStore, custody common.Address) *Ledger {
	return &Ledger{store: store, custody: custody}
}

// Custody returns the account that backs TransferIn and TransferOut.
func (l *Ledger) Custody() common.Address { return l.custody }

// Balance returns the balance of account in token.
func (l *Ledger) Balance(token, account common.Address) (*uint256.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("bank: store unavailable")
	}
	return l.store.Balance(token, account)
}

// TransferIn pulls amount of token from `from` into custody.
func (l *Ledger) TransferIn(token, from common.Address, amount *uint256.Int) error {
	return l.Transfer(token, from, l.custody, amount)
}

// TransferOut pays amount of token from custody to `to`.
func (l *Ledger) TransferOut(token, to common.Address, amount *uint256.Int) error {
	return l.Transfer(token, l.custody, to, amount)
}

// Transfer stages a move of amount from one account to another.
func (l *Ledger) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("bank: store unavailable")
	}
	if amount == nil {
		return ErrInvalidAmount
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount.IsZero() || from == to {
		return nil
	}
	fromBalance, err := l.store.Balance(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance.Dec(), token.Hex(), amount.Dec())
	}
	toBalance, err := l.store.Balance(token, to)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
	if overflow {
		return fmt.Errorf("bank: balance overflow for %s", to.Hex())
	}
	if err := l.store.SetBalance(token, from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.store.SetBalance(token, to, credited)
}

// Mint credits new supply to `to` and commits it immediately. It is used by
// the development faucet and by tests.
func (l *Ledger) Mint(token, to common.Address, amount *uint256.Int) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("bank: store unavailable")
	}
	if amount == nil {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	return l.store.Update(func() error {
		balance, err := l.store.Balance(token, to)
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(balance, amount)
		if overflow {
			return fmt.Errorf("bank: balance overflow for %s", to.Hex())
		}
		return l.store.SetBalance(token, to, credited)
	})
}
