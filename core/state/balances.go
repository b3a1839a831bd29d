package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Balance retrieves the balance of account in token.
func (m *Manager) Balance(token, account common.Address) (*uint256.Int, error) {
	amount := new(uint256.Int)
	if _, err := m.KVGet(balanceKey(token, account), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetBalance stages a new balance for account in token. Zero balances are
// removed from state.
func (m *Manager) SetBalance(token, account common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return m.KVDelete(balanceKey(token, account))
	}
	return m.KVPut(balanceKey(token, account), amount)
}
