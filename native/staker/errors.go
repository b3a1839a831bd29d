package staker

import "errors"

var (
	ErrNilState = errors.New("staker engine: state not configured")

	errNilOracle  = errors.New("staker engine: oracle not configured")
	errNilLedger  = errors.New("staker engine: ledger not configured")
	errNilCustody = errors.New("staker engine: position custody not configured")

	ErrInvalidWindow      = errors.New("staker engine: invalid incentive window")
	ErrInvalidSponsor     = errors.New("staker engine: invalid incentive sponsor parameters")
	ErrDuplicateIncentive = errors.New("staker engine: incentive already exists")
	ErrNotEnded           = errors.New("staker engine: incentive has not ended")
	ErrNothingToRefund    = errors.New("staker engine: nothing to refund")

	ErrAlreadyRegistered = errors.New("staker engine: position already deposited")
	ErrDepositNotFound   = errors.New("staker engine: deposit not found")
	ErrNotOwner          = errors.New("staker engine: caller is not the deposit owner")
	ErrActiveStakesExist = errors.New("staker engine: deposit has active stakes")
	ErrInvalidRecipient  = errors.New("staker engine: invalid recipient")

	ErrIncentiveNotFound   = errors.New("staker engine: incentive not found")
	ErrAlreadyStaked       = errors.New("staker engine: position already staked in incentive")
	ErrPoolMismatch        = errors.New("staker engine: position pool does not match incentive")
	ErrZeroLiquidity       = errors.New("staker engine: position has no liquidity")
	ErrStakeNotFound       = errors.New("staker engine: stake not found")
	ErrIncentiveNotStarted = errors.New("staker engine: incentive not started")

	ErrTransferFailed = errors.New("staker engine: transfer failed")
	ErrNotAuthority   = errors.New("staker engine: caller is not the owner")
)
