package staker

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PositionOracle exposes the AMM data the engine trusts without verifying.
type PositionOracle interface {
	OwnerOf(id PositionID) (common.Address, error)
	Position(id PositionID) (PositionInfo, error)
	// SecondsPerLiquidityInside returns the monotonically non-decreasing
	// time-in-range per unit of liquidity (X128) for the range at the given
	// timestamp, which must not be in the future.
	SecondsPerLiquidityInside(pool common.Address, tickLower, tickUpper int32, at uint64) (*uint256.Int, error)
	PoolExists(pool common.Address) bool
	CurrentTick(pool common.Address) (int32, error)
	FeesOwed(id PositionID) (*uint256.Int, *uint256.Int, error)
}

// PositionCustody moves position ownership out of the engine.
type PositionCustody interface {
	TransferPosition(from, to common.Address, id PositionID) error
}

// TokenLedger moves reward token value in and out of engine custody. Both
// calls must return an error unless the transfer fully happened.
type TokenLedger interface {
	TransferIn(token, from common.Address, amount *uint256.Int) error
	TransferOut(token, to common.Address, amount *uint256.Int) error
}
