package staker

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// incentiveKeyArgs mirrors the Solidity tuple
// (address rewardToken, address pool, uint256 startTime, uint256 endTime, address refundee).
var incentiveKeyArgs = func() abi.Arguments {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uintTy, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "rewardToken", Type: addressTy},
		{Name: "pool", Type: addressTy},
		{Name: "startTime", Type: uintTy},
		{Name: "endTime", Type: uintTy},
		{Name: "refundee", Type: addressTy},
	}
}()

// EncodeIncentiveKey returns the ABI encoding of the key.
func EncodeIncentiveKey(key IncentiveKey) ([]byte, error) {
	return incentiveKeyArgs.Pack(
		key.RewardToken,
		key.Pool,
		new(big.Int).SetUint64(key.StartTime),
		new(big.Int).SetUint64(key.EndTime),
		key.Refundee,
	)
}

// ComputeIncentiveID derives the incentive id: keccak256(abi.encode(key)).
func ComputeIncentiveID(key IncentiveKey) IncentiveID {
	encoded, err := EncodeIncentiveKey(key)
	if err != nil {
		// every argument is statically typed; packing cannot fail
		panic(fmt.Sprintf("staker: encode incentive key: %v", err))
	}
	var id IncentiveID
	copy(id[:], crypto.Keccak256(encoded))
	return id
}

// ID is shorthand for ComputeIncentiveID(k).
func (k IncentiveKey) ID() IncentiveID { return ComputeIncentiveID(k) }

// ParseIncentiveID decodes a 0x-prefixed or bare 64 character hex id.
func ParseIncentiveID(raw string) (IncentiveID, error) {
	var id IncentiveID
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(trimmed) != 64 {
		return id, fmt.Errorf("staker: incentive id must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("staker: decode incentive id: %w", err)
	}
	copy(id[:], decoded)
	return id, nil
}

// MarshalText encodes the id as 0x-prefixed hex.
func (id IncentiveID) MarshalText() ([]byte, error) { return []byte(id.Hex()), nil }

// UnmarshalText decodes a hex id.
func (id *IncentiveID) UnmarshalText(text []byte) error {
	parsed, err := ParseIncentiveID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
