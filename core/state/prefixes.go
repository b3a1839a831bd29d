package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	stakerParamsKey             = []byte("staker/params")
	stakerIncentiveListKey      = []byte("staker/incentives")
	stakerIncentivePrefix       = []byte("staker/incentive/")
	stakerDepositPrefix         = []byte("staker/deposit/")
	stakerOwnerDepositsPrefix   = []byte("staker/owner-deposits/")
	stakerStakePrefix           = []byte("staker/stake/")
	stakerPositionStakesPrefix  = []byte("staker/position-stakes/")
	stakerRewardPrefix          = []byte("staker/reward/")
	stakerRewardTokenListPrefix = []byte("staker/reward-tokens/")
	balancePrefix               = []byte("balance/")
)

func joinKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return buf
}

func positionBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func stakerIncentiveKey(id [32]byte) []byte { return joinKey(stakerIncentivePrefix, id[:]) }

func stakerDepositKey(id uint64) []byte { return joinKey(stakerDepositPrefix, positionBytes(id)) }

func stakerOwnerDepositsKey(owner common.Address) []byte {
	return joinKey(stakerOwnerDepositsPrefix, owner.Bytes())
}

func stakerStakeKey(id uint64, incentive [32]byte) []byte {
	return joinKey(stakerStakePrefix, positionBytes(id), incentive[:])
}

func stakerPositionStakesKey(id uint64) []byte {
	return joinKey(stakerPositionStakesPrefix, positionBytes(id))
}

func stakerRewardKey(owner, token common.Address) []byte {
	return joinKey(stakerRewardPrefix, owner.Bytes(), token.Bytes())
}

func stakerRewardTokenListKey(owner common.Address) []byte {
	return joinKey(stakerRewardTokenListPrefix, owner.Bytes())
}

func balanceKey(token, account common.Address) []byte {
	return joinKey(balancePrefix, token.Bytes(), account.Bytes())
}
