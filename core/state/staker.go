package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rangestaker/native/staker"
)

type stakerIncentiveRecord struct {
	ID                      [32]byte
	RewardToken             common.Address
	Pool                    common.Address
	StartTime               uint64
	EndTime                 uint64
	Refundee                common.Address
	TotalRewardUnclaimed    *uint256.Int
	TotalSecondsClaimedX128 *uint256.Int
	NumberOfStakes          uint64
	CreatedAt               uint64
	EndedAt                 uint64
}

// Ticks are stored as their two's complement bit pattern; RLP has no signed
// integers.
type stakerDepositRecord struct {
	PositionID     uint64
	Owner          common.Address
	NumberOfStakes uint64
	TickLower      uint32
	TickUpper      uint32
	DepositedAt    uint64
}

type stakerStakeRecord struct {
	PositionID                           uint64
	IncentiveID                          [32]byte
	SecondsPerLiquidityInsideInitialX128 *uint256.Int
	Liquidity                            *uint256.Int
	StakedAt                             uint64
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func newStakerIncentiveRecord(incentive *staker.Incentive) *stakerIncentiveRecord {
	return &stakerIncentiveRecord{
		ID:                      incentive.ID,
		RewardToken:             incentive.Key.RewardToken,
		Pool:                    incentive.Key.Pool,
		StartTime:               incentive.Key.StartTime,
		EndTime:                 incentive.Key.EndTime,
		Refundee:                incentive.Key.Refundee,
		TotalRewardUnclaimed:    amountOrZero(incentive.TotalRewardUnclaimed),
		TotalSecondsClaimedX128: amountOrZero(incentive.TotalSecondsClaimedX128),
		NumberOfStakes:          incentive.NumberOfStakes,
		CreatedAt:               incentive.CreatedAt,
		EndedAt:                 incentive.EndedAt,
	}
}

func (r *stakerIncentiveRecord) toIncentive() *staker.Incentive {
	return &staker.Incentive{
		ID: r.ID,
		Key: staker.IncentiveKey{
			RewardToken: r.RewardToken,
			Pool:        r.Pool,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			Refundee:    r.Refundee,
		},
		TotalRewardUnclaimed:    amountOrZero(r.TotalRewardUnclaimed),
		TotalSecondsClaimedX128: amountOrZero(r.TotalSecondsClaimedX128),
		NumberOfStakes:          r.NumberOfStakes,
		CreatedAt:               r.CreatedAt,
		EndedAt:                 r.EndedAt,
	}
}

// StakerParamsGet loads the persisted staker parameters.
func (m *Manager) StakerParamsGet() (*staker.Params, bool, error) {
	var params staker.Params
	ok, err := m.KVGet(stakerParamsKey, &params)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &params, true, nil
}

// StakerParamsPut persists the staker parameters.
func (m *Manager) StakerParamsPut(params *staker.Params) error {
	if params == nil {
		return fmt.Errorf("staker: nil params")
	}
	return m.KVPut(stakerParamsKey, params)
}

// StakerIncentiveGet loads an incentive by id.
func (m *Manager) StakerIncentiveGet(id staker.IncentiveID) (*staker.Incentive, bool, error) {
	var record stakerIncentiveRecord
	ok, err := m.KVGet(stakerIncentiveKey(id), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.toIncentive(), true, nil
}

// StakerIncentivePut stores an incentive and indexes new ids in creation order.
func (m *Manager) StakerIncentivePut(incentive *staker.Incentive) error {
	if incentive == nil {
		return fmt.Errorf("staker: nil incentive")
	}
	exists, err := m.KVGet(stakerIncentiveKey(incentive.ID), nil)
	if err != nil {
		return err
	}
	if !exists {
		var ids [][32]byte
		if err := m.KVGetList(stakerIncentiveListKey, &ids); err != nil {
			return err
		}
		ids = append(ids, incentive.ID)
		if err := m.KVPut(stakerIncentiveListKey, ids); err != nil {
			return err
		}
	}
	return m.KVPut(stakerIncentiveKey(incentive.ID), newStakerIncentiveRecord(incentive))
}

// StakerIncentiveIDs lists every incentive id in creation order.
func (m *Manager) StakerIncentiveIDs() ([]staker.IncentiveID, error) {
	var raw [][32]byte
	if err := m.KVGetList(stakerIncentiveListKey, &raw); err != nil {
		return nil, err
	}
	ids := make([]staker.IncentiveID, len(raw))
	for i := range raw {
		ids[i] = raw[i]
	}
	return ids, nil
}

// StakerDepositGet loads the deposit of a position.
func (m *Manager) StakerDepositGet(id staker.PositionID) (*staker.Deposit, bool, error) {
	var record stakerDepositRecord
	ok, err := m.KVGet(stakerDepositKey(id), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &staker.Deposit{
		PositionID:     record.PositionID,
		Owner:          record.Owner,
		NumberOfStakes: record.NumberOfStakes,
		TickLower:      int32(record.TickLower),
		TickUpper:      int32(record.TickUpper),
		DepositedAt:    record.DepositedAt,
	}, true, nil
}

// StakerDepositPut stores a deposit and keeps the owner index in step with
// ownership changes.
func (m *Manager) StakerDepositPut(deposit *staker.Deposit) error {
	if deposit == nil {
		return fmt.Errorf("staker: nil deposit")
	}
	previous, ok, err := m.StakerDepositGet(deposit.PositionID)
	if err != nil {
		return err
	}
	if !ok || previous.Owner != deposit.Owner {
		if ok {
			if err := m.removeOwnerDeposit(previous.Owner, deposit.PositionID); err != nil {
				return err
			}
		}
		if err := m.addOwnerDeposit(deposit.Owner, deposit.PositionID); err != nil {
			return err
		}
	}
	return m.KVPut(stakerDepositKey(deposit.PositionID), &stakerDepositRecord{
		PositionID:     deposit.PositionID,
		Owner:          deposit.Owner,
		NumberOfStakes: deposit.NumberOfStakes,
		TickLower:      uint32(deposit.TickLower),
		TickUpper:      uint32(deposit.TickUpper),
		DepositedAt:    deposit.DepositedAt,
	})
}

// StakerDepositDelete forgets a deposit.
func (m *Manager) StakerDepositDelete(id staker.PositionID) error {
	previous, ok, err := m.StakerDepositGet(id)
	if err != nil || !ok {
		return err
	}
	if err := m.removeOwnerDeposit(previous.Owner, id); err != nil {
		return err
	}
	return m.KVDelete(stakerDepositKey(id))
}

// StakerDepositsByOwner lists the positions deposited by owner in deposit order.
func (m *Manager) StakerDepositsByOwner(owner common.Address) ([]staker.PositionID, error) {
	var ids []uint64
	if err := m.KVGetList(stakerOwnerDepositsKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) addOwnerDeposit(owner common.Address, id uint64) error {
	ids, err := m.StakerDepositsByOwner(owner)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return m.KVPut(stakerOwnerDepositsKey(owner), append(ids, id))
}

func (m *Manager) removeOwnerDeposit(owner common.Address, id uint64) error {
	ids, err := m.StakerDepositsByOwner(owner)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == 0 {
		return m.KVDelete(stakerOwnerDepositsKey(owner))
	}
	return m.KVPut(stakerOwnerDepositsKey(owner), filtered)
}

// StakerStakeGet loads the stake of a position in an incentive.
func (m *Manager) StakerStakeGet(id staker.PositionID, incentive staker.IncentiveID) (*staker.Stake, bool, error) {
	var record stakerStakeRecord
	ok, err := m.KVGet(stakerStakeKey(id, incentive), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &staker.Stake{
		PositionID:                           record.PositionID,
		IncentiveID:                          record.IncentiveID,
		SecondsPerLiquidityInsideInitialX128: amountOrZero(record.SecondsPerLiquidityInsideInitialX128),
		Liquidity:                            amountOrZero(record.Liquidity),
		StakedAt:                             record.StakedAt,
	}, true, nil
}

// StakerStakePut stores a stake and indexes it under its position.
func (m *Manager) StakerStakePut(stake *staker.Stake) error {
	if stake == nil {
		return fmt.Errorf("staker: nil stake")
	}
	ids, err := m.StakerStakedIncentives(stake.PositionID)
	if err != nil {
		return err
	}
	indexed := false
	for _, existing := range ids {
		if existing == stake.IncentiveID {
			indexed = true
			break
		}
	}
	if !indexed {
		if err := m.putPositionStakes(stake.PositionID, append(ids, stake.IncentiveID)); err != nil {
			return err
		}
	}
	return m.KVPut(stakerStakeKey(stake.PositionID, stake.IncentiveID), &stakerStakeRecord{
		PositionID:                           stake.PositionID,
		IncentiveID:                          stake.IncentiveID,
		SecondsPerLiquidityInsideInitialX128: amountOrZero(stake.SecondsPerLiquidityInsideInitialX128),
		Liquidity:                            amountOrZero(stake.Liquidity),
		StakedAt:                             stake.StakedAt,
	})
}

// StakerStakeDelete removes a stake and its index entry.
func (m *Manager) StakerStakeDelete(id staker.PositionID, incentive staker.IncentiveID) error {
	ids, err := m.StakerStakedIncentives(id)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != incentive {
			filtered = append(filtered, existing)
		}
	}
	if err := m.putPositionStakes(id, filtered); err != nil {
		return err
	}
	return m.KVDelete(stakerStakeKey(id, incentive))
}

// StakerStakedIncentives lists the incentives a position is staked in, in
// staking order.
func (m *Manager) StakerStakedIncentives(id staker.PositionID) ([]staker.IncentiveID, error) {
	var raw [][32]byte
	if err := m.KVGetList(stakerPositionStakesKey(id), &raw); err != nil {
		return nil, err
	}
	ids := make([]staker.IncentiveID, len(raw))
	for i := range raw {
		ids[i] = raw[i]
	}
	return ids, nil
}

func (m *Manager) putPositionStakes(id uint64, ids []staker.IncentiveID) error {
	if len(ids) == 0 {
		return m.KVDelete(stakerPositionStakesKey(id))
	}
	raw := make([][32]byte, len(ids))
	for i := range ids {
		raw[i] = ids[i]
	}
	return m.KVPut(stakerPositionStakesKey(id), raw)
}

// StakerRewardGet returns the claimable reward balance of owner in token.
func (m *Manager) StakerRewardGet(owner, token common.Address) (*uint256.Int, error) {
	amount := new(uint256.Int)
	if _, err := m.KVGet(stakerRewardKey(owner, token), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// StakerRewardPut stores the claimable reward balance of owner in token. The
// token stays listed for the owner even once the balance drops to zero.
func (m *Manager) StakerRewardPut(owner, token common.Address, amount *uint256.Int) error {
	tokens, err := m.StakerRewardTokens(owner)
	if err != nil {
		return err
	}
	listed := false
	for _, existing := range tokens {
		if existing == token {
			listed = true
			break
		}
	}
	if !listed {
		if err := m.KVPut(stakerRewardTokenListKey(owner), append(tokens, token)); err != nil {
			return err
		}
	}
	return m.KVPut(stakerRewardKey(owner, token), amountOrZero(amount))
}

// StakerRewardTokens lists every token owner has ever been credited in.
func (m *Manager) StakerRewardTokens(owner common.Address) ([]common.Address, error) {
	var tokens []common.Address
	if err := m.KVGetList(stakerRewardTokenListKey(owner), &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}
