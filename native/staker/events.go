package staker

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rangestaker/core/events"
	"rangestaker/core/types"
)

const (
	// EventTypeIncentiveCreated is emitted when a sponsor funds a new incentive.
	EventTypeIncentiveCreated = "staker.incentive.created"
	// EventTypeIncentiveEnded is emitted when the unclaimed reward is refunded.
	EventTypeIncentiveEnded = "staker.incentive.ended"
	// EventTypeDepositTransferred is emitted when a deposit changes owner,
	// including arrival (from the zero address) and withdrawal (to it).
	EventTypeDepositTransferred = "staker.deposit.transferred"
	// EventTypeTokenStaked is emitted when a position enters an incentive.
	EventTypeTokenStaked = "staker.token.staked"
	// EventTypeTokenUnstaked is emitted when a stake is settled.
	EventTypeTokenUnstaked = "staker.token.unstaked"
	// EventTypeRewardClaimed is emitted when vault balance leaves custody.
	EventTypeRewardClaimed = "staker.reward.claimed"
	// EventTypeParamsUpdated is emitted when the owner changes the limits or hands over ownership.
	EventTypeParamsUpdated = "staker.params.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// IncentiveCreatedEvent describes a newly funded incentive.
func IncentiveCreatedEvent(id IncentiveID, key IncentiveKey, reward *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeIncentiveCreated,
		Attributes: map[string]string{
			"incentiveId": id.Hex(),
			"rewardToken": key.RewardToken.Hex(),
			"pool":        key.Pool.Hex(),
			"startTime":   strconv.FormatUint(key.StartTime, 10),
			"endTime":     strconv.FormatUint(key.EndTime, 10),
			"refundee":    key.Refundee.Hex(),
			"reward":      amountString(reward),
		},
	}
}

// IncentiveEndedEvent describes the terminal refund of an incentive.
func IncentiveEndedEvent(id IncentiveID, rewardToken common.Address, refund *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeIncentiveEnded,
		Attributes: map[string]string{
			"incentiveId": id.Hex(),
			"rewardToken": rewardToken.Hex(),
			"refund":      amountString(refund),
		},
	}
}

// DepositTransferredEvent describes a change of deposit ownership.
func DepositTransferredEvent(id PositionID, oldOwner, newOwner common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeDepositTransferred,
		Attributes: map[string]string{
			"tokenId":  strconv.FormatUint(id, 10),
			"oldOwner": oldOwner.Hex(),
			"newOwner": newOwner.Hex(),
		},
	}
}

// TokenStakedEvent describes a position entering an incentive.
func TokenStakedEvent(id PositionID, incentive IncentiveID, liquidity *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenStaked,
		Attributes: map[string]string{
			"tokenId":     strconv.FormatUint(id, 10),
			"incentiveId": incentive.Hex(),
			"liquidity":   amountString(liquidity),
		},
	}
}

// TokenUnstakedEvent describes a settled stake.
func TokenUnstakedEvent(id PositionID, incentive IncentiveID, owner, rewardToken common.Address, reward *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenUnstaked,
		Attributes: map[string]string{
			"tokenId":     strconv.FormatUint(id, 10),
			"incentiveId": incentive.Hex(),
			"owner":       owner.Hex(),
			"rewardToken": rewardToken.Hex(),
			"reward":      amountString(reward),
		},
	}
}

// RewardClaimedEvent describes a vault withdrawal.
func RewardClaimedEvent(rewardToken, owner, to common.Address, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardClaimed,
		Attributes: map[string]string{
			"rewardToken": rewardToken.Hex(),
			"owner":       owner.Hex(),
			"to":          to.Hex(),
			"amount":      amountString(amount),
		},
	}
}

// ParamsUpdatedEvent describes new owner-controlled parameters.
func ParamsUpdatedEvent(params Params) *types.Event {
	return &types.Event{
		Type: EventTypeParamsUpdated,
		Attributes: map[string]string{
			"owner":                     params.Owner.Hex(),
			"maxIncentiveStartLeadTime": strconv.FormatUint(params.MaxIncentiveStartLeadTime, 10),
			"maxIncentiveDuration":      strconv.FormatUint(params.MaxIncentiveDuration, 10),
		},
	}
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
