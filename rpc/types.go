package rpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rangestaker/native/staker"
)

type incentiveKeyParams struct {
	RewardToken string `json:"rewardToken"`
	Pool        string `json:"pool"`
	StartTime   uint64 `json:"startTime"`
	EndTime     uint64 `json:"endTime"`
	Refundee    string `json:"refundee"`
}

func (p incentiveKeyParams) key() (staker.IncentiveKey, error) {
	rewardToken, err := parseAddress("rewardToken", p.RewardToken)
	if err != nil {
		return staker.IncentiveKey{}, err
	}
	poolAddr, err := parseAddress("pool", p.Pool)
	if err != nil {
		return staker.IncentiveKey{}, err
	}
	refundee, err := parseAddress("refundee", p.Refundee)
	if err != nil {
		return staker.IncentiveKey{}, err
	}
	return staker.IncentiveKey{
		RewardToken: rewardToken,
		Pool:        poolAddr,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Refundee:    refundee,
	}, nil
}

func parseKeys(raw []incentiveKeyParams) ([]staker.IncentiveKey, error) {
	keys := make([]staker.IncentiveKey, 0, len(raw))
	for i, p := range raw {
		key, err := p.key()
		if err != nil {
			return nil, invalidParams(fmt.Sprintf("stakeKeys[%d]: %s", i, err.Error()), nil)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// decodeParams unmarshals the single parameter object every method takes.
func decodeParams(c *call, out interface{}) error {
	if len(c.req.Params) != 1 {
		return invalidParams("exactly one parameter object expected", nil)
	}
	if err := json.Unmarshal(c.req.Params[0], out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, invalidParams(fmt.Sprintf("invalid %s address", field), raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseOptionalAddress(field, raw string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return parseAddress(field, raw)
}

// parseAmount accepts a base-10 or 0x-prefixed integer. Empty input yields nil.
func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var (
		value *uint256.Int
		err   error
	)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		value, err = uint256.FromHex(trimmed)
	} else {
		value, err = uint256.FromDecimal(trimmed)
	}
	if err != nil {
		return nil, invalidParams(fmt.Sprintf("invalid %s", field), raw)
	}
	return value, nil
}

func requireAmount(field, raw string) (*uint256.Int, error) {
	value, err := parseAmount(field, raw)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	return value, nil
}

func parseIncentiveID(raw string) (staker.IncentiveID, error) {
	id, err := staker.ParseIncentiveID(raw)
	if err != nil {
		return staker.IncentiveID{}, invalidParams("invalid incentiveId", err.Error())
	}
	return id, nil
}

type tokenParams struct {
	TokenID uint64 `json:"tokenId"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type keyParams struct {
	Key incentiveKeyParams `json:"key"`
}

type createIncentiveParams struct {
	Key    incentiveKeyParams `json:"key"`
	Reward string             `json:"reward"`
}

type stakeParams struct {
	Key     incentiveKeyParams `json:"key"`
	TokenID uint64             `json:"tokenId"`
}

type withdrawParams struct {
	TokenID uint64 `json:"tokenId"`
	To      string `json:"to"`
}

type transferDepositParams struct {
	TokenID  uint64 `json:"tokenId"`
	NewOwner string `json:"newOwner"`
}

type claimParams struct {
	RewardToken string `json:"rewardToken"`
	To          string `json:"to"`
	Amount      string `json:"amount,omitempty"`
}

type setParamsParams struct {
	MaxIncentiveStartLeadTime uint64 `json:"maxIncentiveStartLeadTime"`
	MaxIncentiveDuration      uint64 `json:"maxIncentiveDuration"`
}

type transferOwnershipParams struct {
	NewOwner string `json:"newOwner"`
}

type safeTransferParams struct {
	TokenID   uint64               `json:"tokenId"`
	To        string               `json:"to,omitempty"`
	StakeKeys []incentiveKeyParams `json:"stakeKeys,omitempty"`
}

type incentiveIDParams struct {
	IncentiveID string `json:"incentiveId"`
}

type stakeQueryParams struct {
	TokenID     uint64 `json:"tokenId"`
	IncentiveID string `json:"incentiveId"`
}

type rewardParams struct {
	Owner       string `json:"owner"`
	RewardToken string `json:"rewardToken"`
}

type balanceParams struct {
	Token   string `json:"token"`
	Account string `json:"account"`
}

type listEventsParams struct {
	Type        string `json:"type,omitempty"`
	IncentiveID string `json:"incentiveId,omitempty"`
	TokenID     string `json:"tokenId,omitempty"`
	Owner       string `json:"owner,omitempty"`
	AfterSeq    uint64 `json:"afterSeq,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type fundParams struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type createPoolParams struct {
	Pool   string `json:"pool"`
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
	Fee    uint32 `json:"fee"`
	Tick   int32  `json:"tick"`
}

type mintPositionParams struct {
	Owner     string `json:"owner,omitempty"`
	Pool      string `json:"pool"`
	TickLower int32  `json:"tickLower"`
	TickUpper int32  `json:"tickUpper"`
	Liquidity string `json:"liquidity"`
}

type setTickParams struct {
	Pool string `json:"pool"`
	Tick int32  `json:"tick"`
}

type accrueFeesParams struct {
	TokenID uint64 `json:"tokenId"`
	Fee0    string `json:"fee0"`
	Fee1    string `json:"fee1"`
}

type amountResult struct {
	Amount *uint256.Int `json:"amount"`
}

type swapFeeResult struct {
	Fee0 *uint256.Int `json:"fee0"`
	Fee1 *uint256.Int `json:"fee1"`
}

type stakedResult struct {
	TokenID uint64 `json:"tokenId"`
	Staked  bool   `json:"staked"`
}

type eventResult struct {
	Seq        uint64            `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

type okResult struct {
	OK bool `json:"ok"`
}
