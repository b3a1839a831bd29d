package rpc

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"rangestaker/indexer"
)

func (s *Server) registerMethods() map[string]method {
	mutation := func(fn handlerFunc) method { return method{fn: fn, mutating: true} }
	query := func(fn handlerFunc) method { return method{fn: fn} }
	dev := func(fn handlerFunc) method { return method{fn: fn, mutating: true, dev: true} }

	return map[string]method{
		"staker_createIncentive":   mutation(s.handleCreateIncentive),
		"staker_endIncentive":      mutation(s.handleEndIncentive),
		"staker_stakeToken":        mutation(s.handleStakeToken),
		"staker_unstakeToken":      mutation(s.handleUnstakeToken),
		"staker_withdrawToken":     mutation(s.handleWithdrawToken),
		"staker_transferDeposit":   mutation(s.handleTransferDeposit),
		"staker_claimReward":       mutation(s.handleClaimReward),
		"staker_setParams":         mutation(s.handleSetParams),
		"staker_transferOwnership": mutation(s.handleTransferOwnership),
		"pool_safeTransfer":        mutation(s.handleSafeTransfer),

		"staker_getIncentive":              query(s.handleGetIncentive),
		"staker_getIncentiveId":            query(s.handleGetIncentiveID),
		"staker_getAllIncentives":          query(s.handleGetAllIncentives),
		"staker_getDeposit":                query(s.handleGetDeposit),
		"staker_getStake":                  query(s.handleGetStake),
		"staker_getRewardInfo":             query(s.handleGetRewardInfo),
		"staker_getTokenIds":               query(s.handleGetTokenIDs),
		"staker_getStakedTokenIds":         query(s.handleGetStakedTokenIDs),
		"staker_isTokenStaked":             query(s.handleIsTokenStaked),
		"staker_getIncentiveKeys":          query(s.handleGetIncentiveKeys),
		"staker_getStakeableIncentiveKeys": query(s.handleGetStakeableIncentiveKeys),
		"staker_getRewardTokensByTokenId":  query(s.handleGetRewardTokensByTokenID),
		"staker_getRewardTokensByAddress":  query(s.handleGetRewardTokensByAddress),
		"staker_getReward":                 query(s.handleGetReward),
		"staker_checkRangeStatus":          query(s.handleCheckRangeStatus),
		"staker_getSwapFee":                query(s.handleGetSwapFee),
		"staker_params":                    query(s.handleParams),
		"staker_listEvents":                query(s.handleListEvents),
		"pool_getPosition":                 query(s.handleGetPosition),
		"pool_getPools":                    query(s.handleGetPools),
		"bank_getBalance":                  query(s.handleGetBalance),

		"dev_fund":         dev(s.handleDevFund),
		"dev_createPool":   dev(s.handleDevCreatePool),
		"dev_mintPosition": dev(s.handleDevMintPosition),
		"dev_setTick":      dev(s.handleDevSetTick),
		"dev_accrueFees":   dev(s.handleDevAccrueFees),
	}
}

func (s *Server) handleCreateIncentive(c *call) (interface{}, error) {
	var params createIncentiveParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	key, err := params.Key.key()
	if err != nil {
		return nil, err
	}
	reward, err := requireAmount("reward", params.Reward)
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.CreateIncentive(c.caller, key, reward)
}

func (s *Server) handleEndIncentive(c *call) (interface{}, error) {
	var params keyParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	key, err := params.Key.key()
	if err != nil {
		return nil, err
	}
	refund, err := s.backend.Engine.EndIncentive(key)
	if err != nil {
		return nil, err
	}
	return amountResult{Amount: refund}, nil
}

func (s *Server) handleStakeToken(c *call) (interface{}, error) {
	var params stakeParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	key, err := params.Key.key()
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.StakeToken(c.caller, key, params.TokenID)
}

func (s *Server) handleUnstakeToken(c *call) (interface{}, error) {
	var params stakeParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	key, err := params.Key.key()
	if err != nil {
		return nil, err
	}
	reward, err := s.backend.Engine.UnstakeToken(c.caller, key, params.TokenID)
	if err != nil {
		return nil, err
	}
	return amountResult{Amount: reward}, nil
}

func (s *Server) handleWithdrawToken(c *call) (interface{}, error) {
	var params withdrawParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	to, err := parseOptionalAddress("to", params.To, c.caller)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Engine.WithdrawToken(c.caller, params.TokenID, to); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleTransferDeposit(c *call) (interface{}, error) {
	var params transferDepositParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	newOwner, err := parseAddress("newOwner", params.NewOwner)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Engine.TransferDeposit(c.caller, params.TokenID, newOwner); err != nil {
		return nil, err
	}
	return s.backend.Engine.Deposit(params.TokenID)
}

func (s *Server) handleClaimReward(c *call) (interface{}, error) {
	var params claimParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	rewardToken, err := parseAddress("rewardToken", params.RewardToken)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalAddress("to", params.To, c.caller)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	claimed, err := s.backend.Engine.ClaimReward(c.caller, rewardToken, to, amount)
	if err != nil {
		return nil, err
	}
	return amountResult{Amount: claimed}, nil
}

func (s *Server) handleSetParams(c *call) (interface{}, error) {
	var params setParamsParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	return s.backend.Engine.SetParams(c.caller, params.MaxIncentiveStartLeadTime, params.MaxIncentiveDuration)
}

func (s *Server) handleTransferOwnership(c *call) (interface{}, error) {
	var params transferOwnershipParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	newOwner, err := parseAddress("newOwner", params.NewOwner)
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.TransferOwnership(c.caller, newOwner)
}

func (s *Server) handleGetIncentive(c *call) (interface{}, error) {
	var params incentiveIDParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	id, err := parseIncentiveID(params.IncentiveID)
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.Incentive(id)
}

func (s *Server) handleGetIncentiveID(c *call) (interface{}, error) {
	var params keyParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	key, err := params.Key.key()
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.IncentiveIDFor(key), nil
}

func (s *Server) handleGetAllIncentives(*call) (interface{}, error) {
	return s.backend.Engine.AllIncentives()
}

func (s *Server) handleGetDeposit(c *call) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	return s.backend.Engine.Deposit(params.TokenID)
}

func (s *Server) handleGetStake(c *call) (interface{}, error) {
	var params stakeQueryParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	id, err := parseIncentiveID(params.IncentiveID)
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.Stake(params.TokenID, id)
}

func (s *Server) handleGetRewardInfo(c *call) (interface{}, error) {
	var params stakeParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	key, err := params.Key.key()
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.GetRewardInfo(key, params.TokenID)
}

func (s *Server) ownerParam(c *call) (common.Address, error) {
	var params ownerParams
	if err := decodeParams(c, &params); err != nil {
		return common.Address{}, err
	}
	return parseAddress("owner", params.Owner)
}

func (s *Server) handleGetTokenIDs(c *call) (interface{}, error) {
	owner, err := s.ownerParam(c)
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.TokenIDsByOwner(owner)
}

func (s *Server) handleGetStakedTokenIDs(c *call) (interface{}, error) {
	owner, err := s.ownerParam(c)
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.StakedTokenIDsByOwner(owner)
}

func (s *Server) handleIsTokenStaked(c *call) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	staked, err := s.backend.Engine.IsTokenStaked(params.TokenID)
	if err != nil {
		return nil, err
	}
	return stakedResult{TokenID: params.TokenID, Staked: staked}, nil
}

func (s *Server) handleGetIncentiveKeys(c *call) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	return s.backend.Engine.IncentiveKeysByTokenID(params.TokenID)
}

func (s *Server) handleGetStakeableIncentiveKeys(c *call) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	return s.backend.Engine.StakeableIncentiveKeysByTokenID(params.TokenID)
}

func (s *Server) handleGetRewardTokensByTokenID(c *call) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	return s.backend.Engine.RewardTokensByTokenID(params.TokenID)
}

func (s *Server) handleGetRewardTokensByAddress(c *call) (interface{}, error) {
	owner, err := s.ownerParam(c)
	if err != nil {
		return nil, err
	}
	return s.backend.Engine.RewardTokensByOwner(owner)
}

func (s *Server) handleGetReward(c *call) (interface{}, error) {
	var params rewardParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("rewardToken", params.RewardToken)
	if err != nil {
		return nil, err
	}
	amount, err := s.backend.Engine.RewardBalance(owner, token)
	if err != nil {
		return nil, err
	}
	return amountResult{Amount: amount}, nil
}

func (s *Server) handleCheckRangeStatus(c *call) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	return s.backend.Engine.RangeStatus(params.TokenID)
}

func (s *Server) handleGetSwapFee(c *call) (interface{}, error) {
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	fee0, fee1, err := s.backend.Engine.SwapFees(params.TokenID)
	if err != nil {
		return nil, err
	}
	return swapFeeResult{Fee0: fee0, Fee1: fee1}, nil
}

func (s *Server) handleParams(*call) (interface{}, error) {
	return s.backend.Engine.Params()
}

func (s *Server) handleListEvents(c *call) (interface{}, error) {
	if s.backend.Journal == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event journal disabled", status: http.StatusServiceUnavailable}
	}
	var params listEventsParams
	if len(c.req.Params) > 0 {
		if err := decodeParams(c, &params); err != nil {
			return nil, err
		}
	}
	filter := indexer.Filter{
		Type:     params.Type,
		TokenID:  params.TokenID,
		AfterSeq: params.AfterSeq,
		Limit:    params.Limit,
	}
	if params.IncentiveID != "" {
		id, err := parseIncentiveID(params.IncentiveID)
		if err != nil {
			return nil, err
		}
		filter.IncentiveID = id.Hex()
	}
	if params.Owner != "" {
		owner, err := parseAddress("owner", params.Owner)
		if err != nil {
			return nil, err
		}
		filter.Owner = owner.Hex()
	}
	records, err := s.backend.Journal.List(c.ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]eventResult, 0, len(records))
	for _, record := range records {
		attrs, err := record.Decoded()
		if err != nil {
			return nil, err
		}
		out = append(out, eventResult{
			Seq:        record.Seq,
			ID:         record.ID.String(),
			Type:       record.Type,
			Attributes: attrs,
			CreatedAt:  record.CreatedAt.Unix(),
		})
	}
	return out, nil
}
